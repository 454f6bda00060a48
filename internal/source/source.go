// Package source opens the roster file for scheduled imports.
//
// Each source satisfies core.RosterFetcher: Fetch hands back a fresh reader
// per run and Name identifies the location in logs.
package source

import (
	"errors"
)

// ErrRosterMissing is returned when the configured roster does not exist.
var ErrRosterMissing = errors.New("roster not found")
