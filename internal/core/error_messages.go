package core

// error_messages.go maps technical errors to messages an operator can act on.
//
// Each message carries a code that can be quoted when reporting a problem:
//
//	SYNC001-SYNC099  sync run lifecycle (locking, cancellation, ledger)
//	FILE001-FILE099  roster file handling
//	MAP001-MAP099    room-mapping administration
//	DB001-DB099      database constraints and connectivity
//	RATE001          request throttling
//	ERR000           anything else; check the server log for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns must precede general ones. Domain patterns
// are tried before causes because sync errors wrap lower-level failures.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// UserMessage is a user-facing description of an error.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Sync lifecycle
	{
		pattern: "sync already in progress",
		msg: UserMessage{
			Message: "Another roster sync is already running",
			Action:  "Wait for it to finish, then try again",
			Code:    "SYNC001",
		},
	},
	{
		pattern: "sync cancelled",
		msg: UserMessage{
			Message: "The sync was cancelled before all changes were applied",
			Action:  "Review the run record, then run the sync again",
			Code:    "SYNC002",
		},
	},
	{
		pattern: "sync run not found",
		msg: UserMessage{
			Message: "Sync run not found",
			Action:  "Check the run id in the sync history",
			Code:    "SYNC003",
		},
	},
	{
		pattern: "sync run already finalized",
		msg: UserMessage{
			Message: "This sync run has already been recorded",
			Action:  "Start a new sync",
			Code:    "SYNC004",
		},
	},
	{
		pattern: "invalid sync options",
		msg: UserMessage{
			Message: "The sync request is missing required details",
			Action:  "Provide who triggered the sync and a valid source",
			Code:    "SYNC005",
		},
	},
	{
		pattern: "external id already registered",
		msg: UserMessage{
			Message: "A patient with this ID was registered while the sync was running",
			Action:  "Run the sync again to pick up the current registry",
			Code:    "SYNC006",
		},
	},

	// Roster file
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "The roster file is too large",
			Action:  "Export only the current roster sheet and try again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No roster file was selected",
			Action:  "Choose the roster .xlsx file to upload",
			Code:    "FILE002",
		},
	},
	{
		pattern: "open workbook",
		msg: UserMessage{
			Message: "The file is not a readable Excel workbook",
			Action:  "Save the roster as .xlsx and upload it again",
			Code:    "FILE003",
		},
	},
	{
		pattern: "workbook has no sheets",
		msg: UserMessage{
			Message: "The workbook has no sheets",
			Action:  "Check that the roster export completed",
			Code:    "FILE004",
		},
	},
	{
		pattern: "roster sheet is empty",
		msg: UserMessage{
			Message: "The roster sheet is empty",
			Action:  "Upload a roster with a header row and patient rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "fetch roster",
		msg: UserMessage{
			Message: "The scheduled roster file could not be downloaded",
			Action:  "Check the storage bucket and object settings",
			Code:    "FILE006",
		},
	},

	// Room mappings
	{
		pattern: "room mapping not found",
		msg: UserMessage{
			Message: "Room mapping not found",
			Action:  "Refresh the mapping list and try again",
			Code:    "MAP001",
		},
	},
	{
		pattern: "room mapping already exists",
		msg: UserMessage{
			Message: "This room prefix is already mapped",
			Action:  "Edit the existing mapping instead",
			Code:    "MAP002",
		},
	},
	{
		pattern: "coordinator not found",
		msg: UserMessage{
			Message: "The selected coordinator does not exist or is inactive",
			Action:  "Choose an active staff member",
			Code:    "MAP003",
		},
	},
	{
		pattern: "invalid room mapping",
		msg: UserMessage{
			Message: "The room mapping is invalid",
			Action:  "Use a numeric room prefix and a valid coordinator",
			Code:    "MAP004",
		},
	},
	{
		pattern: "room mappings are not configured",
		msg: UserMessage{
			Message: "Room mapping administration is unavailable",
			Action:  "Contact an administrator",
			Code:    "MAP005",
		},
	},
}

// causePatterns describe lower-level failures. They are consulted after the
// SQLSTATE of a wrapped *pgconn.PgError, for errors where only text survives.
var causePatterns = []errorPattern{
	// Registry writes
	{
		pattern: "duplicate key",
		msg:     msgDuplicatePatient,
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "Two registry rows would share the same value",
			Action:  "Check the roster for repeated patient IDs",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates foreign key",
		msg:     msgMissingStaff,
	},
	{
		pattern: "violates check constraint",
		msg:     msgBadValue,
	},

	// Connectivity
	{
		pattern: "connection refused",
		msg:     msgDatabaseDown,
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "The connection to the patient registry dropped",
			Action:  "Check the run history, then sync again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadline exceeded",
		msg:     msgTimeout,
	},
	{
		pattern: "timeout",
		msg:     msgTimeout,
	},
	{
		pattern: "deadlock",
		msg:     msgBusy,
	},

	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Wait a minute before syncing again",
			Code:    "RATE001",
		},
	},
}

var (
	msgDuplicatePatient = UserMessage{
		Message: "A patient with this ID is already in the registry",
		Action:  "Run the sync again to pick up the current registry",
		Code:    "DB001",
	}
	msgMissingStaff = UserMessage{
		Message: "A referenced coordinator or physician no longer exists",
		Action:  "Check the room mappings and staff directory",
		Code:    "DB003",
	}
	msgBadValue = UserMessage{
		Message: "A roster value is outside the allowed range",
		Action:  "Check gender and status values in the roster",
		Code:    "DB008",
	}
	msgDatabaseDown = UserMessage{
		Message: "The patient registry is unreachable",
		Action:  "Try again in a few minutes",
		Code:    "DB004",
	}
	msgTimeout = UserMessage{
		Message: "The registry did not answer in time",
		Action:  "Try again later",
		Code:    "DB006",
	}
	msgBusy = UserMessage{
		Message: "The registry was busy with conflicting writes",
		Action:  "Sync again",
		Code:    "DB007",
	}

	defaultMessage = UserMessage{
		Message: "The roster sync hit an unexpected error",
		Action:  "Check the server log or contact support",
		Code:    "ERR000",
	}
)

// sqlStateMessages maps Postgres error classes to messages.
var sqlStateMessages = map[string]UserMessage{
	"23505": msgDuplicatePatient,
	"23503": msgMissingStaff,
	"23514": msgBadValue,
	"40P01": msgBusy,
	"57014": msgTimeout,
}

// MapError returns the message for err. A wrapped *pgconn.PgError is matched
// by SQLSTATE unless a more specific pattern already applies; anything else
// falls back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	text := strings.ToLower(err.Error())
	if msg, ok := matchPattern(errorPatterns, text); ok {
		return msg
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if msg, ok := sqlStateMessages[pgErr.Code]; ok {
			return msg
		}
	}

	if msg, ok := matchPattern(causePatterns, text); ok {
		return msg
	}
	return defaultMessage
}

func matchPattern(patterns []errorPattern, text string) (UserMessage, bool) {
	for _, ep := range patterns {
		if strings.Contains(text, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// String renders "Message (Code: XXX). Action".
func (m UserMessage) String() string {
	if m.Code == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", m.Message, m.Code, m.Action)
}

// UserError carries both sides of a failure: Error() is safe to show, the
// wrapped error is what gets logged.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.String() }

func (e *UserError) Unwrap() error { return e.Technical }

func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
