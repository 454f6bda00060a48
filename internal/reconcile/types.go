package reconcile

import (
	"github.com/JonMunkholm/dayroster/internal/roster"
)

// Status is a registry patient's lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusDischarged Status = "discharged"
	StatusSuspended  Status = "suspended"
)

// Patient is the roster-owned slice of a registry record. Empty strings stand
// for NULL references.
type Patient struct {
	ID            string
	ExternalID    string
	Name          string
	Room          string
	Gender        roster.Gender
	CoordinatorID string
	PhysicianID   string
	Status        Status
}

// Kind classifies what a reconciliation pass decided for one patient.
type Kind string

const (
	KindInsert     Kind = "insert"
	KindUpdate     Kind = "update"
	KindDischarge  Kind = "discharge"
	KindReactivate Kind = "reactivate"
	KindNoop       Kind = "no-op"
)

// Field names used in change maps. They match the registry column names.
const (
	FieldName        = "name"
	FieldRoom        = "room_number"
	FieldCoordinator = "coordinator_id"
	FieldPhysician   = "doctor_id"
	FieldGender      = "gender"
	FieldStatus      = "status"
)

// FieldChange is one old/new pair. Nil renders as JSON null.
type FieldChange struct {
	Old *string `json:"old"`
	New *string `json:"new"`
}

// Action is a single planned registry write.
//
// PatientID is set for every kind except insert. Target is the full
// roster-owned state the patient must have once the action is applied.
type Action struct {
	Kind       Kind
	ExternalID string
	Name       string
	Fields     map[string]FieldChange
	PatientID  string
	Target     Patient
}

// Change is the serialised form of an Action kept in results and audit records.
type Change struct {
	ExternalID string                 `json:"externalId"`
	Name       string                 `json:"name"`
	Action     Kind                   `json:"action"`
	Fields     map[string]FieldChange `json:"fields,omitempty"`
}

// Skip records an in-scope roster row that was not reconciled.
type Skip struct {
	ExternalID string `json:"externalId"`
	Name       string `json:"name"`
	Reason     string `json:"reason"`
}

// Skip reasons.
const (
	ReasonMissingExternalID = "missing external id"
	ReasonDuplicate         = "duplicate external id in roster"
	ReasonMissingName       = "missing patient name"
)

// Summary holds the per-run counters.
type Summary struct {
	TotalInSource  int `json:"totalInSource"`
	TotalProcessed int `json:"totalProcessed"`
	Inserted       int `json:"inserted"`
	Updated        int `json:"updated"`
	Discharged     int `json:"discharged"`
	Reactivated    int `json:"reactivated"`
	Unchanged      int `json:"unchanged"`
	Skipped        int `json:"skipped"`
}

// Record bumps the counter for kind.
func (s *Summary) Record(kind Kind) {
	switch kind {
	case KindInsert:
		s.Inserted++
	case KindUpdate:
		s.Updated++
	case KindDischarge:
		s.Discharged++
	case KindReactivate:
		s.Reactivated++
	case KindNoop:
		s.Unchanged++
	}
}

// Plan is the complete outcome of classifying one roster against one
// registry snapshot. Actions holds only writes, in apply order: source-row
// order first, then discharges in registry-scan order.
type Plan struct {
	Actions []Action
	Skipped []Skip
	Summary Summary
}

// Changes returns the serialisable change list. Never nil.
func (p *Plan) Changes() []Change {
	changes := make([]Change, 0, len(p.Actions))
	for _, a := range p.Actions {
		changes = append(changes, a.Change())
	}
	return changes
}

// SkippedReasons returns the skip list. Never nil.
func (p *Plan) SkippedReasons() []Skip {
	if p.Skipped == nil {
		return []Skip{}
	}
	return p.Skipped
}

func (a Action) Change() Change {
	return Change{
		ExternalID: a.ExternalID,
		Name:       a.Name,
		Action:     a.Kind,
		Fields:     a.Fields,
	}
}
