// Package reconcile decides how the day-hospital roster maps onto the patient
// registry. It performs no I/O: callers load a Snapshot, call Engine.Plan and
// apply the resulting actions themselves.
package reconcile

import (
	"strconv"
	"strings"

	"github.com/JonMunkholm/dayroster/internal/roster"
)

// DefaultThreshold is the lowest day-hospital room number.
const DefaultThreshold = 3000

type Engine struct {
	threshold int
}

func NewEngine(threshold int) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

func (e *Engine) Threshold() int { return e.threshold }

// InScope reports whether room is a day-hospital room. Non-numeric rooms are
// out of scope.
func (e *Engine) InScope(room string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(room))
	if err != nil {
		return false
	}
	return n >= e.threshold
}

// Plan classifies every record against the snapshot.
//
// Out-of-scope records are dropped without being counted. Every in-scope
// record ends up as exactly one of insert, update, reactivate, no-op or skip,
// so the per-kind counters always add up to TotalProcessed.
func (e *Engine) Plan(records []roster.Record, snap Snapshot) *Plan {
	plan := &Plan{Skipped: []Skip{}}
	plan.Summary.TotalInSource = len(records)

	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		if !e.InScope(rec.Room) {
			continue
		}
		plan.Summary.TotalProcessed++

		if rec.ExternalID == "" {
			plan.skip(rec, ReasonMissingExternalID)
			continue
		}
		if seen[rec.ExternalID] {
			plan.skip(rec, ReasonDuplicate)
			continue
		}
		// Marked before the name check: a nameless row still proves presence.
		seen[rec.ExternalID] = true

		if rec.Name == "" {
			plan.skip(rec, ReasonMissingName)
			continue
		}

		target := Patient{
			ExternalID:    rec.ExternalID,
			Name:          rec.Name,
			Room:          rec.Room,
			Gender:        rec.Gender,
			CoordinatorID: snap.Rooms.Coordinator(rec.Room),
			PhysicianID:   snap.Physicians.Physician(rec.PhysicianName),
			Status:        StatusActive,
		}

		existing, ok := snap.Registry.Lookup(rec.ExternalID)
		var action Action
		switch {
		case !ok:
			action = Action{Kind: KindInsert, Target: target}
		case existing.Status == StatusDischarged:
			action = reactivate(existing, target)
		default:
			action = update(existing, target)
		}
		action.ExternalID = rec.ExternalID
		action.Name = rec.Name

		plan.Summary.Record(action.Kind)
		if action.Kind != KindNoop {
			plan.Actions = append(plan.Actions, action)
		}
	}

	for _, p := range snap.Registry.patients {
		if p.ExternalID == "" || seen[p.ExternalID] {
			continue
		}
		if p.Status == StatusDischarged || !e.InScope(p.Room) {
			continue
		}

		target := p
		target.Status = StatusDischarged
		plan.Actions = append(plan.Actions, Action{
			Kind:       KindDischarge,
			ExternalID: p.ExternalID,
			Name:       p.Name,
			PatientID:  p.ID,
			Target:     target,
		})
		plan.Summary.Record(KindDischarge)
	}

	return plan
}

func (p *Plan) skip(rec roster.Record, reason string) {
	p.Skipped = append(p.Skipped, Skip{ExternalID: rec.ExternalID, Name: rec.Name, Reason: reason})
	p.Summary.Skipped++
}

// update diffs the roster-owned fields one at a time. Status is preserved, so
// a suspended patient stays suspended.
func update(existing, target Patient) Action {
	target.ID = existing.ID
	target.Status = existing.Status

	fields := map[string]FieldChange{}
	diffString(fields, FieldName, existing.Name, target.Name)
	diffString(fields, FieldRoom, existing.Room, target.Room)
	diffString(fields, FieldCoordinator, existing.CoordinatorID, target.CoordinatorID)
	diffString(fields, FieldPhysician, existing.PhysicianID, target.PhysicianID)
	diffString(fields, FieldGender, string(existing.Gender), string(target.Gender))

	if len(fields) == 0 {
		return Action{Kind: KindNoop, PatientID: existing.ID, Target: target}
	}
	return Action{Kind: KindUpdate, PatientID: existing.ID, Fields: fields, Target: target}
}

// reactivate always reports status, room, coordinator and physician because
// all four are overwritten from the roster. Name and gender are diffed.
func reactivate(existing, target Patient) Action {
	target.ID = existing.ID
	target.Status = StatusActive

	fields := map[string]FieldChange{
		FieldStatus:      change(string(existing.Status), string(StatusActive)),
		FieldRoom:        change(existing.Room, target.Room),
		FieldCoordinator: change(existing.CoordinatorID, target.CoordinatorID),
		FieldPhysician:   change(existing.PhysicianID, target.PhysicianID),
	}
	diffString(fields, FieldName, existing.Name, target.Name)
	diffString(fields, FieldGender, string(existing.Gender), string(target.Gender))

	return Action{Kind: KindReactivate, PatientID: existing.ID, Fields: fields, Target: target}
}

func diffString(fields map[string]FieldChange, name, from, to string) {
	if from == to {
		return
	}
	fields[name] = change(from, to)
}

func change(from, to string) FieldChange {
	return FieldChange{Old: nullable(from), New: nullable(to)}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
