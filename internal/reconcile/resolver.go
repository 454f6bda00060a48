package reconcile

import (
	"sort"
	"strings"
)

// RoomMapping assigns the coordinator responsible for rooms starting with Prefix.
type RoomMapping struct {
	Prefix        string
	CoordinatorID string
	Active        bool
}

// Physician is an active doctor in the staff directory.
type Physician struct {
	ID   string
	Name string
}

// RoomResolver maps a room code to its coordinator. Immutable after construction.
type RoomResolver struct {
	prefixes []RoomMapping // active only, longest prefix first
}

func NewRoomResolver(mappings []RoomMapping) *RoomResolver {
	r := &RoomResolver{}
	for _, m := range mappings {
		m.Prefix = strings.TrimSpace(m.Prefix)
		if !m.Active || m.Prefix == "" {
			continue
		}
		r.prefixes = append(r.prefixes, m)
	}
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].Prefix) > len(r.prefixes[j].Prefix)
	})
	return r
}

// Coordinator returns the coordinator for room, or "" when no mapping applies.
// An exact room match is by construction the longest matching prefix.
func (r *RoomResolver) Coordinator(room string) string {
	room = strings.TrimSpace(room)
	if room == "" {
		return ""
	}
	for _, m := range r.prefixes {
		if strings.HasPrefix(room, m.Prefix) {
			return m.CoordinatorID
		}
	}
	return ""
}

// PhysicianResolver maps a physician display name to a staff id.
type PhysicianResolver struct {
	byName map[string]string
}

// NewPhysicianResolver indexes physicians by trimmed name. When two share a
// name, the first listed wins.
func NewPhysicianResolver(physicians []Physician) *PhysicianResolver {
	r := &PhysicianResolver{byName: make(map[string]string, len(physicians))}
	for _, p := range physicians {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		if _, ok := r.byName[name]; !ok {
			r.byName[name] = p.ID
		}
	}
	return r
}

// Physician returns the staff id for name, or "".
func (r *PhysicianResolver) Physician(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return r.byName[name]
}

// RegistryIndex is the existing-registry snapshot keyed by external id.
type RegistryIndex struct {
	patients []Patient
	byExtID  map[string]int
}

// NewRegistryIndex keeps scan order. Patients without an external id are kept
// for ordering but cannot be looked up.
func NewRegistryIndex(patients []Patient) *RegistryIndex {
	idx := &RegistryIndex{
		patients: patients,
		byExtID:  make(map[string]int, len(patients)),
	}
	for i, p := range patients {
		if p.ExternalID == "" {
			continue
		}
		if _, ok := idx.byExtID[p.ExternalID]; !ok {
			idx.byExtID[p.ExternalID] = i
		}
	}
	return idx
}

func (x *RegistryIndex) Lookup(externalID string) (Patient, bool) {
	i, ok := x.byExtID[externalID]
	if !ok {
		return Patient{}, false
	}
	return x.patients[i], true
}

func (x *RegistryIndex) Len() int { return len(x.patients) }

// Snapshot bundles the read-only lookup tables for one pass.
type Snapshot struct {
	Rooms      *RoomResolver
	Physicians *PhysicianResolver
	Registry   *RegistryIndex
}

// NewSnapshot builds every resolver from raw directory and registry reads.
func NewSnapshot(mappings []RoomMapping, physicians []Physician, patients []Patient) Snapshot {
	return Snapshot{
		Rooms:      NewRoomResolver(mappings),
		Physicians: NewPhysicianResolver(physicians),
		Registry:   NewRegistryIndex(patients),
	}
}
