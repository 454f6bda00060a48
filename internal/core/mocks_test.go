package core

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/dayroster/internal/reconcile"
)

// mockPatientStore is an in-memory registry. It deliberately does not
// implement Transactor; wrap it in mockTxStore for atomic tests.
type mockPatientStore struct {
	mu       sync.Mutex
	patients []reconcile.Patient
	sources  map[string]Source // external id -> last sync source
	nextID   int

	// failOn makes writes for the given external id fail.
	failOn map[string]error
	// listOverride, when set, is what ListAll returns instead of patients.
	listOverride []reconcile.Patient
	listErr      error
	afterWrite   func(externalID string)

	inserts int
	updates int
}

func newMockPatientStore(patients ...reconcile.Patient) *mockPatientStore {
	return &mockPatientStore{
		patients: append([]reconcile.Patient(nil), patients...),
		sources:  map[string]Source{},
		failOn:   map[string]error{},
	}
}

func (m *mockPatientStore) GetByExternalID(_ context.Context, externalID string) (reconcile.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.patients {
		if p.ExternalID == externalID {
			return p, nil
		}
	}
	return reconcile.Patient{}, ErrPatientNotFound
}

func (m *mockPatientStore) ListAll(_ context.Context) ([]reconcile.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.listOverride != nil {
		return append([]reconcile.Patient(nil), m.listOverride...), nil
	}
	return append([]reconcile.Patient(nil), m.patients...), nil
}

func (m *mockPatientStore) Insert(_ context.Context, p reconcile.Patient, source Source) (string, error) {
	m.mu.Lock()
	if err := m.failOn[p.ExternalID]; err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.nextID++
	p.ID = fmt.Sprintf("pid-%d", m.nextID)
	m.patients = append(m.patients, p)
	m.sources[p.ExternalID] = source
	m.inserts++
	hook := m.afterWrite
	m.mu.Unlock()

	if hook != nil {
		hook(p.ExternalID)
	}
	return p.ID, nil
}

func (m *mockPatientStore) Update(_ context.Context, id string, p reconcile.Patient, source Source) error {
	m.mu.Lock()
	if err := m.failOn[p.ExternalID]; err != nil {
		m.mu.Unlock()
		return err
	}
	found := false
	for i := range m.patients {
		if m.patients[i].ID == id {
			p.ID = id
			m.patients[i] = p
			found = true
		}
	}
	if !found {
		m.mu.Unlock()
		return ErrPatientNotFound
	}
	m.sources[p.ExternalID] = source
	m.updates++
	hook := m.afterWrite
	m.mu.Unlock()

	if hook != nil {
		hook(p.ExternalID)
	}
	return nil
}

func (m *mockPatientStore) byExternalID(id string) (reconcile.Patient, bool) {
	p, err := m.GetByExternalID(context.Background(), id)
	return p, err == nil
}

func (m *mockPatientStore) clone() *mockPatientStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := newMockPatientStore(append([]reconcile.Patient(nil), m.patients...)...)
	c.nextID = m.nextID
	c.failOn = m.failOn
	for k, v := range m.sources {
		c.sources[k] = v
	}
	return c
}

// mockTxStore applies writes to a copy and swaps it in on success.
type mockTxStore struct {
	*mockPatientStore
	commits   int
	rollbacks int
}

func (m *mockTxStore) InTx(_ context.Context, fn func(PatientStore) error) error {
	work := m.mockPatientStore.clone()
	if err := fn(work); err != nil {
		m.rollbacks++
		return err
	}
	m.mu.Lock()
	m.patients = work.patients
	m.sources = work.sources
	m.nextID = work.nextID
	m.inserts += work.inserts
	m.updates += work.updates
	m.mu.Unlock()
	m.commits++
	return nil
}

type mockDirectory struct {
	mappings      []reconcile.RoomMapping
	physicians    []reconcile.Physician
	mappingsErr   error
	physiciansErr error
}

func defaultDirectory() *mockDirectory {
	return &mockDirectory{
		mappings: []reconcile.RoomMapping{
			{Prefix: "31", CoordinatorID: "c1", Active: true},
			{Prefix: "32", CoordinatorID: "c2", Active: true},
		},
		physicians: []reconcile.Physician{
			{ID: "dA", Name: "Dr.A"},
			{ID: "dB", Name: "Dr.B"},
		},
	}
}

func (d *mockDirectory) RoomMappings(context.Context) ([]reconcile.RoomMapping, error) {
	return d.mappings, d.mappingsErr
}

func (d *mockDirectory) Physicians(context.Context) ([]reconcile.Physician, error) {
	return d.physicians, d.physiciansErr
}

type mockRunStore struct {
	mu         sync.Mutex
	runs       map[string]SyncRun
	createErr  error
	creates    int
	finalizes  int
	lastOffset int
}

func newMockRunStore() *mockRunStore {
	return &mockRunStore{runs: map[string]SyncRun{}}
}

func (m *mockRunStore) Create(_ context.Context, run SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.runs[run.ID] = run
	m.creates++
	return nil
}

func (m *mockRunStore) Finalize(_ context.Context, run SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.runs[run.ID]
	if !ok {
		return ErrRunNotFound
	}
	if existing.Status != RunRunning {
		return ErrRunFinalized
	}
	m.runs[run.ID] = run
	m.finalizes++
	return nil
}

func (m *mockRunStore) List(_ context.Context, limit, offset int) ([]SyncRun, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastOffset = offset
	all := make([]SyncRun, 0, len(m.runs))
	for _, r := range m.runs {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartedAt.After(all[j].StartedAt) })
	if offset >= len(all) {
		return nil, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (m *mockRunStore) Get(_ context.Context, id string) (SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return SyncRun{}, ErrRunNotFound
	}
	return r, nil
}

func (m *mockRunStore) only(t *testing.T) SyncRun {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.runs) != 1 {
		t.Fatalf("want exactly one run record, have %d", len(m.runs))
	}
	for _, r := range m.runs {
		return r
	}
	return SyncRun{}
}

type mockNotifier struct {
	events []RunEvent
	err    error
}

func (n *mockNotifier) Publish(_ context.Context, ev RunEvent) error {
	n.events = append(n.events, ev)
	return n.err
}

// testClock returns a fixed clock and sequential run ids.
func testClock() Option {
	var n int
	var mu sync.Mutex
	base := time.Date(2024, 3, 1, 8, 15, 0, 0, time.UTC)
	return WithClock(
		func() time.Time { return base },
		func() string {
			mu.Lock()
			defer mu.Unlock()
			n++
			return fmt.Sprintf("run-%d", n)
		},
	)
}

var rosterHeader = []interface{}{"No", "Room", "IDNO", "Name", "Sex/Age", "Insurance", "Admitted", "Days", "Dept", "Doctor", "Surgery", "Diagnosis", "Procedure"}

// rosterRow is a minimal roster line.
type rosterRow struct {
	id, name, room, genderAge, doctor string
}

// rosterFile builds an xlsx roster in memory.
func rosterFile(t *testing.T, rows ...rosterRow) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := rosterHeader
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	for i, r := range rows {
		line := []interface{}{i + 1, r.room, r.id, r.name, r.genderAge, "NHI", "2024-03-01", 1, "OS", r.doctor}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &line); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	return buf.Bytes()
}

func manual(actor string) SyncOptions {
	return SyncOptions{Source: SourceManual, TriggeredBy: actor}
}

func reader(b []byte) *bytes.Reader { return bytes.NewReader(b) }
