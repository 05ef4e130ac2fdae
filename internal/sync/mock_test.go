package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"
	"time"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/store"
)

// mockAdapter is a configurable in-memory SourceAdapter.
type mockAdapter struct {
	source model.Source

	items    []model.ExternalItem
	fetchErr error

	createErr error
	nextID    int
	created   []*store.Appointment

	availErr   error
	availCalls []availCall
}

type availCall struct {
	start, end time.Time
	available  bool
}

func (m *mockAdapter) Source() model.Source { return m.source }

func (m *mockAdapter) FetchWindow(_ context.Context, _, _ time.Time) ([]model.ExternalItem, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.items, nil
}

func (m *mockAdapter) CreateRemote(_ context.Context, appt *store.Appointment) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	m.nextID++
	m.created = append(m.created, appt)
	return fmt.Sprintf("%s-remote-%d", m.source, m.nextID), nil
}

func (m *mockAdapter) SetAvailability(_ context.Context, start, end time.Time, available bool) error {
	if m.availErr != nil {
		return m.availErr
	}
	m.availCalls = append(m.availCalls, availCall{start, end, available})
	return nil
}

// mockStore is an in-memory Store keyed by (externalID, source), mirroring
// the database's compound uniqueness.
type mockStore struct {
	mu     stdsync.Mutex
	nextID int64
	byKey  map[originKey]*store.Appointment
	byID   map[int64]*store.Appointment
	logs   []store.LogEntry

	listErr      error
	createErr    error
	setStatusErr error
	setCtptErr   error
}

func newMockStore() *mockStore {
	return &mockStore{
		byKey: make(map[originKey]*store.Appointment),
		byID:  make(map[int64]*store.Appointment),
	}
}

func (s *mockStore) ListWindow(_ context.Context, start, end time.Time) ([]*store.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []*store.Appointment
	for _, a := range s.byID {
		if !a.StartTime.After(end) && a.EndTime.After(start) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *mockStore) CreateAppointment(_ context.Context, a *store.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	key := originKey{a.ExternalID, a.Source}
	if _, dup := s.byKey[key]; dup {
		return errors.New("UNIQUE constraint failed: appointments.external_id, appointments.source")
	}
	s.nextID++
	a.ID = s.nextID
	cp := *a
	s.byKey[key] = &cp
	s.byID[a.ID] = &cp
	return nil
}

func (s *mockStore) SetStatus(_ context.Context, id int64, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setStatusErr != nil {
		return s.setStatusErr
	}
	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("appointment %d not found", id)
	}
	a.Status = status
	return nil
}

func (s *mockStore) SetCounterpartID(_ context.Context, id int64, counterpartID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setCtptErr != nil {
		return s.setCtptErr
	}
	a, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("appointment %d not found", id)
	}
	a.CounterpartExternalID = counterpartID
	return nil
}

func (s *mockStore) AppendLog(_ context.Context, e *store.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.OccurredAt = time.Now()
	s.logs = append(s.logs, *e)
	return nil
}

func (s *mockStore) get(externalID string, source model.Source) *store.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byKey[originKey{externalID, source}]
}

func (s *mockStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *mockStore) logEntries() []store.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.LogEntry(nil), s.logs...)
}
