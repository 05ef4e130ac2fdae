package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/store"
	syncengine "github.com/kokoraro/salonsync/internal/sync"
)

type fakeReader struct {
	appts []*store.Appointment
	logs  []*store.LogEntry
	err   error
	apptF store.AppointmentFilter
	logF  store.LogFilter
}

func (f *fakeReader) ListAppointments(_ context.Context, filter store.AppointmentFilter) ([]*store.Appointment, error) {
	f.apptF = filter
	return f.appts, f.err
}

func (f *fakeReader) ListLogs(_ context.Context, filter store.LogFilter) ([]*store.LogEntry, error) {
	f.logF = filter
	return f.logs, f.err
}

type fakeTrigger struct {
	err    error
	window syncengine.Window
	start  time.Time
	end    time.Time
	calls  int
}

func (f *fakeTrigger) Trigger(_ context.Context, start, end time.Time) (syncengine.Window, error) {
	f.calls++
	f.start, f.end = start, end
	if f.err != nil {
		return syncengine.Window{}, f.err
	}
	return f.window, nil
}

func newTestServer(reader *fakeReader, trigger *fakeTrigger) *Server {
	return New(reader, trigger, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestPostSyncAccepted(t *testing.T) {
	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	trigger := &fakeTrigger{window: syncengine.Window{Start: start, End: start.AddDate(0, 0, 30)}}
	s := newTestServer(&fakeReader{}, trigger)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sync?start_date=2026-04-01T00:00:00Z")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}

	var body struct {
		Message   string `json:"message"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Message != "Synchronization started" {
		t.Errorf("message = %q", body.Message)
	}
	if body.StartDate != "2026-04-01T00:00:00Z" {
		t.Errorf("start_date = %q", body.StartDate)
	}
	if !trigger.start.Equal(start) {
		t.Errorf("trigger start = %v, want %v", trigger.start, start)
	}
}

func TestPostSyncDateOnlyParam(t *testing.T) {
	trigger := &fakeTrigger{}
	s := newTestServer(&fakeReader{}, trigger)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sync?start_date=2026-04-01")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if !trigger.start.Equal(want) {
		t.Errorf("trigger start = %v, want %v", trigger.start, want)
	}
}

func TestPostSyncConflictWhileRunning(t *testing.T) {
	trigger := &fakeTrigger{err: syncengine.ErrCycleRunning}
	s := newTestServer(&fakeReader{}, trigger)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sync")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body)
	}
}

func TestPostSyncBadDate(t *testing.T) {
	trigger := &fakeTrigger{}
	s := newTestServer(&fakeReader{}, trigger)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/sync?start_date=next-tuesday")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
	}
	if trigger.calls != 0 {
		t.Errorf("trigger called %d times, want 0", trigger.calls)
	}
}

func TestGetAppointments(t *testing.T) {
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	reader := &fakeReader{appts: []*store.Appointment{{
		ID:          1,
		ExternalID:  "sb-100",
		Source:      model.SourceSalonBoard,
		StartTime:   now,
		EndTime:     now.Add(time.Hour),
		ServiceName: "Cut",
		Status:      model.StatusConfirmed,
	}}}
	s := newTestServer(reader, &fakeTrigger{})

	rec := doRequest(t, s, http.MethodGet,
		"/api/v1/appointments?source=salon_board&start_date=2026-04-01T00:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 1 {
		t.Fatalf("got %d appointments, want 1", len(body))
	}
	if body[0]["external_id"] != "sb-100" || body[0]["status"] != "confirmed" {
		t.Errorf("body = %v", body[0])
	}
	if reader.apptF.Source != model.SourceSalonBoard {
		t.Errorf("filter source = %q", reader.apptF.Source)
	}
	if reader.apptF.Start.IsZero() {
		t.Error("filter start not passed through")
	}
}

func TestGetAppointmentsBadSource(t *testing.T) {
	s := newTestServer(&fakeReader{}, &fakeTrigger{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/appointments?source=facebook")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body)
	}
}

func TestGetAppointmentsEmptyIsArray(t *testing.T) {
	s := newTestServer(&fakeReader{}, &fakeTrigger{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/appointments")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if got := rec.Body.String(); got != "[]" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestGetSyncLogs(t *testing.T) {
	reader := &fakeReader{logs: []*store.LogEntry{{
		ID:         7,
		ExternalID: "sb-100",
		Source:     model.SourceSalonBoard,
		Action:     store.ActionCreate,
		Outcome:    store.OutcomeFailed,
		OccurredAt: time.Now().UTC(),
	}}}
	s := newTestServer(reader, &fakeTrigger{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/sync-logs?outcome=failed")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	var body []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body) != 1 || body[0]["outcome"] != "failed" {
		t.Errorf("body = %v", body)
	}
	if reader.logF.Outcome != "failed" {
		t.Errorf("filter outcome = %q", reader.logF.Outcome)
	}
}

func TestGetSyncLogsStatusAlias(t *testing.T) {
	reader := &fakeReader{}
	s := newTestServer(reader, &fakeTrigger{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/sync-logs?status=success")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if reader.logF.Outcome != "success" {
		t.Errorf("filter outcome = %q, want the status alias applied", reader.logF.Outcome)
	}
}

func TestGetSyncLogsStoreError(t *testing.T) {
	reader := &fakeReader{err: errors.New("database is locked")}
	s := newTestServer(reader, &fakeTrigger{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/sync-logs")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", rec.Code, rec.Body)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeReader{}, &fakeTrigger{})

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&fakeReader{}, &fakeTrigger{})

	rec := doRequest(t, s, http.MethodOptions, "/api/v1/sync")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q", got)
	}
}
