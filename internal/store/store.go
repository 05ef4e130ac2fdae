// Package store manages the SQLite database holding the canonical
// appointment records and the append-only sync log.
//
// Only this package may open or query the database. All other packages
// receive a [*Store] and call its methods. Appointments are never deleted;
// a cancellation is recorded as a status transition so history survives.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/kokoraro/salonsync/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS appointments (
    id                      INTEGER PRIMARY KEY AUTOINCREMENT,
    external_id             TEXT    NOT NULL,
    source                  TEXT    NOT NULL,
    customer_name           TEXT    NOT NULL DEFAULT '',
    customer_phone          TEXT    NOT NULL DEFAULT '',
    customer_email          TEXT    NOT NULL DEFAULT '',
    start_time              TEXT    NOT NULL,
    end_time                TEXT    NOT NULL,
    service_name            TEXT    NOT NULL DEFAULT '',
    status                  TEXT    NOT NULL,
    counterpart_external_id TEXT    NOT NULL DEFAULT '',
    notes                   TEXT    NOT NULL DEFAULT '',
    created_at              TEXT    NOT NULL,
    updated_at              TEXT    NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_external_origin     ON appointments (external_id, source);
CREATE INDEX        IF NOT EXISTS idx_appointments_start  ON appointments (start_time);

CREATE TABLE IF NOT EXISTS sync_logs (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    appointment_id INTEGER REFERENCES appointments(id),
    external_id    TEXT    NOT NULL DEFAULT '',
    source         TEXT    NOT NULL,
    action         TEXT    NOT NULL,
    outcome        TEXT    NOT NULL,
    error_detail   TEXT    NOT NULL DEFAULT '',
    occurred_at    TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_logs_occurred ON sync_logs (occurred_at);
`

// Sync log actions and outcomes. "fetch" records a whole-adapter outage
// during a cycle; "create" and "update" record per-appointment mutations.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionFetch  = "fetch"

	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Appointment is the canonical record of a single real-world booking.
// ExternalID is unique per (ExternalID, Source) pair only — the two
// external systems may coincidentally reuse an identifier string.
type Appointment struct {
	ID            int64
	ExternalID    string
	Source        model.Source
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	StartTime     time.Time
	EndTime       time.Time
	ServiceName   string
	Status        model.Status

	// CounterpartExternalID is the identifier of the mirrored object on
	// the other system. Empty until propagation succeeds; an empty value
	// marks the record for retry on the next cycle.
	CounterpartExternalID string

	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Mirrored reports whether propagation to the counterpart system has
// completed for this appointment.
func (a *Appointment) Mirrored() bool {
	return a.CounterpartExternalID != ""
}

// LogEntry is one immutable sync audit record. AppointmentID is 0 when the
// mutation failed before a canonical id existed; ExternalID still
// identifies the item in that case.
type LogEntry struct {
	ID            int64
	AppointmentID int64
	ExternalID    string
	Source        model.Source
	Action        string
	Outcome       string
	ErrorDetail   string
	OccurredAt    time.Time
}

// AppointmentFilter narrows ListAppointments. Zero times and an empty
// source match everything.
type AppointmentFilter struct {
	Start  time.Time
	End    time.Time
	Source model.Source
}

// LogFilter narrows ListLogs. Zero values match everything.
type LogFilter struct {
	Start   time.Time
	End     time.Time
	Source  model.Source
	Outcome string
}

// Store is the SQLite-backed canonical repository.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the database:
// ~/.local/share/salonsync/salonsync.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "salonsync", "salonsync.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema,
// and configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

const apptColumns = `
	id, external_id, source, customer_name, customer_phone, customer_email,
	start_time, end_time, service_name, status, counterpart_external_id,
	notes, created_at, updated_at`

// CreateAppointment inserts a new canonical record and sets its ID and
// store-managed timestamps. The (external_id, source) uniqueness invariant
// is enforced by the database, not just by application logic — a second
// insert for the same pair fails.
func (s *Store) CreateAppointment(ctx context.Context, a *Appointment) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	const q = `
		INSERT INTO appointments
		    (external_id, source, customer_name, customer_phone, customer_email,
		     start_time, end_time, service_name, status, counterpart_external_id,
		     notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, q,
		a.ExternalID,
		string(a.Source),
		a.CustomerName,
		a.CustomerPhone,
		a.CustomerEmail,
		formatTime(a.StartTime),
		formatTime(a.EndTime),
		a.ServiceName,
		string(a.Status),
		a.CounterpartExternalID,
		a.Notes,
		formatTime(a.CreatedAt),
		formatTime(a.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting appointment %q/%s: %w", a.ExternalID, a.Source, err)
	}
	id, err := res.LastInsertId()
	if err == nil && id > 0 {
		a.ID = id
	}
	return nil
}

// GetByExternalID returns the appointment with the given compound key,
// or (nil, nil) if no such record exists.
func (s *Store) GetByExternalID(ctx context.Context, externalID string, source model.Source) (*Appointment, error) {
	q := `SELECT` + apptColumns + ` FROM appointments WHERE external_id = ? AND source = ?`
	row := s.db.QueryRowContext(ctx, q, externalID, string(source))
	return scanAppointment(row)
}

// ListWindow returns all appointments whose time range overlaps the
// inclusive window [start, end]. The end bound is inclusive so an
// appointment starting exactly at the window end stays visible to the
// same snapshot the adapters report it in.
func (s *Store) ListWindow(ctx context.Context, start, end time.Time) ([]*Appointment, error) {
	q := `SELECT` + apptColumns + `
		FROM appointments
		WHERE start_time <= ? AND end_time > ?
		ORDER BY start_time, id`
	rows, err := s.db.QueryContext(ctx, q, formatTime(end), formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("querying appointments in window: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// ListAppointments returns appointments matching the filter, ordered by
// start time. Serves the read-through API endpoint.
func (s *Store) ListAppointments(ctx context.Context, f AppointmentFilter) ([]*Appointment, error) {
	q := `SELECT` + apptColumns + ` FROM appointments WHERE 1=1`
	var args []any
	if !f.Start.IsZero() {
		q += ` AND start_time >= ?`
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		q += ` AND end_time <= ?`
		args = append(args, formatTime(f.End))
	}
	if f.Source != "" {
		q += ` AND source = ?`
		args = append(args, string(f.Source))
	}
	q += ` ORDER BY start_time, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying appointments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var appts []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// SetStatus transitions an appointment's canonical status.
func (s *Store) SetStatus(ctx context.Context, id int64, status model.Status) error {
	const q = `UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, string(status), formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("updating status for appointment id=%d: %w", id, err)
	}
	return requireRow(res, id)
}

// SetCounterpartID records the identifier of the mirrored object created
// on the other system, marking propagation as complete.
func (s *Store) SetCounterpartID(ctx context.Context, id int64, counterpartID string) error {
	const q = `UPDATE appointments SET counterpart_external_id = ?, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, q, counterpartID, formatTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("setting counterpart for appointment id=%d: %w", id, err)
	}
	return requireRow(res, id)
}

// AppendLog writes one immutable sync log entry. A zero AppointmentID is
// stored as NULL (the synthetic unresolved marker).
func (s *Store) AppendLog(ctx context.Context, e *LogEntry) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	var apptID any
	if e.AppointmentID != 0 {
		apptID = e.AppointmentID
	}

	const q = `
		INSERT INTO sync_logs
		    (appointment_id, external_id, source, action, outcome, error_detail, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q,
		apptID,
		e.ExternalID,
		string(e.Source),
		e.Action,
		e.Outcome,
		e.ErrorDetail,
		formatTime(e.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("appending sync log for %q: %w", e.ExternalID, err)
	}
	id, err := res.LastInsertId()
	if err == nil && id > 0 {
		e.ID = id
	}
	return nil
}

// ListLogs returns log entries matching the filter, newest first.
func (s *Store) ListLogs(ctx context.Context, f LogFilter) ([]*LogEntry, error) {
	q := `
		SELECT id, appointment_id, external_id, source, action, outcome, error_detail, occurred_at
		FROM sync_logs WHERE 1=1`
	var args []any
	if !f.Start.IsZero() {
		q += ` AND occurred_at >= ?`
		args = append(args, formatTime(f.Start))
	}
	if !f.End.IsZero() {
		q += ` AND occurred_at <= ?`
		args = append(args, formatTime(f.End))
	}
	if f.Source != "" {
		q += ` AND source = ?`
		args = append(args, string(f.Source))
	}
	if f.Outcome != "" {
		q += ` AND outcome = ?`
		args = append(args, f.Outcome)
	}
	q += ` ORDER BY occurred_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sync logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*LogEntry
	for rows.Next() {
		var e LogEntry
		var apptID sql.NullInt64
		var occurred string
		if err := rows.Scan(&e.ID, &apptID, &e.ExternalID, &e.Source, &e.Action,
			&e.Outcome, &e.ErrorDetail, &occurred); err != nil {
			return nil, fmt.Errorf("scanning sync log row: %w", err)
		}
		if apptID.Valid {
			e.AppointmentID = apptID.Int64
		}
		e.OccurredAt, _ = parseTime(occurred)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so scanAppointment can be reused.
type scanner interface {
	Scan(dest ...any) error
}

func scanAppointment(sc scanner) (*Appointment, error) {
	var a Appointment
	var start, end, created, updated string

	err := sc.Scan(
		&a.ID,
		&a.ExternalID,
		&a.Source,
		&a.CustomerName,
		&a.CustomerPhone,
		&a.CustomerEmail,
		&start,
		&end,
		&a.ServiceName,
		&a.Status,
		&a.CounterpartExternalID,
		&a.Notes,
		&created,
		&updated,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning appointment row: %w", err)
	}

	a.StartTime, _ = parseTime(start)
	a.EndTime, _ = parseTime(end)
	a.CreatedAt, _ = parseTime(created)
	a.UpdatedAt, _ = parseTime(updated)

	return &a, nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("appointment id=%d does not exist", id)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
