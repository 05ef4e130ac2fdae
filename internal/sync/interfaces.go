// Package sync implements the reconciliation engine for salonsync. Given a
// time window it compares the items fetched from Salon Board and Google
// Calendar against the canonical store, computes the minimal set of store
// mutations and outbound adapter calls, executes them with per-operation
// failure isolation, and appends an audit entry for every mutation attempt.
//
// The package contains three main components:
//
//   - [Reconcile] is the pure decision function producing a [Plan].
//   - [Orchestrator] drives one full cycle: fetch, reconcile, execute, log.
//   - [Scheduler] triggers cycles on request or on an interval, enforcing
//     that at most one cycle is in flight at a time.
package sync

import (
	"context"
	"time"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/store"
)

// SourceAdapter is the capability set each external system exposes to the
// engine. Implemented by [salonboard.Adapter] and [gcal.Adapter]. Adapters
// only touch their remote system, never the canonical store.
type SourceAdapter interface {
	// Source identifies which external system this adapter fronts.
	Source() model.Source

	// FetchWindow lists the raw items observed as active within
	// [start, end]. It must return an error — never an empty slice — when
	// the system cannot be reached, so the orchestrator can distinguish
	// "nothing found" from "could not check".
	FetchWindow(ctx context.Context, start, end time.Time) ([]model.ExternalItem, error)

	// CreateRemote creates the counterpart record for an appointment that
	// originated on the other system and returns the identifier the
	// remote side assigned to it.
	CreateRemote(ctx context.Context, appt *store.Appointment) (string, error)

	// SetAvailability marks the [start, end) slot busy or free. Only
	// meaningful on the booking platform; the calendar adapter treats it
	// as a successful no-op.
	SetAvailability(ctx context.Context, start, end time.Time, available bool) error
}

// Store is the subset of the canonical store the engine needs.
// Implemented by [store.Store].
type Store interface {
	ListWindow(ctx context.Context, start, end time.Time) ([]*store.Appointment, error)
	CreateAppointment(ctx context.Context, a *store.Appointment) error
	SetStatus(ctx context.Context, id int64, status model.Status) error
	SetCounterpartID(ctx context.Context, id int64, counterpartID string) error
	AppendLog(ctx context.Context, e *store.LogEntry) error
}
