package sync

import (
	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/store"
)

// OpKind describes a single mutation the reconciler wants to perform.
type OpKind int

const (
	// OpIngestAndMirror creates a canonical record for a newly observed
	// external item, then propagates it to the other system.
	OpIngestAndMirror OpKind = iota
	// OpUpdateStatus transitions a canonical record whose native status
	// changed at the origin since the last cycle.
	OpUpdateStatus
	// OpRetryMirror re-attempts propagation for a record whose previous
	// mirror write failed or was interrupted (empty counterpart id).
	OpRetryMirror
)

func (k OpKind) String() string {
	switch k {
	case OpIngestAndMirror:
		return "ingest_and_mirror"
	case OpUpdateStatus:
		return "update_status"
	case OpRetryMirror:
		return "retry_mirror"
	default:
		return "unknown"
	}
}

// Operation is one entry of a [Plan]. Source and ExternalID are always
// set; Item is populated for ingestions, Appt and NewStatus for mutations
// of existing records.
type Operation struct {
	Kind       OpKind
	Source     model.Source
	ExternalID string

	// Item is the raw fetched item, set for OpIngestAndMirror.
	Item model.ExternalItem

	// Appt is the store snapshot of the existing record, set for
	// OpUpdateStatus and OpRetryMirror.
	Appt *store.Appointment

	// NewStatus is the mapped canonical status, set for OpUpdateStatus.
	NewStatus model.Status
}

// Plan is the ordered sequence of operations one cycle must execute: all
// booking-origin operations before all calendar-origin ones, each group in
// its adapter's fetch order. The fixed order keeps replays deterministic.
type Plan struct {
	Ops []Operation

	// InSync counts fetched items already consistent with the store;
	// reported as Skipped in the cycle summary.
	InSync int

	// Warnings carries non-fatal reconciliation notes (unrecognized
	// native statuses, malformed items). The orchestrator logs them;
	// they never fail a cycle.
	Warnings []string
}
