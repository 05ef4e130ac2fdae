package sync

import (
	"fmt"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/store"
)

// originKey is the compound lookup key for canonical records. Origin is
// determined by which adapter produced an item, never by the identifier
// value, so a coincidental externalId collision between the two systems
// can never cross-match.
type originKey struct {
	externalID string
	source     model.Source
}

// Reconcile computes the operations needed to converge the canonical store
// with the item sets fetched from both systems. It is a pure function of
// its inputs: it performs no I/O and never mutates its arguments, which
// makes cycle decisions replayable in tests.
//
// A nil item slice means that side of the cycle is unknown (adapter
// outage) and simply contributes no operations; it is not treated as "the
// system holds nothing".
func Reconcile(existing []*store.Appointment, salonItems, calItems []model.ExternalItem) Plan {
	index := make(map[originKey]*store.Appointment, len(existing))
	for _, a := range existing {
		index[originKey{a.ExternalID, a.Source}] = a
	}

	var plan Plan
	reconcileSide(&plan, index, salonItems, model.SourceSalonBoard)
	reconcileSide(&plan, index, calItems, model.SourceGoogleCalendar)
	return plan
}

// reconcileSide appends the operations for one origin's fetched items,
// preserving fetch order.
func reconcileSide(plan *Plan, index map[originKey]*store.Appointment, items []model.ExternalItem, source model.Source) {
	for _, it := range items {
		if !it.Valid() {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("dropping malformed %s item %q: missing id or inverted time range", source, it.ExternalID))
			continue
		}

		status, known := model.MapNativeStatus(source, it.NativeStatus)
		if !known {
			plan.Warnings = append(plan.Warnings,
				fmt.Sprintf("unrecognized %s status %q for %q, defaulting to pending", source, it.NativeStatus, it.ExternalID))
		}

		appt, found := index[originKey{it.ExternalID, source}]
		switch {
		case !found:
			plan.Ops = append(plan.Ops, Operation{
				Kind:       OpIngestAndMirror,
				Source:     source,
				ExternalID: it.ExternalID,
				Item:       it,
			})
		case appt.Status != status:
			plan.Ops = append(plan.Ops, Operation{
				Kind:       OpUpdateStatus,
				Source:     source,
				ExternalID: it.ExternalID,
				Appt:       appt,
				NewStatus:  status,
			})
		case !appt.Mirrored():
			// A prior propagation failed or was interrupted; the empty
			// counterpart id is the system's retry marker.
			plan.Ops = append(plan.Ops, Operation{
				Kind:       OpRetryMirror,
				Source:     source,
				ExternalID: it.ExternalID,
				Appt:       appt,
			})
		default:
			plan.InSync++
		}
	}
}

// BuildAppointment converts a fetched item into the canonical record an
// OpIngestAndMirror creates. The counterpart id starts empty: the record
// represents a pending-propagation item until mirroring succeeds.
func BuildAppointment(source model.Source, it model.ExternalItem) *store.Appointment {
	status, _ := model.MapNativeStatus(source, it.NativeStatus)

	a := &store.Appointment{
		ExternalID:    it.ExternalID,
		Source:        source,
		CustomerName:  it.CustomerName,
		CustomerPhone: it.CustomerPhone,
		CustomerEmail: it.CustomerEmail,
		StartTime:     it.Start.UTC(),
		EndTime:       it.End.UTC(),
		ServiceName:   it.ServiceName,
		Status:        status,
		Notes:         it.Notes,
	}

	// Calendar events carry the customer contact as the first attendee.
	if a.CustomerEmail == "" && len(it.Attendees) > 0 {
		a.CustomerEmail = it.Attendees[0]
	}
	return a
}
