package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/store"
)

const (
	otelScope     = "salonsync/sync"
	spanCycle     = "sync.cycle"
	metricCreated = "salonsync.cycle.created"
	metricUpdated = "salonsync.cycle.updated"
	metricFailed  = "salonsync.cycle.failed"
	metricSkipped = "salonsync.cycle.skipped"
	metricOutages = "salonsync.adapter.outages"
)

// CycleSummary aggregates the outcome of one cycle. The orchestrator never
// raises past its boundary: every external failure becomes a count here
// plus a sync log entry.
type CycleSummary struct {
	Created int
	Updated int
	Failed  int
	Skipped int
}

// Orchestrator drives one full sync cycle: fetch from both adapters, hand
// the results to [Reconcile], execute the plan entry by entry, and record
// the outcome of every mutation attempt in the sync log.
type Orchestrator struct {
	booking  SourceAdapter
	calendar SourceAdapter
	store    Store
	timeout  time.Duration
	log      *slog.Logger

	// OTel instruments — always non-nil (no-op when telemetry is disabled).
	tracer     trace.Tracer
	cntCreated metric.Int64Counter
	cntUpdated metric.Int64Counter
	cntFailed  metric.Int64Counter
	cntSkipped metric.Int64Counter
	cntOutages metric.Int64Counter
}

// NewOrchestrator creates an Orchestrator wired to the two adapters and the
// canonical store. timeout bounds each adapter call so a stalled remote
// round trip cannot stall the cycle indefinitely.
func NewOrchestrator(booking, calendar SourceAdapter, st Store, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	tracer := otel.Tracer(otelScope)
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Orchestrator{
		booking:  booking,
		calendar: calendar,
		store:    st,
		timeout:  timeout,
		log:      logger,

		tracer:     tracer,
		cntCreated: mustCounter(metricCreated, "Appointments ingested during sync cycles"),
		cntUpdated: mustCounter(metricUpdated, "Appointments updated during sync cycles"),
		cntFailed:  mustCounter(metricFailed, "Operations that failed during sync cycles"),
		cntSkipped: mustCounter(metricSkipped, "Items already consistent during sync cycles"),
		cntOutages: mustCounter(metricOutages, "Whole-adapter outages observed during fetch"),
	}
}

// RunCycle executes one fetch → reconcile → execute → log pass for the
// given window and returns a summary. A whole-adapter outage degrades that
// side to "unknown"; a failed operation is logged and the plan continues.
// Only total store unavailability ends the cycle early.
func (o *Orchestrator) RunCycle(ctx context.Context, start, end time.Time) CycleSummary {
	ctx, span := o.tracer.Start(ctx, spanCycle)
	defer span.End()

	var sum CycleSummary

	o.log.Info("cycle starting", "start", start, "end", end)

	salonItems := o.fetch(ctx, o.booking, start, end)
	calItems := o.fetch(ctx, o.calendar, start, end)

	existing, err := o.store.ListWindow(ctx, start, end)
	if err != nil {
		// Store gone — nothing can be decided or recorded this cycle.
		o.log.Error("canonical store unavailable, aborting cycle", "error", err)
		span.RecordError(err)
		sum.Failed++
		return sum
	}

	plan := Reconcile(existing, salonItems, calItems)
	for _, w := range plan.Warnings {
		o.log.Warn(w)
	}
	sum.Skipped += plan.InSync

	for _, op := range plan.Ops {
		o.apply(ctx, op, &sum)
	}

	o.record(ctx, span, sum)
	o.log.Info("cycle complete",
		"created", sum.Created,
		"updated", sum.Updated,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
	)
	return sum
}

// fetch calls one adapter under the configured timeout. On failure it
// records a single outage log entry and returns nil so the reconciler
// treats that side as unknown.
func (o *Orchestrator) fetch(ctx context.Context, a SourceAdapter, start, end time.Time) []model.ExternalItem {
	fctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	items, err := a.FetchWindow(fctx, start, end)
	if err != nil {
		outage := &UnavailableError{Source: a.Source(), Err: err}
		o.log.Error("adapter fetch failed, degrading side to unknown", "source", a.Source(), "error", err)
		o.cntOutages.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(a.Source()))))
		o.appendLog(ctx, &store.LogEntry{
			Source:      a.Source(),
			Action:      store.ActionFetch,
			Outcome:     store.OutcomeFailed,
			ErrorDetail: outage.Error(),
		})
		return nil
	}
	return items
}

// apply executes a single plan entry. Failures are logged and counted but
// never stop the remaining entries.
func (o *Orchestrator) apply(ctx context.Context, op Operation, sum *CycleSummary) {
	switch op.Kind {
	case OpIngestAndMirror:
		appt := BuildAppointment(op.Source, op.Item)
		if err := o.store.CreateAppointment(ctx, appt); err != nil {
			// No canonical id was assigned; log against the synthetic
			// unresolved marker carrying the external id.
			o.log.Error("storing new appointment failed", "external_id", op.ExternalID, "source", op.Source, "error", err)
			sum.Failed++
			o.appendLog(ctx, &store.LogEntry{
				ExternalID:  op.ExternalID,
				Source:      op.Source,
				Action:      store.ActionCreate,
				Outcome:     store.OutcomeFailed,
				ErrorDetail: err.Error(),
			})
			return
		}
		sum.Created++

		if err := o.mirror(ctx, appt); err != nil {
			// Counterpart id stays empty, so the next cycle retries.
			sum.Failed++
			o.logMirrorFailure(ctx, appt, err)
			return
		}
		o.appendLog(ctx, &store.LogEntry{
			AppointmentID: appt.ID,
			ExternalID:    appt.ExternalID,
			Source:        appt.Source,
			Action:        store.ActionCreate,
			Outcome:       store.OutcomeSuccess,
		})

	case OpUpdateStatus:
		if err := o.store.SetStatus(ctx, op.Appt.ID, op.NewStatus); err != nil {
			o.log.Error("status update failed", "external_id", op.ExternalID, "error", err)
			sum.Failed++
			o.appendLog(ctx, &store.LogEntry{
				AppointmentID: op.Appt.ID,
				ExternalID:    op.ExternalID,
				Source:        op.Source,
				Action:        store.ActionUpdate,
				Outcome:       store.OutcomeFailed,
				ErrorDetail:   err.Error(),
			})
			return
		}
		sum.Updated++
		o.appendLog(ctx, &store.LogEntry{
			AppointmentID: op.Appt.ID,
			ExternalID:    op.ExternalID,
			Source:        op.Source,
			Action:        store.ActionUpdate,
			Outcome:       store.OutcomeSuccess,
		})

	case OpRetryMirror:
		if err := o.mirror(ctx, op.Appt); err != nil {
			sum.Failed++
			o.logMirrorFailure(ctx, op.Appt, err)
			return
		}
		sum.Updated++
		o.appendLog(ctx, &store.LogEntry{
			AppointmentID: op.Appt.ID,
			ExternalID:    op.ExternalID,
			Source:        op.Source,
			Action:        store.ActionCreate,
			Outcome:       store.OutcomeSuccess,
		})
	}
}

// mirror propagates an appointment to the system that did not originate
// it: calendar events for salon bookings, an availability block on the
// board for calendar events. On success the counterpart id is persisted,
// marking propagation complete.
func (o *Orchestrator) mirror(ctx context.Context, appt *store.Appointment) error {
	wctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var counterpartID string
	switch appt.Source {
	case model.SourceSalonBoard:
		id, err := o.calendar.CreateRemote(wctx, appt)
		if err != nil {
			return &WriteError{Source: o.calendar.Source(), ExternalID: appt.ExternalID, Err: err}
		}
		counterpartID = id
	case model.SourceGoogleCalendar:
		if err := o.booking.SetAvailability(wctx, appt.StartTime, appt.EndTime, false); err != nil {
			return &WriteError{Source: o.booking.Source(), ExternalID: appt.ExternalID, Err: err}
		}
		// The availability write yields no remote identifier; record the
		// blocked slot key so the record counts as mirrored.
		counterpartID = SlotKey(appt.StartTime)
	default:
		return fmt.Errorf("appointment %q has unknown source %q", appt.ExternalID, appt.Source)
	}

	if err := o.store.SetCounterpartID(ctx, appt.ID, counterpartID); err != nil {
		return fmt.Errorf("persisting counterpart id for %q: %w", appt.ExternalID, err)
	}
	appt.CounterpartExternalID = counterpartID
	return nil
}

// SlotKey returns the deterministic counterpart identifier recorded for a
// calendar-origin appointment mirrored as an availability block.
func SlotKey(start time.Time) string {
	return "slot:" + start.UTC().Format(time.RFC3339)
}

func (o *Orchestrator) logMirrorFailure(ctx context.Context, appt *store.Appointment, err error) {
	o.log.Error("mirror failed, will retry next cycle",
		"external_id", appt.ExternalID,
		"source", appt.Source,
		"error", err,
	)
	o.appendLog(ctx, &store.LogEntry{
		AppointmentID: appt.ID,
		ExternalID:    appt.ExternalID,
		Source:        appt.Source,
		Action:        store.ActionCreate,
		Outcome:       store.OutcomeFailed,
		ErrorDetail:   err.Error(),
	})
}

// appendLog writes an audit entry; logging failures must not break the
// cycle, so they are only reported to the process log.
func (o *Orchestrator) appendLog(ctx context.Context, e *store.LogEntry) {
	if err := o.store.AppendLog(ctx, e); err != nil {
		o.log.Error("appending sync log entry failed", "external_id", e.ExternalID, "error", err)
	}
}

// record emits the cycle counters and span attributes.
func (o *Orchestrator) record(ctx context.Context, span trace.Span, sum CycleSummary) {
	if sum.Created > 0 {
		o.cntCreated.Add(ctx, int64(sum.Created))
	}
	if sum.Updated > 0 {
		o.cntUpdated.Add(ctx, int64(sum.Updated))
	}
	if sum.Failed > 0 {
		o.cntFailed.Add(ctx, int64(sum.Failed))
	}
	if sum.Skipped > 0 {
		o.cntSkipped.Add(ctx, int64(sum.Skipped))
	}

	span.SetAttributes(
		attribute.Int("cycle.created", sum.Created),
		attribute.Int("cycle.updated", sum.Updated),
		attribute.Int("cycle.failed", sum.Failed),
		attribute.Int("cycle.skipped", sum.Skipped),
	)
}
