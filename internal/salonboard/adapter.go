package salonboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/retry"
	"github.com/kokoraro/salonsync/internal/store"
)

// Adapter exposes the board to the sync engine. Every call acquires a
// fresh session (login included) and closes it when done; the console's
// sessions are too flaky to pool.
type Adapter struct {
	newSession SessionFactory
	loc        *time.Location
	logger     *slog.Logger
}

// NewAdapter creates an Adapter launching headless browser sessions.
func NewAdapter(baseURL, username, password string, loc *time.Location, logger *slog.Logger) *Adapter {
	return &Adapter{
		newSession: NewBrowserSessionFactory(baseURL, username, password, loc),
		loc:        loc,
		logger:     logger,
	}
}

// NewAdapterWithFactory creates an Adapter over an injected session
// factory. Used in tests.
func NewAdapterWithFactory(factory SessionFactory, loc *time.Location, logger *slog.Logger) *Adapter {
	return &Adapter{newSession: factory, loc: loc, logger: logger}
}

func (a *Adapter) Source() model.Source { return model.SourceSalonBoard }

// FetchWindow logs in, pulls the reservation list and parses it. The
// whole session is retried as a unit: a half-rendered page and a dead
// browser look the same from outside.
func (a *Adapter) FetchWindow(ctx context.Context, start, end time.Time) ([]model.ExternalItem, error) {
	var items []model.ExternalItem

	err := retry.Do(ctx, retry.DefaultAttempts, func() error {
		html, err := a.withSession(ctx, func(s Session) (string, error) {
			return s.ReservationsHTML(ctx)
		})
		if err != nil {
			return err
		}

		parsed, warnings, err := parseReservations(html, a.loc, start, end)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			a.logger.Warn("skipping reservation row", "detail", w)
		}
		items = parsed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching salon board reservations: %w", err)
	}

	a.logger.Debug("fetched salon board reservations", "count", len(items))
	return items, nil
}

// CreateRemote blocks the appointment's slot. The console has no way to
// enter a reservation on a customer's behalf, so mirroring a calendar
// event means taking its slot off the market; the returned identifier is
// the deterministic slot key.
func (a *Adapter) CreateRemote(ctx context.Context, appt *store.Appointment) (string, error) {
	if err := a.SetAvailability(ctx, appt.StartTime, appt.EndTime, false); err != nil {
		return "", err
	}
	return "slot:" + appt.StartTime.UTC().Format(time.RFC3339), nil
}

// SetAvailability toggles the slot starting at start through the
// availability calendar.
func (a *Adapter) SetAvailability(ctx context.Context, start, end time.Time, available bool) error {
	err := retry.Do(ctx, retry.DefaultAttempts, func() error {
		_, err := a.withSession(ctx, func(s Session) (string, error) {
			return "", s.SetSlotAvailability(ctx, start, available)
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("setting salon board availability for %s: %w",
			start.In(a.loc).Format(SlotTimeLayout), err)
	}
	a.logger.Debug("updated salon board availability",
		"start", start, "end", end, "available", available)
	return nil
}

// withSession runs fn inside a fresh logged-in session and always closes
// it afterwards.
func (a *Adapter) withSession(ctx context.Context, fn func(Session) (string, error)) (string, error) {
	s, err := a.newSession()
	if err != nil {
		return "", fmt.Errorf("starting browser session: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			a.logger.Warn("closing browser session", "error", cerr)
		}
	}()

	if err := s.Login(ctx); err != nil {
		return "", err
	}
	return fn(s)
}
