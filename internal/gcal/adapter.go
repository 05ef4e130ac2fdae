// Package gcal adapts the Google Calendar v3 API to the sync engine.
// Salon bookings become calendar events on the configured calendar, and
// calendar events in the window feed the engine's reconciliation.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/retry"
	"github.com/kokoraro/salonsync/internal/store"
)

// EventsAPI is the subset of the Calendar API the adapter needs. Defining
// it as an interface allows mock injection in tests.
type EventsAPI interface {
	List(ctx context.Context, calendarID string, start, end time.Time) ([]*calendar.Event, error)
	Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error)
}

// eventsService implements EventsAPI over a real [calendar.Service].
type eventsService struct {
	svc *calendar.Service
}

func (s *eventsService) List(ctx context.Context, calendarID string, start, end time.Time) ([]*calendar.Event, error) {
	res, err := s.svc.Events.List(calendarID).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func (s *eventsService) Insert(ctx context.Context, calendarID string, ev *calendar.Event) (*calendar.Event, error) {
	return s.svc.Events.Insert(calendarID, ev).Context(ctx).Do()
}

// Adapter provides the engine's view of one Google calendar. Create one
// with [NewAdapter] or, in tests, [NewAdapterWithAPI].
type Adapter struct {
	api        EventsAPI
	calendarID string
	logger     *slog.Logger
}

// NewAdapter builds an Adapter from an OAuth client credentials file and a
// previously obtained token file. Obtaining the initial token is an
// interactive step outside this process; the adapter only refreshes it.
func NewAdapter(ctx context.Context, credentialsFile, tokenFile, calendarID string, logger *slog.Logger) (*Adapter, error) {
	creds, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading calendar credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(creds, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar credentials: %w", err)
	}

	tok, err := readToken(tokenFile)
	if err != nil {
		return nil, err
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(conf.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}

	return &Adapter{
		api:        &eventsService{svc: svc},
		calendarID: calendarID,
		logger:     logger,
	}, nil
}

// NewAdapterWithAPI creates an Adapter over an injected EventsAPI.
func NewAdapterWithAPI(api EventsAPI, calendarID string, logger *slog.Logger) *Adapter {
	return &Adapter{api: api, calendarID: calendarID, logger: logger}
}

func (a *Adapter) Source() model.Source { return model.SourceGoogleCalendar }

// FetchWindow lists the calendar's events in [start, end], expanded to
// single instances. Events that cannot be interpreted are skipped with a
// warning.
func (a *Adapter) FetchWindow(ctx context.Context, start, end time.Time) ([]model.ExternalItem, error) {
	var events []*calendar.Event
	err := retry.Do(ctx, retry.DefaultAttempts, func() error {
		var err error
		events, err = a.api.List(ctx, a.calendarID, start, end)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing calendar events: %w", err)
	}

	items := make([]model.ExternalItem, 0, len(events))
	for _, ev := range events {
		it, err := eventToItem(ev)
		if err != nil {
			a.logger.Warn("skipping calendar event", "event_id", ev.Id, "error", err)
			continue
		}
		items = append(items, it)
	}

	a.logger.Debug("fetched calendar events", "count", len(items))
	return items, nil
}

// CreateRemote inserts the event mirroring a salon booking and returns
// the id the calendar assigned.
func (a *Adapter) CreateRemote(ctx context.Context, appt *store.Appointment) (string, error) {
	ev := appointmentToEvent(appt)

	var created *calendar.Event
	err := retry.Do(ctx, retry.DefaultAttempts, func() error {
		var err error
		created, err = a.api.Insert(ctx, a.calendarID, ev)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("inserting calendar event for %q: %w", appt.ExternalID, err)
	}

	a.logger.Debug("created calendar event", "event_id", created.Id, "external_id", appt.ExternalID)
	return created.Id, nil
}

// SetAvailability is a successful no-op; the calendar has no availability
// concept beyond its events.
func (a *Adapter) SetAvailability(context.Context, time.Time, time.Time, bool) error {
	return nil
}

func readToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading calendar token: %w", err)
	}
	defer func() { _ = f.Close() }()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("parsing calendar token %s: %w", path, err)
	}
	return tok, nil
}
