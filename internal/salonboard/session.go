// Package salonboard scrapes the Salon Board merchant console. The board
// exposes no API, so the adapter drives a headless browser: log in, pull
// the reservation list HTML for parsing, and toggle slot availability
// through the calendar UI. Each engine call acquires a fresh [Session] so
// a wedged browser never outlives one operation.
package salonboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// DOM selectors of the merchant console. The board ships no stable API, so
// these track its markup; bump them together with SlotTimeLayout when the
// console changes.
const (
	selUsername     = `input[name="username"]`
	selPassword     = `input[name="password"]`
	selLoginSubmit  = `button[type="submit"]`
	selDashboard    = `.dashboard`
	selReservations = `.appointment-list`
	selCalendar     = `.calendar`
	selAvailToggle  = `.availability-toggle`
	selSaveButton   = `button.save-changes`
	selSaveConfirm  = `.success-message`
)

// SlotTimeLayout is the timestamp format the console uses in data-time
// attributes and reservation rows, rendered in the salon's local timezone.
const SlotTimeLayout = "2006-01-02 15:04"

// Session is one authenticated browser session against the board.
// Implemented by [browserSession]; tests substitute fakes.
type Session interface {
	// Login authenticates and waits for the dashboard to render.
	Login(ctx context.Context) error

	// ReservationsHTML navigates to the reservation list and returns the
	// rendered page for parsing.
	ReservationsHTML(ctx context.Context) (string, error)

	// SetSlotAvailability opens the availability calendar, toggles the
	// slot starting at start when its state differs, and saves.
	SetSlotAvailability(ctx context.Context, start time.Time, available bool) error

	// Close tears the browser down. Safe to call more than once.
	Close() error
}

// SessionFactory creates a fresh session. Injected into [Adapter] so tests
// run without a browser.
type SessionFactory func() (Session, error)

// browserSession drives a headless Chrome via chromedp.
type browserSession struct {
	baseURL  string
	username string
	password string
	loc      *time.Location

	ctx         context.Context
	cancelCtx   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewBrowserSessionFactory returns a SessionFactory launching headless
// Chrome instances against baseURL. loc is the salon's timezone, used to
// render slot timestamps the way the console displays them.
func NewBrowserSessionFactory(baseURL, username, password string, loc *time.Location) SessionFactory {
	return func() (Session, error) {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
		ctx, cancelCtx := chromedp.NewContext(allocCtx)

		return &browserSession{
			baseURL:     strings.TrimRight(baseURL, "/") + "/",
			username:    username,
			password:    password,
			loc:         loc,
			ctx:         ctx,
			cancelCtx:   cancelCtx,
			cancelAlloc: cancelAlloc,
		}, nil
	}
}

// run executes actions on the session's browser while honoring the
// caller's deadline.
func (s *browserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(runCtx, deadline)
		defer cancel()
	}
	return chromedp.Run(runCtx, actions...)
}

func (s *browserSession) Login(ctx context.Context) error {
	err := s.run(ctx,
		chromedp.Navigate(s.baseURL+"login"),
		chromedp.WaitVisible(selUsername, chromedp.ByQuery),
		chromedp.SendKeys(selUsername, s.username, chromedp.ByQuery),
		chromedp.SendKeys(selPassword, s.password, chromedp.ByQuery),
		chromedp.Click(selLoginSubmit, chromedp.ByQuery),
		chromedp.WaitVisible(selDashboard, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("salon board login: %w", err)
	}
	return nil
}

func (s *browserSession) ReservationsHTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx,
		chromedp.Navigate(s.baseURL+"appointments"),
		chromedp.WaitVisible(selReservations, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("loading reservation list: %w", err)
	}
	return html, nil
}

func (s *browserSession) SetSlotAvailability(ctx context.Context, start time.Time, available bool) error {
	slotSel := fmt.Sprintf(`.time-slot[data-time=%q]`, start.In(s.loc).Format(SlotTimeLayout))

	var state string
	var found bool
	err := s.run(ctx,
		chromedp.Navigate(s.baseURL+"availability"),
		chromedp.WaitVisible(selCalendar, chromedp.ByQuery),
		chromedp.Click(slotSel, chromedp.ByQuery),
		chromedp.AttributeValue(selAvailToggle, "data-available", &state, &found, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("opening availability slot %s: %w", start.In(s.loc).Format(SlotTimeLayout), err)
	}
	if !found {
		return fmt.Errorf("availability toggle has no data-available attribute")
	}

	// Toggle only when the console's state differs from the target.
	if (state == "true") != available {
		if err := s.run(ctx, chromedp.Click(selAvailToggle, chromedp.ByQuery)); err != nil {
			return fmt.Errorf("toggling availability: %w", err)
		}
	}

	err = s.run(ctx,
		chromedp.Click(selSaveButton, chromedp.ByQuery),
		chromedp.WaitVisible(selSaveConfirm, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("saving availability change: %w", err)
	}
	return nil
}

func (s *browserSession) Close() error {
	s.cancelCtx()
	s.cancelAlloc()
	return nil
}
