// Package model defines shared types used across the sync engine and adapters.
package model

import (
	"fmt"
	"time"
)

// Source identifies which external system a record was first observed from.
// It never changes after the canonical record is created.
type Source string

const (
	// SourceSalonBoard marks records originating from the Salon Board
	// booking platform.
	SourceSalonBoard Source = "salon_board"
	// SourceGoogleCalendar marks records originating from Google Calendar.
	SourceGoogleCalendar Source = "google_calendar"
)

// ParseSource converts a raw string (e.g. an HTTP query parameter) into a
// Source. Returns an error for anything but the two known values.
func ParseSource(raw string) (Source, error) {
	switch Source(raw) {
	case SourceSalonBoard, SourceGoogleCalendar:
		return Source(raw), nil
	}
	return "", fmt.Errorf("unknown source %q", raw)
}

// Status is the canonical appointment state, derived from each system's
// native status vocabulary.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// salonStatuses maps the Salon Board reservation list's status labels
// (lower-cased) onto the canonical states.
var salonStatuses = map[string]Status{
	"pending":   StatusPending,
	"confirmed": StatusConfirmed,
	"cancelled": StatusCancelled,
	"canceled":  StatusCancelled,
	"completed": StatusCompleted,
}

// calendarStatuses maps Google Calendar event statuses onto the canonical
// states. Tentative events are treated as pending.
var calendarStatuses = map[string]Status{
	"confirmed": StatusConfirmed,
	"tentative": StatusPending,
	"cancelled": StatusCancelled,
}

// MapNativeStatus converts a native status string from the given source
// into a canonical Status. Unrecognized values map to StatusPending and
// ok=false so the caller can log a warning; a mapping miss never fails a
// cycle.
func MapNativeStatus(source Source, native string) (status Status, ok bool) {
	var table map[string]Status
	switch source {
	case SourceSalonBoard:
		table = salonStatuses
	case SourceGoogleCalendar:
		table = calendarStatuses
	}
	if s, found := table[native]; found {
		return s, true
	}
	return StatusPending, false
}

// ExternalItem is the adapters' normalised output shape: one raw record
// observed in a fetch window, before any canonical-store matching.
type ExternalItem struct {
	// ExternalID is the identifier assigned by the originating system
	// (reservation id or calendar event id). Unique per source only.
	ExternalID string

	CustomerName  string
	CustomerPhone string
	CustomerEmail string

	// Start and End are timezone-normalised to UTC at ingestion.
	Start time.Time
	End   time.Time

	// ServiceName is the booked service description (calendar summary).
	ServiceName string

	// NativeStatus is the source system's own status string, mapped to a
	// canonical Status by [MapNativeStatus].
	NativeStatus string

	// Attendees holds contact emails attached to the record.
	Attendees []string

	// Notes carries origin-specific free text (calendar description).
	Notes string
}

// Valid reports whether the item can become a canonical appointment: it
// must carry an external id and a well-ordered time range.
func (it *ExternalItem) Valid() bool {
	return it.ExternalID != "" && !it.Start.IsZero() && it.Start.Before(it.End)
}
