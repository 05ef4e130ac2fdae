package salonboard

import (
	"testing"
	"time"
)

const reservationsPage = `
<html><body>
<div class="appointment-list">
  <div class="appointment-item" data-appointment-id="sb-1001">
    <span class="customer-name"> Tanaka Yuki </span>
    <span class="customer-phone">090-1234-5678</span>
    <span class="customer-email">tanaka@example.com</span>
    <span class="start-time">2026-03-10 14:00</span>
    <span class="end-time">2026-03-10 15:30</span>
    <span class="service-name">Cut &amp; Color</span>
    <span class="status">Confirmed</span>
  </div>
  <div class="appointment-item" data-appointment-id="sb-1002">
    <span class="customer-name">Sato Ren</span>
    <span class="customer-phone"></span>
    <span class="customer-email"></span>
    <span class="start-time">2026-03-25 10:00</span>
    <span class="end-time">2026-03-25 11:00</span>
    <span class="service-name">Perm</span>
    <span class="status">pending</span>
  </div>
  <div class="appointment-item">
    <span class="customer-name">No ID Row</span>
    <span class="start-time">2026-03-10 16:00</span>
    <span class="end-time">2026-03-10 17:00</span>
  </div>
  <div class="appointment-item" data-appointment-id="sb-1003">
    <span class="customer-name">Broken Time</span>
    <span class="start-time">tomorrow-ish</span>
    <span class="end-time">2026-03-10 17:00</span>
  </div>
</div>
</body></html>`

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}
	return loc
}

func TestParseReservations(t *testing.T) {
	loc := tokyo(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	items, warnings, err := parseReservations(reservationsPage, loc, start, end)
	if err != nil {
		t.Fatal(err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}

	first := items[0]
	if first.ExternalID != "sb-1001" {
		t.Errorf("ExternalID = %q", first.ExternalID)
	}
	if first.CustomerName != "Tanaka Yuki" {
		t.Errorf("CustomerName = %q, want trimmed text", first.CustomerName)
	}
	if first.ServiceName != "Cut & Color" {
		t.Errorf("ServiceName = %q", first.ServiceName)
	}
	if first.NativeStatus != "confirmed" {
		t.Errorf("NativeStatus = %q, want lowercased", first.NativeStatus)
	}

	// 14:00 JST is 05:00 UTC.
	wantStart := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	if !first.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", first.Start, wantStart)
	}
	if got := first.End.Sub(first.Start); got != 90*time.Minute {
		t.Errorf("duration = %v, want 90m", got)
	}

	// The two malformed rows produce warnings, not failures.
	if len(warnings) != 2 {
		t.Errorf("warnings = %v, want 2", warnings)
	}
}

func TestParseReservationsWindowFilter(t *testing.T) {
	loc := tokyo(t)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	items, _, err := parseReservations(reservationsPage, loc, start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ExternalID != "sb-1001" {
		t.Fatalf("items = %+v, want only sb-1001 inside the window", items)
	}
}

func TestParseReservationsEmptyPage(t *testing.T) {
	items, warnings, err := parseReservations(`<html><body><div class="appointment-list"></div></body></html>`,
		tokyo(t), time.Time{}, time.Now().AddDate(1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 || len(warnings) != 0 {
		t.Errorf("items = %+v warnings = %v, want none", items, warnings)
	}
}
