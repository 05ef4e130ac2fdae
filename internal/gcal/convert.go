package gcal

import (
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/store"
)

// dateOnlyLayout is the format all-day events use in start.date/end.date.
const dateOnlyLayout = "2006-01-02"

// eventToItem converts an API event into the engine's representation.
// All-day events carry only a date; their boundaries are taken as UTC
// midnights.
func eventToItem(ev *calendar.Event) (model.ExternalItem, error) {
	if ev.Id == "" {
		return model.ExternalItem{}, fmt.Errorf("event has no id")
	}

	start, err := eventTime(ev.Start)
	if err != nil {
		return model.ExternalItem{}, fmt.Errorf("event start: %w", err)
	}
	end, err := eventTime(ev.End)
	if err != nil {
		return model.ExternalItem{}, fmt.Errorf("event end: %w", err)
	}

	status := ev.Status
	if status == "" {
		status = "confirmed"
	}

	var attendees []string
	for _, at := range ev.Attendees {
		if at.Email != "" {
			attendees = append(attendees, at.Email)
		}
	}

	return model.ExternalItem{
		ExternalID:   ev.Id,
		CustomerName: ev.Summary,
		Start:        start,
		End:          end,
		ServiceName:  ev.Summary,
		NativeStatus: status,
		Attendees:    attendees,
		Notes:        ev.Description,
	}, nil
}

func eventTime(edt *calendar.EventDateTime) (time.Time, error) {
	if edt == nil {
		return time.Time{}, fmt.Errorf("missing")
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad dateTime %q: %w", edt.DateTime, err)
		}
		return t.UTC(), nil
	}
	if edt.Date != "" {
		t, err := time.Parse(dateOnlyLayout, edt.Date)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad date %q: %w", edt.Date, err)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("neither dateTime nor date set")
}

// appointmentToEvent renders a salon booking as the calendar event that
// mirrors it.
func appointmentToEvent(appt *store.Appointment) *calendar.Event {
	phone := appt.CustomerPhone
	if phone == "" {
		phone = "N/A"
	}

	ev := &calendar.Event{
		Summary:     "Appointment: " + appt.ServiceName,
		Description: fmt.Sprintf("Customer: %s\nPhone: %s", appt.CustomerName, phone),
		Location:    "Salon",
		Start: &calendar.EventDateTime{
			DateTime: appt.StartTime.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
		End: &calendar.EventDateTime{
			DateTime: appt.EndTime.UTC().Format(time.RFC3339),
			TimeZone: "UTC",
		},
	}
	if appt.CustomerEmail != "" {
		ev.Attendees = []*calendar.EventAttendee{{Email: appt.CustomerEmail}}
	}
	return ev
}
