package httpapi

import (
	"time"

	"github.com/kokoraro/salonsync/internal/model"
	"github.com/kokoraro/salonsync/internal/store"
)

type appointmentDTO struct {
	ID                    int64        `json:"id"`
	ExternalID            string       `json:"external_id"`
	Source                model.Source `json:"source"`
	CustomerName          string       `json:"customer_name"`
	CustomerPhone         string       `json:"customer_phone,omitempty"`
	CustomerEmail         string       `json:"customer_email,omitempty"`
	StartTime             time.Time    `json:"start_time"`
	EndTime               time.Time    `json:"end_time"`
	ServiceName           string       `json:"service_name"`
	Status                model.Status `json:"status"`
	CounterpartExternalID string       `json:"counterpart_external_id,omitempty"`
	Notes                 string       `json:"notes,omitempty"`
	CreatedAt             time.Time    `json:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at"`
}

func toAppointmentDTO(a *store.Appointment) appointmentDTO {
	return appointmentDTO{
		ID:                    a.ID,
		ExternalID:            a.ExternalID,
		Source:                a.Source,
		CustomerName:          a.CustomerName,
		CustomerPhone:         a.CustomerPhone,
		CustomerEmail:         a.CustomerEmail,
		StartTime:             a.StartTime,
		EndTime:               a.EndTime,
		ServiceName:           a.ServiceName,
		Status:                a.Status,
		CounterpartExternalID: a.CounterpartExternalID,
		Notes:                 a.Notes,
		CreatedAt:             a.CreatedAt,
		UpdatedAt:             a.UpdatedAt,
	}
}

type logDTO struct {
	ID            int64        `json:"id"`
	AppointmentID int64        `json:"appointment_id,omitempty"`
	ExternalID    string       `json:"external_id"`
	Source        model.Source `json:"source"`
	Action        string       `json:"action"`
	Outcome       string       `json:"outcome"`
	ErrorDetail   string       `json:"error_detail,omitempty"`
	OccurredAt    time.Time    `json:"occurred_at"`
}

func toLogDTO(e *store.LogEntry) logDTO {
	return logDTO{
		ID:            e.ID,
		AppointmentID: e.AppointmentID,
		ExternalID:    e.ExternalID,
		Source:        e.Source,
		Action:        e.Action,
		Outcome:       e.Outcome,
		ErrorDetail:   e.ErrorDetail,
		OccurredAt:    e.OccurredAt,
	}
}
