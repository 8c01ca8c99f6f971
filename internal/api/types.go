package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicboard/clinic-scheduling/internal/schedule"
)

type CreateBookingRequest struct {
	PatientID string     `json:"patient_id"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	Title     string     `json:"title"`
}

type RescheduleBookingRequest struct {
	Start     *time.Time `json:"start,omitempty"`
	End       *time.Time `json:"end,omitempty"`
	PatientID *string    `json:"patient_id,omitempty"`
	Title     *string    `json:"title,omitempty"`
}

type BulkDeleteRequest struct {
	AppointmentIDs []string `json:"appointment_ids"`
}

type BulkDeleteResponse struct {
	Deleted int `json:"deleted"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type WindowPayload struct {
	Weekday     int `json:"weekday"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

type ReplaceScheduleRequest struct {
	Windows []WindowPayload `json:"windows"`
}

type ScheduleResponse struct {
	Windows []WindowPayload `json:"windows"`
}

type CreateAbsenceRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason *string   `json:"reason,omitempty"`
}

type AbsenceResponse struct {
	ID     uuid.UUID `json:"id"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Reason *string   `json:"reason,omitempty"`
}

type BusyItem struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Origin string    `json:"origin"`
	RefID  uuid.UUID `json:"ref_id"`
}

type FreeBusyResponse struct {
	Conflict bool       `json:"conflict"`
	Reasons  []string   `json:"reasons,omitempty"`
	Busy     []BusyItem `json:"busy"`
}

type EventResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     *uuid.UUID `json:"patient_id,omitempty"`
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	Title         string     `json:"title"`
	Start         time.Time  `json:"start"`
	End           time.Time  `json:"end"`
	Source        string     `json:"source"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status"`
}

type BookingResponse struct {
	AppointmentID *uuid.UUID    `json:"appointment_id,omitempty"`
	EventID       uuid.UUID     `json:"event_id"`
	Event         EventResponse `json:"event"`
}

type CalendarResponse struct {
	Events   []EventResponse   `json:"events"`
	Absences []AbsenceResponse `json:"absences"`
}

type ConflictResponse struct {
	Error   string     `json:"error"`
	Reasons []string   `json:"reasons"`
	Busy    []BusyItem `json:"busy"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toBusyItems(items []schedule.ScheduledItem) []BusyItem {
	out := make([]BusyItem, 0, len(items))
	for _, it := range items {
		out = append(out, BusyItem{
			Start:  it.StartTime,
			End:    it.EndTime,
			Origin: string(it.Origin),
			RefID:  it.RefID,
		})
	}
	return out
}

func toEventResponse(ev *schedule.CalendarEvent) EventResponse {
	return EventResponse{
		ID:            ev.ID,
		PatientID:     ev.PatientID,
		AppointmentID: ev.AppointmentID,
		Title:         ev.Title,
		Start:         ev.StartTime,
		End:           ev.EndTime,
		Source:        string(ev.Source),
	}
}

func toAbsenceResponse(a *schedule.Absence) AbsenceResponse {
	return AbsenceResponse{
		ID:     a.ID,
		Start:  a.StartTime,
		End:    a.EndTime,
		Reason: a.Reason,
	}
}
