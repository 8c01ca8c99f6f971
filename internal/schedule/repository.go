package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrPatientNotFound      = errors.New("patient not found")
	ErrEventNotFound        = errors.New("calendar event not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrAbsenceNotFound      = errors.New("absence not found")
)

// Repository contains all DB interactions needed by the service.
// Multi-row mutations (booking writes, schedule replacement) are atomic:
// partial writes must never be observable.
type Repository interface {
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Weekly availability windows
	ListWindows(ctx context.Context, practitionerID uuid.UUID) ([]AvailabilityWindow, error)
	ListWindowsForWeekday(ctx context.Context, practitionerID uuid.UUID, weekday int) ([]AvailabilityWindow, error)
	ReplaceWindows(ctx context.Context, practitionerID uuid.UUID, windows []AvailabilityWindow) error

	// Absences
	CreateAbsence(ctx context.Context, a *Absence) (*Absence, error)
	DeleteAbsence(ctx context.Context, practitionerID, id uuid.UUID) error
	ListAbsences(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Absence, error)

	// Busy-set resolution: every event and absence intersecting
	// [start, end), ascending by start, stable for equal starts.
	ListBusy(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]ScheduledItem, error)

	// Lookups
	GetEventByID(ctx context.Context, id uuid.UUID) (*CalendarEvent, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListEvents(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]CalendarEvent, error)

	// Booking writes
	InsertBooking(ctx context.Context, appt *Appointment, ev *CalendarEvent) error
	UpdateBooking(ctx context.Context, ev *CalendarEvent, appt *Appointment) error
	CancelBooking(ctx context.Context, eventID uuid.UUID, appointmentID *uuid.UUID) error
	DeleteAppointments(ctx context.Context, practitionerID uuid.UUID, ids []uuid.UUID) (int, error)

	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Audit logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
