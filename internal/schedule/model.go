package schedule

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusOpen        AppointmentStatus = "open"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusNoShow      AppointmentStatus = "no_show"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// IsTerminal reports whether s admits no further transitions. Every status
// other than open is terminal.
func (s AppointmentStatus) IsTerminal() bool {
	return s != StatusOpen
}

type EventSource string

const (
	SourceManual       EventSource = "manual"
	SourceExternalSync EventSource = "external-sync"
)

// BusyOrigin tags where a busy interval came from when appointments and
// absences are flattened into one list for overlap testing.
type BusyOrigin string

const (
	OriginAppointment BusyOrigin = "appointment"
	OriginAbsence     BusyOrigin = "absence"
)

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	Name           string
	Email          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AvailabilityWindow is a recurring weekly interval during which a
// practitioner accepts bookings. Weekday is 0=Sunday..6=Saturday; the
// minute fields are minutes of the local day, start < end.
type AvailabilityWindow struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	Weekday        int
	StartMinute    int
	EndMinute      int
}

// Absence is a one-off declared block of unavailability, independent of
// any booking.
type Absence struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Reason         *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ScheduledItem is a uniform busy interval resolved from either a calendar
// event or an absence. It is never persisted in this shape.
type ScheduledItem struct {
	StartTime time.Time
	EndTime   time.Time
	Origin    BusyOrigin
	RefID     uuid.UUID
}

// Overlaps applies the half-open overlap test against [start, end).
func (s ScheduledItem) Overlaps(start, end time.Time) bool {
	return Overlaps(s.StartTime, s.EndTime, start, end)
}

// Appointment is the clinical record of a consultation. Its interval and
// the linked calendar event's interval are kept identical by the service;
// neither is ever written outside that single path.
type Appointment struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	StartTime      time.Time
	EndTime        time.Time
	Status         AppointmentStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CalendarEvent is the generic calendar representation. It may exist
// without a linked appointment (pure calendar entry); an appointment has at
// most one linked event.
type CalendarEvent struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	PatientID      *uuid.UUID
	AppointmentID  *uuid.UUID
	Title          string
	StartTime      time.Time
	EndTime        time.Time
	Source         EventSource
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Booking pairs a calendar event with its linked appointment for callers.
type Booking struct {
	Appointment   *Appointment
	CalendarEvent *CalendarEvent
}

// EventLog is an append-only audit row written alongside calendar
// mutations. EventID references the calendar event when one is involved.
type EventLog struct {
	ID        int64
	EventType string
	EventID   *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
