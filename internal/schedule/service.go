package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	redisclient "github.com/clinicboard/clinic-scheduling/internal/redis"
)

const (
	EventBookingCreated     = "BOOKING_CREATED"
	EventBookingRescheduled = "BOOKING_RESCHEDULED"
	EventBookingCancelled   = "BOOKING_CANCELLED"
	EventScheduleReplaced   = "SCHEDULE_REPLACED"
)

var (
	ErrCalendarBusy            = errors.New("calendar is currently being modified, please retry")
	ErrAppointmentFinal        = errors.New("appointment is in a terminal status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrTitleRequired           = errors.New("title is required")
	ErrInvalidWindow           = errors.New("window start minute must be before end minute within one day")
	ErrWindowOverlap           = errors.New("windows on the same weekday must not overlap")
)

// Service is the single write path for bookings. An appointment and its
// linked calendar event are one aggregate with two views; both records are
// only ever written here, inside one transaction, after the conflict check
// ran under the per practitioner+day lock.
type Service struct {
	repo    Repository
	checker *Checker
	locker  redisclient.Locker
	loc     *time.Location
	log     *zap.Logger
}

func NewService(repo Repository, checker *Checker, locker redisclient.Locker, loc *time.Location, log *zap.Logger) *Service {
	return &Service{
		repo:    repo,
		checker: checker,
		locker:  locker,
		loc:     loc,
		log:     log,
	}
}

// CheckFreeBusy is the read-only preview: same decision the write paths
// make, no lock, no side effects.
func (s *Service) CheckFreeBusy(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (*ConflictResult, error) {
	return s.checker.Check(ctx, practitionerID, start, end, nil)
}

// CreateBooking reserves [start, end) for a patient. The conflict check and
// the dual-record insert run inside the calendar lock so two concurrent
// attempts at overlapping intervals cannot both commit.
func (s *Service) CreateBooking(ctx context.Context, practitionerID, patientID uuid.UUID, start, end time.Time, title string) (*Booking, error) {
	if !start.Before(end) {
		return nil, ErrInvalidInterval
	}
	if title == "" {
		return nil, ErrTitleRequired
	}

	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.PractitionerID != practitionerID {
		// Ownership failures read as not-found so one practitioner cannot
		// probe another's patient ids.
		return nil, ErrPatientNotFound
	}

	var booking *Booking

	err = s.locker.WithCalendarLock(ctx, practitionerID, LocalDay(start, s.loc), func(lockCtx context.Context) error {
		result, err := s.checker.Check(lockCtx, practitionerID, start, end, nil)
		if err != nil {
			return fmt.Errorf("conflict check: %w", err)
		}
		if result.Conflict {
			return &ConflictError{Reasons: result.Reasons, Busy: result.Busy}
		}

		appt := &Appointment{
			ID:             uuid.New(),
			PractitionerID: practitionerID,
			PatientID:      patientID,
			StartTime:      start,
			EndTime:        end,
			Status:         StatusOpen,
		}
		apptID := appt.ID
		ev := &CalendarEvent{
			ID:             uuid.New(),
			PractitionerID: practitionerID,
			PatientID:      &patientID,
			AppointmentID:  &apptID,
			Title:          title,
			StartTime:      start,
			EndTime:        end,
			Source:         SourceManual,
		}

		if err := s.repo.InsertBooking(lockCtx, appt, ev); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		booking = &Booking{Appointment: appt, CalendarEvent: ev}
		s.logEvent(lockCtx, EventBookingCreated, &ev.ID, map[string]any{
			"appointment_id": appt.ID.String(),
			"patient_id":     patientID.String(),
			"start":          start,
			"end":            end,
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	s.log.Info("booking created",
		zap.String("practitioner_id", practitionerID.String()),
		zap.String("event_id", booking.CalendarEvent.ID.String()),
		zap.Time("start", start),
	)
	return booking, nil
}

// RescheduleParams carries the fields a reschedule may change. Nil fields
// are left untouched.
type RescheduleParams struct {
	Start     *time.Time
	End       *time.Time
	PatientID *uuid.UUID
	Title     *string
}

// RescheduleBooking moves an event (and its linked appointment) to a new
// interval and/or patient. The event being moved is excluded from its own
// overlap check.
func (s *Service) RescheduleBooking(ctx context.Context, practitionerID, eventID uuid.UUID, p RescheduleParams) (*CalendarEvent, error) {
	ev, err := s.getOwnedEvent(ctx, practitionerID, eventID)
	if err != nil {
		return nil, err
	}

	var appt *Appointment
	if ev.AppointmentID != nil {
		appt, err = s.repo.GetAppointmentByID(ctx, *ev.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("load linked appointment: %w", err)
		}
		if appt.Status.IsTerminal() {
			return nil, ErrAppointmentFinal
		}
	}

	newStart, newEnd := ev.StartTime, ev.EndTime
	if p.Start != nil {
		newStart = *p.Start
	}
	if p.End != nil {
		newEnd = *p.End
	}
	if !newStart.Before(newEnd) {
		return nil, ErrInvalidInterval
	}

	if p.PatientID != nil {
		patient, err := s.repo.GetPatientByID(ctx, *p.PatientID)
		if err != nil {
			return nil, err
		}
		if patient.PractitionerID != practitionerID {
			return nil, ErrPatientNotFound
		}
	}

	intervalChanged := !newStart.Equal(ev.StartTime) || !newEnd.Equal(ev.EndTime)
	patientChanged := p.PatientID != nil && (ev.PatientID == nil || *ev.PatientID != *p.PatientID)
	titleChanged := p.Title != nil && *p.Title != ev.Title
	if !intervalChanged && !patientChanged && !titleChanged {
		return ev, nil
	}

	apply := func(lockCtx context.Context) error {
		if intervalChanged {
			result, err := s.checker.Check(lockCtx, practitionerID, newStart, newEnd, &ItemRef{Origin: OriginAppointment, RefID: ev.ID})
			if err != nil {
				return fmt.Errorf("conflict check: %w", err)
			}
			if result.Conflict {
				return &ConflictError{Reasons: result.Reasons, Busy: result.Busy}
			}
			ev.StartTime = newStart
			ev.EndTime = newEnd
		}
		if patientChanged {
			ev.PatientID = p.PatientID
		}
		if titleChanged {
			ev.Title = *p.Title
		}

		// The linked appointment follows the event inside the same
		// transaction, so the two views never diverge.
		if appt != nil {
			if intervalChanged {
				appt.StartTime = newStart
				appt.EndTime = newEnd
			}
			if patientChanged {
				appt.PatientID = *p.PatientID
			}
		}

		if err := s.repo.UpdateBooking(lockCtx, ev, appt); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}

		s.logEvent(lockCtx, EventBookingRescheduled, &ev.ID, map[string]any{
			"start": ev.StartTime,
			"end":   ev.EndTime,
		})
		return nil
	}

	if intervalChanged {
		// Lock the day being moved into; vacating the old interval cannot
		// create a conflict for anyone, so the old day needs no lock.
		err = s.locker.WithCalendarLock(ctx, practitionerID, LocalDay(newStart, s.loc), apply)
	} else {
		err = apply(ctx)
	}
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrCalendarBusy
		}
		return nil, err
	}

	s.log.Info("booking rescheduled",
		zap.String("practitioner_id", practitionerID.String()),
		zap.String("event_id", ev.ID.String()),
		zap.Time("start", ev.StartTime),
	)
	return ev, nil
}

// CancelBooking removes the calendar event, freeing the slot. A linked
// appointment is kept as the clinical record with status cancelled.
func (s *Service) CancelBooking(ctx context.Context, practitionerID, eventID uuid.UUID) error {
	ev, err := s.getOwnedEvent(ctx, practitionerID, eventID)
	if err != nil {
		return err
	}

	if err := s.repo.CancelBooking(ctx, ev.ID, ev.AppointmentID); err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}

	s.logEvent(ctx, EventBookingCancelled, &ev.ID, map[string]any{
		"start": ev.StartTime,
		"end":   ev.EndTime,
	})
	s.log.Info("booking cancelled",
		zap.String("practitioner_id", practitionerID.String()),
		zap.String("event_id", ev.ID.String()),
	)
	return nil
}

// DeleteBookings removes the given appointments and their linked events.
// Ids not owned by the caller are silently excluded, not errored.
func (s *Service) DeleteBookings(ctx context.Context, practitionerID uuid.UUID, ids []uuid.UUID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	deleted, err := s.repo.DeleteAppointments(ctx, practitionerID, ids)
	if err != nil {
		return 0, fmt.Errorf("delete appointments: %w", err)
	}
	s.log.Info("bulk delete",
		zap.String("practitioner_id", practitionerID.String()),
		zap.Int("requested", len(ids)),
		zap.Int("deleted", deleted),
	)
	return deleted, nil
}

// UpdateAppointmentStatus moves an open appointment to a terminal clinical
// status (completed, no_show, cancelled, rescheduled).
func (s *Service) UpdateAppointmentStatus(ctx context.Context, practitionerID, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	switch to {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
	default:
		return nil, ErrInvalidStatusTransition
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.PractitionerID != practitionerID {
		return nil, ErrAppointmentNotFound
	}
	if appt.Status.IsTerminal() {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusOpen, to)
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	return updated, nil
}

// GetBooking returns an event with its linked appointment, if any.
func (s *Service) GetBooking(ctx context.Context, practitionerID, eventID uuid.UUID) (*Booking, error) {
	ev, err := s.getOwnedEvent(ctx, practitionerID, eventID)
	if err != nil {
		return nil, err
	}
	b := &Booking{CalendarEvent: ev}
	if ev.AppointmentID != nil {
		appt, err := s.repo.GetAppointmentByID(ctx, *ev.AppointmentID)
		if err != nil {
			return nil, fmt.Errorf("load linked appointment: %w", err)
		}
		b.Appointment = appt
	}
	return b, nil
}

// ListCalendar returns the events and absences intersecting [from, to) for
// calendar rendering.
func (s *Service) ListCalendar(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]CalendarEvent, []Absence, error) {
	if !from.Before(to) {
		return nil, nil, ErrInvalidInterval
	}
	events, err := s.repo.ListEvents(ctx, practitionerID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list events: %w", err)
	}
	absences, err := s.repo.ListAbsences(ctx, practitionerID, from, to)
	if err != nil {
		return nil, nil, fmt.Errorf("list absences: %w", err)
	}
	return events, absences, nil
}

// ReplaceWeeklySchedule swaps the practitioner's entire weekly window set
// in one delete-all-then-insert-all transaction. Incoming windows are
// validated for shape and same-weekday overlap before anything is written.
func (s *Service) ReplaceWeeklySchedule(ctx context.Context, practitionerID uuid.UUID, windows []AvailabilityWindow) error {
	if err := validateWindows(windows); err != nil {
		return err
	}

	for i := range windows {
		windows[i].ID = uuid.New()
		windows[i].PractitionerID = practitionerID
	}

	if err := s.repo.ReplaceWindows(ctx, practitionerID, windows); err != nil {
		return fmt.Errorf("replace windows: %w", err)
	}

	s.logEvent(ctx, EventScheduleReplaced, nil, map[string]any{
		"window_count": len(windows),
	})
	s.log.Info("weekly schedule replaced",
		zap.String("practitioner_id", practitionerID.String()),
		zap.Int("windows", len(windows)),
	)
	return nil
}

// ListWeeklySchedule returns the practitioner's configured windows.
func (s *Service) ListWeeklySchedule(ctx context.Context, practitionerID uuid.UUID) ([]AvailabilityWindow, error) {
	return s.repo.ListWindows(ctx, practitionerID)
}

// CreateAbsence declares a block of unavailability. Existing bookings under
// the absence are left alone; the absence only constrains future bookings.
func (s *Service) CreateAbsence(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, reason *string) (*Absence, error) {
	if !start.Before(end) {
		return nil, ErrInvalidInterval
	}
	a := &Absence{
		ID:             uuid.New(),
		PractitionerID: practitionerID,
		StartTime:      start,
		EndTime:        end,
		Reason:         reason,
	}
	created, err := s.repo.CreateAbsence(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("create absence: %w", err)
	}
	return created, nil
}

func (s *Service) DeleteAbsence(ctx context.Context, practitionerID, id uuid.UUID) error {
	return s.repo.DeleteAbsence(ctx, practitionerID, id)
}

func (s *Service) ListAbsences(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Absence, error) {
	if !from.Before(to) {
		return nil, ErrInvalidInterval
	}
	return s.repo.ListAbsences(ctx, practitionerID, from, to)
}

func (s *Service) getOwnedEvent(ctx context.Context, practitionerID, eventID uuid.UUID) (*CalendarEvent, error) {
	ev, err := s.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.PractitionerID != practitionerID {
		return nil, ErrEventNotFound
	}
	return ev, nil
}

func validateWindows(windows []AvailabilityWindow) error {
	perDay := make(map[int][]AvailabilityWindow)
	for _, w := range windows {
		if w.Weekday < 0 || w.Weekday > 6 {
			return ErrInvalidWindow
		}
		if w.StartMinute < 0 || w.EndMinute > 24*60 || w.StartMinute >= w.EndMinute {
			return ErrInvalidWindow
		}
		perDay[w.Weekday] = append(perDay[w.Weekday], w)
	}
	for _, day := range perDay {
		for i, a := range day {
			for _, b := range day[i+1:] {
				if a.StartMinute < b.EndMinute && b.StartMinute < a.EndMinute {
					return ErrWindowOverlap
				}
			}
		}
	}
	return nil
}

func (s *Service) logEvent(ctx context.Context, eventType string, eventID *uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal audit payload failed", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType: eventType,
		EventID:   eventID,
		Payload:   data,
		CreatedAt: time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("insert audit event failed", zap.String("event_type", eventType), zap.Error(err))
	}
}
