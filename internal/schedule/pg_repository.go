package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner
	var specialty *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	p.Specialty = specialty
	return &p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.PractitionerID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanEvent(row pgx.Row) (*CalendarEvent, error) {
	var e CalendarEvent
	var patientID, appointmentID *uuid.UUID

	err := row.Scan(
		&e.ID,
		&e.PractitionerID,
		&patientID,
		&appointmentID,
		&e.Title,
		&e.StartTime,
		&e.EndTime,
		&e.Source,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	e.PatientID = patientID
	e.AppointmentID = appointmentID
	return &e, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.PatientID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

func scanAbsence(row pgx.Row) (*Absence, error) {
	var a Absence
	var reason *string

	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.StartTime,
		&a.EndTime,
		&reason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAbsenceNotFound
		}
		return nil, err
	}

	a.Reason = reason
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, practitioner_id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListWindows(ctx context.Context, practitionerID uuid.UUID) ([]AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, weekday, start_minute, end_minute
		FROM availability_windows
		WHERE practitioner_id = $1
		ORDER BY weekday, start_minute
	`, practitionerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWindows(rows)
}

func (r *PgRepository) ListWindowsForWeekday(ctx context.Context, practitionerID uuid.UUID, weekday int) ([]AvailabilityWindow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, weekday, start_minute, end_minute
		FROM availability_windows
		WHERE practitioner_id = $1 AND weekday = $2
		ORDER BY start_minute
	`, practitionerID, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectWindows(rows)
}

func collectWindows(rows pgx.Rows) ([]AvailabilityWindow, error) {
	var result []AvailabilityWindow
	for rows.Next() {
		var w AvailabilityWindow
		if err := rows.Scan(&w.ID, &w.PractitionerID, &w.Weekday, &w.StartMinute, &w.EndMinute); err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// ReplaceWindows swaps the whole weekly schedule in one transaction:
// delete-all-then-insert-all, never a diff.
func (r *PgRepository) ReplaceWindows(ctx context.Context, practitionerID uuid.UUID, windows []AvailabilityWindow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM availability_windows WHERE practitioner_id = $1
	`, practitionerID); err != nil {
		return fmt.Errorf("delete windows: %w", err)
	}

	for _, w := range windows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO availability_windows (id, practitioner_id, weekday, start_minute, end_minute)
			VALUES ($1, $2, $3, $4, $5)
		`, w.ID, w.PractitionerID, w.Weekday, w.StartMinute, w.EndMinute); err != nil {
			return fmt.Errorf("insert window: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) CreateAbsence(ctx context.Context, a *Absence) (*Absence, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO absences (id, practitioner_id, start_time, end_time, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, practitioner_id, start_time, end_time, reason, created_at, updated_at
	`, a.ID, a.PractitionerID, a.StartTime, a.EndTime, a.Reason)
	return scanAbsence(row)
}

func (r *PgRepository) DeleteAbsence(ctx context.Context, practitionerID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM absences WHERE id = $1 AND practitioner_id = $2
	`, id, practitionerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAbsenceNotFound
	}
	return nil
}

func (r *PgRepository) ListAbsences(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]Absence, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, start_time, end_time, reason, created_at, updated_at
		FROM absences
		WHERE practitioner_id = $1 AND start_time < $3 AND $2 < end_time
		ORDER BY start_time
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Absence
	for rows.Next() {
		a, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// ListBusy flattens calendar events and absences intersecting [start, end)
// into one ascending list. Always a fresh read of committed state; there is
// no cache in front of this query. The tail of the ORDER BY pins a stable
// order for equal starts.
func (r *PgRepository) ListBusy(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]ScheduledItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT start_time, end_time, origin, ref_id FROM (
			SELECT start_time, end_time, 'appointment' AS origin, id AS ref_id
			FROM calendar_events
			WHERE practitioner_id = $1 AND start_time < $3 AND $2 < end_time
			UNION ALL
			SELECT start_time, end_time, 'absence' AS origin, id AS ref_id
			FROM absences
			WHERE practitioner_id = $1 AND start_time < $3 AND $2 < end_time
		) busy
		ORDER BY start_time, origin, ref_id
	`, practitionerID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduledItem
	for rows.Next() {
		var item ScheduledItem
		if err := rows.Scan(&item.StartTime, &item.EndTime, &item.Origin, &item.RefID); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetEventByID(ctx context.Context, id uuid.UUID) (*CalendarEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, practitioner_id, patient_id, appointment_id, title, start_time, end_time, source, created_at, updated_at
		FROM calendar_events
		WHERE id = $1
	`, id)
	return scanEvent(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, practitioner_id, patient_id, start_time, end_time, status, created_at, updated_at
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListEvents(ctx context.Context, practitionerID uuid.UUID, from, to time.Time) ([]CalendarEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, practitioner_id, patient_id, appointment_id, title, start_time, end_time, source, created_at, updated_at
		FROM calendar_events
		WHERE practitioner_id = $1 AND start_time < $3 AND $2 < end_time
		ORDER BY start_time
	`, practitionerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CalendarEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// InsertBooking writes the appointment and its calendar event in one
// transaction so a partial booking is never observable.
func (r *PgRepository) InsertBooking(ctx context.Context, appt *Appointment, ev *CalendarEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, practitioner_id, patient_id, start_time, end_time, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, practitioner_id, patient_id, start_time, end_time, status, created_at, updated_at
	`, appt.ID, appt.PractitionerID, appt.PatientID, appt.StartTime, appt.EndTime, appt.Status)
	saved, err := scanAppointment(row)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	*appt = *saved

	row = tx.QueryRow(ctx, `
		INSERT INTO calendar_events (id, practitioner_id, patient_id, appointment_id, title, start_time, end_time, source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING id, practitioner_id, patient_id, appointment_id, title, start_time, end_time, source, created_at, updated_at
	`, ev.ID, ev.PractitionerID, ev.PatientID, ev.AppointmentID, ev.Title, ev.StartTime, ev.EndTime, ev.Source)
	savedEv, err := scanEvent(row)
	if err != nil {
		return fmt.Errorf("insert calendar event: %w", err)
	}
	*ev = *savedEv

	return tx.Commit(ctx)
}

// UpdateBooking writes the event and, when linked, its appointment in one
// transaction so the two views never diverge.
func (r *PgRepository) UpdateBooking(ctx context.Context, ev *CalendarEvent, appt *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE calendar_events
		SET patient_id = $2,
		    title = $3,
		    start_time = $4,
		    end_time = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, practitioner_id, patient_id, appointment_id, title, start_time, end_time, source, created_at, updated_at
	`, ev.ID, ev.PatientID, ev.Title, ev.StartTime, ev.EndTime)
	savedEv, err := scanEvent(row)
	if err != nil {
		return fmt.Errorf("update calendar event: %w", err)
	}
	*ev = *savedEv

	if appt != nil {
		row = tx.QueryRow(ctx, `
			UPDATE appointments
			SET patient_id = $2,
			    start_time = $3,
			    end_time = $4,
			    updated_at = now()
			WHERE id = $1
			RETURNING id, practitioner_id, patient_id, start_time, end_time, status, created_at, updated_at
		`, appt.ID, appt.PatientID, appt.StartTime, appt.EndTime)
		saved, err := scanAppointment(row)
		if err != nil {
			return fmt.Errorf("update appointment: %w", err)
		}
		*appt = *saved
	}

	return tx.Commit(ctx)
}

// CancelBooking deletes the event and marks a still-open linked appointment
// cancelled, in one transaction. The clinical record is retained; only the
// calendar slot is freed.
func (r *PgRepository) CancelBooking(ctx context.Context, eventID uuid.UUID, appointmentID *uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		DELETE FROM calendar_events WHERE id = $1
	`, eventID)
	if err != nil {
		return fmt.Errorf("delete calendar event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}

	if appointmentID != nil {
		if _, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2, updated_at = now()
			WHERE id = $1 AND status = $3
		`, *appointmentID, StatusCancelled, StatusOpen); err != nil {
			return fmt.Errorf("cancel appointment: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteAppointments removes the caller's appointments among ids plus their
// linked events. The ownership predicate silently drops foreign ids.
func (r *PgRepository) DeleteAppointments(ctx context.Context, practitionerID uuid.UUID, ids []uuid.UUID) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM calendar_events
		WHERE appointment_id = ANY($1) AND practitioner_id = $2
	`, ids, practitionerID); err != nil {
		return 0, fmt.Errorf("delete linked events: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = ANY($1) AND practitioner_id = $2
	`, ids, practitionerID)
	if err != nil {
		return 0, fmt.Errorf("delete appointments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, practitioner_id, patient_id, start_time, end_time, status, created_at, updated_at
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, event_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.EventID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
