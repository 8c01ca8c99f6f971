package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisclient "github.com/clinicboard/clinic-scheduling/internal/redis"
	"github.com/clinicboard/clinic-scheduling/internal/schedule"
)

func freeBusyHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, end, ok := parseRange(w, r, "start", "end")
		if !ok {
			return
		}

		result, err := svc.CheckFreeBusy(r.Context(), GetPractitionerID(r.Context()), start, end)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, FreeBusyResponse{
			Conflict: result.Conflict,
			Reasons:  result.Reasons,
			Busy:     toBusyItems(result.Busy),
		})
	}
}

func calendarHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, ok := parseRange(w, r, "from", "to")
		if !ok {
			return
		}

		events, absences, err := svc.ListCalendar(r.Context(), GetPractitionerID(r.Context()), from, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := CalendarResponse{
			Events:   make([]EventResponse, 0, len(events)),
			Absences: make([]AbsenceResponse, 0, len(absences)),
		}
		for i := range events {
			resp.Events = append(resp.Events, toEventResponse(&events[i]))
		}
		for i := range absences {
			resp.Absences = append(resp.Absences, toAbsenceResponse(&absences[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createBookingHandler(svc *schedule.Service, visitLen time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		if req.Start.IsZero() {
			writeError(w, http.StatusBadRequest, "invalid_start", "start is required")
			return
		}

		end := req.Start.Add(visitLen)
		if req.End != nil {
			end = *req.End
		}

		booking, err := svc.CreateBooking(r.Context(), GetPractitionerID(r.Context()), patientID, req.Start, end, req.Title)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		apptID := booking.Appointment.ID
		writeJSON(w, http.StatusCreated, BookingResponse{
			AppointmentID: &apptID,
			EventID:       booking.CalendarEvent.ID,
			Event:         toEventResponse(booking.CalendarEvent),
		})
	}
}

func getBookingHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, ok := parseIDParam(w, r, "eventID")
		if !ok {
			return
		}

		booking, err := svc.GetBooking(r.Context(), GetPractitionerID(r.Context()), eventID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := BookingResponse{
			EventID: booking.CalendarEvent.ID,
			Event:   toEventResponse(booking.CalendarEvent),
		}
		if booking.Appointment != nil {
			apptID := booking.Appointment.ID
			resp.AppointmentID = &apptID
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func rescheduleBookingHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, ok := parseIDParam(w, r, "eventID")
		if !ok {
			return
		}

		var req RescheduleBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		params := schedule.RescheduleParams{
			Start: req.Start,
			End:   req.End,
			Title: req.Title,
		}
		if req.PatientID != nil {
			patientID, err := uuid.Parse(*req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			params.PatientID = &patientID
		}

		ev, err := svc.RescheduleBooking(r.Context(), GetPractitionerID(r.Context()), eventID, params)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toEventResponse(ev))
	}
}

func cancelBookingHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, ok := parseIDParam(w, r, "eventID")
		if !ok {
			return
		}

		if err := svc.CancelBooking(r.Context(), GetPractitionerID(r.Context()), eventID); err != nil {
			handleServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func bulkDeleteHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkDeleteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		ids := make([]uuid.UUID, 0, len(req.AppointmentIDs))
		for _, raw := range req.AppointmentIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointment_ids must be valid UUIDs")
				return
			}
			ids = append(ids, id)
		}

		deleted, err := svc.DeleteBookings(r.Context(), GetPractitionerID(r.Context()), ids)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, BulkDeleteResponse{Deleted: deleted})
	}
}

func updateStatusHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.UpdateAppointmentStatus(r.Context(), GetPractitionerID(r.Context()), id, schedule.AppointmentStatus(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentResponse{
			ID:        appt.ID,
			PatientID: appt.PatientID,
			Start:     appt.StartTime,
			End:       appt.EndTime,
			Status:    string(appt.Status),
		})
	}
}

func replaceScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReplaceScheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		windows := make([]schedule.AvailabilityWindow, 0, len(req.Windows))
		for _, p := range req.Windows {
			windows = append(windows, schedule.AvailabilityWindow{
				Weekday:     p.Weekday,
				StartMinute: p.StartMinute,
				EndMinute:   p.EndMinute,
			})
		}

		if err := svc.ReplaceWeeklySchedule(r.Context(), GetPractitionerID(r.Context()), windows); err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ScheduleResponse{Windows: req.Windows})
	}
}

func getScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		windows, err := svc.ListWeeklySchedule(r.Context(), GetPractitionerID(r.Context()))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := ScheduleResponse{Windows: make([]WindowPayload, 0, len(windows))}
		for _, win := range windows {
			resp.Windows = append(resp.Windows, WindowPayload{
				Weekday:     win.Weekday,
				StartMinute: win.StartMinute,
				EndMinute:   win.EndMinute,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createAbsenceHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAbsenceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		a, err := svc.CreateAbsence(r.Context(), GetPractitionerID(r.Context()), req.Start, req.End, req.Reason)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAbsenceResponse(a))
	}
}

func listAbsencesHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, to, ok := parseRange(w, r, "from", "to")
		if !ok {
			return
		}

		absences, err := svc.ListAbsences(r.Context(), GetPractitionerID(r.Context()), from, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]AbsenceResponse, 0, len(absences))
		for i := range absences {
			resp = append(resp, toAbsenceResponse(&absences[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func deleteAbsenceHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		if err := svc.DeleteAbsence(r.Context(), GetPractitionerID(r.Context()), id); err != nil {
			handleServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Helpers

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseRange(w http.ResponseWriter, r *http.Request, startKey, endKey string) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, r.URL.Query().Get(startKey))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+startKey, startKey+" must be RFC3339")
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get(endKey))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+endKey, endKey+" must be RFC3339")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func handleServiceError(w http.ResponseWriter, err error) {
	var conflict *schedule.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Error:   "scheduling_conflict",
			Reasons: conflict.Reasons,
			Busy:    toBusyItems(conflict.Busy),
		})
		return
	}

	switch {
	case errors.Is(err, schedule.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, "invalid_interval", err.Error())
	case errors.Is(err, schedule.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, "title_required", err.Error())
	case errors.Is(err, schedule.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "invalid_window", err.Error())
	case errors.Is(err, schedule.ErrWindowOverlap):
		writeError(w, http.StatusBadRequest, "window_overlap", err.Error())
	case errors.Is(err, schedule.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, schedule.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event_not_found", err.Error())
	case errors.Is(err, schedule.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrAbsenceNotFound):
		writeError(w, http.StatusNotFound, "absence_not_found", err.Error())
	case errors.Is(err, schedule.ErrAppointmentFinal):
		writeError(w, http.StatusConflict, "appointment_final", err.Error())
	case errors.Is(err, schedule.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrCalendarBusy),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "calendar_busy", "calendar is currently being modified, please retry shortly")
	default:
		// Infrastructure failures stay opaque to the caller.
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
