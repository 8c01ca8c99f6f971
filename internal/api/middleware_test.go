package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicboard/clinic-scheduling/internal/schedule"
)

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("generates an id when absent", func(t *testing.T) {
		var seen string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("keeps a provided id", func(t *testing.T) {
		var seen string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "abc-123", seen)
	})
}

func TestPractitionerMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("missing header is unauthorized", func(t *testing.T) {
		rec := httptest.NewRecorder()
		PractitionerMiddleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Practitioner-ID", "not-a-uuid")
		rec := httptest.NewRecorder()
		PractitionerMiddleware(next).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid header reaches the handler", func(t *testing.T) {
		id := uuid.New()
		var seen uuid.UUID
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetPractitionerID(r.Context())
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Practitioner-ID", id.String())
		PractitionerMiddleware(inner).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, id, seen)
	})
}

func TestHandleServiceError(t *testing.T) {
	t.Run("conflict carries reasons and busy list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleServiceError(rec, &schedule.ConflictError{
			Reasons: []string{schedule.ReasonOverlapBusy},
			Busy: []schedule.ScheduledItem{
				{Origin: schedule.OriginAppointment, RefID: uuid.New()},
			},
		})

		assert.Equal(t, http.StatusConflict, rec.Code)

		var resp ConflictResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "scheduling_conflict", resp.Error)
		assert.Equal(t, []string{schedule.ReasonOverlapBusy}, resp.Reasons)
		assert.Len(t, resp.Busy, 1)
	})

	t.Run("status mapping", func(t *testing.T) {
		cases := []struct {
			err  error
			code int
		}{
			{schedule.ErrInvalidInterval, http.StatusBadRequest},
			{schedule.ErrTitleRequired, http.StatusBadRequest},
			{schedule.ErrPatientNotFound, http.StatusNotFound},
			{schedule.ErrEventNotFound, http.StatusNotFound},
			{schedule.ErrAppointmentFinal, http.StatusConflict},
			{schedule.ErrCalendarBusy, http.StatusConflict},
			{assert.AnError, http.StatusInternalServerError},
		}

		for _, tc := range cases {
			rec := httptest.NewRecorder()
			handleServiceError(rec, tc.err)
			assert.Equal(t, tc.code, rec.Code, "error %v", tc.err)
		}
	})

	t.Run("internal failures stay opaque", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handleServiceError(rec, assert.AnError)

		var resp ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "internal_error", resp.Error)
		assert.NotContains(t, resp.Details, assert.AnError.Error())
	})
}
