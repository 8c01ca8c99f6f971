package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubWindows serves a fixed weekly schedule for any practitioner.
type stubWindows struct {
	byWeekday map[int][]AvailabilityWindow
	err       error
}

func (s *stubWindows) ListWindowsForWeekday(_ context.Context, _ uuid.UUID, weekday int) ([]AvailabilityWindow, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byWeekday[weekday], nil
}

func window(weekday, startMin, endMin int) AvailabilityWindow {
	return AvailabilityWindow{ID: uuid.New(), Weekday: weekday, StartMinute: startMin, EndMinute: endMin}
}

func TestEvaluator(t *testing.T) {
	saoPaulo := mustLoad(t, "America/Sao_Paulo")
	practitionerID := uuid.New()

	// Monday 09:00-12:00 and 13:00-17:00 (lunch break).
	windows := &stubWindows{byWeekday: map[int][]AvailabilityWindow{
		1: {window(1, 9*60, 12*60), window(1, 13*60, 17*60)},
	}}
	eval := NewEvaluator(windows, saoPaulo)

	monday := func(h, m int) time.Time {
		return time.Date(2026, 1, 5, h, m, 0, 0, saoPaulo)
	}

	t.Run("inside a window", func(t *testing.T) {
		reason, err := eval.Evaluate(context.Background(), practitionerID, monday(10, 0), monday(10, 30))
		require.NoError(t, err)
		assert.Empty(t, reason)
	})

	t.Run("exact window fit", func(t *testing.T) {
		reason, err := eval.Evaluate(context.Background(), practitionerID, monday(9, 0), monday(12, 0))
		require.NoError(t, err)
		assert.Empty(t, reason)
	})

	t.Run("before opening", func(t *testing.T) {
		reason, err := eval.Evaluate(context.Background(), practitionerID, monday(8, 0), monday(8, 30))
		require.NoError(t, err)
		assert.Equal(t, ReasonOutsideHours, reason)
	})

	t.Run("spanning the lunch break is rejected", func(t *testing.T) {
		// 11:45-13:15 touches both windows but nests in neither.
		reason, err := eval.Evaluate(context.Background(), practitionerID, monday(11, 45), monday(13, 15))
		require.NoError(t, err)
		assert.Equal(t, ReasonOutsideHours, reason)
	})

	t.Run("overhanging the window end", func(t *testing.T) {
		reason, err := eval.Evaluate(context.Background(), practitionerID, monday(16, 45), monday(17, 15))
		require.NoError(t, err)
		assert.Equal(t, ReasonOutsideHours, reason)
	})

	t.Run("day without windows", func(t *testing.T) {
		sunday := time.Date(2026, 1, 4, 10, 0, 0, 0, saoPaulo)
		reason, err := eval.Evaluate(context.Background(), practitionerID, sunday, sunday.Add(30*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, ReasonOutsideHours, reason)
	})

	t.Run("crossing midnight is rejected before windows are read", func(t *testing.T) {
		failing := NewEvaluator(&stubWindows{err: errors.New("boom")}, saoPaulo)
		start := monday(23, 50)
		reason, err := failing.Evaluate(context.Background(), practitionerID, start, start.Add(20*time.Minute))
		require.NoError(t, err)
		assert.Equal(t, ReasonCrossesMidnight, reason)
	})

	t.Run("non-positive duration is a caller error", func(t *testing.T) {
		_, err := eval.Evaluate(context.Background(), practitionerID, monday(10, 0), monday(10, 0))
		assert.ErrorIs(t, err, ErrInvalidInterval)

		_, err = eval.Evaluate(context.Background(), practitionerID, monday(10, 30), monday(10, 0))
		assert.ErrorIs(t, err, ErrInvalidInterval)
	})

	t.Run("window source failure propagates", func(t *testing.T) {
		failing := NewEvaluator(&stubWindows{err: errors.New("boom")}, saoPaulo)
		_, err := failing.Evaluate(context.Background(), practitionerID, monday(10, 0), monday(10, 30))
		assert.Error(t, err)
	})
}
