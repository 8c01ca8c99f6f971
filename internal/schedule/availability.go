package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Rejection reasons reported to callers. These are wire-stable strings.
const (
	ReasonOutsideHours    = "outside_hours"
	ReasonCrossesMidnight = "crosses_midnight"
	ReasonOverlapBusy     = "overlap_busy"
)

// ErrInvalidInterval is a caller error (start >= end), not a scheduling
// rejection. It is reported before any persistence access.
var ErrInvalidInterval = errors.New("interval start must be before end")

// WindowSource supplies the configured weekly windows for a practitioner.
type WindowSource interface {
	ListWindowsForWeekday(ctx context.Context, practitionerID uuid.UUID, weekday int) ([]AvailabilityWindow, error)
}

// Evaluator decides whether a candidate interval fits entirely inside one
// configured weekly window. The clinic timezone is fixed at construction;
// every wall-clock projection goes through it.
type Evaluator struct {
	windows WindowSource
	loc     *time.Location
}

func NewEvaluator(windows WindowSource, loc *time.Location) *Evaluator {
	return &Evaluator{windows: windows, loc: loc}
}

func (e *Evaluator) Location() *time.Location {
	return e.loc
}

// Evaluate returns the rejection reason for [start, end), or "" if the
// interval sits inside the practitioner's configured hours. A non-positive
// duration fails with ErrInvalidInterval instead of a reason.
func (e *Evaluator) Evaluate(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) (string, error) {
	if !start.Before(end) {
		return "", ErrInvalidInterval
	}

	// A weekly window is defined per single local day, so a cross-midnight
	// interval has no single-day containment test.
	if CrossesLocalDayBoundary(start, end, e.loc) {
		return ReasonCrossesMidnight, nil
	}

	weekday := LocalWeekday(start, e.loc)
	windows, err := e.windows.ListWindowsForWeekday(ctx, practitionerID, weekday)
	if err != nil {
		return "", fmt.Errorf("load windows for weekday %d: %w", weekday, err)
	}
	if len(windows) == 0 {
		return ReasonOutsideHours, nil
	}

	mStart := LocalMinuteOfDay(start, e.loc)
	mEnd := LocalMinuteOfDay(end, e.loc)

	// The candidate must nest fully in one window. Partial coverage across
	// two adjoining windows (e.g. spanning a lunch break) is rejected.
	for _, w := range windows {
		if mStart >= w.StartMinute && mEnd <= w.EndMinute {
			return "", nil
		}
	}

	return ReasonOutsideHours, nil
}
