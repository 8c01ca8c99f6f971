package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BusySource resolves everything already on the calendar for a range.
type BusySource interface {
	ListBusy(ctx context.Context, practitionerID uuid.UUID, start, end time.Time) ([]ScheduledItem, error)
}

// ItemRef identifies one busy item so the event being rescheduled can be
// excluded from its own overlap check.
type ItemRef struct {
	Origin BusyOrigin
	RefID  uuid.UUID
}

// ConflictResult is the accept/reject decision with machine-readable
// reasons. Busy is populated only when the busy-set was actually consulted.
type ConflictResult struct {
	Conflict bool
	Reasons  []string
	Busy     []ScheduledItem
}

// ConflictError carries a ConflictResult across the service boundary as an
// error value.
type ConflictError struct {
	Reasons []string
	Busy    []ScheduledItem
}

func (e *ConflictError) Error() string {
	return "scheduling conflict: " + strings.Join(e.Reasons, ", ")
}

// Checker composes the availability evaluator and the busy-set resolver
// into a single decision.
type Checker struct {
	eval *Evaluator
	busy BusySource
}

func NewChecker(eval *Evaluator, busy BusySource) *Checker {
	return &Checker{eval: eval, busy: busy}
}

// Check evaluates [start, end) for practitionerID. The hours check runs
// first; an out-of-hours request is rejected before the busy-set is read,
// so the caller gets one prioritized reason rather than a combined list.
// exclude, when non-nil, removes the named item from overlap consideration
// (reschedule paths only).
func (c *Checker) Check(ctx context.Context, practitionerID uuid.UUID, start, end time.Time, exclude *ItemRef) (*ConflictResult, error) {
	reason, err := c.eval.Evaluate(ctx, practitionerID, start, end)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return &ConflictResult{Conflict: true, Reasons: []string{reason}}, nil
	}

	busy, err := c.busy.ListBusy(ctx, practitionerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("resolve busy set: %w", err)
	}

	for _, item := range busy {
		if exclude != nil && item.Origin == exclude.Origin && item.RefID == exclude.RefID {
			continue
		}
		if item.Overlaps(start, end) {
			// Full busy list for caller visibility, not just the first hit.
			return &ConflictResult{
				Conflict: true,
				Reasons:  []string{ReasonOverlapBusy},
				Busy:     busy,
			}, nil
		}
	}

	return &ConflictResult{Busy: busy}, nil
}
