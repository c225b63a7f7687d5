package queue

import "time"

// TimeWindow bounds how far from the scheduled start a check-in is accepted.
type TimeWindow struct {
	Before time.Duration
	After  time.Duration
}

// DefaultTimeWindow admits from 20 minutes before to 15 minutes after the
// scheduled start.
func DefaultTimeWindow() TimeWindow {
	return TimeWindow{Before: 20 * time.Minute, After: 15 * time.Minute}
}

// WindowCheck is the outcome of validating "now" against an appointment's
// check-in window. OpensAt and ClosesAt are always populated so callers can
// tell the visitor how long to wait or that the slot expired.
type WindowCheck struct {
	Admissible bool
	Reason     RejectionReason
	OpensAt    time.Time
	ClosesAt   time.Time
}

// Check validates now against the window around scheduledStart. Both bounds
// are inclusive: a check-in at exactly OpensAt or exactly ClosesAt is
// admissible.
func (w TimeWindow) Check(scheduledStart, now time.Time) WindowCheck {
	opens := scheduledStart.Add(-w.Before)
	closes := scheduledStart.Add(w.After)

	check := WindowCheck{OpensAt: opens, ClosesAt: closes}
	switch {
	case now.Before(opens):
		check.Reason = ReasonTooEarly
	case now.After(closes):
		check.Reason = ReasonTooLate
	default:
		check.Admissible = true
	}
	return check
}
