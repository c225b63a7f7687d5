package queue

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusWaiting, StatusInProgress},
		{StatusWaiting, StatusCancelled},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusCancelled},
	}
	for _, tt := range allowed {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be allowed", tt.from, tt.to)
		}
	}

	forbidden := []struct{ from, to Status }{
		{StatusInProgress, StatusWaiting},
		{StatusCompleted, StatusWaiting},
		{StatusCompleted, StatusInProgress},
		{StatusCancelled, StatusWaiting},
		{StatusWaiting, StatusCompleted},
		{StatusWaiting, StatusWaiting},
	}
	for _, tt := range forbidden {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("expected %s -> %s to be forbidden", tt.from, tt.to)
		}
	}
}

func TestStatus_Active(t *testing.T) {
	if !StatusWaiting.Active() || !StatusInProgress.Active() {
		t.Error("waiting and in_progress should be active")
	}
	if StatusCompleted.Active() || StatusCancelled.Active() {
		t.Error("completed and cancelled should not be active")
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []Mode{ModeSelf, ModeAssisted, ModeEmergency} {
		if !ValidMode(m) {
			t.Errorf("%s should be valid", m)
		}
	}
	if ValidMode(Mode("drive-through")) {
		t.Error("unknown mode should be invalid")
	}
}

func TestServiceDay(t *testing.T) {
	ts := time.Date(2026, 3, 1, 14, 30, 45, 123, time.UTC)
	day := ServiceDay(ts)
	if day.Hour() != 0 || day.Minute() != 0 || day.Second() != 0 || day.Nanosecond() != 0 {
		t.Errorf("expected midnight, got %v", day)
	}
	if day.Year() != 2026 || day.Month() != time.March || day.Day() != 1 {
		t.Errorf("expected 2026-03-01, got %v", day)
	}

	// Same calendar day, different times, same service day.
	if !ServiceDay(ts.Add(5 * time.Hour)).Equal(day) {
		t.Error("expected same service day for same calendar day")
	}
	if ServiceDay(ts.Add(24 * time.Hour)).Equal(day) {
		t.Error("expected different service day across midnight")
	}
}

func TestRejectionError_Error(t *testing.T) {
	err := rejectInvalidState("appointment status is cancelled")
	got := err.Error()
	if got != "admission rejected (invalid_state): appointment status is cancelled" {
		t.Errorf("unexpected error string: %s", got)
	}
}
