package queue

import (
	"testing"
	"time"
)

var scheduled = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestTimeWindow_InsideWindow(t *testing.T) {
	w := DefaultTimeWindow()

	check := w.Check(scheduled, scheduled.Add(-5*time.Minute))
	if !check.Admissible {
		t.Errorf("expected admissible 5 minutes early, got %s", check.Reason)
	}

	check = w.Check(scheduled, scheduled)
	if !check.Admissible {
		t.Error("expected admissible at scheduled time")
	}

	check = w.Check(scheduled, scheduled.Add(10*time.Minute))
	if !check.Admissible {
		t.Errorf("expected admissible 10 minutes late, got %s", check.Reason)
	}
}

func TestTimeWindow_InclusiveBounds(t *testing.T) {
	w := DefaultTimeWindow()

	// Exactly 20 minutes before: admissible.
	check := w.Check(scheduled, scheduled.Add(-20*time.Minute))
	if !check.Admissible {
		t.Errorf("expected admissible at -20m exactly, got %s", check.Reason)
	}

	// One second earlier: too early.
	check = w.Check(scheduled, scheduled.Add(-20*time.Minute-time.Second))
	if check.Admissible || check.Reason != ReasonTooEarly {
		t.Errorf("expected too_early at -20m-1s, got admissible=%v reason=%s", check.Admissible, check.Reason)
	}

	// Exactly 15 minutes after: admissible.
	check = w.Check(scheduled, scheduled.Add(15*time.Minute))
	if !check.Admissible {
		t.Errorf("expected admissible at +15m exactly, got %s", check.Reason)
	}

	// One second later: too late.
	check = w.Check(scheduled, scheduled.Add(15*time.Minute+time.Second))
	if check.Admissible || check.Reason != ReasonTooLate {
		t.Errorf("expected too_late at +15m+1s, got admissible=%v reason=%s", check.Admissible, check.Reason)
	}
}

func TestTimeWindow_ReportsBounds(t *testing.T) {
	w := DefaultTimeWindow()
	check := w.Check(scheduled, scheduled.Add(-30*time.Minute))

	wantOpens := scheduled.Add(-20 * time.Minute)
	wantCloses := scheduled.Add(15 * time.Minute)
	if !check.OpensAt.Equal(wantOpens) {
		t.Errorf("expected opens at %v, got %v", wantOpens, check.OpensAt)
	}
	if !check.ClosesAt.Equal(wantCloses) {
		t.Errorf("expected closes at %v, got %v", wantCloses, check.ClosesAt)
	}
}

func TestTimeWindow_TenOClockScenario(t *testing.T) {
	w := DefaultTimeWindow()
	appt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// 9:39 is one minute before the window opens at 9:40.
	check := w.Check(appt, time.Date(2026, 3, 1, 9, 39, 0, 0, time.UTC))
	if check.Admissible || check.Reason != ReasonTooEarly {
		t.Errorf("expected too_early at 9:39, got admissible=%v", check.Admissible)
	}
	if check.OpensAt.Hour() != 9 || check.OpensAt.Minute() != 40 {
		t.Errorf("expected window opening 9:40, got %v", check.OpensAt)
	}

	// 9:41 is inside.
	check = w.Check(appt, time.Date(2026, 3, 1, 9, 41, 0, 0, time.UTC))
	if !check.Admissible {
		t.Errorf("expected admissible at 9:41, got %s", check.Reason)
	}
}

func TestTimeWindow_CustomWindow(t *testing.T) {
	w := TimeWindow{Before: 10 * time.Minute, After: 5 * time.Minute}

	check := w.Check(scheduled, scheduled.Add(-15*time.Minute))
	if check.Admissible {
		t.Error("expected too_early with a 10-minute lead window")
	}
	check = w.Check(scheduled, scheduled.Add(-10*time.Minute))
	if !check.Admissible {
		t.Error("expected admissible at custom window open")
	}
}
