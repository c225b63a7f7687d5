package appointment

import "testing"

func TestAppointment_Admissible(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusBooked, true},
		{StatusConfirmed, true},
		{StatusCheckedIn, false},
		{StatusInProgress, false},
		{StatusCompleted, false},
		{StatusCancelled, false},
		{StatusNoShow, false},
	}
	for _, tt := range tests {
		a := &Appointment{Status: tt.status}
		if got := a.Admissible(); got != tt.want {
			t.Errorf("Admissible() with status %s = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestValidStatus(t *testing.T) {
	if !ValidStatus(StatusBooked) {
		t.Error("booked should be valid")
	}
	if ValidStatus(Status("teleported")) {
		t.Error("unknown status should be invalid")
	}
}

func TestValidPriority(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent} {
		if !ValidPriority(p) {
			t.Errorf("%s should be valid", p)
		}
	}
	if ValidPriority(Priority("extreme")) {
		t.Error("unknown priority should be invalid")
	}
}
