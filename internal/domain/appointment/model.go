package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Status values an appointment moves through. CheckedIn and later states are
// set by the queue, not by booking.
type Status string

const (
	StatusBooked     Status = "booked"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Appointment maps to the appointments table.
type Appointment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	VisitorID      uuid.UUID  `db:"visitor_id" json:"visitor_id"`
	ProviderID     uuid.UUID  `db:"provider_id" json:"provider_id"`
	ScheduledStart time.Time  `db:"scheduled_start" json:"scheduled_start"`
	Status         Status     `db:"status" json:"status"`
	Priority       Priority   `db:"priority" json:"priority"`
	CheckedInAt    *time.Time `db:"checked_in_at" json:"checked_in_at,omitempty"`
	Note           *string    `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Admissible reports whether the appointment can still back a queue check-in.
func (a *Appointment) Admissible() bool {
	return a.Status == StatusBooked || a.Status == StatusConfirmed
}

// ValidStatus reports whether s is a known appointment status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusBooked, StatusConfirmed, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority tag.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
