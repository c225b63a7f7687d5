package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seva/seva/internal/domain/appointment"
)

// Status of a live queue entry. Transitions run one way only: Waiting to
// InProgress to Completed, or Waiting/InProgress to Cancelled.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Active reports whether the status keeps the entry in the live queue.
func (s Status) Active() bool {
	return s == StatusWaiting || s == StatusInProgress
}

// CanTransition reports whether from -> to is a legal entry transition.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusWaiting:
		return to == StatusInProgress || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// Mode is the admission path a request arrived through.
type Mode string

const (
	ModeSelf      Mode = "self"
	ModeAssisted  Mode = "assisted"
	ModeEmergency Mode = "emergency"
)

// ValidMode reports whether m is a known admission mode.
func ValidMode(m Mode) bool {
	return m == ModeSelf || m == ModeAssisted || m == ModeEmergency
}

// RejectionReason classifies why an admission attempt was refused.
type RejectionReason string

const (
	ReasonTooEarly      RejectionReason = "too_early"
	ReasonTooLate       RejectionReason = "too_late"
	ReasonAlreadyQueued RejectionReason = "already_queued"
	ReasonNotFound      RejectionReason = "not_found"
	ReasonInvalidState  RejectionReason = "invalid_state"
)

// RejectionError is returned for every refused admission. Beyond the reason it
// carries the data the caller needs to act: window bounds for time rejections,
// the existing entry's location for duplicates.
type RejectionError struct {
	Reason  RejectionReason
	Message string

	// Populated for too_early / too_late.
	WindowOpensAt  *time.Time
	WindowClosesAt *time.Time

	// Populated for already_queued.
	ExistingEntryID    *uuid.UUID
	ExistingProviderID *uuid.UUID
	ExistingPosition   *int
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("admission rejected (%s): %s", e.Reason, e.Message)
}

func rejectWindow(check WindowCheck) *RejectionError {
	msg := fmt.Sprintf("check-in window is %s to %s",
		check.OpensAt.Format(time.RFC3339), check.ClosesAt.Format(time.RFC3339))
	return &RejectionError{
		Reason:         check.Reason,
		Message:        msg,
		WindowOpensAt:  &check.OpensAt,
		WindowClosesAt: &check.ClosesAt,
	}
}

func rejectDuplicate(existing *Entry) *RejectionError {
	e := &RejectionError{
		Reason:           ReasonAlreadyQueued,
		Message:          fmt.Sprintf("visitor already has an active queue entry at position %d", existing.Position),
		ExistingEntryID:  &existing.ID,
		ExistingPosition: &existing.Position,
	}
	if existing.ProviderID != nil {
		e.ExistingProviderID = existing.ProviderID
	}
	return e
}

func rejectNotFound(what string) *RejectionError {
	return &RejectionError{Reason: ReasonNotFound, Message: what + " not found"}
}

func rejectInvalidState(msg string) *RejectionError {
	return &RejectionError{Reason: ReasonInvalidState, Message: msg}
}

// Entry maps to the queue_entries table. ProviderID is nil only for an
// unassigned emergency; AppointmentID is nil for walk-in emergencies.
type Entry struct {
	ID               uuid.UUID            `db:"id" json:"id"`
	AppointmentID    *uuid.UUID           `db:"appointment_id" json:"appointment_id,omitempty"`
	VisitorID        uuid.UUID            `db:"visitor_id" json:"visitor_id"`
	ProviderID       *uuid.UUID           `db:"provider_id" json:"provider_id,omitempty"`
	ServiceDay       time.Time            `db:"service_day" json:"service_day"`
	Position         int                  `db:"position" json:"position"`
	Status           Status               `db:"status" json:"status"`
	Priority         appointment.Priority `db:"priority" json:"priority"`
	EstimatedWaitMin int                  `db:"estimated_wait_min" json:"estimated_wait_min"`
	Mode             Mode                 `db:"mode" json:"mode"`
	CheckedInAt      time.Time            `db:"checked_in_at" json:"checked_in_at"`
	AssistedBy       *uuid.UUID           `db:"assisted_by" json:"assisted_by,omitempty"`
	Location         *string              `db:"location" json:"location,omitempty"`
	Note             *string              `db:"note" json:"note,omitempty"`
	CreatedAt        time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time            `db:"updated_at" json:"updated_at"`
}

// AdmitRequest is one admission attempt entering the state machine.
type AdmitRequest struct {
	AppointmentID *uuid.UUID `json:"appointment_id,omitempty"`
	VisitorID     uuid.UUID  `json:"visitor_id"`
	ProviderID    *uuid.UUID `json:"provider_id,omitempty"`
	Mode          Mode       `json:"mode"`
	AssistedBy    *uuid.UUID `json:"assisted_by,omitempty"`
	Location      *string    `json:"location,omitempty"`
	Note          *string    `json:"note,omitempty"`
}

// AdmitResult is the successful outcome of an admission.
type AdmitResult struct {
	Entry                *Entry `json:"entry"`
	Position             int    `json:"position"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

// ServiceDay normalizes a timestamp to the calendar day queues are scoped to.
func ServiceDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
