// Package events defines queue lifecycle notifications and the channels that
// carry them. Notification delivery is best-effort: a failed or missing
// subscriber never affects the queue operation that produced the event.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntryAdded        = "queue.entry_added"
	EntryShifted      = "queue.entry_shifted"
	EmergencyAdmitted = "queue.emergency_admitted"
	EntryStarted      = "queue.entry_started"
	EntryCompleted    = "queue.entry_completed"
	EntryCancelled    = "queue.entry_cancelled"
)

// Event describes a single queue change. ProviderID is nil for events that
// concern no particular provider, such as an emergency arrival that has not
// been assigned yet.
type Event struct {
	Type       string
	EntryID    uuid.UUID
	ProviderID *uuid.UUID
	Timestamp  time.Time
	Payload    any
}

// Notifier delivers queue events to interested parties.
type Notifier interface {
	Emit(ctx context.Context, ev Event) error
}

// payloadJSON marshals the event payload, returning nil on failure so a bad
// payload degrades to an event without data rather than no event.
func payloadJSON(ev Event) json.RawMessage {
	if ev.Payload == nil {
		return nil
	}
	data, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil
	}
	return data
}
