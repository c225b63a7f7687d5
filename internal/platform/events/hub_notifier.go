package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/seva/seva/internal/platform/websocket"
)

// TopicForProvider returns the WebSocket topic carrying one provider's queue.
func TopicForProvider(providerID string) string {
	return "queue." + providerID
}

// TopicUnassigned carries events with no provider, such as emergency arrivals
// awaiting assignment.
const TopicUnassigned = "queue.unassigned"

// HubNotifier broadcasts queue events over the WebSocket hub. Events with a
// provider go to that provider's topic; events without one go to every
// connected client so any station can react to an unassigned emergency.
type HubNotifier struct {
	hub    *websocket.Hub
	logger zerolog.Logger
}

func NewHubNotifier(hub *websocket.Hub, logger zerolog.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

func (n *HubNotifier) Emit(_ context.Context, ev Event) error {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	wsEvent := websocket.Event{
		Type:      ev.Type,
		EntryID:   ev.EntryID.String(),
		Timestamp: ts,
		Data:      payloadJSON(ev),
	}

	if ev.ProviderID == nil {
		wsEvent.Topic = TopicUnassigned
		n.hub.BroadcastAll(wsEvent)
	} else {
		wsEvent.Topic = TopicForProvider(ev.ProviderID.String())
		n.hub.Broadcast(wsEvent.Topic, wsEvent)
	}

	n.logger.Debug().
		Str("event_type", ev.Type).
		Str("entry_id", ev.EntryID.String()).
		Str("topic", wsEvent.Topic).
		Msg("queue event broadcast")

	return nil
}
