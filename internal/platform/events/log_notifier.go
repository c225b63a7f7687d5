package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogNotifier writes queue events to the structured log. It is the delivery
// channel when the WebSocket hub is disabled.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Emit(_ context.Context, ev Event) error {
	e := n.logger.Info().
		Str("event_type", ev.Type).
		Str("entry_id", ev.EntryID.String())
	if ev.ProviderID != nil {
		e = e.Str("provider_id", ev.ProviderID.String())
	}
	e.Msg("queue event")
	return nil
}
