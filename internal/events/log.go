package events

import (
	"context"

	"github.com/rs/zerolog"
)

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	evt := p.logger.Info().
		Str("event_id", ev.ID.String()).
		Str("type", ev.Type).
		Str("doctor_id", ev.DoctorID.String())
	if ev.SlotID != nil {
		evt = evt.Str("slot_id", ev.SlotID.String())
	}
	if ev.RequestID != nil {
		evt = evt.Str("request_id", ev.RequestID.String())
	}
	if len(ev.Payload) > 0 {
		evt = evt.Interface("payload", ev.Payload)
	}
	evt.Msg("event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
