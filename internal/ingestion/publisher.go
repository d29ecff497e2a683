// Package ingestion handles the NATS boundary: publishing processed
// domain events for downstream indexers and auditors.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mn-coding-cop/EigenLabsTask/internal/observability"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// OutboundPublisher publishes engine outputs to NATS JetStream. Subjects
// follow the pattern escrow.events.{event_type}. Publishing is best-effort:
// a failed publish is logged and skipped, since consumers can always
// rebuild from the Postgres event log.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableEvent
	metrics   *observability.Metrics
	log       zerolog.Logger
}

// PublishableEvent is a processed event ready for outbound publishing.
type PublishableEvent struct {
	Sequence  int64     `json:"sequence"`
	EventType string    `json:"event_type"`
	Payload   any       `json:"payload"`
	StateHash []byte    `json:"state_hash"`
	Timestamp time.Time `json:"timestamp"`
}

func NewOutboundPublisher(
	js jetstream.JetStream,
	inputChan <-chan PublishableEvent,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *OutboundPublisher {
	return &OutboundPublisher{js: js, inputChan: inputChan, metrics: metrics, log: log}
}

// Run starts the outbound publisher loop. Blocks until ctx is cancelled or
// the input channel closes.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, evt); err != nil {
				op.log.Warn().Err(err).Int64("sequence", evt.Sequence).Msg("outbound publish failed")
				continue
			}
			if op.metrics != nil {
				op.metrics.EventsPublished.WithLabelValues(evt.EventType).Inc()
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, evt PublishableEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("escrow.events.%s", evt.EventType)
	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates (or updates) the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "ESCROW_EVENTS",
		Subjects:  []string{"escrow.events.>"},
		Retention: jetstream.LimitsPolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	return nil
}
