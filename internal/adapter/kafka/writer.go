package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/selection"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of kafkago.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// SelectionWriter publishes selection changes to a Kafka topic.
// It implements selection.Sink.
type SelectionWriter struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSelectionWriter creates an async producer for the configured selection
// topic. Publish never blocks the session loop on the broker; delivery
// failures are logged and counted from the completion callback.
func NewSelectionWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *SelectionWriter {
	sw := &SelectionWriter{logger: logger, metrics: metrics}
	sw.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaSelectionTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   sw.complete,
	}
	return sw
}

// Publish enqueues one selection event keyed by session id.
func (w *SelectionWriter) Publish(ctx context.Context, ev selection.Event) error {
	msg, err := serializeToMessage(ev)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write selection event: %w", err)
	}
	return nil
}

func (w *SelectionWriter) complete(msgs []kafkago.Message, err error) {
	if err == nil {
		return
	}
	w.metrics.SelectionPublishErrors.Add(float64(len(msgs)))
	w.logger.Error("selection delivery failed", "messages", len(msgs), "error", err)
}

func (w *SelectionWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a selection event into a Kafka message.
func serializeToMessage(ev selection.Event) (kafkago.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize selection event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(ev.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "kind", Value: []byte(ev.Kind)},
			{Key: "selected_at", Value: []byte(ev.SelectedAt.Format(time.RFC3339))},
		},
	}, nil
}
