//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/couchcryptid/sightings-map/internal/adapter/kafka"
	"github.com/couchcryptid/sightings-map/internal/config"
	"github.com/couchcryptid/sightings-map/internal/observability"
	"github.com/couchcryptid/sightings-map/internal/selection"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSelectionTopic = "test-selection"

// receivedMessage holds a deserialized message read from the selection topic.
type receivedMessage struct {
	Event   selection.Event
	Key     string
	Headers map[string]string
}

func readSelection(ctx context.Context, t *testing.T, consumer *kafkago.Reader) receivedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from selection topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var ev selection.Event
	require.NoError(t, json.Unmarshal(msg.Value, &ev), "unmarshal selection message")
	return receivedMessage{Event: ev, Key: string(msg.Key), Headers: headers}
}

// TestSelectionWriter verifies that bridge selections reach Kafka in order,
// keyed by session.
func TestSelectionWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testSelectionTopic)

	cfg := &config.Config{
		KafkaBrokers:        []string{broker},
		KafkaSelectionTopic: testSelectionTopic,
	}
	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewSelectionWriter(cfg, discardLogger(), metrics)

	clock := clockwork.NewFakeClockAt(time.Date(2024, 4, 26, 15, 10, 0, 0, time.UTC))
	bridge := selection.NewBridge("session-1", clock, discardLogger(), metrics)
	bridge.AddSink(writer)

	texas := "Texas"
	bridge.RegionSelected(&texas)
	bridge.PointSelected(42)
	bridge.Reset()
	require.NoError(t, writer.Close(), "flush async writer")

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:   []string{broker},
		Topic:     testSelectionTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  1 << 20,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	first := readSelection(ctx, t, consumer)
	assert.Equal(t, "session-1", first.Key)
	assert.Equal(t, selection.KindRegion, first.Event.Kind)
	require.NotNil(t, first.Event.Region)
	assert.Equal(t, "Texas", *first.Event.Region)
	assert.Equal(t, "region", first.Headers["kind"])
	assert.Equal(t, "2024-04-26T15:10:00Z", first.Headers["selected_at"])

	second := readSelection(ctx, t, consumer)
	assert.Equal(t, selection.KindPoint, second.Event.Kind)
	require.NotNil(t, second.Event.PointID)
	assert.Equal(t, int64(42), *second.Event.PointID)

	third := readSelection(ctx, t, consumer)
	assert.Equal(t, selection.KindReset, third.Event.Kind)
	assert.Nil(t, third.Event.Region)
	assert.Nil(t, third.Event.PointID)
}
