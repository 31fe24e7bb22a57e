package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/listing-etl/internal/config"
	"github.com/couchcryptid/listing-etl/internal/domain"
	"github.com/couchcryptid/listing-etl/internal/observability"
)

// messageWriter is the part of *kafkago.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes the reconciled dataset to a Kafka topic, one message per
// record keyed by listing id. It implements pipeline.Sink.
type Writer struct {
	writer  messageWriter
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return newWriter(w, clock, metrics, logger)
}

func newWriter(w messageWriter, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Writer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{writer: w, clock: clock, metrics: metrics, logger: logger}
}

// Export serializes every record and publishes them in a single
// WriteMessages call. Records with the same id always land on the same
// partition, so consumers can compact the topic to the latest state.
func (w *Writer) Export(ctx context.Context, records []domain.GeocodedProperty) error {
	if len(records) == 0 {
		return nil
	}
	publishedAt := w.clock.Now().UTC()
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(records[i], publishedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish records: %w", err)
	}
	w.metrics.RecordsPublished.Add(float64(len(msgs)))
	w.logger.Info("records published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a record into a Kafka message. The value uses
// the same JSON layout as the store file.
func serializeToMessage(record domain.GeocodedProperty, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize property %s: %w", record.ID, err)
	}
	return kafkago.Message{
		Key:   []byte(record.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "on_market", Value: []byte(strconv.FormatBool(record.OnMarket))},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
