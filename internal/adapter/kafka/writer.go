package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/sf-incident-analytics/internal/config"
	"github.com/couchcryptid/sf-incident-analytics/internal/domain"
	"github.com/couchcryptid/sf-incident-analytics/internal/observability"
	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"
)

// batchTimeout bounds how long the producer holds a partial batch.
const batchTimeout = 10 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Writer publishes normalized incidents to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer    messageWriter
	batchSize int
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           batchTimeout,
	}
	return &Writer{writer: w, batchSize: cfg.BatchSize, logger: logger, metrics: metrics, clock: clock}
}

// Publish writes every incident of snap, BatchSize messages per call. Keys
// are incident IDs so re-publishing a snapshot lands on the same partitions.
func (w *Writer) Publish(ctx context.Context, snap *domain.Snapshot) error {
	publishedAt := w.clock.Now().UTC()
	batch := make([]kafkago.Message, 0, w.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := w.writer.WriteMessages(ctx, batch...); err != nil {
			return fmt.Errorf("write batch: %w", err)
		}
		w.metrics.RecordsPublished.Add(float64(len(batch)))
		batch = batch[:0]
		return nil
	}

	for i := range snap.Incidents {
		msg, err := serializeToMessage(snap.ID, &snap.Incidents[i], publishedAt)
		if err != nil {
			return err
		}
		batch = append(batch, msg)
		if len(batch) == w.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	w.logger.Info("snapshot published", "snapshot_id", snap.ID, "records", len(snap.Incidents))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an Incident into a Kafka message.
func serializeToMessage(snapshotID string, inc *domain.Incident, publishedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(inc)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize incident: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(inc.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "snapshot_id", Value: []byte(snapshotID)},
			{Key: "published_at", Value: []byte(publishedAt.Format(time.RFC3339))},
		},
	}, nil
}
