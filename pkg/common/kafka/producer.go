package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/config"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/logger"
	"github.com/meerkat-code/meerkat-abacus/pkg/common/models"
	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(topic string) *Producer {
	cfg := config.Load()
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{writer: writer}
}

// PublishBatch sends a chunk of raw records to the pipeline worker.
func (p *Producer) PublishBatch(ctx context.Context, source string, records []models.RawRecord) error {
	batch := models.RawBatch{
		ID:      uuid.New().String(),
		Source:  source,
		Records: records,
		SentAt:  time.Now().UTC(),
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("failed to marshal batch: %w", err)
	}

	message := kafka.Message{
		Key:   []byte(batch.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(source)},
		},
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		logger.Log.WithError(err).WithFields(map[string]interface{}{
			"batch_id": batch.ID,
			"records":  len(records),
		}).Error("Failed to publish batch")
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"batch_id": batch.ID,
		"records":  len(records),
		"topic":    p.writer.Topic,
	}).Info("Batch published")

	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
