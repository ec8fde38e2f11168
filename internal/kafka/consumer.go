package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"entree-api/internal/ingest"
	"entree-api/internal/logger"
)

// Consumer reads upstream sync envelopes from the CG sync topic.
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, log: log}
}

// Start consumes until ctx is cancelled, handing each decoded envelope to
// the handler. Malformed messages are logged and dropped; handler errors
// stop the consumer so a broken store is not hammered.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, env ingest.Envelope) error) error {
	c.log.LogKafka("CONSUME", c.reader.Config().Topic, "consumer started")

	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("read message: %w", err)
		}

		var env ingest.Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("dropping malformed message at offset %d: %v", msg.Offset, err))
			continue
		}

		c.log.LogKafka("CONSUME", msg.Topic, fmt.Sprintf("received %s record", env.Type))
		if err := handler(ctx, env); err != nil {
			return fmt.Errorf("handle %s record: %w", env.Type, err)
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
