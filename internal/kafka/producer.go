package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"entree-api/internal/ingest"
)

// Producer publishes sync reports for records the ingest skipped, so the
// upstream team can see what never made it into the store.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

type skipReport struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Reason    string          `json:"reason"`
	SkippedAt time.Time       `json:"skippedAt"`
}

// ReportSkipped implements ingest.Reporter.
func (p *Producer) ReportSkipped(ctx context.Context, env ingest.Envelope, cause error) error {
	msgBytes, err := json.Marshal(skipReport{
		Type:      env.Type,
		Payload:   env.Payload,
		Reason:    cause.Error(),
		SkippedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx,
		kafka.Message{
			Key:   []byte(env.Type),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
