// Package kafka publishes job completion events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/events"
	"github.com/ndewijer/Portfolio-Valuation-Backend/internal/model"
)

// Publisher writes events with a kafka-go Writer.
type Publisher struct {
	writer *kafka.Writer
}

var _ events.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher for topic on the given brokers.
func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

// PublishJobCompleted implements events.Publisher. Messages are keyed by job id.
func (p *Publisher) PublishJobCompleted(ctx context.Context, job model.BatchJobRecord) error {
	msg, err := jobCompletedMessage(job)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish job completed event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func jobCompletedMessage(job model.BatchJobRecord) (kafka.Message, error) {
	data, err := json.Marshal(events.NewJobCompleted(job))
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode job completed event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(job.JobID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "job_type", Value: []byte(job.JobType)},
		},
	}, nil
}
