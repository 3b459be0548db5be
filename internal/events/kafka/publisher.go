package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

// Publisher writes events to Kafka as JSON messages. Each event goes to the
// topic named by the caller unless an override topic is configured, in which
// case every event is pinned to that topic.
type Publisher struct {
	writer   *kafka.Writer
	override string
}

func NewPublisher(brokers []string, override string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.LeastBytes{},
		},
		override: override,
	}
}

func (p *Publisher) resolveTopic(topic string) string {
	if p.override != "" {
		return p.override
	}
	return topic
}

func (p *Publisher) Publish(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(
		context.Background(),
		kafka.Message{
			Topic: p.resolveTopic(topic),
			Value: data,
		},
	)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
