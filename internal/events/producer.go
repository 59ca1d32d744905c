// Package events publishes audit events (logins, logouts, filing
// transitions, document verdicts) to Kafka. Publishing is best effort: a
// missing broker degrades to a log line, it never fails the request.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

type Producer struct {
	writer *kafka.Writer
}

func NewProducer(broker, topic string) *Producer {
	if broker == "" {
		return nil
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(broker),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			WriteTimeout: 10 * time.Second,
		},
	}
}

type Event struct {
	Type     string            `json:"type"`
	UserID   string            `json:"userId,omitempty"`
	Subject  string            `json:"subject,omitempty"`
	Detail   map[string]string `json:"detail,omitempty"`
	Occurred time.Time         `json:"occurred"`
}

// Publish writes one audit event. A nil producer is valid and publishes
// nothing.
func (p *Producer) Publish(event Event) {
	if p == nil || p.writer == nil {
		return
	}
	event.Occurred = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("audit event marshal error: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
		Time:  time.Now(),
	}); err != nil {
		log.Printf("audit event publish error: %v", err)
	}
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
