// Package events publishes completed pricing runs to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/atmx/option-engine/internal/model"
)

// TypeRunCompleted is the event type carried by every run message.
const TypeRunCompleted = "run_completed"

// RunEvent is the JSON envelope written for a completed run. The WebSocket
// hub broadcasts the same envelope.
type RunEvent struct {
	Type string            `json:"type"`
	Run  *model.PricingRun `json:"run"`
}

// Publisher emits run events.
type Publisher interface {
	PublishRun(ctx context.Context, run *model.PricingRun) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishRun(context.Context, *model.PricingRun) error { return nil }
func (NopPublisher) Close() error                                      { return nil }

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes run events to a Kafka topic. Messages are keyed by
// the run key so repeated seeded runs land on the same partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// KafkaConfig configures a KafkaPublisher.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	MaxRetries int
}

// NewKafkaPublisher creates a publisher backed by a kafka-go Writer.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("events: no kafka brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("events: no kafka topic configured")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            cfg.MaxRetries,
		WriteBackoffMin:        100 * time.Millisecond,
		WriteBackoffMax:        time.Second,
	}
	slog.Info("kafka publisher created", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return newKafkaPublisher(w, cfg.Topic), nil
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// PublishRun writes one run_completed message.
func (p *KafkaPublisher) PublishRun(ctx context.Context, run *model.PricingRun) error {
	data, err := json.Marshal(RunEvent{Type: TypeRunCompleted, Run: run})
	if err != nil {
		return fmt.Errorf("events: marshal run %s: %w", run.ID, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(run.Key),
		Value: data,
		Time:  run.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("events: publish run %s to %s: %w", run.ID, p.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
