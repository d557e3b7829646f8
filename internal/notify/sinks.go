package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"reliefops/internal/platform/kafka/producer"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(ctx context.Context, events []Event) error {
	for _, ev := range events {
		attrs := []any{
			"event_id", ev.ID,
			"type", string(ev.Type),
			"entity_id", ev.EntityID,
			"occurred_at", ev.OccurredAt,
		}
		if ev.Code != "" {
			attrs = append(attrs, "code", ev.Code)
		}
		if ev.Status != "" {
			attrs = append(attrs, "status", ev.Status)
		}
		if ev.RequestID != "" {
			attrs = append(attrs, "request_id", ev.RequestID)
		}
		for k, v := range ev.Attributes {
			attrs = append(attrs, "attr."+k, v)
		}
		s.logger.InfoContext(ctx, "notification", attrs...)
	}
	return nil
}

// RecordProducer is the slice of the Kafka producer the sink needs.
type RecordProducer interface {
	Publish(ctx context.Context, msgs ...producer.Message) error
}

// KafkaSink publishes events to a topic keyed by entity id, so every event
// for one shelter or operation lands on the same partition in order.
type KafkaSink struct {
	producer RecordProducer
	topic    string
}

func NewKafkaSink(p RecordProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, events []Event) error {
	msgs := make([]producer.Message, 0, len(events))
	for _, ev := range events {
		value, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		msgs = append(msgs, producer.Message{
			Topic: s.topic,
			Key:   []byte(ev.EntityID),
			Value: value,
			Headers: map[string]string{
				HeaderEventType: string(ev.Type),
				HeaderEventID:   ev.ID,
			},
		})
	}
	return s.producer.Publish(ctx, msgs...)
}

const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"
)

// RedisSink publishes events on a pub/sub channel for live dashboards.
type RedisSink struct {
	client  redis.Cmdable
	channel string
}

func NewRedisSink(client redis.Cmdable, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Deliver(ctx context.Context, events []Event) error {
	pipe := s.client.Pipeline()
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		pipe.Publish(ctx, s.channel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// FanOut delivers to every sink and joins their errors.
type FanOut []Sink

func (f FanOut) Name() string { return "fanout" }

func (f FanOut) Deliver(ctx context.Context, events []Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Deliver(ctx, events); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
