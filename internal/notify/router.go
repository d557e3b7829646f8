package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"reliefops/internal/platform/kafka/consumer"
)

// Router decodes events consumed from the notification topic and hands each
// to the sink registered for its family ("shelter", "rescue", ...).
type Router struct {
	sinks    map[string]Sink
	fallback Sink
	logger   *slog.Logger
}

// NewRouter creates a router with an optional fallback sink.
func NewRouter(logger *slog.Logger, fallback Sink) *Router {
	return &Router{
		sinks:    make(map[string]Sink),
		fallback: fallback,
		logger:   logger,
	}
}

// Register routes every event whose type starts with family+"." to sink.
func (r *Router) Register(family string, sink Sink) {
	r.sinks[family] = sink
}

// Handle implements consumer.Handler. Undecodable messages are logged and
// skipped so they do not block the partition.
func (r *Router) Handle(ctx context.Context, msg *consumer.Message) error {
	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		r.logger.WarnContext(ctx, "skipping undecodable notification",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}

	sink, ok := r.sinks[Family(ev.Type)]
	if !ok {
		if r.fallback == nil {
			r.logger.DebugContext(ctx, "no sink for notification, skipping",
				"type", string(ev.Type),
				"event_id", ev.ID,
			)
			return nil
		}
		sink = r.fallback
	}
	return sink.Deliver(ctx, []Event{ev})
}

// Family returns the entity part of an event type.
func Family(t EventType) string {
	family, _, _ := strings.Cut(string(t), ".")
	return family
}
