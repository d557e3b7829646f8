package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"reliefops/internal/notify"
	"reliefops/internal/platform/config"
	"reliefops/internal/platform/kafka"
	"reliefops/internal/platform/kafka/producer"
)

// newPublisher builds the async notification publisher. Events go to Kafka
// when brokers are configured and to the log otherwise.
func newPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*notify.AsyncPublisher, func(), error) {
	var (
		sink    notify.Sink = notify.NewLogSink(logger)
		cleanup             = func() {}
	)

	if cfg.Kafka.Enabled() {
		if err := kafka.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic,
			cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			return nil, nil, err
		}
		prod, err := producer.New(cfg.Kafka.Brokers)
		if err != nil {
			return nil, nil, err
		}
		sink = notify.NewKafkaSink(prod, cfg.Kafka.NotificationTopic)
		cleanup = prod.Close
		logger.Info("notifications publishing to kafka", "topic", cfg.Kafka.NotificationTopic)
	}

	pub := notify.NewAsyncPublisher(sink,
		notify.WithBufferSize(cfg.Notify.BufferSize),
		notify.WithBatchSize(cfg.Notify.BatchSize),
		notify.WithFlushInterval(cfg.Notify.FlushInterval),
		notify.WithBreaker(notify.NewCircuitBreaker(cfg.Notify.BreakerThreshold, cfg.Notify.BreakerCooldown)),
		notify.WithMetrics(notify.NewMetrics(prometheus.DefaultRegisterer)),
		notify.WithLogger(logger),
	)
	return pub, cleanup, nil
}
