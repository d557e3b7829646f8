// Command notifier consumes the notification topic and fans events out to
// Redis pub/sub channels, one per entity family, for live dashboards.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"reliefops/internal/notify"
	"reliefops/internal/platform/config"
	"reliefops/internal/platform/kafka/consumer"
	"reliefops/internal/platform/logger"
	"reliefops/internal/platform/redis"
)

var families = []string{"shelter", "person", "family_group", "rescue", "emergency_call"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("notifier stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if !cfg.Kafka.Enabled() {
		return errors.New("notifier needs kafka.brokers")
	}

	logSink := notify.NewLogSink(log)
	router := notify.NewRouter(log, logSink)

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
		for _, family := range families {
			channel := cfg.Redis.Channel + "." + family
			router.Register(family, notify.FanOut{logSink, notify.NewRedisSink(client, channel)})
		}
		log.Info("fanning notifications out to redis", "channel_prefix", cfg.Redis.Channel)
	}

	cons, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup,
		[]string{cfg.Kafka.NotificationTopic}, router, log)
	if err != nil {
		return err
	}
	defer cons.Close()

	log.Info("notifier consuming", "topic", cfg.Kafka.NotificationTopic, "group", cfg.Kafka.ConsumerGroup)
	if err := cons.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
