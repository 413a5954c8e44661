package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/burelanicolas23/24seven/internal/config"
	kafkax "github.com/burelanicolas23/24seven/internal/kafka"
	"github.com/burelanicolas23/24seven/internal/logging"
	"github.com/burelanicolas23/24seven/internal/notifier"
	"github.com/burelanicolas23/24seven/internal/notify"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rdb.Close()

	center := notify.NewCenter(notify.Options{
		Cap: cfg.NotificationCap,
		TTL: cfg.NotificationTTL,
	}, notify.LogSink{Logger: logger}, logger)
	go notify.NewRefresher(cfg.EvictInterval, center, logger).Run(ctx)

	svc := &notifier.Service{
		Redis:       rdb,
		Center:      center,
		ServiceName: cfg.ServiceName + "-notifier",
		Logger:      logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.NotifierGroup, orders.TopicOrderStatusChanged, cfg.NotifierWorkers, logger)
	go func() {
		logger.WithFields(logrus.Fields{
			"group":   cfg.NotifierGroup,
			"topic":   orders.TopicOrderStatusChanged,
			"workers": cfg.NotifierWorkers,
		}).Info("Notifier consumer started")
		if err := cons.Start(ctx, svc.HandleStatusChanged); err != nil {
			logger.WithError(err).Error("Consumer exited")
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	logger.Info("Shutting down consumer")
	cancel()
}
