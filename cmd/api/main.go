package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/burelanicolas23/24seven/internal/auth"
	"github.com/burelanicolas23/24seven/internal/catalog"
	"github.com/burelanicolas23/24seven/internal/config"
	"github.com/burelanicolas23/24seven/internal/httpx"
	kafkax "github.com/burelanicolas23/24seven/internal/kafka"
	"github.com/burelanicolas23/24seven/internal/kv"
	"github.com/burelanicolas23/24seven/internal/logging"
	"github.com/burelanicolas23/24seven/internal/market"
	"github.com/burelanicolas23/24seven/internal/notify"
	"github.com/burelanicolas23/24seven/internal/orders"
	"github.com/burelanicolas23/24seven/internal/postgres"
	"github.com/burelanicolas23/24seven/internal/redisx"
	"github.com/burelanicolas23/24seven/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// KV store
	var store kv.Store
	switch cfg.StoreBackend {
	case config.BackendRedis:
		rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		store = redisx.NewStore(rdb)
	default:
		store = kv.NewMemory()
	}

	// Ledger
	var ledger orders.Ledger
	switch cfg.LedgerBackend {
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.WithError(err).Fatal("Postgres connect failed")
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			logger.WithError(err).Fatal("Schema setup failed")
		}
		ledger = &orders.Repo{DB: db}
	default:
		ledger = orders.NewMemoryLedger()
	}

	// Kafka producer
	var publisher orders.Publisher = orders.NopPublisher{}
	var prod *kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = kafkax.NewProducer(cfg.KafkaBrokers, 1024, logger)
		prod.Start(ctx)
		publisher = kafkax.NewEventPublisher(prod)
	} else {
		logger.Warn("KAFKA_BROKERS not set, events are dropped")
	}

	cat := catalog.New(store, logger)
	if cfg.SeedCatalog {
		seeded, err := cat.SeedIfEmpty(ctx, catalog.DemoProducts())
		if err != nil {
			logger.WithError(err).Fatal("Catalog seed failed")
		}
		if seeded {
			logger.Info("Seeded demo catalog")
		}
	}

	hub := notify.NewHub(cfg.ServiceName, logger)
	go hub.Run(ctx)
	center := notify.NewCenter(notify.Options{
		Cap:   cfg.NotificationCap,
		TTL:   cfg.NotificationTTL,
		Chime: hub.Chime,
	}, hub, logger)

	app := market.New(market.Deps{
		Sessions:    session.NewStore(store, logger),
		Catalog:     cat,
		Ledger:      ledger,
		Publisher:   publisher,
		Center:      center,
		Sink:        hub,
		Logger:      logger,
		ServiceName: cfg.ServiceName,
		DefaultPrep: cfg.DefaultPrepMinutes,
	})
	go notify.NewRefresher(cfg.RefreshInterval, app, logger).Run(ctx)
	go notify.NewRefresher(cfg.EvictInterval, center, logger).Run(ctx)

	router := httpx.NewRouter(logger)
	h := &httpx.Handler{
		App:    app,
		Issuer: auth.NewIssuer(cfg.JWTSecret, cfg.SessionTTL),
		Hub:    hub,
		Logger: logger,
	}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":   cfg.HTTPAddr,
			"store":  cfg.StoreBackend,
			"ledger": cfg.LedgerBackend,
		}).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Listen failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	cancel()
	if prod != nil {
		prod.Close()
		prod.WaitClosed()
	}
}
