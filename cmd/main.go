package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"abastecimiento/api"
	"abastecimiento/config"
	"abastecimiento/events"
	"abastecimiento/idempotency"
	"abastecimiento/seed"
	"abastecimiento/service"
	"abastecimiento/storage"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting abastecimiento", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.Storage.Driver, cfg.Storage.DataSource(), log)
	if err != nil {
		log.Error("failed to init storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		log.Error("failed to create tables", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.SeedPath != "" {
		cat, err := seed.Cargar(cfg.SeedPath)
		if err != nil {
			log.Error("failed to load seed", slog.String("path", cfg.SeedPath), slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := seed.Aplicar(ctx, store, cat); err != nil {
			log.Error("failed to apply seed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("seed applied", slog.String("path", cfg.SeedPath), slog.String("catalog", cat.String()))
	}

	var idem idempotency.Store = idempotency.NewMemoryStore(idempotency.DefaultTTL)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("failed to connect to redis", slog.String("addr", cfg.Redis.Addr), slog.String("error", err.Error()))
			os.Exit(1)
		}
		idem = idempotency.NewRedisStore(rdb, idempotency.DefaultTTL)
	}

	var pub events.Publisher = events.NewLogPublisher(log)
	if len(cfg.Kafka.Brokers) > 0 {
		pub = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		log.Info("publishing events to kafka", slog.String("topic", cfg.Kafka.Topic))
	}
	defer pub.Close()

	canjes := service.NewCanjeService(store, pub, idem, log)
	compras := service.NewCompraService(store, pub, idem, log)

	server := api.NewAPIServer(api.Options{
		ListenAddr:  cfg.HTTPServer.Address,
		Timeout:     cfg.HTTPServer.Timeout,
		IdleTimeout: cfg.HTTPServer.IdleTimeout,
		RateRPS:     cfg.RateLimit.RPS,
		RateBurst:   cfg.RateLimit.Burst,
		JWTSecret:   cfg.Auth.JWTSecret,
	}, canjes, compras, log)

	if err := server.Run(ctx); err != nil {
		log.Error("server stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
