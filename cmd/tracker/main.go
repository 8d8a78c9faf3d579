package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/postgres"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
	"github.com/ariefcatur/go-order-fulfillment/internal/tracker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	cfg.ServiceName += "-tracker"
	log := config.NewLogger(cfg, os.Stdout)

	if err := run(cfg, log); err != nil {
		log.Error("tracker stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	history := postgres.NewHistory(db)
	if err := history.EnsureSchema(ctx); err != nil {
		return err
	}

	rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer rdb.Close()

	svc := &tracker.Service{
		Dedup:   redisx.NewDedup(rdb, cfg.ServiceName),
		Cache:   redisx.NewStatusCache(rdb),
		History: history,
		Log:     log,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.TrackerGroup, orders.TopicOrderStatus, cfg.TrackerWorkers, log)
	log.Info("tracker consuming", "group", cfg.TrackerGroup, "topic", orders.TopicOrderStatus, "workers", cfg.TrackerWorkers)
	return cons.Start(ctx, svc.HandleOrderEvent)
}
