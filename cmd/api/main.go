package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	metrics "github.com/rcrowley/go-metrics"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-order-fulfillment/internal/config"
	"github.com/ariefcatur/go-order-fulfillment/internal/fulfillment"
	"github.com/ariefcatur/go-order-fulfillment/internal/httpx"
	"github.com/ariefcatur/go-order-fulfillment/internal/inventory"
	kafkax "github.com/ariefcatur/go-order-fulfillment/internal/kafka"
	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
	"github.com/ariefcatur/go-order-fulfillment/internal/payment"
	"github.com/ariefcatur/go-order-fulfillment/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := config.NewLogger(cfg, os.Stdout)

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Inventory
	seed := inventory.DefaultSeed()
	if cfg.InventorySeed != "" {
		var err error
		if seed, err = inventory.LoadSeed(cfg.InventorySeed); err != nil {
			return err
		}
	}
	ledger := inventory.NewLedger(inventory.WithLogger(log), inventory.WithNotifyBuffer(cfg.NotifyBuffer))
	defer ledger.Close()
	if err := ledger.Seed(seed); err != nil {
		return err
	}

	// Orders
	store := orders.NewStore(orders.WithLogger(log), orders.WithNotifyBuffer(cfg.NotifyBuffer))
	defer store.Close()
	if cfg.DemoOrders {
		for _, o := range orders.DemoOrders(time.Now().UTC()) {
			if _, err := store.Import(o); err != nil {
				return err
			}
		}
		log.Info("demo orders loaded")
	}

	// Payments: simulator behind a breaker behind retries
	sim := payment.NewSimulator(
		payment.WithLogger(log),
		payment.WithLatency(cfg.PaymentLatency),
		payment.WithSuccessRate(cfg.PaymentSuccessRate),
		payment.WithGatewayErrorRate(cfg.PaymentGatewayErrorRate),
	)
	breaker := payment.NewBreaker(sim, payment.BreakerSettings{Name: "payment-gateway"})
	gateway := payment.NewRetrying(breaker, payment.DefaultRetryPolicy())

	registry := metrics.NewRegistry()
	saga := fulfillment.New(store, ledger, gateway,
		fulfillment.WithLogger(log),
		fulfillment.WithMetrics(fulfillment.NewMetrics(registry)),
		fulfillment.WithStages(fulfillment.StageDelays(cfg.PickingDelay, cfg.PackedDelay, cfg.ShippedDelay, cfg.DeliveredDelay)),
	)
	svc := fulfillment.NewService(store, ledger, saga, log)

	ordersHandler := &httpx.OrdersHandler{Service: svc, Log: log}

	// Redis (optional): create-order idempotency
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer closeRedis(rdb, log)
		ordersHandler.Idem = redisx.NewIdempotency(rdb)
	}

	// Kafka (optional): relay change notifications
	var producers []*kafkax.Producer
	detach := func() {}
	if len(cfg.KafkaBrokers) > 0 {
		status := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderStatus, 1024, log)
		stock := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicInventoryUpdated, 1024, log)
		producers = append(producers, status, stock)
		for _, p := range producers {
			p.Start(ctx)
		}
		relay := &kafkax.Relay{Status: status, Inventory: stock, Producer: cfg.ServiceName, Log: log}
		detach = relay.Attach(store, ledger)
		log.Info("kafka relay attached", "brokers", cfg.KafkaBrokers)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpx.NewRouter(httpx.Handlers{
			Orders:  ordersHandler,
			Metrics: &httpx.MetricsHandler{Registry: registry},
			Events:  &httpx.EventsHandler{Orders: store, Stock: ledger, Log: log},
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error("http shutdown", "err", err)
		}
		if err := saga.Shutdown(sctx); err != nil {
			log.Warn("sagas interrupted at shutdown", "err", err)
		}
		detach()
		for _, p := range producers {
			p.Close()
			p.WaitClosed()
		}
		return nil
	})
	return g.Wait()
}

func closeRedis(rdb *redis.Client, log *slog.Logger) {
	if err := rdb.Close(); err != nil {
		log.Warn("close redis", "err", err)
	}
}
