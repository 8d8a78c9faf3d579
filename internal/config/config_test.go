package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "REDIS_ADDR", "KAFKA_BROKERS", "LOG_LEVEL", "PAYMENT_LATENCY", "STAGE_DELIVERED_DELAY", "DEMO_ORDERS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8081" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.RedisAddr != "" || len(cfg.KafkaBrokers) != 0 {
		t.Errorf("redis and kafka must be off by default, got %q %v", cfg.RedisAddr, cfg.KafkaBrokers)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.PaymentLatency != 2*time.Second || cfg.DeliveredDelay != 10*time.Second {
		t.Errorf("unexpected delays %v %v", cfg.PaymentLatency, cfg.DeliveredDelay)
	}
	if cfg.DemoOrders {
		t.Error("demo orders must be off by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_JSON", "true")
	t.Setenv("PAYMENT_SUCCESS_RATE", "0.5")
	t.Setenv("STAGE_PICKING_DELAY", "150ms")
	t.Setenv("TRACKER_WORKERS", "8")
	t.Setenv("DEMO_ORDERS", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if cfg.LogLevel != slog.LevelDebug || !cfg.LogJSON {
		t.Errorf("logging = %v %v", cfg.LogLevel, cfg.LogJSON)
	}
	if cfg.PaymentSuccessRate != 0.5 || cfg.PickingDelay != 150*time.Millisecond || cfg.TrackerWorkers != 8 || !cfg.DemoOrders {
		t.Errorf("unexpected %+v", cfg)
	}
}

func TestLoad_ReportsEveryBadValue(t *testing.T) {
	t.Setenv("PAYMENT_LATENCY", "soon")
	t.Setenv("NOTIFY_BUFFER", "lots")
	t.Setenv("PAYMENT_GATEWAY_ERROR_RATE", "1.5")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, key := range []string{"PAYMENT_LATENCY", "NOTIFY_BUFFER", "PAYMENT_GATEWAY_ERROR_RATE"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf strings.Builder
	log := NewLogger(Config{ServiceName: "svc", LogLevel: slog.LevelWarn, LogJSON: true}, &buf)
	log.Info("hidden")
	log.Warn("shown", "order_id", "ORD-1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info must be filtered: %s", out)
	}
	if !strings.Contains(out, `"service":"svc"`) || !strings.Contains(out, `"order_id":"ORD-1"`) {
		t.Fatalf("unexpected output %s", out)
	}
}
