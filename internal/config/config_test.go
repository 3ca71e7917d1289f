package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != defaultAddr {
		t.Fatalf("addr = %s", cfg.Addr)
	}
	if cfg.KafkaTopic != defaultKafkaTopic {
		t.Fatalf("topic = %s", cfg.KafkaTopic)
	}
	if cfg.RiskTimeout != defaultRiskTimeout || cfg.RiskRetries != defaultRiskRetries {
		t.Fatalf("risk defaults: %v / %d", cfg.RiskTimeout, cfg.RiskRetries)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ATP_ADDR", ":9999")
	t.Setenv("ATP_DATABASE_URL", "postgres://atp")
	t.Setenv("ATP_JWT_SECRET", "hunter2")
	t.Setenv("ATP_RISK_URL", "http://risk.internal")
	t.Setenv("ATP_RISK_TIMEOUT", "5s")
	t.Setenv("ATP_KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("ATP_USE_MOCK", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9999" || cfg.DatabaseURL != "postgres://atp" || cfg.JWTSecret != "hunter2" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.RiskURL != "http://risk.internal" || cfg.RiskTimeout != 5*time.Second {
		t.Fatalf("risk config: %s / %v", cfg.RiskURL, cfg.RiskTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-2:9092" {
		t.Fatalf("brokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.UseMock {
		t.Fatalf("use mock not parsed")
	}
}

func TestDatabaseURLFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://shared")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://shared" {
		t.Fatalf("fallback not applied: %s", cfg.DatabaseURL)
	}
}
