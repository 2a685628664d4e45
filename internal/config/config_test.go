package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsInDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092, broker-b:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("expected :8080, got %s", cfg.Address())
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "broker-b:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("expected default idempotency ttl, got %s", cfg.IdempotencyTTL)
	}
}

func TestLoadRequiresDatabaseOutsideDevelopment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DATABASE_URL is missing")
	}
}

func TestEnvPayoutSettingsReadAtCallTime(t *testing.T) {
	provider := EnvPayoutSettings{}

	t.Setenv(minPayoutEnvVar, "")
	if got := provider.PayoutSettings().MinPayoutCents; got != 1000 {
		t.Fatalf("expected default minimum 1000, got %d", got)
	}

	t.Setenv(minPayoutEnvVar, "2500")
	t.Setenv(coolOffEnvVar, "0s")
	s := provider.PayoutSettings()
	if s.MinPayoutCents != 2500 {
		t.Fatalf("expected minimum 2500 after change, got %d", s.MinPayoutCents)
	}
	if s.CreditCoolOff != 0 {
		t.Fatalf("expected zero cool-off, got %s", s.CreditCoolOff)
	}
}

func TestReadPayoutSettingsRejectsMalformed(t *testing.T) {
	t.Setenv(maxPayoutsEnvVar, "many")
	if _, err := ReadPayoutSettings(); err == nil {
		t.Fatalf("expected error for malformed %s", maxPayoutsEnvVar)
	}
}
