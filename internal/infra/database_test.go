package infra

import (
	"testing"
	"time"
)

func TestLedgerPoolConfigDefaults(t *testing.T) {
	cfg, err := ledgerPoolConfig("postgres://u:p@db:5432/wallet?sslmode=disable")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.MinConns != 1 || cfg.MaxConnIdleTime != 5*time.Minute || cfg.ConnConfig.ConnectTimeout != 5*time.Second {
		t.Fatalf("unexpected pool settings: min=%d idle=%s connect=%s", cfg.MinConns, cfg.MaxConnIdleTime, cfg.ConnConfig.ConnectTimeout)
	}
	params := cfg.ConnConfig.RuntimeParams
	if params["application_name"] != "propad_wallet" || params["statement_timeout"] != "15s" {
		t.Fatalf("unexpected runtime params: %v", params)
	}
}

func TestLedgerPoolConfigKeepsURLValues(t *testing.T) {
	cfg, err := ledgerPoolConfig("postgres://db/wallet?application_name=worker&statement_timeout=2s&pool_min_conns=4&connect_timeout=1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	params := cfg.ConnConfig.RuntimeParams
	if params["application_name"] != "worker" || params["statement_timeout"] != "2s" {
		t.Fatalf("url runtime params overridden: %v", params)
	}
	if cfg.MinConns != 4 || cfg.ConnConfig.ConnectTimeout != time.Second {
		t.Fatalf("url pool settings overridden: min=%d connect=%s", cfg.MinConns, cfg.ConnConfig.ConnectTimeout)
	}
}

func TestLedgerPoolConfigRequiresURL(t *testing.T) {
	if _, err := ledgerPoolConfig(""); err == nil {
		t.Fatal("expected error for empty url")
	}
}
