package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/config"
	"github.com/propad/propad_wallet/internal/infra"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
	"github.com/propad/propad_wallet/internal/routes"
	"github.com/propad/propad_wallet/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	deps := routes.Deps{Registry: prometheus.NewRegistry()}
	deps.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.DatabaseURL != "" {
		if cfg.AutoMigrate {
			if err := infra.Migrate(cfg.DatabaseURL, logger); err != nil {
				logger.Error("migrate database", "error", err)
				os.Exit(1)
			}
		}
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		deps.Store = ledger.NewPostgresStore(db)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory ledger")
		deps.Store = ledger.NewInMemory()
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
		deps.Cache = cache
	}

	auditSink, closeAudit := buildAuditSink(ctx, cfg, logger)
	defer closeAudit()
	deps.Audit = auditSink

	srv, err := server.New(cfg, deps, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

// buildAuditSink logs every entry and also publishes to Kafka when brokers
// are configured.
func buildAuditSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (audit.Sink, func()) {
	logSink := audit.NewLogSink(logger)
	if len(cfg.KafkaBrokers) == 0 {
		return logSink, func() {}
	}

	if err := infra.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.AuditTopic, 3); err != nil {
		logger.Warn("ensure audit topic", "topic", cfg.AuditTopic, "error", err)
	}
	kafkaSink := audit.NewKafkaSink(audit.NewKafkaWriter(cfg.KafkaBrokers, cfg.AuditTopic))
	return audit.Multi{logSink, kafkaSink}, func() {
		if err := kafkaSink.Close(); err != nil {
			logger.Warn("close audit writer", "error", err)
		}
	}
}
