package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/propad/propad_wallet/internal/accounts"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/config"
	"github.com/propad/propad_wallet/internal/flags"
	"github.com/propad/propad_wallet/internal/kyc"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/metrics"
	"github.com/propad/propad_wallet/internal/middleware"
	"github.com/propad/propad_wallet/internal/notification"
	"github.com/propad/propad_wallet/internal/payout"
	"github.com/propad/propad_wallet/internal/settlement"
	"github.com/propad/propad_wallet/internal/wallet"
)

const webhookRequestsPerMinute = 120

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	Store    ledger.Store
	Cache    *redis.Client
	Audit    audit.Sink
	Registry *prometheus.Registry
	Logger   *slog.Logger
	Payouts  config.PayoutSettingsProvider // nil reads the environment on every call
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil {
		return fmt.Errorf("ledger store is required")
	}
	if !d.Cfg.IsDevelopment() && d.Cache == nil {
		return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Payouts == nil {
		d.Payouts = config.EnvPayoutSettings{}
	}
	if d.Audit == nil {
		d.Audit = audit.NewLogSink(d.Logger)
	}
	if d.Registry == nil {
		d.Registry = prometheus.NewRegistry()
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID(d.Logger))
	if d.Cfg.IsDevelopment() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Actor())

	RegisterHealthRoutes(app, d)

	m := metrics.New(d.Registry)
	recorder := audit.NewRecorder(d.Audit, d.Logger)
	notifier := notification.NewLoggerNotifier(d.Logger)

	walletSvc := wallet.NewService(d.Store, d.Payouts, recorder, m, d.Logger)
	accountSvc := accounts.NewService(d.Store, recorder, d.Logger)
	kycSvc := kyc.NewService(d.Store, recorder, notifier, d.Logger)
	flagSvc := flags.NewService(d.Store, d.Cache, d.Cfg.FlagCacheTTL, recorder, d.Logger)
	engine := payout.NewEngine(d.Store, d.Payouts, nil, recorder, notifier, m, d.Logger)
	executor := settlement.NewExecutor(d.Store, settlement.DefaultDispatcher(), flagSvc, recorder, notifier, m, d.Logger)

	idem := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Provider callbacks carry no actor.
	webhookLimit := middleware.RateLimit(d.Cache, "webhook", webhookRequestsPerMinute, time.Minute, d.Logger)
	RegisterWebhookRoutes(api, payout.NewHandler(engine), webhookLimit)

	RegisterWalletRoutes(api, wallet.NewHandler(walletSvc), idem)
	RegisterAccountRoutes(api, accounts.NewHandler(accountSvc))
	RegisterKycRoutes(api, kyc.NewHandler(kycSvc))
	RegisterPayoutRoutes(api, payout.NewHandler(engine), settlement.NewHandler(executor), idem)
	RegisterFlagRoutes(api, flags.NewHandler(flagSvc))

	return nil
}
