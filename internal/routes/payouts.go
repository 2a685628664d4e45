package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/accounts"
	"github.com/propad/propad_wallet/internal/flags"
	"github.com/propad/propad_wallet/internal/kyc"
	"github.com/propad/propad_wallet/internal/payout"
	"github.com/propad/propad_wallet/internal/settlement"
)

// RegisterPayoutRoutes wires the payout lifecycle.
func RegisterPayoutRoutes(r fiber.Router, h *payout.Handler, exec *settlement.Handler, idem fiber.Handler) {
	r.Post("/payouts", idem, h.Create)
	r.Get("/payouts", h.List)
	r.Get("/payouts/:payoutId", h.Get)
	r.Post("/payouts/:payoutId/approve", h.Approve)
	r.Post("/payouts/:payoutId/review", h.Review)
	r.Post("/payouts/:payoutId/cancel", h.Cancel)
	r.Post("/payouts/:payoutId/execute", idem, exec.Execute)
}

// RegisterWebhookRoutes wires provider callbacks.
func RegisterWebhookRoutes(r fiber.Router, h *payout.Handler, limit fiber.Handler) {
	r.Post("/payouts/webhook", limit, h.Webhook)
}

// RegisterAccountRoutes wires payout account endpoints.
func RegisterAccountRoutes(r fiber.Router, h *accounts.Handler) {
	r.Get("/payout-accounts", h.List)
	r.Post("/payout-accounts", h.Create)
	r.Post("/payout-accounts/:accountId/verify", h.Verify)
}

// RegisterKycRoutes wires KYC endpoints.
func RegisterKycRoutes(r fiber.Router, h *kyc.Handler) {
	r.Get("/kyc", h.Latest)
	r.Post("/kyc", h.Submit)
	r.Post("/kyc/:kycId/status", h.UpdateStatus)
}

// RegisterFlagRoutes wires feature flag endpoints.
func RegisterFlagRoutes(r fiber.Router, h *flags.Handler) {
	r.Get("/flags/:key", h.Get)
	r.Put("/flags/:key", h.Set)
}
