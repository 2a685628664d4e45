package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/wallet"
)

// RegisterWalletRoutes wires wallet endpoints. Credits and debits are admin only.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, idem fiber.Handler) {
	r.Get("/wallets/me", h.Me)
	r.Get("/wallets/:walletId", h.Get)
	r.Get("/wallets/:walletId/transactions", h.Transactions)
	r.Post("/wallets/credits", idem, h.Credit)
	r.Post("/wallets/debits", idem, h.Debit)
}
