package settlement

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/payout"
)

// Handler exposes payout execution.
type Handler struct {
	executor *Executor
}

// NewHandler builds a settlement handler.
func NewHandler(executor *Executor) *Handler {
	return &Handler{executor: executor}
}

// Execute sends a payout to its provider.
func (h *Handler) Execute(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	out, err := h.executor.Execute(c.UserContext(), act, c.Params("payoutId"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"payout":  payout.NewResponse(out.Request, []ledger.PayoutExecution{out.Execution}),
		"settled": out.Settled,
	})
}
