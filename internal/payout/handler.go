package payout

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/ledger"
)

// Handler exposes payout endpoints.
type Handler struct {
	engine *Engine
}

// NewHandler builds a payout handler.
func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type createRequest struct {
	WalletID        string     `json:"wallet_id"`
	AmountCents     int64      `json:"amount_cents"`
	Method          string     `json:"method"`
	PayoutAccountID string     `json:"payout_account_id"`
	ScheduledFor    *time.Time `json:"scheduled_for"`
}

type approveRequest struct {
	TxRef        string     `json:"tx_ref"`
	ScheduledFor *time.Time `json:"scheduled_for"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type webhookRequest struct {
	TxRef         string `json:"tx_ref"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

// Response is the JSON form of a payout request.
type Response struct {
	ID              string              `json:"id"`
	WalletID        string              `json:"wallet_id"`
	AmountCents     int64               `json:"amount_cents"`
	Method          string              `json:"method"`
	PayoutAccountID string              `json:"payout_account_id"`
	Status          string              `json:"status"`
	TxRef           string              `json:"tx_ref,omitempty"`
	ScheduledFor    *time.Time          `json:"scheduled_for,omitempty"`
	FailureReason   string              `json:"failure_reason,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Executions      []executionResponse `json:"executions,omitempty"`
}

type executionResponse struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Create admits a payout request.
func (h *Handler) Create(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	out, err := h.engine.Request(c.UserContext(), act, RequestInput{
		WalletID:        req.WalletID,
		AmountCents:     req.AmountCents,
		Method:          ledger.Method(req.Method),
		PayoutAccountID: req.PayoutAccountID,
		ScheduledFor:    req.ScheduledFor,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(NewResponse(out, nil))
}

// List returns payout requests.
func (h *Handler) List(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	reqs, err := h.engine.List(c.UserContext(), act, ledger.PayoutFilter{
		WalletID: c.Query("wallet_id"),
		Status:   ledger.PayoutStatus(c.Query("status")),
		Limit:    c.QueryInt("limit", ledger.DefaultListLimit),
	})
	if err != nil {
		return err
	}
	out := make([]Response, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, NewResponse(r, nil))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"payouts": out})
}

// Get returns one payout request with its executions.
func (h *Handler) Get(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	req, execs, err := h.engine.Get(c.UserContext(), act, c.Params("payoutId"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(NewResponse(req, execs))
}

// Approve approves a payout.
func (h *Handler) Approve(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	var req approveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation(err.Error())
		}
	}
	out, err := h.engine.Approve(c.UserContext(), act, c.Params("payoutId"), ApproveInput{TxRef: req.TxRef, ScheduledFor: req.ScheduledFor})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(NewResponse(out, nil))
}

// Review parks a payout for review.
func (h *Handler) Review(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	out, err := h.engine.MarkReview(c.UserContext(), act, c.Params("payoutId"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(NewResponse(out, nil))
}

// Cancel cancels a payout.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	var req cancelRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation(err.Error())
		}
	}
	out, err := h.engine.Cancel(c.UserContext(), act, c.Params("payoutId"), req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(NewResponse(out, nil))
}

// Webhook reconciles a provider callback.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	var req webhookRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	res, err := h.engine.HandleWebhook(c.UserContext(), WebhookInput{
		TxRef:         req.TxRef,
		Status:        ledger.PayoutStatus(req.Status),
		FailureReason: req.FailureReason,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"payout":  NewResponse(res.Request, nil),
		"changed": res.Changed,
	})
}

// NewResponse renders a payout request and optional executions.
func NewResponse(r ledger.PayoutRequest, execs []ledger.PayoutExecution) Response {
	out := Response{
		ID:              r.ID,
		WalletID:        r.WalletID,
		AmountCents:     r.AmountCents,
		Method:          string(r.Method),
		PayoutAccountID: r.PayoutAccountID,
		Status:          string(r.Status),
		TxRef:           r.TxRef,
		ScheduledFor:    r.ScheduledFor,
		FailureReason:   r.FailureReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	for _, e := range execs {
		out.Executions = append(out.Executions, executionResponse{
			ID:          e.ID,
			Provider:    e.Provider,
			ProviderRef: e.ProviderRef,
			Status:      e.Status,
			CreatedAt:   e.CreatedAt,
		})
	}
	return out
}
