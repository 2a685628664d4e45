package accounts

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/ledger"
)

// Handler exposes payout account endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a payout account handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	Type        string            `json:"type"`
	DisplayName string            `json:"display_name"`
	Details     map[string]string `json:"details"`
}

type verifyRequest struct {
	Verified *bool `json:"verified"`
}

type accountResponse struct {
	ID          string            `json:"id"`
	OwnerType   string            `json:"owner_type"`
	OwnerID     string            `json:"owner_id"`
	Type        string            `json:"type"`
	DisplayName string            `json:"display_name"`
	Details     map[string]string `json:"details"`
	VerifiedAt  *time.Time        `json:"verified_at"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Create registers a payout account.
func (h *Handler) Create(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	account, err := h.service.Create(c.UserContext(), act, CreateInput{
		Type:        ledger.Method(req.Type),
		DisplayName: req.DisplayName,
		Details:     req.Details,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(account))
}

// Verify toggles verification of an account.
func (h *Handler) Verify(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	req := verifyRequest{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperr.Validation(err.Error())
		}
	}
	verified := req.Verified == nil || *req.Verified
	account, err := h.service.Verify(c.UserContext(), act, c.Params("accountId"), verified)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(account))
}

// List returns the caller's accounts.
func (h *Handler) List(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	accounts, err := h.service.List(c.UserContext(), act)
	if err != nil {
		return err
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"payout_accounts": out})
}

func toResponse(a ledger.PayoutAccount) accountResponse {
	return accountResponse{
		ID:          a.ID,
		OwnerType:   string(a.OwnerType),
		OwnerID:     a.OwnerID,
		Type:        string(a.Type),
		DisplayName: a.DisplayName,
		Details:     a.Details,
		VerifiedAt:  a.VerifiedAt,
		CreatedAt:   a.CreatedAt,
	}
}
