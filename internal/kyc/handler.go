package kyc

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/ledger"
)

// Handler exposes KYC endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a KYC handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type submitRequest struct {
	IDType   string   `json:"id_type"`
	IDNumber string   `json:"id_number"`
	DocURLs  []string `json:"doc_urls"`
	Notes    string   `json:"notes"`
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type recordResponse struct {
	ID        string    `json:"id"`
	OwnerType string    `json:"owner_type"`
	OwnerID   string    `json:"owner_id"`
	IDType    string    `json:"id_type"`
	Status    string    `json:"status"`
	DocURLs   []string  `json:"doc_urls"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Submit records a KYC submission.
func (h *Handler) Submit(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	var req submitRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	record, err := h.service.Submit(c.UserContext(), act, SubmitInput{IDType: req.IDType, IDNumber: req.IDNumber, DocURLs: req.DocURLs, Notes: req.Notes})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(toResponse(record))
}

// UpdateStatus reviews a submission.
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	record, err := h.service.UpdateStatus(c.UserContext(), act, c.Params("kycId"), ledger.KycStatus(req.Status), req.Notes)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(record))
}

// Latest returns the caller's latest submission.
func (h *Handler) Latest(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	record, err := h.service.Latest(c.UserContext(), act)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(toResponse(record))
}

func toResponse(r ledger.KycRecord) recordResponse {
	return recordResponse{
		ID:        r.ID,
		OwnerType: string(r.OwnerType),
		OwnerID:   r.OwnerID,
		IDType:    r.IDType,
		Status:    string(r.Status),
		DocURLs:   r.DocURLs,
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}
