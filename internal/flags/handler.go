package flags

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
)

// Handler exposes flag endpoints to administrators.
type Handler struct {
	service *Service
}

// NewHandler builds a flag handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type setRequest struct {
	Enabled *bool `json:"enabled"`
}

// Get returns a flag's current value.
func (h *Handler) Get(c *fiber.Ctx) error {
	if _, err := actor.Require(c.UserContext()); err != nil {
		return err
	}
	key := c.Params("key")
	enabled, err := h.service.Enabled(c.UserContext(), key)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"key": key, "enabled": enabled})
}

// Set changes a flag.
func (h *Handler) Set(c *fiber.Ctx) error {
	act, err := actor.Require(c.UserContext())
	if err != nil {
		return err
	}
	var req setRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation(err.Error())
	}
	if req.Enabled == nil {
		return apperr.Validation("enabled is required")
	}
	flag, err := h.service.Set(c.UserContext(), act, c.Params("key"), *req.Enabled)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"key": flag.Key, "enabled": flag.Enabled, "updated_at": flag.UpdatedAt})
}
