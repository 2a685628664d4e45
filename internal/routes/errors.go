package routes

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/logging"
	"github.com/propad/propad_wallet/internal/middleware"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ErrorHandler renders handler errors as JSON with the status of their kind.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := middleware.StatusOf(err)
		body := errorResponse{Error: "internal_error", Message: "internal server error"}

		var (
			ae *apperr.Error
			fe *fiber.Error
		)
		switch {
		case errors.As(err, &ae):
			body = errorResponse{Error: string(ae.Kind), Code: string(ae.Code), Message: ae.Message}
		case errors.As(err, &fe):
			body = errorResponse{Error: "http_error", Message: fe.Message}
		default:
			logging.FromContext(c.UserContext(), logger).ErrorContext(c.UserContext(), "unhandled error", slog.Any("error", err))
		}
		return c.Status(status).JSON(body)
	}
}
