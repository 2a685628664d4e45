package middleware

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/propad/propad_wallet/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures each request has a stable identifier and a logger tagged with it.
func RequestID(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(requestIDHeader, reqID)
		c.SetUserContext(logging.WithContext(c.UserContext(), logger.With(slog.String("request_id", reqID))))

		return c.Next()
	}
}
