package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/logging"
)

// Audit emits one structured log line per request. Handler errors are logged
// with the status the error handler will answer with.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = StatusOf(err)
		}
		attrs := []slog.Attr{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if actorID, _ := c.Locals(actorIDLocal).(string); actorID != "" {
			attrs = append(attrs, slog.String("actor_id", actorID))
		}

		log := logging.FromContext(c.UserContext(), logger)
		ctx := c.UserContext()
		switch {
		case err == nil:
			log.LogAttrs(ctx, slog.LevelInfo, "request completed", attrs...)
		case status >= fiber.StatusInternalServerError:
			attrs = append(attrs, slog.Any("error", err))
			log.LogAttrs(ctx, slog.LevelError, "request failed", attrs...)
		default:
			attrs = append(attrs, slog.String("code", string(apperr.CodeOf(err))), slog.String("error", err.Error()))
			log.LogAttrs(ctx, slog.LevelWarn, "request rejected", attrs...)
		}
		return err
	}
}

// StatusOf returns the HTTP status for a handler error.
func StatusOf(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return apperr.HTTPStatus(err)
}
