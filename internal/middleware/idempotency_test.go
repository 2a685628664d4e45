package middleware

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/logging"
)

func setupTestApp(t *testing.T) (*fiber.App, *int) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	calls := 0
	app := fiber.New(fiber.Config{ErrorHandler: func(c *fiber.Ctx, err error) error {
		return c.SendStatus(StatusOf(err))
	}})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	app.Post("/payouts", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": calls})
	})
	app.Post("/rejected", func(c *fiber.Ctx) error {
		calls++
		return apperr.ErrInsufficientFunds
	})
	return app, &calls
}

func post(t *testing.T, app *fiber.App, path, actorID, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if actorID != "" {
		req.Header.Set(HeaderActorID, actorID)
	}
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	app, calls := setupTestApp(t)

	status, _ := post(t, app, "/payouts", "user-1", "")
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected %d got %d", fiber.StatusBadRequest, status)
	}
	if *calls != 0 {
		t.Fatalf("handler should not run without a key, ran %d times", *calls)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	app, calls := setupTestApp(t)

	status, first := post(t, app, "/payouts", "user-1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}
	status, second := post(t, app, "/payouts", "user-1", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected replayed status %d got %d", fiber.StatusCreated, status)
	}
	if first != second {
		t.Fatalf("expected replayed payload %s got %s", first, second)
	}
	if *calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", *calls)
	}
}

func TestIdempotencyKeysAreScopedPerActor(t *testing.T) {
	app, calls := setupTestApp(t)

	post(t, app, "/payouts", "user-1", "shared")
	post(t, app, "/payouts", "user-2", "shared")
	if *calls != 2 {
		t.Fatalf("expected each actor to reach the handler, got %d calls", *calls)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	app, calls := setupTestApp(t)

	for i := 0; i < 2; i++ {
		status, _ := post(t, app, "/rejected", "user-1", "retry-me")
		if status != fiber.StatusUnprocessableEntity {
			t.Fatalf("attempt %d: expected %d got %d", i, fiber.StatusUnprocessableEntity, status)
		}
	}
	if *calls != 2 {
		t.Fatalf("expected failed request to be retried, got %d calls", *calls)
	}
}
