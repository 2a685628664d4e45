package server

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/config"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
	"github.com/propad/propad_wallet/internal/routes"
)

func TestNewServesHealthWithoutRedisInDevelopment(t *testing.T) {
	srv, err := New(config.Config{AppName: "test", AppEnv: "development"}, routes.Deps{Store: ledger.NewInMemory()}, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}
}

func TestNewRequiresRedisOutsideDevelopment(t *testing.T) {
	_, err := New(config.Config{AppEnv: "production"}, routes.Deps{Store: ledger.NewInMemory()}, logging.Discard())
	if err == nil {
		t.Fatal("expected error without redis in production")
	}
}
