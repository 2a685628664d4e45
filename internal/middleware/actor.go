package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/ledger"
)

// Headers set by the gateway after it has authenticated the caller.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
	HeaderOwnerType = "X-Owner-Type"
	HeaderOwnerID   = "X-Owner-Id"
)

const actorIDLocal = "actor_id"

// Actor places the gateway-supplied caller on the request context. Requests
// without an actor id pass through; handlers that need one reject them.
func Actor() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(HeaderActorID))
		if id == "" {
			return c.Next()
		}
		role := actor.Role(strings.ToUpper(strings.TrimSpace(c.Get(HeaderActorRole))))
		if role == "" {
			role = actor.RoleUser
		}
		if !actor.ValidRole(role) {
			return apperr.Forbidden("unknown actor role")
		}
		ownerType := ledger.OwnerType(strings.ToUpper(strings.TrimSpace(c.Get(HeaderOwnerType))))
		if ownerType != "" && ownerType != ledger.OwnerUser && ownerType != ledger.OwnerAgency {
			return apperr.Validation("unknown owner type")
		}

		act := actor.Actor{
			UserID:    id,
			Role:      role,
			OwnerType: ownerType,
			OwnerID:   strings.TrimSpace(c.Get(HeaderOwnerID)),
		}
		c.Locals(actorIDLocal, id)
		c.SetUserContext(actor.NewContext(c.UserContext(), act))
		return c.Next()
	}
}
