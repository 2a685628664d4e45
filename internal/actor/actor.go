// Package actor describes the authenticated caller as supplied by the
// gateway. Authentication itself happens upstream.
package actor

import (
	"context"

	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/ledger"
)

// Role is the caller's platform role.
type Role string

const (
	RoleUser        Role = "USER"
	RoleAgent       Role = "AGENT"
	RoleLandlord    Role = "LANDLORD"
	RoleAgencyAdmin Role = "AGENCY_ADMIN"
	RoleAdmin       Role = "ADMIN"
	RoleVerifier    Role = "VERIFIER"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleUser, RoleAgent, RoleLandlord, RoleAgencyAdmin, RoleAdmin, RoleVerifier:
		return true
	}
	return false
}

// Actor is the caller of a core operation.
type Actor struct {
	UserID    string
	Role      Role
	OwnerType ledger.OwnerType
	OwnerID   string
}

// Owner resolves the wallet owner the actor acts for. Without an explicit
// owner the actor acts for their own user wallet. Admins have no wallet.
func (a Actor) Owner() (ledger.Owner, error) {
	if a.Role == RoleAdmin {
		return ledger.Owner{}, apperr.Forbidden("admins do not own wallets")
	}
	if a.OwnerType == ledger.OwnerAgency {
		if a.OwnerID == "" {
			return ledger.Owner{}, apperr.Validation("agency owner id is required")
		}
		if a.Role != RoleAgencyAdmin && a.Role != RoleAgent {
			return ledger.Owner{}, apperr.Forbidden("role cannot act for an agency")
		}
		return ledger.Owner{Type: ledger.OwnerAgency, ID: a.OwnerID}, nil
	}
	if a.UserID == "" {
		return ledger.Owner{}, apperr.Validation("actor id is required")
	}
	return ledger.Owner{Type: ledger.OwnerUser, ID: a.UserID}, nil
}

// IsAdmin reports whether the actor may act on any wallet.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsReviewer reports whether the actor may review KYC, accounts and payouts.
func (a Actor) IsReviewer() bool {
	return a.Role == RoleAdmin || a.Role == RoleVerifier
}

// CanAccess reports whether the actor may read or act on a wallet of owner.
func (a Actor) CanAccess(owner ledger.Owner) bool {
	if a.IsReviewer() {
		return true
	}
	own, err := a.Owner()
	if err != nil {
		return false
	}
	return own == owner
}

// Authorize returns FORBIDDEN unless the actor can access owner.
func (a Actor) Authorize(owner ledger.Owner) error {
	if !a.CanAccess(owner) {
		return apperr.Forbidden("actor cannot access this wallet")
	}
	return nil
}

// System is the actor used for provider callbacks and background work.
var System = Actor{UserID: "system", Role: RoleAdmin}

type ctxKey struct{}

// NewContext returns ctx carrying a.
func NewContext(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext extracts the actor stored by NewContext.
func FromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	return a, ok
}

// Require returns the actor on ctx or FORBIDDEN when the gateway supplied none.
func Require(ctx context.Context) (Actor, error) {
	a, ok := FromContext(ctx)
	if !ok || a.UserID == "" {
		return Actor{}, apperr.Forbidden("missing actor")
	}
	return a, nil
}
