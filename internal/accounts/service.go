// Package accounts manages payout destinations and their verification.
package accounts

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
)

// Service creates, verifies and lists payout accounts.
type Service struct {
	store  ledger.Store
	audit  *audit.Recorder
	logger *slog.Logger
	now    func() time.Time
}

// NewService builds an accounts service.
func NewService(store ledger.Store, recorder *audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{store: store, audit: recorder, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateInput captures a new payout destination.
type CreateInput struct {
	Type        ledger.Method
	DisplayName string
	Details     map[string]string
}

var requiredDetails = map[ledger.Method][]string{
	ledger.MethodBank:         {"bankName", "accountNumber", "accountName"},
	ledger.MethodBankTransfer: {"bankName", "accountNumber", "accountName"},
	ledger.MethodZipit:        {"bankName", "accountNumber", "accountName"},
	ledger.MethodEcocash:      {"mobileNumber"},
	ledger.MethodOneMoney:     {"mobileNumber"},
	ledger.MethodMobileMoney:  {"mobileNumber"},
}

// ValidateDetails checks the per-method fields a provider needs to pay out.
func ValidateDetails(method ledger.Method, details map[string]string) error {
	if !ledger.ValidMethod(method) {
		return apperr.Validation("unknown payout method")
	}
	var missing []string
	for _, key := range requiredDetails[method] {
		if strings.TrimSpace(details[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return apperr.Validation("missing payout details for " + string(method) + ": " + strings.Join(missing, ", "))
	}
	return nil
}

// Create registers an unverified payout account for the actor's owner.
func (s *Service) Create(ctx context.Context, act actor.Actor, in CreateInput) (ledger.PayoutAccount, error) {
	owner, err := act.Owner()
	if err != nil {
		return ledger.PayoutAccount{}, err
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		return ledger.PayoutAccount{}, apperr.Validation("display name is required")
	}
	if err := ValidateDetails(in.Type, in.Details); err != nil {
		return ledger.PayoutAccount{}, err
	}

	account := ledger.PayoutAccount{
		ID:          uuid.NewString(),
		OwnerType:   owner.Type,
		OwnerID:     owner.ID,
		Type:        in.Type,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Details:     in.Details,
		CreatedAt:   s.now(),
	}
	if err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertPayoutAccount(ctx, account)
	}); err != nil {
		return ledger.PayoutAccount{}, err
	}

	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionAccountCreated,
		ActorID:    act.UserID,
		TargetType: "payout_account",
		TargetID:   account.ID,
		Metadata:   map[string]string{"type": string(account.Type)},
	})
	return account, nil
}

// Verify marks an account verified or clears its verification. Reviewers only.
func (s *Service) Verify(ctx context.Context, act actor.Actor, id string, verified bool) (ledger.PayoutAccount, error) {
	if !act.IsReviewer() {
		return ledger.PayoutAccount{}, apperr.Forbidden("only reviewers may verify payout accounts")
	}
	var at *time.Time
	if verified {
		now := s.now()
		at = &now
	}

	var account ledger.PayoutAccount
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		var err error
		account, err = tx.SetPayoutAccountVerified(ctx, id, at)
		return err
	})
	if err != nil {
		return ledger.PayoutAccount{}, err
	}

	s.logger.InfoContext(ctx, "payout_account.verified", slog.String("account_id", id), slog.Bool("verified", verified))
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionAccountVerified,
		ActorID:    act.UserID,
		TargetType: "payout_account",
		TargetID:   id,
		Metadata:   map[string]string{"verified": strconv.FormatBool(verified)},
	})
	return account, nil
}

// List returns the actor's payout accounts, newest first.
func (s *Service) List(ctx context.Context, act actor.Actor) ([]ledger.PayoutAccount, error) {
	owner, err := act.Owner()
	if err != nil {
		return nil, err
	}
	var out []ledger.PayoutAccount
	err = s.store.InTx(ctx, func(tx ledger.Tx) error {
		out, err = tx.ListPayoutAccounts(ctx, owner)
		return err
	})
	return out, err
}
