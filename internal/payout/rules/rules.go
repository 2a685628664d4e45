// Package rules holds the validators a payout request must pass before it is
// admitted. Rules run in order inside the request's atomic unit and the first
// failure wins.
package rules

import (
	"context"

	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/config"
	"github.com/propad/propad_wallet/internal/ledger"
)

// Candidate is a payout request under evaluation.
type Candidate struct {
	Owner       ledger.Owner
	Wallet      ledger.Wallet
	AmountCents int64
	Method      ledger.Method
	Account     ledger.PayoutAccount
	// RequestID excludes the candidate itself when it already exists.
	RequestID string
}

// Rule admits or rejects a candidate.
type Rule interface {
	Name() string
	Validate(ctx context.Context, tx ledger.Tx, c Candidate) error
}

// Chain runs rules in order and stops at the first rejection.
type Chain []Rule

// Validate implements the short-circuit evaluation.
func (ch Chain) Validate(ctx context.Context, tx ledger.Tx, c Candidate) error {
	for _, r := range ch {
		if err := r.Validate(ctx, tx, c); err != nil {
			return err
		}
	}
	return nil
}

// Only returns the rules of ch named in names, keeping their order.
func (ch Chain) Only(names ...string) Chain {
	return ch.filter(names, true)
}

// Except returns the rules of ch not named in names, keeping their order.
func (ch Chain) Except(names ...string) Chain {
	return ch.filter(names, false)
}

func (ch Chain) filter(names []string, keep bool) Chain {
	var out Chain
	for _, r := range ch {
		named := false
		for _, n := range names {
			if r.Name() == n {
				named = true
				break
			}
		}
		if named == keep {
			out = append(out, r)
		}
	}
	return out
}

// Rule names used to stage the chain around the engine's own checks.
const (
	NameMinimumAmount = "minimum_amount"
	NameKYC           = "kyc"
	NameFraud         = "fraud"
)

// Default returns the standard chain: minimum amount, KYC, fraud.
func Default(settings config.PayoutSettingsProvider) Chain {
	return Chain{MinimumAmount{Settings: settings}, KYC{}, Fraud{}}
}

// MinimumAmount rejects amounts below the configured threshold, read per call.
type MinimumAmount struct {
	Settings config.PayoutSettingsProvider
}

func (MinimumAmount) Name() string { return NameMinimumAmount }

func (r MinimumAmount) Validate(_ context.Context, _ ledger.Tx, c Candidate) error {
	threshold := r.Settings.PayoutSettings().MinPayoutCents
	if c.AmountCents < threshold {
		return apperr.ErrAmountTooLow
	}
	return nil
}

// KYC requires the owner's latest submission to be VERIFIED. Agency wallets
// are checked against the agency's own record.
type KYC struct{}

func (KYC) Name() string { return NameKYC }

func (KYC) Validate(ctx context.Context, tx ledger.Tx, c Candidate) error {
	latest, found, err := tx.LatestKyc(ctx, c.Owner)
	if err != nil {
		return err
	}
	if !found || latest.Status != ledger.KycVerified {
		return apperr.ErrKycRequired
	}
	return nil
}

// Fraud flags wallets with another request awaiting review and owners that
// are suspended or carry a negative trust score.
type Fraud struct{}

func (Fraud) Name() string { return NameFraud }

func (Fraud) Validate(ctx context.Context, tx ledger.Tx, c Candidate) error {
	pending, err := tx.CountPayoutsWithStatus(ctx, c.Wallet.ID, ledger.PayoutRequested, c.RequestID)
	if err != nil {
		return err
	}
	if pending > 0 {
		return apperr.Reason(apperr.ErrAccountFlagged, "another payout request is awaiting review")
	}
	standing, err := tx.Standing(ctx, c.Owner)
	if err != nil {
		return err
	}
	if standing.Suspended || standing.TrustScore < 0 {
		return apperr.ErrAccountFlagged
	}
	return nil
}
