package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/ledger"
)

// SettlePayout applies the debit of a paid payout request. At most one such
// debit exists per request: a second call finds it and returns false. The
// wallet row must already be locked by the caller.
func SettlePayout(ctx context.Context, tx ledger.Tx, req ledger.PayoutRequest, now time.Time) (bool, error) {
	if _, found, err := tx.FindTransactionBySource(ctx, req.WalletID, ledger.Debit, ledger.SourcePayout, req.ID); err != nil {
		return false, fmt.Errorf("find payout debit: %w", err)
	} else if found {
		return false, nil
	}

	w, err := tx.LockWallet(ctx, req.WalletID)
	if err != nil {
		return false, err
	}
	if w.BalanceCents < req.AmountCents {
		return false, apperr.Reason(apperr.ErrInsufficientFunds, "wallet balance does not cover the paid payout")
	}

	debit := ledger.Transaction{
		ID:               uuid.NewString(),
		WalletID:         req.WalletID,
		AmountCents:      req.AmountCents,
		Type:             ledger.Debit,
		Source:           ledger.SourcePayout,
		SourceID:         req.ID,
		Description:      "Payout " + req.ID,
		AvailableAt:      now,
		AppliedToBalance: true,
		CreatedAt:        now,
	}
	if err := tx.InsertTransaction(ctx, debit); err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return false, nil
		}
		return false, fmt.Errorf("insert payout debit: %w", err)
	}
	if _, err := tx.AdjustWallet(ctx, req.WalletID, -req.AmountCents, 0, now); err != nil {
		return false, fmt.Errorf("apply payout debit: %w", err)
	}
	return true, nil
}
