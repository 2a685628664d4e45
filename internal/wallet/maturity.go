package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/propad/propad_wallet/internal/ledger"
)

// ReleaseMatured folds every credit of walletID whose AvailableAt has passed
// into the spendable balance and marks those credits applied. It must run
// inside the caller's atomic unit after the wallet row is locked. It returns
// the amount released; zero when nothing was due.
func ReleaseMatured(ctx context.Context, tx ledger.Tx, walletID string, now time.Time) (int64, error) {
	credits, err := tx.MaturedCredits(ctx, walletID, now)
	if err != nil {
		return 0, fmt.Errorf("load matured credits: %w", err)
	}
	if len(credits) == 0 {
		return 0, nil
	}

	var sum int64
	ids := make([]string, 0, len(credits))
	for _, c := range credits {
		sum += c.AmountCents
		ids = append(ids, c.ID)
	}

	if _, err := tx.AdjustWallet(ctx, walletID, sum, -sum, now); err != nil {
		return 0, fmt.Errorf("release matured credits: %w", err)
	}
	if err := tx.MarkApplied(ctx, ids); err != nil {
		return 0, fmt.Errorf("mark credits applied: %w", err)
	}
	return sum, nil
}
