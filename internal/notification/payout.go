package notification

import (
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/money"
)

// ForPayout builds the owner message for a payout that reached status. It
// returns false for statuses the owner is not told about.
func ForPayout(status ledger.PayoutStatus, ownerID string, amountCents int64, currency string) (Message, bool) {
	amount := money.Format(amountCents, currency)
	switch status {
	case ledger.PayoutPaid:
		return Message{
			Kind:        KindPayoutPaid,
			Destination: ownerID,
			Title:       "Payout sent",
			Body:        "Your payout of " + amount + " has been paid.",
		}, true
	case ledger.PayoutFailed:
		return Message{
			Kind:        KindPayoutFailed,
			Destination: ownerID,
			Title:       "Payout failed",
			Body:        "Your payout of " + amount + " could not be completed.",
		}, true
	}
	return Message{}, false
}
