package payout

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/notification"
	"github.com/propad/propad_wallet/internal/wallet"
)

// WebhookInput is a provider's report on a payout identified by TxRef.
type WebhookInput struct {
	TxRef         string
	Status        ledger.PayoutStatus
	FailureReason string
}

// WebhookResult reports what a webhook changed.
type WebhookResult struct {
	Request ledger.PayoutRequest
	// Changed is false when the request already had the reported status.
	Changed bool
	// Settled is true when this call applied the payout debit.
	Settled bool
}

func validWebhookStatus(s ledger.PayoutStatus) bool {
	switch s {
	case ledger.PayoutSent, ledger.PayoutPaid, ledger.PayoutFailed, ledger.PayoutCancelled:
		return true
	}
	return false
}

// HandleWebhook reconciles a provider callback. Replays of the same status
// change nothing and terminal payouts never move again. A PAID report applies
// the payout debit at most once per request; FAILED and CANCELLED only record
// the reason.
func (e *Engine) HandleWebhook(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	if in.TxRef == "" {
		return WebhookResult{}, apperr.Validation("tx_ref is required")
	}
	if !validWebhookStatus(in.Status) {
		return WebhookResult{}, apperr.Validation("unsupported webhook status")
	}

	now := e.now()
	var (
		res      WebhookResult
		currency string
		ownerID  string
	)
	err := e.store.InTx(ctx, func(tx ledger.Tx) error {
		current, err := tx.FindPayoutRequestByTxRef(ctx, in.TxRef)
		if err != nil {
			return err
		}
		w, err := tx.LockWallet(ctx, current.WalletID)
		if err != nil {
			return err
		}
		currency, ownerID = w.Currency, w.OwnerID
		if _, err := wallet.ReleaseMatured(ctx, tx, w.ID, now); err != nil {
			return err
		}
		req, err := tx.LockPayoutRequest(ctx, current.ID)
		if err != nil {
			return err
		}
		if req.TxRef != in.TxRef {
			return apperr.NotFound("payout not found for tx_ref")
		}
		res.Request = req
		if req.Status == in.Status {
			return nil
		}
		if req.Status.Terminal() {
			return apperr.Conflict("payout is already " + string(req.Status))
		}

		req.Status = in.Status
		req.UpdatedAt = now
		if in.Status == ledger.PayoutFailed || in.Status == ledger.PayoutCancelled {
			req.FailureReason = in.FailureReason
		}
		if err := tx.UpdatePayoutRequest(ctx, req); err != nil {
			return err
		}
		if in.Status == ledger.PayoutPaid {
			if res.Settled, err = wallet.SettlePayout(ctx, tx, req, now); err != nil {
				return err
			}
		}
		res.Request, res.Changed = req, true
		return nil
	})
	if err != nil {
		e.metrics.Webhook("rejected")
		return WebhookResult{}, err
	}
	if !res.Changed {
		e.metrics.Webhook("unchanged")
		return res, nil
	}
	e.metrics.Webhook("applied")

	req := res.Request
	e.logger.InfoContext(ctx, "webhook.applied",
		slog.String("payout_id", req.ID),
		slog.String("tx_ref", in.TxRef),
		slog.String("status", string(req.Status)),
		slog.Bool("settled", res.Settled),
	)

	entry := audit.Entry{
		Action:     audit.ActionPayoutWebhook,
		ActorID:    actor.System.UserID,
		TargetType: "payout_request",
		TargetID:   req.ID,
		Metadata:   map[string]string{"status": string(req.Status), "tx_ref": in.TxRef},
	}
	if req.Status == ledger.PayoutFailed || req.Status == ledger.PayoutCancelled {
		entry.Action = audit.ActionPayoutFailed
		entry.Metadata["reason"] = in.FailureReason
	}
	e.audit.Record(ctx, entry)

	if res.Settled {
		e.metrics.Settled(req.AmountCents)
		e.audit.Record(ctx, audit.Entry{
			Action:     audit.ActionPayoutSettled,
			ActorID:    actor.System.UserID,
			TargetType: "wallet",
			TargetID:   req.WalletID,
			Metadata:   map[string]string{"payout_id": req.ID, "amount_cents": strconv.FormatInt(req.AmountCents, 10)},
		})
	}
	e.notifyOutcome(ctx, req, ownerID, currency)
	return res, nil
}

func (e *Engine) notifyOutcome(ctx context.Context, req ledger.PayoutRequest, ownerID, currency string) {
	if e.notifier == nil {
		return
	}
	msg, ok := notification.ForPayout(req.Status, ownerID, req.AmountCents, currency)
	if !ok {
		return
	}
	if err := e.notifier.Send(ctx, msg); err != nil {
		e.logger.WarnContext(ctx, "payout notification failed", slog.String("payout_id", req.ID), slog.Any("error", err))
	}
}
