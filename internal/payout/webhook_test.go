package payout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/config"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
	"github.com/propad/propad_wallet/internal/notification"
)

func approvedPayout(t *testing.T, f *fixture, amount int64, txRef string) ledger.PayoutRequest {
	t.Helper()
	req, err := f.request(amount)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	approved, err := f.engine.Approve(context.Background(), reviewer, req.ID, ApproveInput{TxRef: txRef})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	return approved
}

func TestWebhookPaidDebitsOnce(t *testing.T) {
	f := newFixture(t, 5_000)
	ctx := context.Background()
	approvedPayout(t, f, 2_000, "PN-1")

	first, err := f.engine.HandleWebhook(ctx, WebhookInput{TxRef: "PN-1", Status: ledger.PayoutPaid})
	if err != nil {
		t.Fatalf("first webhook: %v", err)
	}
	if !first.Changed || !first.Settled {
		t.Fatalf("expected first webhook to change and settle, got %+v", first)
	}

	second, err := f.engine.HandleWebhook(ctx, WebhookInput{TxRef: "PN-1", Status: ledger.PayoutPaid})
	if err != nil {
		t.Fatalf("duplicate webhook: %v", err)
	}
	if second.Changed || second.Settled {
		t.Fatalf("expected duplicate webhook to be a no-op, got %+v", second)
	}

	if n := f.payoutDebits(t); n != 1 {
		t.Fatalf("expected exactly one payout debit, got %d", n)
	}
	s := f.summary(t)
	if s.Wallet.BalanceCents != 3_000 || s.ReservedCents != 0 || s.AvailableCents != 3_000 {
		t.Fatalf("expected balance/reserved/available 3000/0/3000, got %d/%d/%d", s.Wallet.BalanceCents, s.ReservedCents, s.AvailableCents)
	}
	if len(f.notifier.Messages) != 1 || f.notifier.Messages[0].Kind != notification.KindPayoutPaid {
		t.Fatalf("expected one paid notification, got %+v", f.notifier.Messages)
	}
}

func TestWebhookFailedReleasesReservationWithoutDebit(t *testing.T) {
	f := newFixture(t, 5_000)
	approvedPayout(t, f, 2_000, "PN-2")

	res, err := f.engine.HandleWebhook(context.Background(), WebhookInput{TxRef: "PN-2", Status: ledger.PayoutFailed, FailureReason: "recipient unreachable"})
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if res.Request.Status != ledger.PayoutFailed || res.Request.FailureReason != "recipient unreachable" {
		t.Fatalf("unexpected request %+v", res.Request)
	}
	if f.payoutDebits(t) != 0 {
		t.Fatalf("FAILED must not debit")
	}
	if s := f.summary(t); s.Wallet.BalanceCents != 5_000 || s.AvailableCents != 5_000 {
		t.Fatalf("expected funds fully available again, got balance=%d available=%d", s.Wallet.BalanceCents, s.AvailableCents)
	}
}

func TestWebhookSentKeepsReservation(t *testing.T) {
	f := newFixture(t, 5_000)
	req := approvedPayout(t, f, 2_000, "PN-3")

	if _, err := f.engine.HandleWebhook(context.Background(), WebhookInput{TxRef: "PN-3", Status: ledger.PayoutSent}); err != nil {
		t.Fatalf("webhook: %v", err)
	}
	if s := f.summary(t); s.ReservedCents != 2_000 {
		t.Fatalf("SENT must keep funds reserved, got %d", s.ReservedCents)
	}
	if _, err := f.engine.Cancel(context.Background(), reviewer, req.ID, "too late"); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict cancelling a SENT payout, got %v", err)
	}
}

func TestWebhookUnknownTxRef(t *testing.T) {
	f := newFixture(t, 5_000)
	_, err := f.engine.HandleWebhook(context.Background(), WebhookInput{TxRef: "missing", Status: ledger.PayoutPaid})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestWebhookCannotReversePaid(t *testing.T) {
	f := newFixture(t, 5_000)
	ctx := context.Background()
	approvedPayout(t, f, 2_000, "PN-4")

	if _, err := f.engine.HandleWebhook(ctx, WebhookInput{TxRef: "PN-4", Status: ledger.PayoutPaid}); err != nil {
		t.Fatalf("paid: %v", err)
	}
	if _, err := f.engine.HandleWebhook(ctx, WebhookInput{TxRef: "PN-4", Status: ledger.PayoutFailed}); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for FAILED after PAID, got %v", err)
	}
	if s := f.summary(t); s.Wallet.BalanceCents != 3_000 {
		t.Fatalf("expected balance to stay 3000, got %d", s.Wallet.BalanceCents)
	}
}

func TestWebhookValidation(t *testing.T) {
	f := newFixture(t, 0)
	cases := []WebhookInput{
		{Status: ledger.PayoutPaid},
		{TxRef: "x", Status: ledger.PayoutApproved},
	}
	for _, in := range cases {
		if _, err := f.engine.HandleWebhook(context.Background(), in); apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("expected validation error for %+v, got %v", in, err)
		}
	}
}

func TestWebhookCannotReopenTerminalPayout(t *testing.T) {
	f := newFixture(t, 5_000)
	ctx := context.Background()
	approvedPayout(t, f, 4_000, "PN-5")

	if _, err := f.engine.HandleWebhook(ctx, WebhookInput{TxRef: "PN-5", Status: ledger.PayoutFailed, FailureReason: "rejected by bank"}); err != nil {
		t.Fatalf("failed webhook: %v", err)
	}
	f.clk.Advance(24 * time.Hour)
	if _, err := f.request(4_000); err != nil {
		t.Fatalf("second request: %v", err)
	}

	for _, status := range []ledger.PayoutStatus{ledger.PayoutSent, ledger.PayoutPaid, ledger.PayoutCancelled} {
		_, err := f.engine.HandleWebhook(ctx, WebhookInput{TxRef: "PN-5", Status: status})
		if apperr.KindOf(err) != apperr.KindConflict {
			t.Fatalf("expected conflict moving FAILED to %s, got %v", status, err)
		}
	}

	s := f.summary(t)
	if s.Wallet.BalanceCents != 5_000 || s.ReservedCents != 4_000 || s.AvailableCents != 1_000 {
		t.Fatalf("expected balance/reserved/available 5000/4000/1000, got %d/%d/%d", s.Wallet.BalanceCents, s.ReservedCents, s.AvailableCents)
	}
	if f.payoutDebits(t) != 0 {
		t.Fatal("terminal payout must not be debited")
	}
}

// staleRefStore serves the lookup by reference from a snapshot taken before
// the request's reference was replaced.
type staleRefStore struct {
	ledger.Store
	stale ledger.PayoutRequest
}

func (s staleRefStore) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.Store.InTx(ctx, func(tx ledger.Tx) error {
		return fn(staleRefTx{Tx: tx, stale: s.stale})
	})
}

type staleRefTx struct {
	ledger.Tx
	stale ledger.PayoutRequest
}

func (t staleRefTx) FindPayoutRequestByTxRef(ctx context.Context, txRef string) (ledger.PayoutRequest, error) {
	if txRef == t.stale.TxRef {
		return t.stale, nil
	}
	return t.Tx.FindPayoutRequestByTxRef(ctx, txRef)
}

func TestWebhookIgnoresReplacedTxRef(t *testing.T) {
	f := newFixture(t, 5_000)
	ctx := context.Background()
	stale := approvedPayout(t, f, 2_000, "PN-6")

	err := f.store.InTx(ctx, func(tx ledger.Tx) error {
		req, err := tx.LockPayoutRequest(ctx, stale.ID)
		if err != nil {
			return err
		}
		req.Status, req.TxRef = ledger.PayoutSent, "MM-provider-ref"
		return tx.UpdatePayoutRequest(ctx, req)
	})
	if err != nil {
		t.Fatalf("replace tx ref: %v", err)
	}

	engine := NewEngine(staleRefStore{Store: f.store, stale: stale}, config.StaticPayoutSettings(config.DefaultPayoutSettings()), nil, nil, nil, nil, logging.Discard()).WithClock(f.clk.Now)
	if _, err := engine.HandleWebhook(ctx, WebhookInput{TxRef: "PN-6", Status: ledger.PayoutPaid}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND for a replaced reference, got %v", err)
	}
	if f.payoutDebits(t) != 0 {
		t.Fatal("stale reference must not settle the payout")
	}

	res, err := engine.HandleWebhook(ctx, WebhookInput{TxRef: "MM-provider-ref", Status: ledger.PayoutPaid})
	if err != nil || !res.Settled {
		t.Fatalf("expected current reference to settle, got %+v %v", res, err)
	}
}
