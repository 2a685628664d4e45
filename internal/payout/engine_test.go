package payout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/ledger"
)

func TestRequestReservesFunds(t *testing.T) {
	f := newFixture(t, 5_000)

	req, err := f.request(2_000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Status != ledger.PayoutRequested {
		t.Fatalf("expected REQUESTED, got %s", req.Status)
	}

	s := f.summary(t)
	if s.Wallet.BalanceCents != 5_000 || s.ReservedCents != 2_000 || s.AvailableCents != 3_000 {
		t.Fatalf("expected balance/reserved/available 5000/2000/3000, got %d/%d/%d", s.Wallet.BalanceCents, s.ReservedCents, s.AvailableCents)
	}
	if f.payoutDebits(t) != 0 {
		t.Fatalf("request must not debit the wallet")
	}
}

func TestApproveAssignsTxRef(t *testing.T) {
	f := newFixture(t, 5_000)
	req, err := f.request(2_000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	approved, err := f.engine.Approve(context.Background(), reviewer, req.ID, ApproveInput{})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != ledger.PayoutApproved || approved.TxRef == "" {
		t.Fatalf("expected APPROVED with tx_ref, got %s %q", approved.Status, approved.TxRef)
	}

	if _, err := f.engine.Approve(context.Background(), reviewer, req.ID, ApproveInput{}); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict on second approval, got %v", err)
	}
}

func TestApproveKeepsGivenTxRef(t *testing.T) {
	f := newFixture(t, 5_000)
	req, _ := f.request(2_000)

	approved, err := f.engine.Approve(context.Background(), reviewer, req.ID, ApproveInput{TxRef: "PN-42"})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.TxRef != "PN-42" {
		t.Fatalf("expected tx_ref PN-42, got %q", approved.TxRef)
	}
}

func TestApproveRequiresReviewer(t *testing.T) {
	f := newFixture(t, 5_000)
	req, _ := f.request(2_000)
	if _, err := f.engine.Approve(context.Background(), f.owner, req.ID, ApproveInput{}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRequestBelowMinimumCreatesNothing(t *testing.T) {
	f := newFixture(t, 5_000)

	if _, err := f.request(500); !errors.Is(err, apperr.ErrAmountTooLow) {
		t.Fatalf("expected AMOUNT_TOO_LOW, got %v", err)
	}
	reqs, err := f.engine.List(context.Background(), f.owner, ledger.PayoutFilter{WalletID: f.walletID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 0 {
		t.Fatalf("expected no payout rows, got %d", len(reqs))
	}
}

func TestRequestBelowMinimumOnEmptyWallet(t *testing.T) {
	f := newFixture(t, 0)

	if _, err := f.request(500); !errors.Is(err, apperr.ErrAmountTooLow) {
		t.Fatalf("expected AMOUNT_TOO_LOW before funds are checked, got %v", err)
	}
}

func TestRequestKycCheckedBeforeDailyLimit(t *testing.T) {
	f := newFixture(t, 10_000)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		req, err := f.request(1_000)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if _, err := f.engine.Cancel(ctx, f.owner, req.ID, "test"); err != nil {
			t.Fatalf("cancel %d: %v", i, err)
		}
	}
	_ = f.store.InTx(ctx, func(tx ledger.Tx) error {
		_, err := tx.UpdateKycStatus(ctx, "kyc-1", ledger.KycRejected, "expired", f.clk.Now().Add(time.Minute))
		return err
	})

	if _, err := f.request(1_000); !errors.Is(err, apperr.ErrKycRequired) {
		t.Fatalf("expected KYC_REQUIRED ahead of the daily limit, got %v", err)
	}
}

func TestRequestRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient funds", func(t *testing.T) {
		f := newFixture(t, 1_500)
		if _, err := f.request(2_000); !errors.Is(err, apperr.ErrInsufficientFunds) {
			t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
		}
	})

	t.Run("method mismatch", func(t *testing.T) {
		f := newFixture(t, 5_000)
		_, err := f.engine.Request(ctx, f.owner, RequestInput{WalletID: f.walletID, AmountCents: 2_000, Method: ledger.MethodBank, PayoutAccountID: f.accountID})
		if !errors.Is(err, apperr.ErrMethodMismatch) {
			t.Fatalf("expected METHOD_MISMATCH, got %v", err)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		f := newFixture(t, 5_000)
		_, err := f.engine.Request(ctx, f.owner, RequestInput{WalletID: f.walletID, AmountCents: 2_000, Method: ledger.MethodEcocash, PayoutAccountID: "nope"})
		if !errors.Is(err, apperr.ErrAccountNotAvailable) {
			t.Fatalf("expected ACCOUNT_NOT_AVAILABLE, got %v", err)
		}
	})

	t.Run("unverified account", func(t *testing.T) {
		f := newFixture(t, 5_000)
		_ = f.store.InTx(ctx, func(tx ledger.Tx) error {
			_, err := tx.SetPayoutAccountVerified(ctx, f.accountID, nil)
			return err
		})
		if _, err := f.request(2_000); !errors.Is(err, apperr.ErrAccountUnverified) {
			t.Fatalf("expected ACCOUNT_UNVERIFIED, got %v", err)
		}
	})

	t.Run("kyc rejected", func(t *testing.T) {
		f := newFixture(t, 5_000)
		_ = f.store.InTx(ctx, func(tx ledger.Tx) error {
			_, err := tx.UpdateKycStatus(ctx, "kyc-1", ledger.KycRejected, "blurry", f.clk.Now().Add(time.Minute))
			return err
		})
		if _, err := f.request(2_000); !errors.Is(err, apperr.ErrKycRequired) {
			t.Fatalf("expected KYC_REQUIRED, got %v", err)
		}
	})

	t.Run("suspended owner", func(t *testing.T) {
		f := newFixture(t, 5_000)
		_ = f.store.InTx(ctx, func(tx ledger.Tx) error {
			return tx.PutStanding(ctx, ledger.OwnerStanding{OwnerType: ledger.OwnerUser, OwnerID: f.owner.UserID, Suspended: true})
		})
		if _, err := f.request(2_000); !errors.Is(err, apperr.ErrAccountFlagged) {
			t.Fatalf("expected ACCOUNT_FLAGGED, got %v", err)
		}
	})

	t.Run("foreign wallet", func(t *testing.T) {
		f := newFixture(t, 5_000)
		intruder := actor.Actor{UserID: "intruder", Role: actor.RoleUser}
		_, err := f.engine.Request(ctx, intruder, RequestInput{WalletID: f.walletID, AmountCents: 2_000, Method: ledger.MethodEcocash, PayoutAccountID: f.accountID})
		if !errors.Is(err, apperr.ErrForbidden) {
			t.Fatalf("expected FORBIDDEN, got %v", err)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newFixture(t, 5_000)
		if _, err := f.request(0); apperr.KindOf(err) != apperr.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestPendingRequestFlagsSecond(t *testing.T) {
	f := newFixture(t, 10_000)
	if _, err := f.request(2_000); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := f.request(2_000); !errors.Is(err, apperr.ErrAccountFlagged) {
		t.Fatalf("expected ACCOUNT_FLAGGED while another request is pending, got %v", err)
	}
}

func TestDailyLimit(t *testing.T) {
	f := newFixture(t, 20_000)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		req, err := f.request(1_000)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		// approving clears the pending-request flag for the next one
		if _, err := f.engine.Approve(ctx, reviewer, req.ID, ApproveInput{}); err != nil {
			t.Fatalf("approve %d: %v", i, err)
		}
	}
	if _, err := f.request(1_000); !errors.Is(err, apperr.ErrDailyLimitReached) {
		t.Fatalf("expected DAILY_LIMIT_REACHED, got %v", err)
	}

	f.clk.Advance(24 * time.Hour)
	if _, err := f.request(1_000); err != nil {
		t.Fatalf("expected request on the next day to pass, got %v", err)
	}
}

func TestConcurrentRequestsCannotOverReserve(t *testing.T) {
	f := newFixture(t, 10_000)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		failures []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.request(6_000)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else {
				failures = append(failures, err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Fatalf("expected exactly one success, got %d (failures %v)", ok, failures)
	}
	if len(failures) != 1 || !errors.Is(failures[0], apperr.ErrInsufficientFunds) {
		t.Fatalf("expected one INSUFFICIENT_FUNDS failure, got %v", failures)
	}
	s := f.summary(t)
	if s.ReservedCents > s.Wallet.BalanceCents {
		t.Fatalf("reserved %d exceeds balance %d", s.ReservedCents, s.Wallet.BalanceCents)
	}
}

func TestRequestAfterMaturity(t *testing.T) {
	f := newFixture(t, 0)
	f.credit(t, 10_000, "booking-1", f.clk.Now().Add(7*24*time.Hour))

	if _, err := f.request(5_000); !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("expected immature credit to be unavailable, got %v", err)
	}

	f.clk.Advance(7*24*time.Hour + time.Second)
	if _, err := f.request(5_000); err != nil {
		t.Fatalf("expected matured credit to fund the payout, got %v", err)
	}
	s := f.summary(t)
	if s.Wallet.BalanceCents != 10_000 || s.Wallet.PendingCents != 0 {
		t.Fatalf("expected balance 10000 pending 0, got %d/%d", s.Wallet.BalanceCents, s.Wallet.PendingCents)
	}
}

func TestCancelReleasesReservation(t *testing.T) {
	f := newFixture(t, 5_000)
	req, _ := f.request(2_000)

	cancelled, err := f.engine.Cancel(context.Background(), f.owner, req.ID, "changed my mind")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != ledger.PayoutCancelled || cancelled.FailureReason != "changed my mind" {
		t.Fatalf("unexpected cancelled request %+v", cancelled)
	}
	if s := f.summary(t); s.ReservedCents != 0 || s.AvailableCents != 5_000 {
		t.Fatalf("expected reservation released, got reserved=%d available=%d", s.ReservedCents, s.AvailableCents)
	}
	if _, err := f.engine.Cancel(context.Background(), f.owner, req.ID, ""); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict cancelling a cancelled payout, got %v", err)
	}
}

func TestReviewThenApprove(t *testing.T) {
	f := newFixture(t, 5_000)
	ctx := context.Background()
	req, _ := f.request(2_000)

	reviewed, err := f.engine.MarkReview(ctx, reviewer, req.ID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != ledger.PayoutReview {
		t.Fatalf("expected REVIEW, got %s", reviewed.Status)
	}
	if s := f.summary(t); s.ReservedCents != 2_000 {
		t.Fatalf("REVIEW must keep funds reserved, got %d", s.ReservedCents)
	}
	if _, err := f.engine.Approve(ctx, reviewer, req.ID, ApproveInput{}); err != nil {
		t.Fatalf("approve from review: %v", err)
	}

	want := []string{audit.ActionWalletCredit, audit.ActionPayoutRequested, audit.ActionPayoutReview, audit.ActionPayoutApproved}
	got := f.sink.Actions()
	if len(got) != len(want) {
		t.Fatalf("expected audit trail %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected audit trail %v, got %v", want, got)
		}
	}
}

func TestGetForbidsOtherOwners(t *testing.T) {
	f := newFixture(t, 5_000)
	req, _ := f.request(2_000)

	other := actor.Actor{UserID: "someone", Role: actor.RoleUser}
	if _, _, err := f.engine.Get(context.Background(), other, req.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	got, _, err := f.engine.Get(context.Background(), f.owner, req.ID)
	if err != nil || got.ID != req.ID {
		t.Fatalf("owner get: %v", err)
	}
}
