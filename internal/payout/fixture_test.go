package payout

import (
	"context"
	"testing"
	"time"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/config"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
	"github.com/propad/propad_wallet/internal/notification"
	"github.com/propad/propad_wallet/internal/wallet"
)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time         { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var reviewer = actor.Actor{UserID: "admin-1", Role: actor.RoleAdmin}

type fixture struct {
	store     ledger.Store
	engine    *Engine
	wallets   *wallet.Service
	clk       *clock
	sink      *audit.MemorySink
	notifier  *notification.Recorder
	owner     actor.Actor
	walletID  string
	accountID string
}

// newFixture builds a KYC-verified owner with a verified ECOCASH account and
// balance cents immediately available.
func newFixture(t *testing.T, balance int64) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		store:    ledger.NewInMemory(),
		clk:      &clock{t: time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)},
		sink:     audit.NewMemorySink(),
		notifier: &notification.Recorder{},
		owner:    actor.Actor{UserID: "landlord-1", Role: actor.RoleLandlord},
	}
	settings := config.StaticPayoutSettings(config.DefaultPayoutSettings())
	recorder := audit.NewRecorder(f.sink, logging.Discard())
	f.wallets = wallet.NewService(f.store, settings, recorder, nil, logging.Discard()).WithClock(f.clk.Now)
	f.engine = NewEngine(f.store, settings, nil, recorder, f.notifier, nil, logging.Discard()).WithClock(f.clk.Now)

	owner, _ := f.owner.Owner()
	if balance > 0 {
		f.credit(t, balance, "seed", f.clk.Now())
	}
	summary, err := f.wallets.MyWallet(ctx, f.owner)
	if err != nil {
		t.Fatalf("my wallet: %v", err)
	}
	f.walletID = summary.Wallet.ID

	verifiedAt := f.clk.Now()
	f.accountID = "acct-ecocash"
	err = f.store.InTx(ctx, func(tx ledger.Tx) error {
		if err := tx.InsertKyc(ctx, ledger.KycRecord{ID: "kyc-1", OwnerType: owner.Type, OwnerID: owner.ID, Status: ledger.KycVerified, CreatedAt: verifiedAt, UpdatedAt: verifiedAt}); err != nil {
			return err
		}
		return tx.InsertPayoutAccount(ctx, ledger.PayoutAccount{
			ID:          f.accountID,
			OwnerType:   owner.Type,
			OwnerID:     owner.ID,
			Type:        ledger.MethodEcocash,
			DisplayName: "Ecocash",
			Details:     map[string]string{"mobileNumber": "0771000000"},
			VerifiedAt:  &verifiedAt,
			CreatedAt:   verifiedAt,
		})
	})
	if err != nil {
		t.Fatalf("seed kyc and account: %v", err)
	}
	return f
}

func (f *fixture) credit(t *testing.T, amount int64, sourceID string, availableAt time.Time) {
	t.Helper()
	owner, _ := f.owner.Owner()
	if _, err := f.wallets.Credit(context.Background(), actor.System, wallet.CreditInput{
		Owner:       owner,
		AmountCents: amount,
		Source:      ledger.SourcePayment,
		SourceID:    sourceID,
		AvailableAt: &availableAt,
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}
}

func (f *fixture) request(amount int64) (ledger.PayoutRequest, error) {
	return f.engine.Request(context.Background(), f.owner, RequestInput{
		WalletID:        f.walletID,
		AmountCents:     amount,
		Method:          ledger.MethodEcocash,
		PayoutAccountID: f.accountID,
	})
}

func (f *fixture) summary(t *testing.T) wallet.Summary {
	t.Helper()
	s, err := f.wallets.MyWallet(context.Background(), f.owner)
	if err != nil {
		t.Fatalf("my wallet: %v", err)
	}
	return s
}

func (f *fixture) payoutDebits(t *testing.T) int {
	t.Helper()
	n := 0
	err := f.store.InTx(context.Background(), func(tx ledger.Tx) error {
		txns, err := tx.ListTransactions(context.Background(), f.walletID, 0)
		for _, txn := range txns {
			if txn.Type == ledger.Debit && txn.Source == ledger.SourcePayout {
				n++
			}
		}
		return err
	})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return n
}
