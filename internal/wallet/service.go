package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/propad/propad_wallet/internal/actor"
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/audit"
	"github.com/propad/propad_wallet/internal/config"
	"github.com/propad/propad_wallet/internal/ledger"
	"github.com/propad/propad_wallet/internal/logging"
	"github.com/propad/propad_wallet/internal/metrics"
)

// Service exposes wallet balances and the credit/debit primitives.
type Service struct {
	store    ledger.Store
	settings config.PayoutSettingsProvider
	audit    *audit.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a wallet service. audit, metrics and logger may be nil.
func NewService(store ledger.Store, settings config.PayoutSettingsProvider, recorder *audit.Recorder, m *metrics.Metrics, logger *slog.Logger) *Service {
	if settings == nil {
		settings = config.StaticPayoutSettings(config.DefaultPayoutSettings())
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		store:    store,
		settings: settings,
		audit:    recorder,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests to step past cool-off windows.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Summary is a wallet with its derived balances and the owner's payout setup.
type Summary struct {
	Wallet         ledger.Wallet
	ReservedCents  int64
	AvailableCents int64
	Kyc            *ledger.KycRecord
	PayoutAccounts []ledger.PayoutAccount
}

// CreditInput captures a credit to an owner's wallet. A nil AvailableAt
// applies the configured cool-off; a time at or before now credits the
// spendable balance immediately.
type CreditInput struct {
	Owner       ledger.Owner
	Currency    string
	AmountCents int64
	Source      ledger.Source
	SourceID    string
	Description string
	AvailableAt *time.Time
}

// DebitInput captures a debit against an owner's available funds.
type DebitInput struct {
	Owner       ledger.Owner
	Currency    string
	AmountCents int64
	Source      ledger.Source
	SourceID    string
	Description string
}

// Credit records money owed to an owner. A repeated (source, source id) pair
// returns the original transaction together with ledger.ErrDuplicateTransaction.
func (s *Service) Credit(ctx context.Context, act actor.Actor, in CreditInput) (ledger.Transaction, error) {
	if !act.IsAdmin() {
		return ledger.Transaction{}, apperr.Forbidden("only administrators may credit wallets")
	}
	if err := validateMovement(in.Owner, in.AmountCents, in.Source); err != nil {
		return ledger.Transaction{}, err
	}

	settings := s.settings.PayoutSettings()
	currency := normalizeCurrency(in.Currency, settings.Currency)
	now := s.now()
	availableAt := now.Add(settings.CreditCoolOff)
	if in.AvailableAt != nil {
		availableAt = in.AvailableAt.UTC()
	}
	immediate := !availableAt.After(now)

	var (
		txn       ledger.Transaction
		duplicate bool
	)
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		w, err := lockOwnerWallet(ctx, tx, in.Owner, currency, now)
		if err != nil {
			return err
		}
		if _, err := ReleaseMatured(ctx, tx, w.ID, now); err != nil {
			return err
		}

		if in.SourceID != "" {
			existing, found, err := tx.FindTransactionBySource(ctx, w.ID, ledger.Credit, in.Source, in.SourceID)
			if err != nil {
				return err
			}
			if found {
				txn, duplicate = existing, true
				return nil
			}
		}

		txn = ledger.Transaction{
			ID:               uuid.NewString(),
			WalletID:         w.ID,
			AmountCents:      in.AmountCents,
			Type:             ledger.Credit,
			Source:           in.Source,
			SourceID:         in.SourceID,
			Description:      in.Description,
			AvailableAt:      availableAt,
			AppliedToBalance: immediate,
			CreatedAt:        now,
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		if immediate {
			_, err = tx.AdjustWallet(ctx, w.ID, in.AmountCents, 0, now)
		} else {
			_, err = tx.AdjustWallet(ctx, w.ID, 0, in.AmountCents, now)
		}
		return err
	})
	if err != nil {
		return ledger.Transaction{}, err
	}
	if duplicate {
		return txn, ledger.ErrDuplicateTransaction
	}

	s.metrics.Credited(string(in.Source), immediate)
	s.logger.InfoContext(ctx, "wallet.credit",
		slog.String("wallet_id", txn.WalletID),
		slog.Int64("amount_cents", txn.AmountCents),
		slog.String("source", string(txn.Source)),
		slog.Bool("immediate", immediate),
	)
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionWalletCredit,
		ActorID:    act.UserID,
		TargetType: "wallet",
		TargetID:   txn.WalletID,
		Metadata: map[string]string{
			"transaction_id": txn.ID,
			"amount_cents":   strconv.FormatInt(txn.AmountCents, 10),
			"source":         string(txn.Source),
			"available_at":   txn.AvailableAt.Format(time.RFC3339),
		},
	})
	return txn, nil
}

// Debit removes available funds from an owner's wallet. It fails with
// INSUFFICIENT_FUNDS, leaving no trace, when the amount exceeds the balance
// minus what in-flight payouts reserve.
func (s *Service) Debit(ctx context.Context, act actor.Actor, in DebitInput) (ledger.Transaction, error) {
	if !act.IsAdmin() {
		return ledger.Transaction{}, apperr.Forbidden("only administrators may debit wallets")
	}
	if err := validateMovement(in.Owner, in.AmountCents, in.Source); err != nil {
		return ledger.Transaction{}, err
	}

	currency := normalizeCurrency(in.Currency, s.settings.PayoutSettings().Currency)
	now := s.now()

	var txn ledger.Transaction
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		w, err := lockOwnerWallet(ctx, tx, in.Owner, currency, now)
		if err != nil {
			return err
		}
		if _, err := ReleaseMatured(ctx, tx, w.ID, now); err != nil {
			return err
		}
		w, err = tx.LockWallet(ctx, w.ID)
		if err != nil {
			return err
		}
		reserved, err := tx.SumReserved(ctx, w.ID)
		if err != nil {
			return err
		}
		if in.AmountCents > w.BalanceCents-reserved {
			return apperr.ErrInsufficientFunds
		}

		txn = ledger.Transaction{
			ID:               uuid.NewString(),
			WalletID:         w.ID,
			AmountCents:      in.AmountCents,
			Type:             ledger.Debit,
			Source:           in.Source,
			SourceID:         in.SourceID,
			Description:      in.Description,
			AvailableAt:      now,
			AppliedToBalance: true,
			CreatedAt:        now,
		}
		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}
		_, err = tx.AdjustWallet(ctx, w.ID, -in.AmountCents, 0, now)
		return err
	})
	if err != nil {
		if errors.Is(err, ledger.ErrNegativeBalance) {
			return ledger.Transaction{}, apperr.ErrInsufficientFunds
		}
		return ledger.Transaction{}, err
	}

	s.logger.InfoContext(ctx, "wallet.debit",
		slog.String("wallet_id", txn.WalletID),
		slog.Int64("amount_cents", txn.AmountCents),
		slog.String("source", string(txn.Source)),
	)
	s.audit.Record(ctx, audit.Entry{
		Action:     audit.ActionWalletDebit,
		ActorID:    act.UserID,
		TargetType: "wallet",
		TargetID:   txn.WalletID,
		Metadata: map[string]string{
			"transaction_id": txn.ID,
			"amount_cents":   strconv.FormatInt(txn.AmountCents, 10),
			"source":         string(txn.Source),
		},
	})
	return txn, nil
}

// MyWallet returns the summary of the actor's own wallet in the configured
// currency, creating the wallet on first access.
func (s *Service) MyWallet(ctx context.Context, act actor.Actor) (Summary, error) {
	owner, err := act.Owner()
	if err != nil {
		return Summary{}, err
	}
	currency := s.settings.PayoutSettings().Currency
	now := s.now()

	var out Summary
	err = s.store.InTx(ctx, func(tx ledger.Tx) error {
		w, err := lockOwnerWallet(ctx, tx, owner, currency, now)
		if err != nil {
			return err
		}
		out, err = summarize(ctx, tx, w.ID, now)
		return err
	})
	return out, err
}

// Get returns the summary of a wallet the actor may access.
func (s *Service) Get(ctx context.Context, act actor.Actor, walletID string) (Summary, error) {
	now := s.now()
	var out Summary
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		w, err := tx.LockWallet(ctx, walletID)
		if err != nil {
			return err
		}
		if err := act.Authorize(w.Owner()); err != nil {
			return err
		}
		out, err = summarize(ctx, tx, w.ID, now)
		return err
	})
	return out, err
}

// Transactions lists the most recent transactions of a wallet, newest first.
func (s *Service) Transactions(ctx context.Context, act actor.Actor, walletID string, limit int) ([]ledger.Transaction, error) {
	if limit <= 0 || limit > ledger.DefaultListLimit {
		limit = ledger.DefaultListLimit
	}
	now := s.now()
	var out []ledger.Transaction
	err := s.store.InTx(ctx, func(tx ledger.Tx) error {
		w, err := tx.LockWallet(ctx, walletID)
		if err != nil {
			return err
		}
		if err := act.Authorize(w.Owner()); err != nil {
			return err
		}
		if _, err := ReleaseMatured(ctx, tx, w.ID, now); err != nil {
			return err
		}
		out, err = tx.ListTransactions(ctx, w.ID, limit)
		return err
	})
	return out, err
}

func summarize(ctx context.Context, tx ledger.Tx, walletID string, now time.Time) (Summary, error) {
	if _, err := ReleaseMatured(ctx, tx, walletID, now); err != nil {
		return Summary{}, err
	}
	w, err := tx.LockWallet(ctx, walletID)
	if err != nil {
		return Summary{}, err
	}
	reserved, err := tx.SumReserved(ctx, w.ID)
	if err != nil {
		return Summary{}, err
	}
	out := Summary{Wallet: w, ReservedCents: reserved, AvailableCents: max(w.BalanceCents-reserved, 0)}

	if kyc, found, err := tx.LatestKyc(ctx, w.Owner()); err != nil {
		return Summary{}, err
	} else if found {
		out.Kyc = &kyc
	}
	if out.PayoutAccounts, err = tx.ListPayoutAccounts(ctx, w.Owner()); err != nil {
		return Summary{}, err
	}
	return out, nil
}

func lockOwnerWallet(ctx context.Context, tx ledger.Tx, owner ledger.Owner, currency string, now time.Time) (ledger.Wallet, error) {
	w, err := tx.UpsertWallet(ctx, owner, currency, now)
	if err != nil {
		return ledger.Wallet{}, fmt.Errorf("upsert wallet: %w", err)
	}
	return tx.LockWallet(ctx, w.ID)
}

func validateMovement(owner ledger.Owner, amount int64, source ledger.Source) error {
	if owner.ID == "" || (owner.Type != ledger.OwnerUser && owner.Type != ledger.OwnerAgency) {
		return apperr.Validation("owner type and id are required")
	}
	if amount <= 0 {
		return apperr.Validation("amount must be positive")
	}
	if !ledger.ValidSource(source) {
		return apperr.Validation("unknown transaction source")
	}
	return nil
}

func normalizeCurrency(currency, fallback string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return fallback
	}
	return currency
}
