package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateTransaction indicates a transaction with the same idempotency
	// key already exists and the operation should be treated as a replay.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrNegativeBalance guards the wallet invariant balance >= 0. Services check
	// available funds first, so hitting it means a caller skipped that check.
	ErrNegativeBalance = errors.New("wallet balance cannot go negative")
)

// DefaultListLimit bounds transaction and payout listings.
const DefaultListLimit = 100

// Store is the durable record of wallets, their transactions and the payout
// rows that depend on them. All work happens inside InTx.
type Store interface {
	// InTx runs fn in one atomic unit. If fn returns an error nothing it did is kept.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

// Tx is the set of operations available inside an atomic unit. Lock* methods
// take a row lock held until the unit ends; callers lock the wallet before
// any payout request that belongs to it.
type Tx interface {
	UpsertWallet(ctx context.Context, owner Owner, currency string, now time.Time) (Wallet, error)
	LockWallet(ctx context.Context, id string) (Wallet, error)
	AdjustWallet(ctx context.Context, id string, balanceDelta, pendingDelta int64, now time.Time) (Wallet, error)

	InsertTransaction(ctx context.Context, t Transaction) error
	FindTransactionBySource(ctx context.Context, walletID string, typ TransactionType, source Source, sourceID string) (Transaction, bool, error)
	MaturedCredits(ctx context.Context, walletID string, now time.Time) ([]Transaction, error)
	MarkApplied(ctx context.Context, ids []string) error
	ListTransactions(ctx context.Context, walletID string, limit int) ([]Transaction, error)

	SumReserved(ctx context.Context, walletID string) (int64, error)
	CountPayoutsSince(ctx context.Context, walletID string, since time.Time) (int, error)
	CountPayoutsWithStatus(ctx context.Context, walletID string, status PayoutStatus, excludeID string) (int, error)
	InsertPayoutRequest(ctx context.Context, r PayoutRequest) error
	GetPayoutRequest(ctx context.Context, id string) (PayoutRequest, error)
	FindPayoutRequestByTxRef(ctx context.Context, txRef string) (PayoutRequest, error)
	LockPayoutRequest(ctx context.Context, id string) (PayoutRequest, error)
	UpdatePayoutRequest(ctx context.Context, r PayoutRequest) error
	ListPayoutRequests(ctx context.Context, filter PayoutFilter) ([]PayoutRequest, error)

	InsertExecution(ctx context.Context, e PayoutExecution) error
	ListExecutions(ctx context.Context, payoutRequestID string) ([]PayoutExecution, error)

	InsertPayoutAccount(ctx context.Context, a PayoutAccount) error
	GetPayoutAccount(ctx context.Context, id string) (PayoutAccount, error)
	SetPayoutAccountVerified(ctx context.Context, id string, verifiedAt *time.Time) (PayoutAccount, error)
	ListPayoutAccounts(ctx context.Context, owner Owner) ([]PayoutAccount, error)

	InsertKyc(ctx context.Context, r KycRecord) error
	GetKyc(ctx context.Context, id string) (KycRecord, error)
	UpdateKycStatus(ctx context.Context, id string, status KycStatus, notes string, now time.Time) (KycRecord, error)
	LatestKyc(ctx context.Context, owner Owner) (KycRecord, bool, error)

	Standing(ctx context.Context, owner Owner) (OwnerStanding, error)
	PutStanding(ctx context.Context, s OwnerStanding) error

	GetFlag(ctx context.Context, key string) (FeatureFlag, bool, error)
	PutFlag(ctx context.Context, f FeatureFlag) error
}
