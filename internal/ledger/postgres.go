package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/propad/propad_wallet/internal/apperr"
)

const uniqueViolation = "23505"

// PostgresStore persists wallets and payouts in PostgreSQL. Every atomic unit
// is a read-committed transaction; wallet and payout rows are serialized with
// SELECT ... FOR UPDATE.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// InTx runs fn inside a database transaction and commits when fn succeeds.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type pgTx struct {
	tx pgx.Tx
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(what + " not found")
	}
	return err
}

const walletColumns = `id, owner_type, owner_id, currency, balance_cents, pending_cents, created_at, updated_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	err := row.Scan(&w.ID, &w.OwnerType, &w.OwnerID, &w.Currency, &w.BalanceCents, &w.PendingCents, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

func (t *pgTx) UpsertWallet(ctx context.Context, owner Owner, currency string, now time.Time) (Wallet, error) {
	// DO UPDATE on a no-op column makes RETURNING yield the existing row.
	row := t.tx.QueryRow(ctx, `INSERT INTO wallets (id, owner_type, owner_id, currency, balance_cents, pending_cents, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 0, 0, $5, $5)
        ON CONFLICT (owner_type, owner_id, currency) DO UPDATE SET owner_id = EXCLUDED.owner_id
        RETURNING `+walletColumns, uuid.NewString(), owner.Type, owner.ID, currency, now)
	w, err := scanWallet(row)
	if err != nil {
		return Wallet{}, fmt.Errorf("upsert wallet: %w", err)
	}
	return w, nil
}

func (t *pgTx) LockWallet(ctx context.Context, id string) (Wallet, error) {
	w, err := scanWallet(t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Wallet{}, notFound(err, "wallet")
	}
	return w, nil
}

func (t *pgTx) AdjustWallet(ctx context.Context, id string, balanceDelta, pendingDelta int64, now time.Time) (Wallet, error) {
	row := t.tx.QueryRow(ctx, `UPDATE wallets
        SET balance_cents = balance_cents + $2, pending_cents = pending_cents + $3, updated_at = $4
        WHERE id = $1 AND balance_cents + $2 >= 0 AND pending_cents + $3 >= 0
        RETURNING `+walletColumns, id, balanceDelta, pendingDelta, now)
	w, err := scanWallet(row)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, lookupErr := t.LockWallet(ctx, id); lookupErr != nil {
			return Wallet{}, lookupErr
		}
		return Wallet{}, ErrNegativeBalance
	}
	if err != nil {
		return Wallet{}, fmt.Errorf("adjust wallet: %w", err)
	}
	return w, nil
}

const transactionColumns = `id, wallet_id, amount_cents, type, source, COALESCE(source_id, ''), description, available_at, applied_to_balance, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	err := row.Scan(&txn.ID, &txn.WalletID, &txn.AmountCents, &txn.Type, &txn.Source, &txn.SourceID,
		&txn.Description, &txn.AvailableAt, &txn.AppliedToBalance, &txn.CreatedAt)
	return txn, err
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	defer rows.Close()
	var out []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, txn)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertTransaction(ctx context.Context, txn Transaction) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO wallet_transactions
        (id, wallet_id, amount_cents, type, source, source_id, description, available_at, applied_to_balance, created_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)`,
		txn.ID, txn.WalletID, txn.AmountCents, txn.Type, txn.Source, txn.SourceID, txn.Description,
		txn.AvailableAt, txn.AppliedToBalance, txn.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateTransaction
	}
	return err
}

func (t *pgTx) FindTransactionBySource(ctx context.Context, walletID string, typ TransactionType, source Source, sourceID string) (Transaction, bool, error) {
	txn, err := scanTransaction(t.tx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions
        WHERE wallet_id = $1 AND type = $2 AND source = $3 AND source_id = $4`, walletID, typ, source, sourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return txn, true, nil
}

func (t *pgTx) MaturedCredits(ctx context.Context, walletID string, now time.Time) ([]Transaction, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions
        WHERE wallet_id = $1 AND type = 'CREDIT' AND applied_to_balance = FALSE AND available_at <= $2
        FOR UPDATE`, walletID, now)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (t *pgTx) MarkApplied(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `UPDATE wallet_transactions SET applied_to_balance = TRUE
        WHERE id = ANY($1) AND applied_to_balance = FALSE`, ids)
	return err
}

func (t *pgTx) ListTransactions(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := t.tx.Query(ctx, `SELECT `+transactionColumns+` FROM wallet_transactions
        WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2`, walletID, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func reservingStatusStrings() []string {
	out := make([]string, len(ReservingStatuses))
	for i, s := range ReservingStatuses {
		out[i] = string(s)
	}
	return out
}

func (t *pgTx) SumReserved(ctx context.Context, walletID string) (int64, error) {
	var sum int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM payout_requests
        WHERE wallet_id = $1 AND status = ANY($2)`, walletID, reservingStatusStrings()).Scan(&sum)
	return sum, err
}

func (t *pgTx) CountPayoutsSince(ctx context.Context, walletID string, since time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM payout_requests WHERE wallet_id = $1 AND created_at >= $2`,
		walletID, since).Scan(&n)
	return n, err
}

func (t *pgTx) CountPayoutsWithStatus(ctx context.Context, walletID string, status PayoutStatus, excludeID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM payout_requests
        WHERE wallet_id = $1 AND status = $2 AND id <> $3`, walletID, status, excludeID).Scan(&n)
	return n, err
}

const payoutColumns = `id, wallet_id, amount_cents, method, payout_account_id, status, COALESCE(tx_ref, ''),
        scheduled_for, failure_reason, created_at, updated_at`

func scanPayout(row pgx.Row) (PayoutRequest, error) {
	var p PayoutRequest
	err := row.Scan(&p.ID, &p.WalletID, &p.AmountCents, &p.Method, &p.PayoutAccountID, &p.Status, &p.TxRef,
		&p.ScheduledFor, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (t *pgTx) InsertPayoutRequest(ctx context.Context, r PayoutRequest) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payout_requests
        (id, wallet_id, amount_cents, method, payout_account_id, status, tx_ref, scheduled_for, failure_reason, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10, $11)`,
		r.ID, r.WalletID, r.AmountCents, r.Method, r.PayoutAccountID, r.Status, r.TxRef, r.ScheduledFor,
		r.FailureReason, r.CreatedAt, r.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("tx_ref already assigned to another payout")
	}
	return err
}

func (t *pgTx) GetPayoutRequest(ctx context.Context, id string) (PayoutRequest, error) {
	p, err := scanPayout(t.tx.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id))
	if err != nil {
		return PayoutRequest{}, notFound(err, "payout request")
	}
	return p, nil
}

func (t *pgTx) FindPayoutRequestByTxRef(ctx context.Context, txRef string) (PayoutRequest, error) {
	p, err := scanPayout(t.tx.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE tx_ref = $1`, txRef))
	if err != nil {
		return PayoutRequest{}, notFound(err, "payout for tx_ref")
	}
	return p, nil
}

func (t *pgTx) LockPayoutRequest(ctx context.Context, id string) (PayoutRequest, error) {
	p, err := scanPayout(t.tx.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return PayoutRequest{}, notFound(err, "payout request")
	}
	return p, nil
}

func (t *pgTx) UpdatePayoutRequest(ctx context.Context, r PayoutRequest) error {
	cmd, err := t.tx.Exec(ctx, `UPDATE payout_requests
        SET status = $2, tx_ref = NULLIF($3, ''), scheduled_for = $4, failure_reason = $5, updated_at = $6
        WHERE id = $1`, r.ID, r.Status, r.TxRef, r.ScheduledFor, r.FailureReason, r.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("tx_ref already assigned to another payout")
	}
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return apperr.NotFound("payout request not found")
	}
	return nil
}

func (t *pgTx) ListPayoutRequests(ctx context.Context, filter PayoutFilter) ([]PayoutRequest, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := t.tx.Query(ctx, `SELECT `+payoutColumns+` FROM payout_requests
        WHERE ($1 = '' OR wallet_id = $1) AND ($2 = '' OR status = $2)
        ORDER BY created_at DESC LIMIT $3`, filter.WalletID, string(filter.Status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertExecution(ctx context.Context, e PayoutExecution) error {
	response := e.Response
	if len(response) == 0 {
		response = []byte("{}")
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO payout_executions
        (id, payout_request_id, provider, provider_ref, amount_cents, currency, status, response, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.PayoutRequestID, e.Provider, e.ProviderRef, e.AmountCents, e.Currency, e.Status, response, e.CreatedAt)
	return err
}

func (t *pgTx) ListExecutions(ctx context.Context, payoutRequestID string) ([]PayoutExecution, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, payout_request_id, provider, provider_ref, amount_cents, currency, status, response, created_at
        FROM payout_executions WHERE payout_request_id = $1 ORDER BY created_at`, payoutRequestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PayoutExecution
	for rows.Next() {
		var e PayoutExecution
		if err := rows.Scan(&e.ID, &e.PayoutRequestID, &e.Provider, &e.ProviderRef, &e.AmountCents, &e.Currency,
			&e.Status, &e.Response, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const accountColumns = `id, owner_type, owner_id, type, display_name, details, verified_at, created_at`

func scanAccount(row pgx.Row) (PayoutAccount, error) {
	var (
		a       PayoutAccount
		details []byte
	)
	if err := row.Scan(&a.ID, &a.OwnerType, &a.OwnerID, &a.Type, &a.DisplayName, &details, &a.VerifiedAt, &a.CreatedAt); err != nil {
		return PayoutAccount{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return PayoutAccount{}, fmt.Errorf("decode payout account details: %w", err)
		}
	}
	return a, nil
}

func (t *pgTx) InsertPayoutAccount(ctx context.Context, a PayoutAccount) error {
	details, err := json.Marshal(a.Details)
	if err != nil {
		return fmt.Errorf("encode payout account details: %w", err)
	}
	_, err = t.tx.Exec(ctx, `INSERT INTO payout_accounts (id, owner_type, owner_id, type, display_name, details, verified_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OwnerType, a.OwnerID, a.Type, a.DisplayName, details, a.VerifiedAt, a.CreatedAt)
	return err
}

func (t *pgTx) GetPayoutAccount(ctx context.Context, id string) (PayoutAccount, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM payout_accounts WHERE id = $1`, id))
	if err != nil {
		return PayoutAccount{}, notFound(err, "payout account")
	}
	return a, nil
}

func (t *pgTx) SetPayoutAccountVerified(ctx context.Context, id string, verifiedAt *time.Time) (PayoutAccount, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx, `UPDATE payout_accounts SET verified_at = $2 WHERE id = $1
        RETURNING `+accountColumns, id, verifiedAt))
	if err != nil {
		return PayoutAccount{}, notFound(err, "payout account")
	}
	return a, nil
}

func (t *pgTx) ListPayoutAccounts(ctx context.Context, owner Owner) ([]PayoutAccount, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+accountColumns+` FROM payout_accounts
        WHERE owner_type = $1 AND owner_id = $2 ORDER BY created_at DESC`, owner.Type, owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PayoutAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const kycColumns = `id, owner_type, owner_id, id_type, id_number, doc_urls, notes, status, created_at, updated_at`

func scanKyc(row pgx.Row) (KycRecord, error) {
	var r KycRecord
	err := row.Scan(&r.ID, &r.OwnerType, &r.OwnerID, &r.IDType, &r.IDNumber, &r.DocURLs, &r.Notes, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (t *pgTx) InsertKyc(ctx context.Context, r KycRecord) error {
	docs := r.DocURLs
	if docs == nil {
		docs = []string{}
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO kyc_records (id, owner_type, owner_id, id_type, id_number, doc_urls, notes, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.OwnerType, r.OwnerID, r.IDType, r.IDNumber, docs, r.Notes, r.Status, r.CreatedAt, r.UpdatedAt)
	return err
}

func (t *pgTx) GetKyc(ctx context.Context, id string) (KycRecord, error) {
	r, err := scanKyc(t.tx.QueryRow(ctx, `SELECT `+kycColumns+` FROM kyc_records WHERE id = $1`, id))
	if err != nil {
		return KycRecord{}, notFound(err, "KYC record")
	}
	return r, nil
}

func (t *pgTx) UpdateKycStatus(ctx context.Context, id string, status KycStatus, notes string, now time.Time) (KycRecord, error) {
	r, err := scanKyc(t.tx.QueryRow(ctx, `UPDATE kyc_records SET status = $2, notes = $3, updated_at = $4 WHERE id = $1
        RETURNING `+kycColumns, id, status, notes, now))
	if err != nil {
		return KycRecord{}, notFound(err, "KYC record")
	}
	return r, nil
}

func (t *pgTx) LatestKyc(ctx context.Context, owner Owner) (KycRecord, bool, error) {
	r, err := scanKyc(t.tx.QueryRow(ctx, `SELECT `+kycColumns+` FROM kyc_records
        WHERE owner_type = $1 AND owner_id = $2 ORDER BY updated_at DESC, created_at DESC LIMIT 1`, owner.Type, owner.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return KycRecord{}, false, nil
	}
	if err != nil {
		return KycRecord{}, false, err
	}
	return r, true, nil
}

func (t *pgTx) Standing(ctx context.Context, owner Owner) (OwnerStanding, error) {
	s := OwnerStanding{OwnerType: owner.Type, OwnerID: owner.ID, TrustScore: DefaultTrustScore}
	err := t.tx.QueryRow(ctx, `SELECT suspended, trust_score FROM owner_standings WHERE owner_type = $1 AND owner_id = $2`,
		owner.Type, owner.ID).Scan(&s.Suspended, &s.TrustScore)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return OwnerStanding{}, err
	}
	return s, nil
}

func (t *pgTx) PutStanding(ctx context.Context, s OwnerStanding) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO owner_standings (owner_type, owner_id, suspended, trust_score)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (owner_type, owner_id) DO UPDATE SET suspended = EXCLUDED.suspended, trust_score = EXCLUDED.trust_score`,
		s.OwnerType, s.OwnerID, s.Suspended, s.TrustScore)
	return err
}

func (t *pgTx) GetFlag(ctx context.Context, key string) (FeatureFlag, bool, error) {
	f := FeatureFlag{Key: key}
	err := t.tx.QueryRow(ctx, `SELECT enabled, updated_at FROM feature_flags WHERE key = $1`, key).Scan(&f.Enabled, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return FeatureFlag{}, false, nil
	}
	if err != nil {
		return FeatureFlag{}, false, err
	}
	return f, true, nil
}

func (t *pgTx) PutFlag(ctx context.Context, f FeatureFlag) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO feature_flags (key, enabled, updated_at) VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = EXCLUDED.updated_at`,
		f.Key, f.Enabled, f.UpdatedAt)
	return err
}
