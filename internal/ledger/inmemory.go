package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/propad/propad_wallet/internal/apperr"
)

type memState struct {
	wallets      map[string]Wallet
	walletKeys   map[string]string
	transactions []Transaction
	payouts      []PayoutRequest
	executions   []PayoutExecution
	accounts     map[string]PayoutAccount
	kyc          []KycRecord
	standings    map[string]OwnerStanding
	flags        map[string]FeatureFlag
}

func newMemState() *memState {
	return &memState{
		wallets:    make(map[string]Wallet),
		walletKeys: make(map[string]string),
		accounts:   make(map[string]PayoutAccount),
		standings:  make(map[string]OwnerStanding),
		flags:      make(map[string]FeatureFlag),
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		wallets:      make(map[string]Wallet, len(s.wallets)),
		walletKeys:   make(map[string]string, len(s.walletKeys)),
		transactions: append([]Transaction(nil), s.transactions...),
		payouts:      append([]PayoutRequest(nil), s.payouts...),
		executions:   append([]PayoutExecution(nil), s.executions...),
		accounts:     make(map[string]PayoutAccount, len(s.accounts)),
		kyc:          append([]KycRecord(nil), s.kyc...),
		standings:    make(map[string]OwnerStanding, len(s.standings)),
		flags:        make(map[string]FeatureFlag, len(s.flags)),
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.walletKeys {
		c.walletKeys[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.standings {
		c.standings[k] = v
	}
	for k, v := range s.flags {
		c.flags[k] = v
	}
	return c
}

type inMemoryStore struct {
	mu    sync.Mutex
	state *memState
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit tests
// and local development. Atomic units are serialized by a single mutex and
// work on a copy of the state that is only published on success.
func NewInMemory() Store {
	return &inMemoryStore{state: newMemState()}
}

func (s *inMemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *inMemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

type memTx struct {
	st *memState
}

func walletKey(owner Owner, currency string) string {
	return fmt.Sprintf("%s:%s:%s", owner.Type, owner.ID, currency)
}

func ownerKey(owner Owner) string {
	return string(owner.Type) + ":" + owner.ID
}

func (t *memTx) UpsertWallet(_ context.Context, owner Owner, currency string, now time.Time) (Wallet, error) {
	key := walletKey(owner, currency)
	if id, ok := t.st.walletKeys[key]; ok {
		return t.st.wallets[id], nil
	}
	w := Wallet{
		ID:        uuid.NewString(),
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.st.wallets[w.ID] = w
	t.st.walletKeys[key] = w.ID
	return w, nil
}

func (t *memTx) LockWallet(_ context.Context, id string) (Wallet, error) {
	w, ok := t.st.wallets[id]
	if !ok {
		return Wallet{}, apperr.NotFound("wallet not found")
	}
	return w, nil
}

func (t *memTx) AdjustWallet(_ context.Context, id string, balanceDelta, pendingDelta int64, now time.Time) (Wallet, error) {
	w, ok := t.st.wallets[id]
	if !ok {
		return Wallet{}, apperr.NotFound("wallet not found")
	}
	if w.BalanceCents+balanceDelta < 0 || w.PendingCents+pendingDelta < 0 {
		return Wallet{}, ErrNegativeBalance
	}
	w.BalanceCents += balanceDelta
	w.PendingCents += pendingDelta
	w.UpdatedAt = now
	t.st.wallets[id] = w
	return w, nil
}

func (t *memTx) InsertTransaction(_ context.Context, txn Transaction) error {
	if txn.SourceID != "" {
		for _, existing := range t.st.transactions {
			if existing.WalletID == txn.WalletID && existing.Type == txn.Type &&
				existing.Source == txn.Source && existing.SourceID == txn.SourceID {
				return ErrDuplicateTransaction
			}
		}
	}
	t.st.transactions = append(t.st.transactions, txn)
	return nil
}

func (t *memTx) FindTransactionBySource(_ context.Context, walletID string, typ TransactionType, source Source, sourceID string) (Transaction, bool, error) {
	for _, existing := range t.st.transactions {
		if existing.WalletID == walletID && existing.Type == typ && existing.Source == source && existing.SourceID == sourceID {
			return existing, true, nil
		}
	}
	return Transaction{}, false, nil
}

func (t *memTx) MaturedCredits(_ context.Context, walletID string, now time.Time) ([]Transaction, error) {
	var out []Transaction
	for _, txn := range t.st.transactions {
		if txn.WalletID == walletID && txn.Type == Credit && !txn.AppliedToBalance && !txn.AvailableAt.After(now) {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (t *memTx) MarkApplied(_ context.Context, ids []string) error {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	for i := range t.st.transactions {
		if _, ok := set[t.st.transactions[i].ID]; ok {
			t.st.transactions[i].AppliedToBalance = true
		}
	}
	return nil
}

func (t *memTx) ListTransactions(_ context.Context, walletID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out []Transaction
	for i := len(t.st.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if t.st.transactions[i].WalletID == walletID {
			out = append(out, t.st.transactions[i])
		}
	}
	return out, nil
}

func (t *memTx) SumReserved(_ context.Context, walletID string) (int64, error) {
	var sum int64
	for _, p := range t.st.payouts {
		if p.WalletID == walletID && p.Status.Reserving() {
			sum += p.AmountCents
		}
	}
	return sum, nil
}

func (t *memTx) CountPayoutsSince(_ context.Context, walletID string, since time.Time) (int, error) {
	n := 0
	for _, p := range t.st.payouts {
		if p.WalletID == walletID && !p.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CountPayoutsWithStatus(_ context.Context, walletID string, status PayoutStatus, excludeID string) (int, error) {
	n := 0
	for _, p := range t.st.payouts {
		if p.WalletID == walletID && p.Status == status && p.ID != excludeID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertPayoutRequest(_ context.Context, r PayoutRequest) error {
	if err := t.checkTxRef(r); err != nil {
		return err
	}
	t.st.payouts = append(t.st.payouts, r)
	return nil
}

func (t *memTx) checkTxRef(r PayoutRequest) error {
	if r.TxRef == "" {
		return nil
	}
	for _, p := range t.st.payouts {
		if p.TxRef == r.TxRef && p.ID != r.ID {
			return apperr.Conflict("tx_ref already assigned to another payout")
		}
	}
	return nil
}

func (t *memTx) GetPayoutRequest(_ context.Context, id string) (PayoutRequest, error) {
	for _, p := range t.st.payouts {
		if p.ID == id {
			return p, nil
		}
	}
	return PayoutRequest{}, apperr.NotFound("payout request not found")
}

func (t *memTx) FindPayoutRequestByTxRef(_ context.Context, txRef string) (PayoutRequest, error) {
	if txRef != "" {
		for _, p := range t.st.payouts {
			if p.TxRef == txRef {
				return p, nil
			}
		}
	}
	return PayoutRequest{}, apperr.NotFound("payout not found for tx_ref")
}

func (t *memTx) LockPayoutRequest(ctx context.Context, id string) (PayoutRequest, error) {
	return t.GetPayoutRequest(ctx, id)
}

func (t *memTx) UpdatePayoutRequest(_ context.Context, r PayoutRequest) error {
	if err := t.checkTxRef(r); err != nil {
		return err
	}
	for i := range t.st.payouts {
		if t.st.payouts[i].ID == r.ID {
			t.st.payouts[i] = r
			return nil
		}
	}
	return apperr.NotFound("payout request not found")
}

func (t *memTx) ListPayoutRequests(_ context.Context, filter PayoutFilter) ([]PayoutRequest, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var out []PayoutRequest
	for i := len(t.st.payouts) - 1; i >= 0 && len(out) < limit; i-- {
		p := t.st.payouts[i]
		if filter.WalletID != "" && p.WalletID != filter.WalletID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (t *memTx) InsertExecution(_ context.Context, e PayoutExecution) error {
	t.st.executions = append(t.st.executions, e)
	return nil
}

func (t *memTx) ListExecutions(_ context.Context, payoutRequestID string) ([]PayoutExecution, error) {
	var out []PayoutExecution
	for _, e := range t.st.executions {
		if e.PayoutRequestID == payoutRequestID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) InsertPayoutAccount(_ context.Context, a PayoutAccount) error {
	t.st.accounts[a.ID] = copyAccount(a)
	return nil
}

func (t *memTx) GetPayoutAccount(_ context.Context, id string) (PayoutAccount, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return PayoutAccount{}, apperr.NotFound("payout account not found")
	}
	return copyAccount(a), nil
}

func (t *memTx) SetPayoutAccountVerified(_ context.Context, id string, verifiedAt *time.Time) (PayoutAccount, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return PayoutAccount{}, apperr.NotFound("payout account not found")
	}
	a.VerifiedAt = verifiedAt
	t.st.accounts[id] = a
	return copyAccount(a), nil
}

func (t *memTx) ListPayoutAccounts(_ context.Context, owner Owner) ([]PayoutAccount, error) {
	var out []PayoutAccount
	for _, a := range t.st.accounts {
		if a.OwnerType == owner.Type && a.OwnerID == owner.ID {
			out = append(out, copyAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *memTx) InsertKyc(_ context.Context, r KycRecord) error {
	r.DocURLs = append([]string(nil), r.DocURLs...)
	t.st.kyc = append(t.st.kyc, r)
	return nil
}

func (t *memTx) GetKyc(_ context.Context, id string) (KycRecord, error) {
	for _, r := range t.st.kyc {
		if r.ID == id {
			return r, nil
		}
	}
	return KycRecord{}, apperr.NotFound("KYC record not found")
}

func (t *memTx) UpdateKycStatus(_ context.Context, id string, status KycStatus, notes string, now time.Time) (KycRecord, error) {
	for i := range t.st.kyc {
		if t.st.kyc[i].ID == id {
			t.st.kyc[i].Status = status
			t.st.kyc[i].Notes = notes
			t.st.kyc[i].UpdatedAt = now
			return t.st.kyc[i], nil
		}
	}
	return KycRecord{}, apperr.NotFound("KYC record not found")
}

func (t *memTx) LatestKyc(_ context.Context, owner Owner) (KycRecord, bool, error) {
	var (
		latest KycRecord
		found  bool
	)
	for _, r := range t.st.kyc {
		if r.OwnerType != owner.Type || r.OwnerID != owner.ID {
			continue
		}
		// later inserts win ties so a fresh submission supersedes an older record
		if !found || !r.UpdatedAt.Before(latest.UpdatedAt) {
			latest, found = r, true
		}
	}
	return latest, found, nil
}

func (t *memTx) Standing(_ context.Context, owner Owner) (OwnerStanding, error) {
	if s, ok := t.st.standings[ownerKey(owner)]; ok {
		return s, nil
	}
	return OwnerStanding{OwnerType: owner.Type, OwnerID: owner.ID, TrustScore: DefaultTrustScore}, nil
}

func (t *memTx) PutStanding(_ context.Context, s OwnerStanding) error {
	t.st.standings[ownerKey(Owner{Type: s.OwnerType, ID: s.OwnerID})] = s
	return nil
}

func (t *memTx) GetFlag(_ context.Context, key string) (FeatureFlag, bool, error) {
	f, ok := t.st.flags[key]
	return f, ok, nil
}

func (t *memTx) PutFlag(_ context.Context, f FeatureFlag) error {
	t.st.flags[f.Key] = f
	return nil
}

func copyAccount(a PayoutAccount) PayoutAccount {
	if a.Details != nil {
		details := make(map[string]string, len(a.Details))
		for k, v := range a.Details {
			details[k] = v
		}
		a.Details = details
	}
	return a
}
