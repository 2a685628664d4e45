package ledger

import (
	"time"

	"github.com/google/uuid"
)

// SeedWallet is a test helper that creates (or overwrites) a wallet with the given
// spendable balance when using the in-memory store. It returns the zero Wallet
// for other backends.
func SeedWallet(s Store, owner Owner, currency string, balance int64) Wallet {
	mem, ok := s.(*inMemoryStore)
	if !ok {
		return Wallet{}
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()

	key := walletKey(owner, currency)
	id, exists := mem.state.walletKeys[key]
	if !exists {
		id = uuid.NewString()
		mem.state.walletKeys[key] = id
	}
	now := time.Now().UTC()
	w := Wallet{
		ID:           id,
		OwnerType:    owner.Type,
		OwnerID:      owner.ID,
		Currency:     currency,
		BalanceCents: balance,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	mem.state.wallets[id] = w
	return w
}
