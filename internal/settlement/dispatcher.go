package settlement

import (
	"github.com/propad/propad_wallet/internal/apperr"
	"github.com/propad/propad_wallet/internal/ledger"
)

// Dispatcher picks the provider for a payout method. The first provider that
// can handle the method wins.
type Dispatcher struct {
	providers []Provider
}

// NewDispatcher builds a dispatcher over providers, in priority order.
func NewDispatcher(providers ...Provider) *Dispatcher {
	return &Dispatcher{providers: providers}
}

// DefaultDispatcher returns the built-in provider set.
func DefaultDispatcher() *Dispatcher {
	return NewDispatcher(MobileMoneyProvider{}, BankProvider{}, ManualProvider{})
}

// Resolve returns the provider for method or NO_PROVIDER.
func (d *Dispatcher) Resolve(method ledger.Method) (Provider, error) {
	for _, p := range d.providers {
		if p.CanHandle(method) {
			return p, nil
		}
	}
	return nil, apperr.ErrNoProvider
}
