package gateway

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Band is the amount range a provider serves for one currency: Min < amount <= Max.
type Band struct {
	Currency string
	Min      decimal.Decimal
	Max      decimal.Decimal
}

func (b Band) Contains(currency string, amount decimal.Decimal) bool {
	return b.Currency == currency && amount.GreaterThan(b.Min) && amount.LessThanOrEqual(b.Max)
}

// DefaultBands is the NGN band served by every provider we ship.
func DefaultBands() []Band {
	return []Band{{
		Currency: "NGN",
		Min:      decimal.NewFromInt(100),
		Max:      decimal.NewFromInt(3_000_000),
	}}
}

type registration struct {
	provider Provider
	bands    []Band
}

// Registry resolves providers by name or by currency/amount band. Providers are
// tried in registration order.
type Registry struct {
	mu      sync.RWMutex
	entries []registration
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds p with the bands it serves, replacing an earlier registration of the same name.
func (r *Registry) Register(p Provider, bands ...Band) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.provider.Name() == p.Name() {
			r.entries[i] = registration{provider: p, bands: bands}
			return
		}
	}
	r.entries = append(r.entries, registration{provider: p, bands: bands})
}

// Resolve returns the first provider whose band contains amount in currency.
func (r *Registry) Resolve(currency string, amount decimal.Decimal) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		for _, b := range e.bands {
			if b.Contains(currency, amount) {
				return e.provider, true
			}
		}
	}
	return nil, false
}

func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if string(e.provider.Name()) == name {
			return e.provider, true
		}
	}
	return nil, false
}
