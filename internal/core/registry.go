package core

import (
	"fmt"
	"sort"
	"sync"
)

// KindSpec describes the columns and documentation of one import kind.
type KindSpec struct {
	Kind        ImportKind
	Description string
	Required    []string
	Optional    []string
	Notes       []string
	Example     [][]string // template rows, header first
}

// Known reports whether col is a required or optional column of the kind.
func (s KindSpec) Known(col string) bool {
	for _, c := range s.Required {
		if c == col {
			return true
		}
	}
	for _, c := range s.Optional {
		if c == col {
			return true
		}
	}
	return false
}

var (
	registry   = make(map[ImportKind]KindSpec)
	registryMu sync.RWMutex
)

// Register adds a kind spec. Panics if the kind is already registered.
func Register(spec KindSpec) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[spec.Kind]; exists {
		panic(fmt.Sprintf("import kind already registered: %s", spec.Kind))
	}
	registry[spec.Kind] = spec
}

// Lookup returns the spec for a kind.
func Lookup(kind ImportKind) (KindSpec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	spec, ok := registry[kind]
	return spec, ok
}

// Kinds returns all registered specs sorted by kind.
func Kinds() []KindSpec {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]KindSpec, 0, len(registry))
	for _, spec := range registry {
		result = append(result, spec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Kind < result[j].Kind })
	return result
}

func init() {
	Register(KindSpec{
		Kind:        KindTransaction,
		Description: "Import transaction history for an account",
		Required:    []string{"date", "type"},
		Optional:    []string{"symbol", "quantity", "price", "amount", "fees", "currency", "description"},
		Notes: []string{
			"Symbol is required for buy/sell transactions",
			"Quantity and price must be greater than 0 for buy/sell",
			"Amount defaults to quantity x price when not supplied",
			"Currency defaults to the account currency if not specified",
			"Securities are matched automatically and created when not found",
		},
		Example: [][]string{
			{"date", "type", "symbol", "quantity", "price", "fees", "currency", "description"},
			{"2024-01-15", "buy", "AAPL", "100", "150.00", "9.99", "USD", "Apple stock purchase"},
			{"2024-01-20", "sell", "MSFT", "50", "380.00", "9.99", "USD", "Microsoft partial sale"},
			{"2024-02-01", "dividend", "AAPL", "", "", "0", "USD", "Q1 2024 dividend"},
			{"2024-02-15", "deposit", "", "", "", "0", "USD", "Monthly contribution"},
			{"2024-03-01", "buy", "SPY", "25", "450.00", "4.99", "USD", "S&P 500 ETF purchase"},
			{"2024-03-10", "fee", "", "", "", "0", "USD", "Account maintenance fee"},
		},
	})

	Register(KindSpec{
		Kind:        KindHolding,
		Description: "Import current positions for an account",
		Required:    []string{"date", "symbol", "quantity"},
		Optional:    []string{"cost_basis", "institution_price", "currency"},
		Notes: []string{
			"Symbol and quantity are always required",
			"Quantity must be greater than 0",
			"Cost basis is the per-share cost",
			"Currency defaults to the account currency if not specified",
			"Use CASH as the symbol for cash positions",
		},
		Example: [][]string{
			{"date", "symbol", "quantity", "cost_basis", "institution_price", "currency"},
			{"2024-01-01", "AAPL", "100", "145.00", "185.00", "USD"},
			{"2024-01-01", "MSFT", "75", "350.00", "", "USD"},
			{"2024-01-01", "SPY", "50", "425.00", "", "USD"},
			{"2024-01-01", "CASH", "15000.00", "", "", "USD"},
		},
	})
}
