package core

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memState is the data held by memStore.
type memState struct {
	accounts     map[uuid.UUID]Account
	securities   []Security
	transactions []NormalizedTransaction
	holdings     []NormalizedHolding
}

func (s memState) clone() memState {
	out := memState{accounts: make(map[uuid.UUID]Account, len(s.accounts))}
	for k, v := range s.accounts {
		out.accounts[k] = v
	}
	out.securities = append([]Security(nil), s.securities...)
	out.transactions = append([]NormalizedTransaction(nil), s.transactions...)
	out.holdings = append([]NormalizedHolding(nil), s.holdings...)
	return out
}

// memStore is an in-memory Store with transaction and savepoint semantics.
type memStore struct {
	mu    sync.Mutex
	state memState
	runs  []ImportRun

	findCalls     int
	failCreateSec map[string]error // symbol -> error returned by CreateSecurity
	failCreateTx  error
	commits       int
	rollbacks     int
}

func newMemStore() *memStore {
	return &memStore{state: memState{accounts: make(map[uuid.UUID]Account)}}
}

func (m *memStore) addAccount(currency string) Account {
	a := Account{ID: uuid.New(), Name: "Brokerage", Currency: currency}
	m.state.accounts[a.ID] = a
	return a
}

func (m *memStore) addSecurity(s Security) Security {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.state.securities = append(m.state.securities, s)
	return s
}

func (m *memStore) Begin(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &memTx{store: m, state: m.state.clone()}, nil
}

func (m *memStore) CreateAccount(ctx context.Context, name, currency string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := Account{ID: uuid.New(), Name: name, Currency: currency}
	m.state.accounts[a.ID] = a
	return &a, nil
}

func (m *memStore) RecordImportRun(ctx context.Context, run ImportRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

func (m *memStore) ListImportRuns(ctx context.Context, accountID uuid.UUID, limit int) ([]ImportRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ImportRun
	for i := len(m.runs) - 1; i >= 0 && len(out) < limit; i-- {
		if m.runs[i].AccountID == accountID {
			out = append(out, m.runs[i])
		}
	}
	return out, nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

func (m *memStore) committed() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

type memTx struct {
	store *memStore
	state memState
	done  bool
}

func (t *memTx) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, ok := t.state.accounts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (t *memTx) ListSecurities(ctx context.Context) ([]Security, error) {
	return append([]Security(nil), t.state.securities...), nil
}

func (t *memTx) FindSecurity(ctx context.Context, field SecurityField, value string) (*Security, error) {
	t.store.findCalls++
	for _, s := range t.state.securities {
		var v string
		switch field {
		case FieldSymbol:
			v = s.Symbol
		case FieldISIN:
			v = s.ISIN
		case FieldCUSIP:
			v = s.CUSIP
		case FieldProviderSymbol:
			v = s.ProviderSymbol
		}
		if v != "" && v == value {
			found := s
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) CreateSecurity(ctx context.Context, ns NewSecurity) (*Security, error) {
	if err := t.store.failCreateSec[ns.Symbol]; err != nil {
		return nil, err
	}
	s := Security{
		ID:             uuid.New(),
		Symbol:         ns.Symbol,
		Name:           ns.Name,
		AssetType:      ns.AssetType,
		Currency:       ns.Currency,
		ProviderSymbol: ns.ProviderSymbol,
		Exchange:       ns.Exchange,
		Country:        ns.Country,
		Sector:         ns.Sector,
		Industry:       ns.Industry,
	}
	t.state.securities = append(t.state.securities, s)
	return &s, nil
}

func (t *memTx) CreateTransaction(ctx context.Context, tr NormalizedTransaction) error {
	if t.store.failCreateTx != nil {
		return t.store.failCreateTx
	}
	t.state.transactions = append(t.state.transactions, tr)
	return nil
}

func (t *memTx) CreateHolding(ctx context.Context, h NormalizedHolding) error {
	t.state.holdings = append(t.state.holdings, h)
	return nil
}

func (t *memTx) Isolate(ctx context.Context, fn func() error) error {
	saved := t.state.clone()
	if err := fn(); err != nil {
		t.state = saved
		return err
	}
	return nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return errors.New("tx closed")
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.state = t.state
	t.store.commits++
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.rollbacks++
	return nil
}

// mockProvider is a testify mock of MarketDataProvider.
type mockProvider struct {
	mock.Mock
	name string
}

func newMockProvider(name string) *mockProvider {
	return &mockProvider{name: name}
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) FetchOverview(ctx context.Context, identifier string) (*Overview, error) {
	args := m.Called(ctx, identifier)
	var ov *Overview
	if v := args.Get(0); v != nil {
		ov = v.(*Overview)
	}
	return ov, args.Error(1)
}

// countingMatcher wraps RatioMatcher and counts invocations.
type countingMatcher struct {
	calls int
}

func (c *countingMatcher) BestMatch(query string, candidates []string, threshold float64) (int, float64, bool) {
	c.calls++
	return RatioMatcher{}.BestMatch(query, candidates, threshold)
}
