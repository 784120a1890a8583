package core

// resolver.go maps the identifier of a row to a security, creating one when
// nothing in the store matches.
//
// Strategies run in a fixed order and the first hit wins:
//
//	cache -> exact -> fuzzy symbol -> pattern -> providers -> minimal record
//
// Only the last two write to the store. The cache remembers both hits and
// definitive failures, so each distinct identifier pays for at most one
// lookup sequence per run.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	symbolFuzzyThreshold = 85
	isinFuzzyThreshold   = 90
	cusipFuzzyThreshold  = 95

	DefaultProviderTimeout = 10 * time.Second
)

// SecurityCache holds the outcome of every identifier resolved in one run.
// A nil security is a cached failure. It is not safe for concurrent use.
type SecurityCache struct {
	entries map[string]*Security
}

func NewSecurityCache() *SecurityCache {
	return &SecurityCache{entries: make(map[string]*Security)}
}

// Get returns the cached outcome and whether there is one.
func (c *SecurityCache) Get(id string) (*Security, bool) {
	s, ok := c.entries[id]
	return s, ok
}

func (c *SecurityCache) Put(id string, s *Security) { c.entries[id] = s }

func (c *SecurityCache) Len() int { return len(c.entries) }

// resolveStrategy returns a security, nil to fall through, or an error to
// stop the chain.
type resolveStrategy struct {
	name string
	fn   func(ctx context.Context, id string) (*Security, error)
}

// ResolverOptions configures a SecurityResolver.
type ResolverOptions struct {
	Providers       []MarketDataProvider // queried in order
	Matcher         Matcher              // defaults to RatioMatcher
	ProviderTimeout time.Duration
	Logger          *slog.Logger
}

// SecurityResolver resolves identifiers within one import transaction.
type SecurityResolver struct {
	tx        Tx
	result    *ImportResult
	cache     *SecurityCache
	providers []MarketDataProvider
	matcher   Matcher
	timeout   time.Duration
	logger    *slog.Logger

	snapshot   []Security
	loaded     bool
	strategies []resolveStrategy
}

// NewSecurityResolver builds a resolver with a fresh cache. Created and
// failed securities are recorded on result.
func NewSecurityResolver(tx Tx, result *ImportResult, opts ResolverOptions) *SecurityResolver {
	r := &SecurityResolver{
		tx:        tx,
		result:    result,
		cache:     NewSecurityCache(),
		providers: opts.Providers,
		matcher:   opts.Matcher,
		timeout:   opts.ProviderTimeout,
		logger:    opts.Logger,
	}
	if r.matcher == nil {
		r.matcher = RatioMatcher{}
	}
	if r.timeout <= 0 {
		r.timeout = DefaultProviderTimeout
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.strategies = []resolveStrategy{
		{"exact", r.exactMatch},
		{"fuzzy_symbol", r.fuzzySymbolMatch},
		{"pattern", r.patternMatch},
		{"market_data", r.createFromProviders},
		{"minimal", r.createMinimal},
	}
	return r
}

// Resolve returns the security for identifier. It returns ErrUnresolved
// when a creation attempt for the identifier failed earlier in this run.
func (r *SecurityResolver) Resolve(ctx context.Context, identifier string) (*Security, error) {
	id := NormalizeIdentifier(identifier)
	if id == "" {
		return nil, errors.New("empty security identifier")
	}

	if s, ok := r.cache.Get(id); ok {
		if s == nil {
			return nil, fmt.Errorf("%w: '%s'", ErrUnresolved, id)
		}
		return s, nil
	}

	for _, st := range r.strategies {
		s, err := st.fn(ctx, id)
		if errors.Is(err, ErrUnresolved) {
			r.cache.Put(id, nil)
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s (%s): %w", id, st.name, err)
		}
		if s != nil {
			r.logger.Debug("security resolved", "identifier", id, "strategy", st.name, "security_id", s.ID)
			r.cache.Put(id, s)
			return s, nil
		}
	}

	// createMinimal always returns a security or an error.
	return nil, fmt.Errorf("%w: '%s'", ErrUnresolved, id)
}

func (r *SecurityResolver) exactMatch(ctx context.Context, id string) (*Security, error) {
	for _, field := range exactMatchFields {
		s, err := r.tx.FindSecurity(ctx, field, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
	}
	return nil, nil
}

// loadSnapshot reads the securities used for fuzzy matching once per run.
// Securities created later in the run are reached through the cache.
func (r *SecurityResolver) loadSnapshot(ctx context.Context) error {
	if r.loaded {
		return nil
	}
	all, err := r.tx.ListSecurities(ctx)
	if err != nil {
		return err
	}
	r.snapshot = all
	r.loaded = true
	return nil
}

// fuzzyMatch scores id against one identifier field of the snapshot.
func (r *SecurityResolver) fuzzyMatch(ctx context.Context, id string, field SecurityField, threshold float64) (*Security, error) {
	if err := r.loadSnapshot(ctx); err != nil {
		return nil, err
	}
	if len(r.snapshot) == 0 {
		return nil, nil
	}

	candidates := make([]string, len(r.snapshot))
	for i, s := range r.snapshot {
		switch field {
		case FieldISIN:
			candidates[i] = s.ISIN
		case FieldCUSIP:
			candidates[i] = s.CUSIP
		default:
			candidates[i] = s.Symbol
		}
	}

	idx, score, ok := r.matcher.BestMatch(id, candidates, threshold)
	if !ok {
		return nil, nil
	}
	match := r.snapshot[idx]
	r.logger.Info("fuzzy security match", "identifier", id, "field", field, "matched", candidates[idx], "score", score)
	return &match, nil
}

func (r *SecurityResolver) fuzzySymbolMatch(ctx context.Context, id string) (*Security, error) {
	return r.fuzzyMatch(ctx, id, FieldSymbol, symbolFuzzyThreshold)
}

func (r *SecurityResolver) patternMatch(ctx context.Context, id string) (*Security, error) {
	switch {
	case IsISIN(id):
		return r.exactThenFuzzy(ctx, id, FieldISIN, isinFuzzyThreshold)
	case IsCUSIP(id):
		return r.exactThenFuzzy(ctx, id, FieldCUSIP, cusipFuzzyThreshold)
	}

	for _, v := range symbolVariants(id) {
		s, err := r.exactMatch(ctx, v)
		if err != nil || s != nil {
			return s, err
		}
	}
	return nil, nil
}

func (r *SecurityResolver) exactThenFuzzy(ctx context.Context, id string, field SecurityField, threshold float64) (*Security, error) {
	s, err := r.tx.FindSecurity(ctx, field, id)
	if err != nil || s != nil {
		return s, err
	}
	return r.fuzzyMatch(ctx, id, field, threshold)
}

// createFromProviders asks each provider in turn and creates the security
// from the first usable overview.
func (r *SecurityResolver) createFromProviders(ctx context.Context, id string) (*Security, error) {
	for _, p := range r.providers {
		ov := r.fetch(ctx, p, id)
		if !ov.Usable() {
			continue
		}

		currency := ov.Currency
		if !IsSupportedCurrency(currency) {
			currency = InferCurrency(id)
		}
		create := NewSecurity{
			Symbol:         id,
			Name:           ov.Name,
			AssetType:      ov.AssetType,
			Currency:       currency,
			ProviderSymbol: id,
			Exchange:       ov.Exchange,
			Country:        ov.Country,
			Sector:         ov.Sector,
			Industry:       ov.Industry,
		}
		return r.create(ctx, create, p.Name(), StatusSuccess)
	}
	return nil, nil
}

// fetch bounds one provider call. Errors and timeouts count as no data.
func (r *SecurityResolver) fetch(ctx context.Context, p MarketDataProvider, id string) *Overview {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ov, err := p.FetchOverview(callCtx, id)
	if err != nil {
		r.logger.Warn("market data lookup failed", "provider", p.Name(), "identifier", id, "error", err)
		return nil
	}
	return ov
}

func (r *SecurityResolver) createMinimal(ctx context.Context, id string) (*Security, error) {
	create := NewSecurity{
		Symbol:         id,
		Name:           fmt.Sprintf("Unknown Security (%s)", id),
		AssetType:      InferAssetType(id),
		Currency:       InferCurrency(id),
		ProviderSymbol: id,
	}
	s, err := r.create(ctx, create, SourceManual, StatusMinimalData)
	if err != nil {
		return nil, err
	}
	r.result.AddWarning(fmt.Sprintf(
		"Created minimal security for '%s' - market data unavailable. Please review and update security details manually.", id))
	return s, nil
}

// create persists a security inside its own savepoint and records the
// outcome on the result. A failure becomes ErrUnresolved.
func (r *SecurityResolver) create(ctx context.Context, ns NewSecurity, source, status string) (*Security, error) {
	var created *Security
	err := r.tx.Isolate(ctx, func() error {
		s, err := r.tx.CreateSecurity(ctx, ns)
		created = s
		return err
	})
	if err == nil && created == nil {
		err = errors.New("store returned no security")
	}
	if err != nil {
		msg := fmt.Sprintf("Failed to create security for %s: %v", ns.Symbol, err)
		r.logger.Error("security creation failed", "identifier", ns.Symbol, "source", source, "error", err)
		r.result.RecordFailed(FailedSecurity{Symbol: ns.Symbol, Source: source, Error: msg})
		return nil, fmt.Errorf("%w: '%s'", ErrUnresolved, ns.Symbol)
	}

	r.logger.Info("security created", "identifier", ns.Symbol, "source", source, "status", status, "security_id", created.ID)
	r.result.RecordCreated(CreatedSecurity{Symbol: created.Symbol, Name: created.Name, Source: source, Status: status})
	return created, nil
}
