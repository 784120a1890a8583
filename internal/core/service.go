package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ServiceOptions configures a Service. Zero values use the defaults.
type ServiceOptions struct {
	MaxConcurrent   int
	MaxWait         time.Duration
	ImportTimeout   time.Duration
	ProviderTimeout time.Duration
	DefaultCurrency string
	Matcher         Matcher
	Logger          *slog.Logger
}

// DefaultImportTimeout bounds a single import run.
const DefaultImportTimeout = 10 * time.Minute

// Service is the entry point used by the HTTP server and the CLI.
type Service struct {
	store       Store
	coordinator *ImportCoordinator
	limiter     *ImportLimiter
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a Service over store. Providers are queried in order.
func NewService(store Store, providers []MarketDataProvider, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ImportTimeout <= 0 {
		opts.ImportTimeout = DefaultImportTimeout
	}
	return &Service{
		store: store,
		coordinator: NewImportCoordinator(store, providers, CoordinatorOptions{
			DefaultCurrency: opts.DefaultCurrency,
			ProviderTimeout: opts.ProviderTimeout,
			Matcher:         opts.Matcher,
			Logger:          opts.Logger,
		}),
		limiter: NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		timeout: opts.ImportTimeout,
		logger:  opts.Logger,
		now:     time.Now,
	}
}

// Import runs one import under the concurrency limit and records it in the
// import history unless it was a dry run or never reached an account.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := s.now()
	result, runErr := s.coordinator.Run(ctx, req)

	if !req.DryRun && recordable(runErr) {
		run := newImportRun(req, result, started, s.now())
		if err := s.store.RecordImportRun(context.WithoutCancel(ctx), run); err != nil {
			s.logger.Error("record import run failed", "import_id", run.ID, "error", err)
		}
	}

	s.logger.Info("import finished",
		"import_id", result.ImportID,
		"client_ip", ClientIPFromContext(ctx),
		"actor", ActorFromContext(ctx),
		"success", result.Success,
		"duration", s.now().Sub(started))
	return result, runErr
}

// recordable reports whether a run got far enough to belong in the history.
func recordable(err error) bool {
	return !errors.Is(err, ErrAccountNotFound) && !errors.Is(err, ErrUnknownKind)
}

// History returns the most recent import runs of an account, newest first.
func (s *Service) History(ctx context.Context, accountID uuid.UUID, limit int) ([]ImportRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := s.store.ListImportRuns(ctx, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list import runs: %w", err)
	}
	return runs, nil
}

// CreateAccount creates an account to import into.
func (s *Service) CreateAccount(ctx context.Context, name, currency string) (*Account, error) {
	if name == "" {
		return nil, errors.New("account name is required")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}
	if !IsSupportedCurrency(currency) {
		return nil, fmt.Errorf("unsupported currency %q", currency)
	}
	return s.store.CreateAccount(ctx, name, currency)
}

// LimiterStatus reports the import slots in use.
func (s *Service) LimiterStatus() LimiterStatus { return s.limiter.Status() }

// WaitForImports blocks until running imports finish, for graceful shutdown.
func (s *Service) WaitForImports(ctx context.Context) error { return s.limiter.Drain(ctx) }
