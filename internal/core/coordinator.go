package core

// coordinator.go drives one import run:
//
//	Idle -> StructuralValidationFailed
//	Idle -> RowsProcessing -> Committed | RolledBack
//
// Rows are processed strictly in file order. Each row runs inside its own
// savepoint so a failing insert never disturbs the others, but the commit is
// all-or-nothing: a single failed row, a dry run, or cancellation rolls back
// the whole file.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImportRequest is one file to import.
type ImportRequest struct {
	AccountID uuid.UUID
	Kind      ImportKind
	Body      io.Reader
	FileName  string
	Source    string // tag stored on every record; defaults to "csv"
	DryRun    bool
}

// CoordinatorOptions configures an ImportCoordinator.
type CoordinatorOptions struct {
	DefaultCurrency string
	ProviderTimeout time.Duration
	Matcher         Matcher
	Logger          *slog.Logger
}

// ImportCoordinator runs imports against a store.
type ImportCoordinator struct {
	store     Store
	providers []MarketDataProvider
	opts      CoordinatorOptions
}

func NewImportCoordinator(store Store, providers []MarketDataProvider, opts CoordinatorOptions) *ImportCoordinator {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ImportCoordinator{store: store, providers: providers, opts: opts}
}

// Run imports one file. It always returns a result describing what happened.
// The error is non-nil for file-level failures (wrapping ErrMalformedFile or
// ErrStructural), a missing account, store failures and cancellation; row
// failures are reported only through the result.
func (c *ImportCoordinator) Run(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	result := NewImportResult(uuid.New(), req.Kind, req.DryRun)
	logger := c.opts.Logger.With("import_id", result.ImportID, "kind", req.Kind, "account_id", req.AccountID)
	defer result.finish()

	if _, ok := Lookup(req.Kind); !ok {
		return result, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}

	parsed, err := ParseRows(req.Body)
	if err != nil {
		result.State = StateStructuralValidationFailed
		result.AddFileError(err.Error())
		logger.Warn("import rejected", "error", err)
		return result, err
	}

	renamed := make([]string, 0, len(parsed.Renamed))
	for canonical := range parsed.Renamed {
		renamed = append(renamed, canonical)
	}
	sort.Strings(renamed)
	for _, canonical := range renamed {
		result.AddWarning(fmt.Sprintf("Column '%s' was read as '%s'", parsed.Renamed[canonical], canonical))
	}

	report := ValidateStructure(parsed.Columns, req.Kind)
	for _, w := range report.Warnings {
		result.AddWarning(w)
	}
	if report.Fatal() {
		result.State = StateStructuralValidationFailed
		for _, e := range report.Errors {
			result.AddFileError(e)
		}
		logger.Warn("import rejected", "errors", report.Errors)
		return result, &FileError{Kind: ErrStructural, Message: strings.Join(report.Errors, "; ")}
	}

	tx, err := c.store.Begin(ctx)
	if err != nil {
		result.State = StateRolledBack
		result.AddFileError("Processing failed: could not start transaction")
		return result, fmt.Errorf("begin import transaction: %w", err)
	}
	done := false
	defer func() {
		if !done {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logger.Error("rollback failed", "error", rbErr)
			}
		}
	}()

	account, err := tx.GetAccount(ctx, req.AccountID)
	if err != nil {
		result.State = StateRolledBack
		result.AddFileError("Processing failed: could not load account")
		return result, fmt.Errorf("get account: %w", err)
	}
	if account == nil {
		result.State = StateRolledBack
		result.AddFileError(fmt.Sprintf("Account %s not found", req.AccountID))
		return result, ErrAccountNotFound
	}

	source := req.Source
	if source == "" {
		source = "csv"
	}
	run := &importRun{
		tx:        tx,
		kind:      req.Kind,
		dryRun:    req.DryRun,
		result:    result,
		logger:    logger,
		validator: NewRowValidator(req.Kind),
		resolver: NewSecurityResolver(tx, result, ResolverOptions{
			Providers:       c.providers,
			Matcher:         c.opts.Matcher,
			ProviderTimeout: c.opts.ProviderTimeout,
			Logger:          logger,
		}),
		normalizer: &RowNormalizer{
			Account:         account,
			DefaultCurrency: c.opts.DefaultCurrency,
			Source:          source,
			ImportID:        result.ImportID,
		},
	}

	result.State = StateRowsProcessing
	logger.Info("import started", "rows", len(parsed.Rows), "bytes", parsed.Bytes, "dry_run", req.DryRun)

	for _, row := range parsed.Rows {
		if err := ctx.Err(); err != nil {
			result.State = StateRolledBack
			result.AddFileError(fmt.Sprintf("Import cancelled after %d rows: %v", result.Summary.ProcessedCount, err))
			logger.Warn("import cancelled", "processed", result.Summary.ProcessedCount)
			return result, err
		}

		result.Summary.ProcessedCount++
		if msgs := run.processRow(ctx, row); len(msgs) > 0 {
			result.AddRowErrors(row.Line, msgs...)
			continue
		}
		result.Summary.SuccessCount++
	}

	done = true
	if req.DryRun || result.Summary.ErrorCount > 0 {
		result.State = StateRolledBack
		if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
			logger.Error("rollback failed", "error", err)
		}
		logger.Info("import rolled back",
			"processed", result.Summary.ProcessedCount,
			"failed", result.Summary.ErrorCount,
			"dry_run", req.DryRun)
		return result, nil
	}

	if err := tx.Commit(ctx); err != nil {
		result.State = StateRolledBack
		result.AddFileError("Processing failed: could not commit import")
		return result, fmt.Errorf("commit import: %w", err)
	}
	result.State = StateCommitted
	logger.Info("import committed",
		"processed", result.Summary.ProcessedCount,
		"created_securities", len(result.CreatedSecurities))
	return result, nil
}

// importRun is the per-run state threaded through row processing.
type importRun struct {
	tx         Tx
	kind       ImportKind
	dryRun     bool
	result     *ImportResult
	logger     *slog.Logger
	validator  *RowValidator
	resolver   *SecurityResolver
	normalizer *RowNormalizer
}

// processRow validates, resolves, normalizes and persists one row. It returns
// the row's error messages, empty on success.
func (r *importRun) processRow(ctx context.Context, row ImportRow) []string {
	if v := r.validator.ValidateRow(row); !v.Valid {
		return v.Messages()
	}

	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return r.persistRow(ctx, row)
	}()
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrUnresolved) {
		return []string{fmt.Sprintf("Could not resolve security '%s'", NormalizeIdentifier(row.Value("symbol")))}
	}
	r.logger.Error("row failed", "line", row.Line, "error", err)
	return []string{fmt.Sprintf("Error processing row: %v", err)}
}

func (r *importRun) persistRow(ctx context.Context, row ImportRow) error {
	var sec *Security
	if symbol := row.Value("symbol"); symbol != "" {
		s, err := r.resolver.Resolve(ctx, symbol)
		if err != nil {
			return err
		}
		sec = s
	}

	// Securities are created in their own savepoint by the resolver, so a
	// failed record insert does not undo a security other rows may reuse.
	switch r.kind {
	case KindHolding:
		h := r.normalizer.Holding(row, sec)
		if r.dryRun {
			return nil
		}
		return r.tx.Isolate(ctx, func() error { return r.tx.CreateHolding(ctx, h) })
	default:
		t := r.normalizer.Transaction(row, sec)
		if r.dryRun {
			return nil
		}
		return r.tx.Isolate(ctx, func() error { return r.tx.CreateTransaction(ctx, t) })
	}
}
