// Package postgres implements the import store on PostgreSQL through pgx.
//
// Every import runs in one pgx.Tx. Record inserts that may fail are wrapped
// in a savepoint because PostgreSQL aborts the whole transaction on any
// statement error.
package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolOptions tunes the connection pool. Zero values keep the pgx defaults.
type PoolOptions struct {
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store is a core.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// Open connects to databaseURL and verifies the connection.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Migrate applies the embedded schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Begin starts the transaction of one import.
func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) CreateAccount(ctx context.Context, name, currency string) (*core.Account, error) {
	a := core.Account{ID: uuid.New(), Name: name, Currency: currency}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (id, name, currency) VALUES ($1, $2, $3)`,
		toPgUUID(a.ID), a.Name, a.Currency)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return &a, nil
}

func (s *Store) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO import_runs (
			id, account_id, kind, file_name, source, status,
			processed_count, success_count, error_count, warnings_count, created_securities,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		toPgUUID(run.ID), toPgUUID(run.AccountID), string(run.Kind), toPgText(run.FileName),
		run.Source, string(run.Status),
		run.Processed, run.Succeeded, run.Failed, run.Warnings, run.CreatedSecurities,
		toPgTimestamptz(run.StartedAt), toPgTimestamptz(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// ListImportRuns returns the newest runs of an account first.
func (s *Store) ListImportRuns(ctx context.Context, accountID uuid.UUID, limit int) ([]core.ImportRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, account_id, kind, file_name, source, status,
		       processed_count, success_count, error_count, warnings_count, created_securities,
		       started_at, finished_at
		FROM import_runs
		WHERE account_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, toPgUUID(accountID), limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	defer rows.Close()

	var runs []core.ImportRun
	for rows.Next() {
		run, err := scanImportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanImportRun(rows pgx.Rows) (core.ImportRun, error) {
	var (
		run                core.ImportRun
		id, account        pgtype.UUID
		kind, status       string
		fileName           pgtype.Text
		started, finished  pgtype.Timestamptz
		processed, success int32
		failed, warnings   int32
		created            int32
	)
	err := rows.Scan(&id, &account, &kind, &fileName, &run.Source, &status,
		&processed, &success, &failed, &warnings, &created, &started, &finished)
	if err != nil {
		return run, fmt.Errorf("scan import run: %w", err)
	}
	run.ID = fromPgUUID(id)
	run.AccountID = fromPgUUID(account)
	run.Kind = core.ImportKind(kind)
	run.FileName = fromPgText(fileName)
	run.Status = core.ImportState(status)
	run.Processed = int(processed)
	run.Succeeded = int(success)
	run.Failed = int(failed)
	run.Warnings = int(warnings)
	run.CreatedSecurities = int(created)
	run.StartedAt = started.Time
	run.FinishedAt = finished.Time
	return run, nil
}
