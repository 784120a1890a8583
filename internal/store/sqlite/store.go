// Package sqlite implements the import store on an embedded SQLite database
// through the pure Go modernc.org/sqlite driver. It backs the CLI, local
// development and integration tests.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

//go:embed schema.sql
var schemaSQL string

// timeLayout sorts lexically in time order.
const (
	timeLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout = "2006-01-02"
)

// Store is a core.Store backed by one SQLite file.
type Store struct {
	db   *sql.DB
	path string
}

var _ core.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		path = absPath
	}

	db, err := sql.Open("sqlite", buildConnectionString(path))
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	// One writer at a time; an import transaction holds the connection.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database %s: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

func buildConnectionString(path string) string {
	connStr := path + "?_pragma=journal_mode(WAL)"
	connStr += "&_pragma=synchronous(NORMAL)"
	connStr += "&_pragma=foreign_keys(1)"
	connStr += "&_pragma=busy_timeout(5000)"
	return connStr
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Begin(ctx context.Context) (core.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) CreateAccount(ctx context.Context, name, currency string) (*core.Account, error) {
	a := core.Account{ID: uuid.New(), Name: name, Currency: currency}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, name, currency) VALUES (?, ?, ?)`,
		a.ID.String(), a.Name, a.Currency)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return &a, nil
}

func (s *Store) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO import_runs (
			id, account_id, kind, file_name, source, status,
			processed_count, success_count, error_count, warnings_count, created_securities,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID.String(), run.AccountID.String(), string(run.Kind), nullString(run.FileName),
		run.Source, string(run.Status),
		run.Processed, run.Succeeded, run.Failed, run.Warnings, run.CreatedSecurities,
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

func (s *Store) ListImportRuns(ctx context.Context, accountID uuid.UUID, limit int) ([]core.ImportRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, kind, file_name, source, status,
		       processed_count, success_count, error_count, warnings_count, created_securities,
		       started_at, finished_at
		FROM import_runs
		WHERE account_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, accountID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query import runs: %w", err)
	}
	defer rows.Close()

	var runs []core.ImportRun
	for rows.Next() {
		var (
			run               core.ImportRun
			kind, status      string
			fileName          sql.NullString
			started, finished string
		)
		err := rows.Scan(&run.ID, &run.AccountID, &kind, &fileName, &run.Source, &status,
			&run.Processed, &run.Succeeded, &run.Failed, &run.Warnings, &run.CreatedSecurities,
			&started, &finished)
		if err != nil {
			return nil, fmt.Errorf("scan import run: %w", err)
		}
		run.Kind = core.ImportKind(kind)
		run.Status = core.ImportState(status)
		run.FileName = fileName.String
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
