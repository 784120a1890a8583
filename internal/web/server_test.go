package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/portfolio-import/internal/config"
	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/JonMunkholm/portfolio-import/internal/store/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tradesCSV = "date,type,symbol,quantity,price,fees\n" +
	"2024-01-15,buy,AAPL,10,150.00,1.00\n" +
	"2024-01-20,sell,AAPL,5,160.00,1.00\n"

type testEnv struct {
	server  *Server
	service *core.Service
	account uuid.UUID
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import: config.ImportConfig{
			MaxFileSize:   1 << 20,
			MaxConcurrent: 2,
			MaxWait:       time.Second,
			Timeout:       time.Minute,
			MaxWarnings:   100,
			MaxErrors:     50,
		},
		Rate:     config.RateLimitConfig{Enabled: false},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	return newTestEnvWithStore(t, mutate, nil)
}

// newTestEnvWithStore is newTestEnv with the SQLite store wrapped by wrap.
func newTestEnvWithStore(t *testing.T, mutate func(*config.Config), wrap func(*sqlite.Store) core.Store) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "web.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	var store core.Store = db
	if wrap != nil {
		store = wrap(db)
	}

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	service := core.NewService(store, nil, core.ServiceOptions{
		MaxConcurrent:   cfg.Import.MaxConcurrent,
		MaxWait:         cfg.Import.MaxWait,
		ImportTimeout:   cfg.Import.Timeout,
		DefaultCurrency: "USD",
	})
	account, err := service.CreateAccount(ctx, "Brokerage", "USD")
	require.NoError(t, err)

	srv := NewServer(service, cfg)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testEnv{server: srv, service: service, account: account.ID}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path, csv string, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if csv != "" {
		part, err := mw.CreateFormFile("file", "upload.csv")
		require.NoError(t, err)
		_, err = part.Write([]byte(csv))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func (e *testEnv) importPath(kind string) string {
	return "/api/accounts/" + e.account.String() + "/imports/" + kind
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) core.ImportResult {
	t.Helper()
	var r core.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func TestImport_Success(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(uploadRequest(t, env.importPath("transactions"), tradesCSV, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	r := decodeResult(t, rec)
	assert.True(t, r.Success)
	assert.Equal(t, core.Summary{ProcessedCount: 2, SuccessCount: 2, WarningsCount: 1}, r.Summary)
	require.Len(t, r.CreatedSecurities, 1)
	assert.Equal(t, "AAPL", r.CreatedSecurities[0].Symbol)
	assert.Equal(t, core.StatusMinimalData, r.CreatedSecurities[0].Status)
	require.Len(t, r.Warnings, 1)
	assert.Contains(t, r.Warnings[0], "Created minimal security for 'AAPL'")
}

func TestImport_RowErrorsStill200(t *testing.T) {
	env := newTestEnv(t, nil)
	csv := tradesCSV + "2024-02-01,bonus,AAPL,1,1,0\n"

	rec := env.do(uploadRequest(t, env.importPath("transactions"), csv, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	r := decodeResult(t, rec)
	assert.False(t, r.Success)
	assert.Equal(t, 1, r.Summary.ErrorCount)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "Row 4: Invalid transaction type 'bonus'. Valid types: "+strings.Join(core.ValidTransactionTypes(), ", "), r.Errors[0])
}

// abortingStore fails imports at Begin or at Commit.
type abortingStore struct {
	*sqlite.Store
	beginErr  error
	commitErr error
}

func (s abortingStore) Begin(ctx context.Context) (core.Tx, error) {
	if s.beginErr != nil {
		return nil, fmt.Errorf("begin transaction: %w", s.beginErr)
	}
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return commitFailingTx{Tx: tx, err: s.commitErr}, nil
}

type commitFailingTx struct {
	core.Tx
	err error
}

// Commit ends the transaction like a failed commit would.
func (tx commitFailingTx) Commit(ctx context.Context) error {
	if tx.err != nil {
		_ = tx.Tx.Rollback(ctx)
		return tx.err
	}
	return tx.Tx.Commit(ctx)
}

func TestImport_AbortedRunStillReturnsResult(t *testing.T) {
	tests := []struct {
		name      string
		store     func(*sqlite.Store) core.Store
		want      int
		wantError string
	}{
		{
			name:      "timed out",
			store:     func(db *sqlite.Store) core.Store { return abortingStore{Store: db, beginErr: context.DeadlineExceeded} },
			want:      http.StatusServiceUnavailable,
			wantError: "Processing failed: could not start transaction",
		},
		{
			name:      "commit failed",
			store:     func(db *sqlite.Store) core.Store { return abortingStore{Store: db, commitErr: errors.New("connection reset")} },
			want:      http.StatusInternalServerError,
			wantError: "Processing failed: could not commit import",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnvWithStore(t, nil, tt.store)

			rec := env.do(uploadRequest(t, env.importPath("transactions"), tradesCSV, nil))
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			r := decodeResult(t, rec)
			assert.False(t, r.Success)
			assert.Contains(t, r.Errors, tt.wantError)
		})
	}
}

func TestImport_StructuralErrorIs422(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(uploadRequest(t, env.importPath("transactions"), "date,symbol,quantity\n2024-01-01,AAPL,1\n", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	r := decodeResult(t, rec)
	assert.False(t, r.Success)
	assert.Equal(t, []string{"Missing required columns in transactions CSV: type"}, r.Errors)
}

func TestImport_RequestErrors(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Import.MaxFileSize = 512 })

	tests := []struct {
		name     string
		path     string
		csv      string
		wantCode int
		wantErr  string
	}{
		{"unknown account", "/api/accounts/" + uuid.NewString() + "/imports/transactions", tradesCSV, http.StatusNotFound, "IMP002"},
		{"invalid account id", "/api/accounts/nope/imports/transactions", tradesCSV, http.StatusBadRequest, "IMP002"},
		{"unknown kind", env.importPath("dividends"), tradesCSV, http.StatusBadRequest, "IMP003"},
		{"no file", env.importPath("transactions"), "", http.StatusBadRequest, "FILE004"},
		{"too large", env.importPath("transactions"), tradesCSV + strings.Repeat("2024-01-15,buy,AAPL,1,1,0\n", 40), http.StatusRequestEntityTooLarge, "FILE001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(uploadRequest(t, tt.path, tt.csv, nil))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantErr, decodeError(t, rec).Code)
		})
	}
}

func TestImport_DryRunIsNotRecorded(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(uploadRequest(t, env.importPath("transactions"), tradesCSV, map[string]string{"dry_run": "true"}))
	require.Equal(t, http.StatusOK, rec.Code)
	r := decodeResult(t, rec)
	assert.True(t, r.DryRun)
	assert.True(t, r.Success)

	runs, err := env.service.History(context.Background(), env.account, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestImport_TruncatesErrors(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Import.MaxErrors = 1 })
	csv := "date,type,symbol,quantity,price\n" +
		"2024-01-01,bonus,AAPL,1,1\n" +
		"2024-01-02,bonus,AAPL,1,1\n"

	rec := env.do(uploadRequest(t, env.importPath("transactions"), csv, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	r := decodeResult(t, rec)
	assert.Len(t, r.Errors, 1)
	assert.True(t, r.HasMoreErrors)
	assert.Equal(t, 2, r.Summary.ErrorCount)
}

func TestImport_HTMLResultPage(t *testing.T) {
	env := newTestEnv(t, nil)
	req := uploadRequest(t, env.importPath("transactions"), tradesCSV, nil)
	req.Header.Set("Accept", "text/html")

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Import committed.")
	assert.Contains(t, rec.Body.String(), "upload.csv")
}

func TestImportHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(uploadRequest(t, env.importPath("transactions"), tradesCSV, map[string]string{"source": "broker"})).Code)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/accounts/"+env.account.String()+"/imports?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Imports []core.ImportRun `json:"imports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Imports, 1)
	run := body.Imports[0]
	assert.Equal(t, core.StateCommitted, run.Status)
	assert.Equal(t, "broker", run.Source)
	assert.Equal(t, "upload.csv", run.FileName)
	assert.Equal(t, 2, run.Succeeded)
}

func TestTemplates(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/templates/holdings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "holdings_template.csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "date,symbol,quantity,"))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/templates/transactions/info", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var info core.TemplateInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, core.KindTransaction, info.Kind)
	assert.Contains(t, info.RequiredColumns, "type")
	assert.NotEmpty(t, info.TransactionTypes)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/templates/bonds", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFormatsAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/formats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var formats core.SupportedFormats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &formats))
	assert.Equal(t, []string{"csv"}, formats.FileTypes)
	assert.Len(t, formats.Currencies, len(core.SupportedCurrencies()))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"imports_max":2`)
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestAPIKeyAuth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret-key"}
	})

	tests := []struct {
		name     string
		key      string
		wantCode int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "other", http.StatusForbidden},
		{"valid", "secret-key", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/formats", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			assert.Equal(t, tt.wantCode, env.do(req).Code)
		})
	}

	// Health checks stay open.
	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, ImportLimit: 1}
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/api/formats", nil)).Code)
	}
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/formats", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := &rateLimiter{
		visitors: map[string]*visitor{},
		rate:     1,
		window:   time.Minute,
		now:      func() time.Time { return now },
	}

	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"))

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("10.0.0.1"))
}
