package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(store *memStore, providers ...MarketDataProvider) *ImportCoordinator {
	return NewImportCoordinator(store, providers, CoordinatorOptions{DefaultCurrency: "USD"})
}

func runImport(t *testing.T, c *ImportCoordinator, account uuid.UUID, kind ImportKind, body string, dryRun bool) (*ImportResult, error) {
	t.Helper()
	return c.Run(context.Background(), ImportRequest{
		AccountID: account,
		Kind:      kind,
		Body:      strings.NewReader(body),
		FileName:  "upload.csv",
		DryRun:    dryRun,
	})
}

func assertCountsAddUp(t *testing.T, r *ImportResult) {
	t.Helper()
	assert.Equal(t, r.Summary.ProcessedCount, r.Summary.SuccessCount+r.Summary.ErrorCount)
	assert.Equal(t, len(r.Warnings), r.Summary.WarningsCount)
}

func TestRun_CommitsTransactions(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	aapl := store.addSecurity(Security{Symbol: "AAPL", Name: "Apple Inc."})

	body := "date,type,symbol,quantity,price,fees\n" +
		"2024-01-15,buy,AAPL,10,150.00,1.00\n" +
		"2024-01-20,sell,AAPL,5,160.00,1.00\n" +
		"2024-02-01,transfer_in,AAPL,2,,\n"

	r, err := runImport(t, newTestCoordinator(store), acct.ID, KindTransaction, body, false)
	require.NoError(t, err)

	assert.True(t, r.Success)
	assert.Equal(t, StateCommitted, r.State)
	assert.Equal(t, Summary{ProcessedCount: 3, SuccessCount: 3}, r.Summary)
	assert.Empty(t, r.Errors)
	assert.Empty(t, r.CreatedSecurities)
	assertCountsAddUp(t, r)

	saved := store.committed()
	require.Len(t, saved.transactions, 3)
	types := []string{saved.transactions[0].Type, saved.transactions[1].Type, saved.transactions[2].Type}
	assert.Equal(t, []string{"trade", "trade", "transfer"}, types)
	for _, tr := range saved.transactions {
		assert.Equal(t, aapl.ID, tr.SecurityID.UUID)
		assert.Equal(t, r.ImportID, tr.ImportID)
		assert.Equal(t, acct.ID, tr.AccountID)
	}
	assert.Equal(t, 1, store.commits)
}

func TestRun_CommitsHoldings(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	store.addSecurity(Security{Symbol: "AAPL"})
	store.addSecurity(Security{Symbol: "MSFT"})

	body := "date,symbol,quantity,cost_basis,institution_price\n2024-01-01,AAPL,100,145,185\n2024-01-01,MSFT,50,,\n"
	r, err := runImport(t, newTestCoordinator(store), acct.ID, KindHolding, body, false)
	require.NoError(t, err)
	assert.True(t, r.Success)
	assert.Len(t, store.committed().holdings, 2)
}

func TestRun_MissingRequiredColumn(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")

	r, err := runImport(t, newTestCoordinator(store), acct.ID, KindTransaction,
		"date,symbol,quantity\n2024-01-15,AAPL,10\n", false)

	require.ErrorIs(t, err, ErrStructural)
	assert.False(t, r.Success)
	assert.Equal(t, StateStructuralValidationFailed, r.State)
	assert.Equal(t, 0, r.Summary.ProcessedCount)
	assert.Equal(t, []string{"Missing required columns in transactions CSV: type"}, r.Errors)
	assert.Equal(t, 0, store.commits+store.rollbacks, "no transaction is opened")
}

func TestRun_RejectsMalformedFiles(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	c := newTestCoordinator(store)

	for _, body := range []string{"", "date,type\n", "date,type\n2024-01-15,caf\xe9\n"} {
		r, err := runImport(t, c, acct.ID, KindTransaction, body, false)
		require.ErrorIs(t, err, ErrMalformedFile, "%q", body)
		assert.False(t, r.Success)
		assert.Len(t, r.Errors, 1)
		assert.Equal(t, 0, r.Summary.ProcessedCount)
	}
}

func TestRun_UnknownKind(t *testing.T) {
	store := newMemStore()
	_, err := runImport(t, newTestCoordinator(store), uuid.New(), ImportKind("lots"), "a\n1\n", false)
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestRun_AccountNotFound(t *testing.T) {
	store := newMemStore()
	missing := uuid.New()

	r, err := runImport(t, newTestCoordinator(store), missing, KindTransaction,
		"date,type,amount\n2024-01-15,deposit,100\n", false)

	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, []string{"Account " + missing.String() + " not found"}, r.Errors)
	assert.Equal(t, StateRolledBack, r.State)
	assert.Equal(t, 1, store.rollbacks)
}

func TestRun_AllOrNothing(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	store.addSecurity(Security{Symbol: "AAPL"})

	body := "date,type,symbol,quantity,price\n" +
		"2024-01-15,buy,AAPL,10,150\n" +
		"2024-01-16,deposit,,,\n" +
		"2024-01-17,bonus,AAPL,1,1\n"

	r, err := runImport(t, newTestCoordinator(store), acct.ID, KindTransaction, body, false)
	require.NoError(t, err)

	assert.False(t, r.Success)
	assert.Equal(t, StateRolledBack, r.State)
	assert.Equal(t, Summary{ProcessedCount: 3, SuccessCount: 2, ErrorCount: 1}, r.Summary)
	require.Len(t, r.Errors, 1)
	assert.True(t, strings.HasPrefix(r.Errors[0], "Row 4: Invalid transaction type 'bonus'"), r.Errors[0])
	assert.Empty(t, store.committed().transactions)
	assert.Equal(t, 0, store.commits)
	assertCountsAddUp(t, r)
}

func TestRun_HoldingNegativeQuantity(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	store.addSecurity(Security{Symbol: "AAPL"})

	r, err := runImport(t, newTestCoordinator(store), acct.ID, KindHolding,
		"date,symbol,quantity\n2024-01-15,AAPL,-5\n", false)
	require.NoError(t, err)

	assert.False(t, r.Success)
	assert.Equal(t, []string{"Row 2: Quantity must be greater than 0"}, r.Errors)
	assert.Equal(t, 1, r.Summary.ErrorCount)
	assert.Empty(t, store.committed().holdings)
}

func TestRun_RowWithSeveralErrorsCountsOnce(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")

	r, err := runImport(t, newTestCoordinator(store), acct.ID, KindTransaction,
		"date,type,symbol,quantity,price\n2024-01-15,buy,,,\n", false)
	require.NoError(t, err)

	assert.Equal(t, 1, r.Summary.ErrorCount)
	assert.Len(t, r.Errors, 3)
	for _, e := range r.Errors {
		assert.True(t, strings.HasPrefix(e, "Row 2: "), e)
	}
}

func TestRun_DryRun(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	provider := newMockProvider("alphavantage")
	provider.On("FetchOverview", mock.Anything, "ZZZZUNKNOWN").Return(nil, nil)

	body := "date,type,symbol,quantity,price\n2024-01-15,buy,ZZZZUNKNOWN,1,10\n"
	r, err := runImport(t, newTestCoordinator(store, provider), acct.ID, KindTransaction, body, true)
	require.NoError(t, err)

	assert.True(t, r.Success)
	assert.True(t, r.DryRun)
	assert.Equal(t, StateRolledBack, r.State)
	assert.Equal(t, 1, r.Summary.SuccessCount)
	require.Len(t, r.CreatedSecurities, 1)
	assert.Equal(t, StatusMinimalData, r.CreatedSecurities[0].Status)

	saved := store.committed()
	assert.Empty(t, saved.transactions)
	assert.Empty(t, saved.securities, "securities created during a dry run are rolled back")
	assert.Equal(t, 0, store.commits)
}

func TestRun_CreatesUnknownSecurityOnce(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	provider := newMockProvider("alphavantage")
	provider.On("FetchOverview", mock.Anything, "ZZZZUNKNOWN").Return(nil, nil)

	body := "date,type,symbol,quantity,price\n" +
		"2024-01-15,buy,ZZZZUNKNOWN,1,10\n" +
		"2024-01-16,buy,zzzzunknown,2,11\n"
	r, err := runImport(t, newTestCoordinator(store, provider), acct.ID, KindTransaction, body, false)
	require.NoError(t, err)

	assert.True(t, r.Success)
	provider.AssertNumberOfCalls(t, "FetchOverview", 1)
	assert.Len(t, r.CreatedSecurities, 1)
	assert.Len(t, r.Warnings, 1)

	saved := store.committed()
	require.Len(t, saved.securities, 1)
	assert.Equal(t, "Unknown Security (ZZZZUNKNOWN)", saved.securities[0].Name)
	require.Len(t, saved.transactions, 2)
	assert.Equal(t, saved.transactions[0].SecurityID, saved.transactions[1].SecurityID)
}

func TestRun_UnresolvedSecurity(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	store.failCreateSec = map[string]error{"BROKEN": errors.New("constraint")}

	body := "date,type,symbol,quantity,price\n" +
		"2024-01-15,buy,BROKEN,1,10\n" +
		"2024-01-16,sell,BROKEN,1,10\n"
	r, err := runImport(t, newTestCoordinator(store), acct.ID, KindTransaction, body, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Row 2: Could not resolve security 'BROKEN'",
		"Row 3: Could not resolve security 'BROKEN'",
	}, r.Errors)
	assert.Len(t, r.FailedSecurities, 1)
	assert.Equal(t, 2, r.Summary.ErrorCount)
}

func TestRun_PersistFailureIsRowError(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	store.failCreateTx = errors.New("disk full")

	r, err := runImport(t, newTestCoordinator(store), acct.ID, KindTransaction,
		"date,type,amount\n2024-01-15,deposit,100\n", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Row 2: Error processing row: disk full"}, r.Errors)
	assert.Equal(t, StateRolledBack, r.State)
}

func TestRun_AliasWarnings(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")
	store.addSecurity(Security{Symbol: "AAPL"})

	body := "Trade Date,Activity,Ticker,Qty,Unit Price,Notes\n2024-01-15,buy,AAPL,1,150,first lot\n"
	r, err := runImport(t, newTestCoordinator(store), acct.ID, KindTransaction, body, false)
	require.NoError(t, err)

	assert.True(t, r.Success)
	assert.Equal(t, []string{
		"Column 'trade date' was read as 'date'",
		"Column 'unit price' was read as 'price'",
		"Column 'qty' was read as 'quantity'",
		"Column 'ticker' was read as 'symbol'",
		"Column 'activity' was read as 'type'",
		"Unknown columns in transactions CSV will be ignored: notes",
	}, r.Warnings)
}

func TestRun_Cancellation(t *testing.T) {
	store := newMemStore()
	acct := store.addAccount("USD")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	provider := newMockProvider("alphavantage")
	provider.On("FetchOverview", mock.Anything, "NEW1").
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, nil)

	body := "date,type,symbol,quantity,price\n" +
		"2024-01-15,buy,NEW1,1,10\n" +
		"2024-01-16,buy,NEW2,1,10\n"
	r, err := newTestCoordinator(store, provider).Run(ctx, ImportRequest{
		AccountID: acct.ID,
		Kind:      KindTransaction,
		Body:      strings.NewReader(body),
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateRolledBack, r.State)
	assert.Equal(t, 1, r.Summary.ProcessedCount)
	assert.False(t, r.Success)
	assert.Equal(t, 1, store.rollbacks)
	assert.Empty(t, store.committed().transactions)
	assert.Empty(t, store.committed().securities)
	provider.AssertNotCalled(t, "FetchOverview", mock.Anything, "NEW2")
}
