package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ImportKind selects the row shape of an import. It is fixed for the whole run.
type ImportKind string

const (
	KindTransaction ImportKind = "transactions"
	KindHolding     ImportKind = "holdings"
)

// ParseImportKind accepts the singular or plural form, case-insensitively.
func ParseImportKind(s string) (ImportKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transaction", "transactions":
		return KindTransaction, nil
	case "holding", "holdings":
		return KindHolding, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k ImportKind) String() string { return string(k) }

// AssetType is the broad classification of a security.
type AssetType string

const (
	AssetEquity AssetType = "equity"
	AssetETF    AssetType = "etf"
	AssetFund   AssetType = "fund"
	AssetCrypto AssetType = "crypto"
	AssetCash   AssetType = "cash"
	AssetOther  AssetType = "other"
)

// SecurityField names an identifier column that exact matching can look up.
type SecurityField string

const (
	FieldSymbol         SecurityField = "symbol"
	FieldISIN           SecurityField = "isin"
	FieldCUSIP          SecurityField = "cusip"
	FieldProviderSymbol SecurityField = "provider_symbol"
)

// exactMatchFields is the lookup order for exact identifier matching.
var exactMatchFields = []SecurityField{FieldSymbol, FieldISIN, FieldCUSIP, FieldProviderSymbol}

// Security is the canonical security entity owned by the store.
type Security struct {
	ID             uuid.UUID
	Symbol         string
	Name           string
	ISIN           string
	CUSIP          string
	ProviderSymbol string
	AssetType      AssetType
	Currency       string
	Exchange       string
	Country        string
	Sector         string
	Industry       string
}

// NewSecurity holds the fields needed to create a security.
type NewSecurity struct {
	Symbol         string
	Name           string
	AssetType      AssetType
	Currency       string
	ProviderSymbol string
	Exchange       string
	Country        string
	Sector         string
	Industry       string
}

// Account owns imported transactions and holdings.
type Account struct {
	ID       uuid.UUID
	Name     string
	Currency string
}

// NormalizedTransaction is a validated transaction row ready for persistence.
type NormalizedTransaction struct {
	ID          uuid.UUID
	AccountID   uuid.UUID
	SecurityID  uuid.NullUUID
	Type        string
	Subtype     string // empty when the type has no subtype
	Quantity    decimal.NullDecimal
	Price       decimal.NullDecimal
	Amount      decimal.Decimal
	Fees        decimal.Decimal
	Currency    string
	TradeDate   time.Time
	Description string
	Source      string
	ImportID    uuid.UUID
}

// NormalizedHolding is a validated holding row ready for persistence.
type NormalizedHolding struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	SecurityID        uuid.UUID
	Quantity          decimal.Decimal
	CostBasisPerShare decimal.NullDecimal
	CostBasisTotal    decimal.NullDecimal
	InstitutionPrice  decimal.NullDecimal
	MarketValue       decimal.NullDecimal
	Currency          string
	AsOfDate          time.Time
	Source            string
	ImportID          uuid.UUID
}

// Store is the persistence collaborator. Every import runs inside one Tx.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	CreateAccount(ctx context.Context, name, currency string) (*Account, error)
	RecordImportRun(ctx context.Context, run ImportRun) error
	ListImportRuns(ctx context.Context, accountID uuid.UUID, limit int) ([]ImportRun, error)
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is the transaction scope of a single import. Lookups return nil, nil
// when nothing matches.
type Tx interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	ListSecurities(ctx context.Context) ([]Security, error)
	FindSecurity(ctx context.Context, field SecurityField, value string) (*Security, error)
	CreateSecurity(ctx context.Context, s NewSecurity) (*Security, error)
	CreateTransaction(ctx context.Context, t NormalizedTransaction) error
	CreateHolding(ctx context.Context, h NormalizedHolding) error

	// Isolate runs fn inside a savepoint. A failing fn leaves the
	// transaction usable for the following rows.
	Isolate(ctx context.Context, fn func() error) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Overview is the descriptive data a market-data provider returns.
type Overview struct {
	Symbol    string
	Name      string
	AssetType AssetType
	Currency  string
	Exchange  string
	Country   string
	Sector    string
	Industry  string
}

// Usable reports whether the overview carries enough data to create a security.
func (o *Overview) Usable() bool {
	return o != nil && strings.TrimSpace(o.Name) != "" && o.AssetType != ""
}

// MarketDataProvider fetches descriptive data for an identifier. A nil
// overview with a nil error means the provider knows nothing about it.
type MarketDataProvider interface {
	Name() string
	FetchOverview(ctx context.Context, identifier string) (*Overview, error)
}
