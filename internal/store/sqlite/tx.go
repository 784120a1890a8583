package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const securityColumns = `id, symbol, name, isin, cusip, provider_symbol, asset_type, currency,
	exchange, country, sector, industry`

var securityLookupColumn = map[core.SecurityField]string{
	core.FieldSymbol:         "symbol",
	core.FieldISIN:           "isin",
	core.FieldCUSIP:          "cusip",
	core.FieldProviderSymbol: "provider_symbol",
}

// Tx is the transaction of one import.
type Tx struct {
	tx        *sql.Tx
	savepoint int
}

var _ core.Tx = (*Tx)(nil)

func (t *Tx) Commit(ctx context.Context) error { return t.tx.Commit() }

func (t *Tx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// Isolate runs fn inside a savepoint and rolls back to it when fn fails.
func (t *Tx) Isolate(ctx context.Context, fn func() error) error {
	t.savepoint++
	name := fmt.Sprintf("sp_%d", t.savepoint)

	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback savepoint: %w (after %v)", rbErr, err)
		}
		// ROLLBACK TO leaves the savepoint on the stack.
		if _, rlErr := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); rlErr != nil {
			return fmt.Errorf("release savepoint: %w (after %v)", rlErr, err)
		}
		return err
	}
	if _, err := t.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *Tx) GetAccount(ctx context.Context, id uuid.UUID) (*core.Account, error) {
	var a core.Account
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name, currency FROM accounts WHERE id = ?`, id.String(),
	).Scan(&a.ID, &a.Name, &a.Currency)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (t *Tx) ListSecurities(ctx context.Context) ([]core.Security, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT `+securityColumns+` FROM securities WHERE is_active = 1 ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list securities: %w", err)
	}
	defer rows.Close()

	var out []core.Security
	for rows.Next() {
		s, err := scanSecurity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (t *Tx) FindSecurity(ctx context.Context, field core.SecurityField, value string) (*core.Security, error) {
	col, ok := securityLookupColumn[field]
	if !ok {
		return nil, fmt.Errorf("unsupported security field %q", field)
	}
	row := t.tx.QueryRowContext(ctx,
		`SELECT `+securityColumns+` FROM securities WHERE is_active = 1 AND `+col+` = ? ORDER BY created_at LIMIT 1`,
		value)
	s, err := scanSecurity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find security by %s: %w", field, err)
	}
	return &s, nil
}

func (t *Tx) CreateSecurity(ctx context.Context, ns core.NewSecurity) (*core.Security, error) {
	s := core.Security{
		ID:             uuid.New(),
		Symbol:         ns.Symbol,
		Name:           ns.Name,
		ProviderSymbol: ns.ProviderSymbol,
		AssetType:      ns.AssetType,
		Currency:       ns.Currency,
		Exchange:       ns.Exchange,
		Country:        ns.Country,
		Sector:         ns.Sector,
		Industry:       ns.Industry,
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO securities (id, symbol, name, provider_symbol, asset_type, currency,
		                        exchange, country, sector, industry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.Symbol, s.Name, nullString(s.ProviderSymbol), string(s.AssetType), s.Currency,
		nullString(s.Exchange), nullString(s.Country), nullString(s.Sector), nullString(s.Industry))
	if err != nil {
		return nil, fmt.Errorf("insert security: %w", err)
	}
	return &s, nil
}

func (t *Tx) CreateTransaction(ctx context.Context, tr core.NormalizedTransaction) error {
	var securityID sql.NullString
	if tr.SecurityID.Valid {
		securityID = sql.NullString{String: tr.SecurityID.UUID.String(), Valid: true}
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, security_id, type, subtype, quantity, price,
		                          amount, fees, currency, trade_date, description, source, import_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID.String(), tr.AccountID.String(), securityID, tr.Type, nullString(tr.Subtype),
		nullDecimal(tr.Quantity), nullDecimal(tr.Price), tr.Amount.String(), tr.Fees.String(),
		tr.Currency, formatDate(tr.TradeDate), nullString(tr.Description), tr.Source, tr.ImportID.String())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *Tx) CreateHolding(ctx context.Context, h core.NormalizedHolding) error {
	if !h.Quantity.IsPositive() {
		return fmt.Errorf("insert holding: quantity must be positive, got %s", h.Quantity)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO holdings (id, account_id, security_id, quantity, cost_basis_per_share,
		                      cost_basis_total, institution_price, market_value, currency,
		                      as_of_date, source, import_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID.String(), h.AccountID.String(), h.SecurityID.String(), h.Quantity.String(),
		nullDecimal(h.CostBasisPerShare), nullDecimal(h.CostBasisTotal),
		nullDecimal(h.InstitutionPrice), nullDecimal(h.MarketValue),
		h.Currency, formatDate(h.AsOfDate), h.Source, h.ImportID.String())
	if err != nil {
		return fmt.Errorf("insert holding: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSecurity(row scanner) (core.Security, error) {
	var (
		s                                   core.Security
		assetType                           string
		isin, cusip, providerSymbol         sql.NullString
		exchange, country, sector, industry sql.NullString
	)
	err := row.Scan(&s.ID, &s.Symbol, &s.Name, &isin, &cusip, &providerSymbol, &assetType, &s.Currency,
		&exchange, &country, &sector, &industry)
	if err != nil {
		return s, err
	}
	s.AssetType = core.AssetType(assetType)
	s.ISIN = isin.String
	s.CUSIP = cusip.String
	s.ProviderSymbol = providerSymbol.String
	s.Exchange = exchange.String
	s.Country = country.String
	s.Sector = sector.String
	s.Industry = industry.String
	return s, nil
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func formatDate(t time.Time) string { return t.Format(dateLayout) }
