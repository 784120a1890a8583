package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/portfolio-import/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const securityColumns = `id, symbol, name, isin, cusip, provider_symbol, asset_type, currency,
	exchange, country, sector, industry`

// securityLookupColumn whitelists the columns FindSecurity may filter on.
var securityLookupColumn = map[core.SecurityField]string{
	core.FieldSymbol:         "symbol",
	core.FieldISIN:           "isin",
	core.FieldCUSIP:          "cusip",
	core.FieldProviderSymbol: "provider_symbol",
}

// Tx is the transaction of one import.
type Tx struct {
	tx        pgx.Tx
	savepoint int
}

var _ core.Tx = (*Tx)(nil)

func (t *Tx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *Tx) Rollback(ctx context.Context) error { return ignoreClosed(t.tx.Rollback(ctx)) }

func ignoreClosed(err error) error {
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// Isolate runs fn inside a savepoint and rolls back to it when fn fails.
func (t *Tx) Isolate(ctx context.Context, fn func() error) error {
	t.savepoint++
	name := fmt.Sprintf("sp_%d", t.savepoint)

	if _, err := t.tx.Exec(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := t.tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback savepoint: %w (after %v)", rbErr, err)
		}
		// ROLLBACK TO leaves the savepoint on the stack.
		if _, rlErr := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+name); rlErr != nil {
			return fmt.Errorf("release savepoint: %w (after %v)", rlErr, err)
		}
		return err
	}
	if _, err := t.tx.Exec(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (t *Tx) GetAccount(ctx context.Context, id uuid.UUID) (*core.Account, error) {
	var (
		a     core.Account
		rawID pgtype.UUID
	)
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, currency FROM accounts WHERE id = $1`, toPgUUID(id),
	).Scan(&rawID, &a.Name, &a.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	a.ID = fromPgUUID(rawID)
	return &a, nil
}

func (t *Tx) ListSecurities(ctx context.Context) ([]core.Security, error) {
	return listSecurities(ctx, t.tx)
}

func (t *Tx) FindSecurity(ctx context.Context, field core.SecurityField, value string) (*core.Security, error) {
	col, ok := securityLookupColumn[field]
	if !ok {
		return nil, fmt.Errorf("unsupported security field %q", field)
	}
	rows, err := t.tx.Query(ctx,
		`SELECT `+securityColumns+` FROM securities WHERE is_active AND `+col+` = $1 ORDER BY created_at LIMIT 1`,
		value)
	if err != nil {
		return nil, fmt.Errorf("find security by %s: %w", field, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	s, err := scanSecurity(rows)
	if err != nil {
		return nil, err
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
	_, err := t.tx.Exec(ctx, `
		INSERT INTO securities (id, symbol, name, provider_symbol, asset_type, currency,
		                        exchange, country, sector, industry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		toPgUUID(s.ID), s.Symbol, s.Name, toPgText(s.ProviderSymbol), string(s.AssetType), s.Currency,
		toPgText(s.Exchange), toPgText(s.Country), toPgText(s.Sector), toPgText(s.Industry))
	if err != nil {
		return nil, fmt.Errorf("insert security: %w", err)
	}
	return &s, nil
}

func (t *Tx) CreateTransaction(ctx context.Context, tr core.NormalizedTransaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transactions (id, account_id, security_id, type, subtype, quantity, price,
		                          amount, fees, currency, trade_date, description, source, import_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		toPgUUID(tr.ID), toPgUUID(tr.AccountID), toPgNullUUID(tr.SecurityID),
		tr.Type, toPgText(tr.Subtype),
		toPgNullNumeric(tr.Quantity), toPgNullNumeric(tr.Price),
		toPgNumeric(tr.Amount), toPgNumeric(tr.Fees),
		tr.Currency, toPgDate(tr.TradeDate), toPgText(tr.Description), tr.Source, toPgUUID(tr.ImportID))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *Tx) CreateHolding(ctx context.Context, h core.NormalizedHolding) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO holdings (id, account_id, security_id, quantity, cost_basis_per_share,
		                      cost_basis_total, institution_price, market_value, currency,
		                      as_of_date, source, import_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		toPgUUID(h.ID), toPgUUID(h.AccountID), toPgUUID(h.SecurityID),
		toPgNumeric(h.Quantity), toPgNullNumeric(h.CostBasisPerShare),
		toPgNullNumeric(h.CostBasisTotal), toPgNullNumeric(h.InstitutionPrice),
		toPgNullNumeric(h.MarketValue), h.Currency,
		toPgDate(h.AsOfDate), h.Source, toPgUUID(h.ImportID))
	if err != nil {
		return fmt.Errorf("insert holding: %w", err)
	}
	return nil
}

func listSecurities(ctx context.Context, q querier) ([]core.Security, error) {
	rows, err := q.Query(ctx, `SELECT `+securityColumns+` FROM securities WHERE is_active ORDER BY symbol`)
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

func scanSecurity(rows pgx.Rows) (core.Security, error) {
	var (
		s                                   core.Security
		id                                  pgtype.UUID
		assetType                           string
		isin, cusip, providerSymbol         pgtype.Text
		exchange, country, sector, industry pgtype.Text
	)
	err := rows.Scan(&id, &s.Symbol, &s.Name, &isin, &cusip, &providerSymbol, &assetType, &s.Currency,
		&exchange, &country, &sector, &industry)
	if err != nil {
		return s, fmt.Errorf("scan security: %w", err)
	}
	s.ID = fromPgUUID(id)
	s.AssetType = core.AssetType(assetType)
	s.ISIN = fromPgText(isin)
	s.CUSIP = fromPgText(cusip)
	s.ProviderSymbol = fromPgText(providerSymbol)
	s.Exchange = fromPgText(exchange)
	s.Country = fromPgText(country)
	s.Sector = fromPgText(sector)
	s.Industry = fromPgText(industry)
	return s, nil
}
