package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// typeMapping maps a CSV transaction type to its stored type and subtype.
var typeMapping = map[string][2]string{
	"buy":          {"trade", "buy"},
	"sell":         {"trade", "sell"},
	"dividend":     {"income", "dividend"},
	"interest":     {"income", "interest"},
	"fee":          {"expense", "fee"},
	"deposit":      {"transfer", "deposit"},
	"withdrawal":   {"transfer", "withdrawal"},
	"transfer_in":  {"transfer", "in"},
	"transfer_out": {"transfer", "out"},
	"split":        {"corporate_action", "split"},
	"spinoff":      {"corporate_action", "spinoff"},
}

// MapTransactionType returns the stored type and subtype for a CSV type.
// Unknown types map to ("other", "").
func MapTransactionType(csvType string) (string, string) {
	if m, ok := typeMapping[strings.ToLower(strings.TrimSpace(csvType))]; ok {
		return m[0], m[1]
	}
	return "other", ""
}

// RowNormalizer turns validated rows into records. It has no side effects.
type RowNormalizer struct {
	Account         *Account
	DefaultCurrency string
	Source          string
	ImportID        uuid.UUID
	Now             func() time.Time
}

func (n *RowNormalizer) currency(row ImportRow) string {
	if c := strings.TrimSpace(row.Value("currency")); c != "" {
		return strings.ToUpper(c)
	}
	if n.Account != nil && n.Account.Currency != "" {
		return strings.ToUpper(n.Account.Currency)
	}
	if n.DefaultCurrency != "" {
		return strings.ToUpper(n.DefaultCurrency)
	}
	return "USD"
}

func (n *RowNormalizer) date(row ImportRow) time.Time {
	if d, ok := ParseDate(row.Value("date")); ok {
		return d
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	y, m, d := now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func decimalOf(row ImportRow, col string) decimal.NullDecimal {
	d, err := ParseDecimal(row.Value(col))
	if err != nil {
		return decimal.NullDecimal{}
	}
	return d
}

// Transaction builds a transaction record. sec is nil for cash-only rows.
// Amount prefers the supplied amount column, then quantity x price, then 0.
func (n *RowNormalizer) Transaction(row ImportRow, sec *Security) NormalizedTransaction {
	csvType := strings.ToLower(row.Value("type"))
	txType, subtype := MapTransactionType(csvType)

	qty := decimalOf(row, "quantity")
	price := decimalOf(row, "price")

	amount := decimal.Zero
	switch supplied := decimalOf(row, "amount"); {
	case supplied.Valid:
		amount = supplied.Decimal
	case qty.Valid && price.Valid:
		amount = qty.Decimal.Mul(price.Decimal)
	}

	fees := decimal.Zero
	if f := decimalOf(row, "fees"); f.Valid {
		fees = f.Decimal
	}

	t := NormalizedTransaction{
		ID:        uuid.New(),
		Type:      txType,
		Subtype:   subtype,
		Quantity:  qty,
		Price:     price,
		Amount:    amount,
		Fees:      fees,
		Currency:  n.currency(row),
		TradeDate: n.date(row),
		Source:    n.Source,
		ImportID:  n.ImportID,
	}
	if n.Account != nil {
		t.AccountID = n.Account.ID
	}

	t.Description = strings.TrimSpace(row.Value("description"))
	if t.Description == "" {
		// The row's own identifier, not the symbol it resolved to.
		t.Description = strings.TrimSpace(strings.ToUpper(csvType) + " " + NormalizeIdentifier(row.Value("symbol")))
	}
	if sec != nil {
		t.SecurityID = uuid.NullUUID{UUID: sec.ID, Valid: true}
	}
	return t
}

// Holding builds a holding record. Totals are set only when both factors are present.
func (n *RowNormalizer) Holding(row ImportRow, sec *Security) NormalizedHolding {
	qty := decimalOf(row, "quantity")
	costBasis := decimalOf(row, "cost_basis")
	price := decimalOf(row, "institution_price")

	h := NormalizedHolding{
		ID:                uuid.New(),
		Quantity:          qty.Decimal,
		CostBasisPerShare: costBasis,
		InstitutionPrice:  price,
		Currency:          n.currency(row),
		AsOfDate:          n.date(row),
		Source:            n.Source,
		ImportID:          n.ImportID,
	}
	if n.Account != nil {
		h.AccountID = n.Account.ID
	}
	if sec != nil {
		h.SecurityID = sec.ID
	}
	if qty.Valid && costBasis.Valid {
		h.CostBasisTotal = decimal.NewNullDecimal(costBasis.Decimal.Mul(qty.Decimal))
	}
	if qty.Valid && price.Valid {
		h.MarketValue = decimal.NewNullDecimal(price.Decimal.Mul(qty.Decimal))
	}
	return h
}
