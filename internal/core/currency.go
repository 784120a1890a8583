package core

import (
	"math"
	"sort"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// supportedCurrencies is the set of codes accepted in the currency column.
var supportedCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CAD": true, "AUD": true,
	"CHF": true, "CNY": true, "HKD": true, "SGD": true, "NZD": true, "SEK": true,
	"NOK": true, "DKK": true, "PLN": true, "CZK": true, "HUF": true, "RUB": true,
	"BRL": true, "MXN": true, "KRW": true, "INR": true, "THB": true, "TRY": true,
}

// IsSupportedCurrency reports whether code is an accepted ISO 4217 code.
func IsSupportedCurrency(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	return supportedCurrencies[code] && money.GetCurrency(code) != nil
}

// CurrencyInfo describes a supported currency for documentation endpoints.
type CurrencyInfo struct {
	Code     string `json:"code"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// SupportedCurrencies returns the accepted currencies sorted by code.
func SupportedCurrencies() []CurrencyInfo {
	out := make([]CurrencyInfo, 0, len(supportedCurrencies))
	for code := range supportedCurrencies {
		info := CurrencyInfo{Code: code, Symbol: code}
		if c := money.GetCurrency(code); c != nil {
			info.Symbol = c.Grapheme
			info.Decimals = c.Fraction
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// FormatAmount renders an amount with the currency's symbol and precision,
// e.g. "$1,500.00". Unknown codes fall back to "1500.00 XXX".
func FormatAmount(amount decimal.Decimal, code string) string {
	c := money.GetCurrency(code)
	if c == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(c.Fraction)).Round(0)
	if minor.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt64/2)) {
		return amount.StringFixed(int32(c.Fraction)) + " " + code
	}
	return money.New(minor.IntPart(), c.Code).Display()
}
