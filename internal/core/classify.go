package core

import (
	"regexp"
	"strings"
)

var (
	isinPattern  = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)
	cusipPattern = regexp.MustCompile(`^[A-Z0-9]{9}$`)
)

// IsISIN reports whether id has the shape of an ISIN.
func IsISIN(id string) bool { return isinPattern.MatchString(id) }

// IsCUSIP reports whether id has the shape of a CUSIP.
func IsCUSIP(id string) bool { return cusipPattern.MatchString(id) }

// NormalizeIdentifier upper-cases and trims a security identifier.
func NormalizeIdentifier(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

var (
	cryptoMarkers = []string{"BTC", "ETH", "ADA", "DOT", "SOL", "XRP", "DOGE", "-USD", "-USDT"}
	etfMarkers    = []string{"ETF", "SPY", "QQQ", "VTI", "VOO", "IVV", "IWDA"}
	cashSymbols   = map[string]bool{"CASH": true, "USD": true, "MONEY": true, "MM": true}
)

// InferAssetType guesses a broad type from the identifier alone. Crypto and
// ETF markers match anywhere in the identifier; cash symbols must match exactly.
func InferAssetType(id string) AssetType {
	id = NormalizeIdentifier(id)
	if cashSymbols[id] {
		return AssetCash
	}
	for _, m := range cryptoMarkers {
		if strings.Contains(id, m) {
			return AssetCrypto
		}
	}
	for _, m := range etfMarkers {
		if strings.Contains(id, m) {
			return AssetETF
		}
	}
	return AssetEquity
}

// InferCurrency guesses the trading currency from a pair-style suffix.
func InferCurrency(id string) string {
	id = NormalizeIdentifier(id)
	for _, code := range []string{"USD", "GBP", "EUR"} {
		if strings.Contains(id, "-"+code) || strings.HasSuffix(id, code) {
			return code
		}
	}
	return "USD"
}

// AssetTypeFromQuoteType maps a provider quote or asset type label.
func AssetTypeFromQuoteType(label string) AssetType {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "equity", "common stock", "stock":
		return AssetEquity
	case "etf":
		return AssetETF
	case "mutualfund", "mutual fund", "fund":
		return AssetFund
	case "cryptocurrency", "crypto":
		return AssetCrypto
	case "currency", "moneymarket", "money market":
		return AssetCash
	case "":
		return ""
	default:
		return AssetOther
	}
}

// symbolVariants derives lookup variants for identifiers containing "-" or
// ".": without dashes, without dots, and the prefix before each separator.
// The identifier itself and empty strings are excluded.
func symbolVariants(id string) []string {
	if !strings.ContainsAny(id, "-.") {
		return nil
	}
	candidates := []string{
		strings.ReplaceAll(id, "-", ""),
		strings.ReplaceAll(id, ".", ""),
	}
	if i := strings.Index(id, "-"); i >= 0 {
		candidates = append(candidates, id[:i])
	}
	if i := strings.Index(id, "."); i >= 0 {
		candidates = append(candidates, id[:i])
	}

	seen := map[string]bool{id: true}
	var out []string
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
