package core

// convert.go turns raw CSV strings into typed values.
//
// Dates are tried against a fixed ordered list of layouts; the first one that
// parses wins, so 03/04/2024 is always read as March 4th. Numbers may carry
// thousands separators and a dollar sign, nothing else.

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericRegex validates a cleaned number: integers, decimals and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateLayouts is the accepted date formats in priority order. Each format
// also has a variant without zero padding.
var dateLayouts = []string{
	"2006-01-02", "2006-1-2", // YYYY-MM-DD
	"01/02/2006", "1/2/2006", // MM/DD/YYYY
	"02/01/2006", "2/1/2006", // DD/MM/YYYY
	"2006-01-02 15:04:05",    // YYYY-MM-DD HH:MM:SS
	"02-01-2006", "2-1-2006", // DD-MM-YYYY
}

// DateFormatsHelp is the user-facing list of accepted date formats.
var DateFormatsHelp = []string{"YYYY-MM-DD", "MM/DD/YYYY", "DD/MM/YYYY", "YYYY-MM-DD HH:MM:SS", "DD-MM-YYYY"}

// HeaderIndex maps lower-cased column names to their position in a row.
type HeaderIndex map[string]int

// ParseDate parses s with the first matching layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDecimal parses a numeric cell after stripping "," and "$".
// Blank input yields an invalid NullDecimal and no error.
func ParseDecimal(s string) (decimal.NullDecimal, error) {
	cleaned := strings.ReplaceAll(s, ",", "")
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return decimal.NullDecimal{}, nil
	}
	if !numericRegex.MatchString(cleaned) {
		return decimal.NullDecimal{}, fmt.Errorf("invalid number %q", s)
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return decimal.NewNullDecimal(d), nil
}

// MakeHeaderIndex indexes a normalized header row. The first occurrence of
// a repeated name wins; duplicates are reported by ValidateStructure.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		if h == "" {
			continue
		}
		if _, seen := idx[h]; !seen {
			idx[h] = i
		}
	}
	return idx
}

// NormalizeColumn trims and lower-cases a header cell.
func NormalizeColumn(s string) string {
	return strings.ToLower(CleanCell(s))
}

// CleanCell trims whitespace and unwraps Excel's ="..." text guard.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}
