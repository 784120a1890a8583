package core

// validation.go provides row-level validation for import rows.
//
// Validation happens at two levels:
//  1. Structure validation: required, unknown and duplicate columns (structure.go)
//  2. Row validation: each cell against the rules of the import kind
//
// Row validation collects every problem in the row rather than stopping at
// the first one, so a user can fix a file in one pass. The checks run in a
// fixed order and the messages are stable; clients match on them.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string // Field/column name
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ValidationError) Error() string {
	return e.Message
}

// ValidationResult contains the result of validating a row.
type ValidationResult struct {
	Valid  bool              // True if all validations passed
	Errors []ValidationError // List of validation errors (empty if Valid)
}

func (r *ValidationResult) add(field, value, format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf(format, args...),
	})
}

// Messages returns the error messages in check order.
func (r ValidationResult) Messages() []string {
	out := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		out[i] = e.Message
	}
	return out
}

// TransactionTypes is the closed set of accepted transaction types.
var TransactionTypes = map[string]bool{
	"buy":          true,
	"sell":         true,
	"dividend":     true,
	"interest":     true,
	"fee":          true,
	"deposit":      true,
	"withdrawal":   true,
	"transfer_in":  true,
	"transfer_out": true,
	"split":        true,
	"spinoff":      true,
}

// ValidTransactionTypes returns the accepted types sorted alphabetically.
func ValidTransactionTypes() []string {
	out := make([]string, 0, len(TransactionTypes))
	for t := range TransactionTypes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func isTrade(txType string) bool {
	return txType == "buy" || txType == "sell"
}

// RowValidator validates rows of one import kind.
type RowValidator struct {
	kind ImportKind
}

// NewRowValidator creates a validator for kind.
func NewRowValidator(kind ImportKind) *RowValidator {
	return &RowValidator{kind: kind}
}

// ValidateRow checks a row and returns all validation errors.
func (v *RowValidator) ValidateRow(row ImportRow) ValidationResult {
	if v.kind == KindHolding {
		return validateHolding(row)
	}
	return validateTransaction(row)
}

func validateTransaction(row ImportRow) ValidationResult {
	result := ValidationResult{Valid: true}

	validateDate(&result, row, "date")

	txType := strings.ToLower(row.Value("type"))
	switch {
	case txType == "":
		result.add("type", "", "Transaction type is required")
	case !TransactionTypes[txType]:
		result.add("type", row.Value("type"), "Invalid transaction type '%s'. Valid types: %s",
			txType, strings.Join(ValidTransactionTypes(), ", "))
	}

	if isTrade(txType) && row.Value("symbol") == "" {
		result.add("symbol", "", "Symbol is required for buy/sell transactions")
	}

	values := make(map[string]decimal.NullDecimal, 4)
	for _, field := range []string{"quantity", "price", "fees", "amount"} {
		values[field] = validateNumeric(&result, row, field)
	}

	validateCurrency(&result, row)

	if isTrade(txType) {
		if !positive(values["quantity"]) && !hasNumericError(result, "quantity") {
			result.add("quantity", row.Value("quantity"), "Quantity must be greater than 0 for buy/sell transactions")
		}
		if !positive(values["price"]) && !hasNumericError(result, "price") {
			result.add("price", row.Value("price"), "Price must be greater than 0 for buy/sell transactions")
		}
	}

	return result
}

func validateHolding(row ImportRow) ValidationResult {
	result := ValidationResult{Valid: true}

	validateDate(&result, row, "date")

	if row.Value("symbol") == "" {
		result.add("symbol", "", "Symbol is required")
	}

	qty := validateNumeric(&result, row, "quantity")
	if !hasNumericError(result, "quantity") && !positive(qty) {
		result.add("quantity", row.Value("quantity"), "Quantity must be greater than 0")
	}

	validateNumeric(&result, row, "cost_basis")
	validateNumeric(&result, row, "institution_price")
	validateCurrency(&result, row)

	return result
}

func validateDate(result *ValidationResult, row ImportRow, field string) {
	raw := row.Value(field)
	if raw == "" {
		result.add(field, "", "%s is required", field)
		return
	}
	if _, ok := ParseDate(raw); !ok {
		result.add(field, raw, "Invalid date format for %s: '%s'. Expected formats: YYYY-MM-DD, MM/DD/YYYY, DD/MM/YYYY", field, raw)
	}
}

func validateNumeric(result *ValidationResult, row ImportRow, field string) decimal.NullDecimal {
	raw := row.Value(field)
	d, err := ParseDecimal(raw)
	if err != nil {
		result.add(field, raw, "Invalid numeric value for %s: '%s'", field, raw)
		return decimal.NullDecimal{}
	}
	return d
}

func validateCurrency(result *ValidationResult, row ImportRow) {
	code := strings.ToUpper(row.Value("currency"))
	if code == "" {
		return
	}
	if !IsSupportedCurrency(code) {
		result.add("currency", code, "Invalid currency code '%s'", code)
	}
}

func hasNumericError(result ValidationResult, field string) bool {
	for _, e := range result.Errors {
		if e.Field == field && e.Value != "" {
			return true
		}
	}
	return false
}

func positive(d decimal.NullDecimal) bool {
	return d.Valid && d.Decimal.IsPositive()
}
