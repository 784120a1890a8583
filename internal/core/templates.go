package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// TemplateCSV renders the downloadable CSV template of a kind: the header
// followed by example rows.
func TemplateCSV(kind ImportKind) ([]byte, error) {
	spec, ok := Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(spec.Example); err != nil {
		return nil, fmt.Errorf("write template: %w", err)
	}
	return buf.Bytes(), nil
}

// TemplateFileName is the suggested download name for a kind's template.
func TemplateFileName(kind ImportKind) string {
	return fmt.Sprintf("%s_template.csv", kind)
}

// TemplateInfo documents the columns and rules of a kind.
type TemplateInfo struct {
	Kind             ImportKind `json:"kind"`
	Description      string     `json:"description"`
	RequiredColumns  []string   `json:"required_columns"`
	OptionalColumns  []string   `json:"optional_columns"`
	TransactionTypes []string   `json:"valid_transaction_types,omitempty"`
	DateFormats      []string   `json:"date_formats"`
	Notes            []string   `json:"notes"`
}

// DescribeKind returns the template info of a kind.
func DescribeKind(kind ImportKind) (TemplateInfo, error) {
	spec, ok := Lookup(kind)
	if !ok {
		return TemplateInfo{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	info := TemplateInfo{
		Kind:            spec.Kind,
		Description:     spec.Description,
		RequiredColumns: spec.Required,
		OptionalColumns: spec.Optional,
		DateFormats:     DateFormatsHelp,
		Notes:           spec.Notes,
	}
	if kind == KindTransaction {
		info.TransactionTypes = ValidTransactionTypes()
	}
	return info, nil
}

// SupportedFormats lists what an upload may contain.
type SupportedFormats struct {
	FileTypes        []string       `json:"file_types"`
	Kinds            []ImportKind   `json:"import_kinds"`
	TransactionTypes []string       `json:"transaction_types"`
	Currencies       []CurrencyInfo `json:"currencies"`
	SecurityTypes    []AssetType    `json:"security_types"`
	DateFormats      []string       `json:"date_formats"`
}

// Formats returns the supported upload formats.
func Formats() SupportedFormats {
	kinds := Kinds()
	names := make([]ImportKind, len(kinds))
	for i, k := range kinds {
		names[i] = k.Kind
	}
	return SupportedFormats{
		FileTypes:        []string{"csv"},
		Kinds:            names,
		TransactionTypes: ValidTransactionTypes(),
		Currencies:       SupportedCurrencies(),
		SecurityTypes:    []AssetType{AssetEquity, AssetETF, AssetFund, AssetCrypto, AssetCash, AssetOther},
		DateFormats:      DateFormatsHelp,
	}
}
