package core

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// ImportRow is one data row keyed by normalized column name.
// Missing columns read as absent, never as an error.
type ImportRow struct {
	Line   int // 1-based line in the file, header included
	header HeaderIndex
	cells  []string
}

// NewImportRow builds a row from a header index and its cells.
func NewImportRow(line int, header HeaderIndex, cells []string) ImportRow {
	return ImportRow{Line: line, header: header, cells: cells}
}

// Get returns the cell for col and whether the column exists in the file.
// A short row reads as empty strings for its trailing columns.
func (r ImportRow) Get(col string) (string, bool) {
	i, ok := r.header[strings.ToLower(col)]
	if !ok {
		return "", false
	}
	if i >= len(r.cells) {
		return "", true
	}
	return r.cells[i], true
}

// Value returns the cell for col, or "" when absent.
func (r ImportRow) Value(col string) string {
	v, _ := r.Get(col)
	return v
}

// ParsedFile is the outcome of reading one upload.
type ParsedFile struct {
	Columns []string          // normalized header in file order
	Renamed map[string]string // canonical name -> header it was renamed from
	Rows    []ImportRow
	Bytes   int64
}

// columnAliases maps broker-style headers to canonical column names.
// An alias applies only when the canonical column is not already present.
var columnAliases = map[string]string{
	"transaction date": "date",
	"trade date":       "date",
	"settlement date":  "date",
	"transaction type": "type",
	"activity":         "type",
	"ticker":           "symbol",
	"investment":       "symbol",
	"asset":            "symbol",
	"asset code":       "symbol",
	"qty":              "quantity",
	"shares":           "quantity",
	"units":            "quantity",
	"no. shares":       "quantity",
	"share price":      "price",
	"unit price":       "price",
	"price per share":  "price",
	"total":            "amount",
	"total value":      "amount",
	"ccy":              "currency",
	"fee":              "fees",
	"commission":       "fees",
}

// ParseRows reads a CSV upload into rows. It fails with a *FileError wrapping
// ErrMalformedFile when the bytes are not UTF-8, the file has no columns, or
// it has no data rows.
func ParseRows(r io.Reader) (*ParsedFile, error) {
	src := NewImportReader(r)
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, malformed("Empty file: no header row found")
	}
	if err != nil {
		return nil, readFailure(err)
	}

	columns := make([]string, len(header))
	named := 0
	for i, h := range header {
		columns[i] = NormalizeColumn(h)
		if columns[i] != "" {
			named++
		}
	}
	if named == 0 {
		return nil, malformed("Invalid CSV: the header row has no columns")
	}

	renamed := applyAliases(columns)
	idx := MakeHeaderIndex(columns)

	var rows []ImportRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, readFailure(err)
		}
		if isEmptyRow(record) {
			continue
		}

		line, _ := cr.FieldPos(0)
		cells := make([]string, len(record))
		for i, c := range record {
			cells[i] = CleanCell(c)
		}
		rows = append(rows, NewImportRow(line, idx, cells))
	}

	if len(rows) == 0 {
		return nil, malformed("Empty file: no data rows found")
	}

	return &ParsedFile{Columns: columns, Renamed: renamed, Rows: rows, Bytes: src.BytesRead}, nil
}

// applyAliases renames alias headers in place and reports what changed.
func applyAliases(columns []string) map[string]string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	renamed := make(map[string]string)
	for i, c := range columns {
		canonical, ok := columnAliases[c]
		if !ok || present[canonical] {
			continue
		}
		columns[i] = canonical
		present[canonical] = true
		renamed[canonical] = c
	}
	return renamed
}

func readFailure(err error) error {
	if errors.Is(err, ErrEncoding) {
		return malformed("Encoding error: %v. Save the file as UTF-8", err)
	}
	return malformed("Invalid CSV: %v", err)
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
