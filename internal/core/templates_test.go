package core

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateCSV(t *testing.T) {
	for _, spec := range Kinds() {
		t.Run(string(spec.Kind), func(t *testing.T) {
			data, err := TemplateCSV(spec.Kind)
			require.NoError(t, err)

			records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
			require.NoError(t, err)
			require.Greater(t, len(records), 1)

			report := ValidateStructure(records[0], spec.Kind)
			assert.False(t, report.Fatal(), "template header must pass structure checks")
			assert.Empty(t, report.Warnings)

			v := NewRowValidator(spec.Kind)
			header := MakeHeaderIndex(records[0])
			for i, rec := range records[1:] {
				res := v.ValidateRow(NewImportRow(i+2, header, rec))
				assert.True(t, res.Valid, "example row %d: %v", i+2, res.Messages())
			}
		})
	}

	_, err := TemplateCSV("lots")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestTemplateFileName(t *testing.T) {
	assert.Equal(t, "transactions_template.csv", TemplateFileName(KindTransaction))
	assert.Equal(t, "holdings_template.csv", TemplateFileName(KindHolding))
}

func TestDescribeKind(t *testing.T) {
	info, err := DescribeKind(KindTransaction)
	require.NoError(t, err)
	assert.Equal(t, []string{"date", "type"}, info.RequiredColumns)
	assert.Equal(t, ValidTransactionTypes(), info.TransactionTypes)
	assert.Equal(t, DateFormatsHelp, info.DateFormats)

	info, err = DescribeKind(KindHolding)
	require.NoError(t, err)
	assert.Empty(t, info.TransactionTypes)

	_, err = DescribeKind("lots")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestFormats(t *testing.T) {
	f := Formats()
	assert.Equal(t, []string{"csv"}, f.FileTypes)
	assert.Equal(t, []ImportKind{KindHolding, KindTransaction}, f.Kinds)
	assert.Len(t, f.TransactionTypes, 11)
	assert.NotEmpty(t, f.Currencies)
}
