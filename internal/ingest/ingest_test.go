package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/integridade/internal/schema"
)

const snsHeader = "nifs_dos_adjudicantes;entidades_adjudicantes_normalizado;nifs_das_adjudicatarias;entidades_adjudicatarias_normalizado;preco_contratual\n"

func write(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDecodeCSV_Delimiters(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		delim rune
	}{
		{"semicolon", "a;b;c;d\n1;2;3;4\n", ';'},
		{"comma", "a,b,c,d\n1,2,3,4\n", ','},
		{"tab", "a\tb\tc\td\n1\t2\t3\t4\n", '\t'},
		{"comma with semicolons in values", "a,b,c,d\n\"x;y\",2,3,4\n", ','},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeCSV([]byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.delim, f.Delimiter)
			assert.Equal(t, []string{"a", "b", "c", "d"}, f.Table.Columns)
			require.Len(t, f.Table.Rows, 1)
			assert.Equal(t, "4", f.Table.Rows[0][3])
		})
	}
}

func TestDecodeCSV_TooFewColumns(t *testing.T) {
	_, err := DecodeCSV([]byte("a;b;c\n1;2;3\n"))
	assert.ErrorIs(t, err, ErrUnreadable)

	_, err = DecodeCSV(nil)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestDecodeCSV_RaggedRows(t *testing.T) {
	f, err := DecodeCSV([]byte("a;b;c;d\n1;2\n1;2;3;4;5\n"))
	require.NoError(t, err)
	require.Len(t, f.Table.Rows, 2)
	assert.Len(t, f.Table.Rows[0], 2)
	assert.Len(t, f.Table.Rows[1], 5)
}

func TestDecodeCSV_Encodings(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		enc  string
		want string
	}{
		{"utf-8 with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "designação;b;c;d\n"...), "utf-8-bom", "designação"},
		{"utf-8", []byte("designação;b;c;d\n"), "utf-8", "designação"},
		{"latin-1", []byte("designa\xe7\xe3o;b;c;d\n"), "iso-8859-1", "designação"},
		{"windows-1252", []byte("pre\xe7o \x80;b;c;d\n"), "windows-1252", "preço €"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := DecodeCSV(tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.enc, f.Encoding)
			assert.Equal(t, tt.want, f.Table.Columns[0])
		})
	}
}

func TestLoad_CSV(t *testing.T) {
	path := write(t, "portal_base.CSV", []byte(snsHeader+"500;Hospital;600;Fornecedor;19 500,00\n"))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "csv", f.Format)
	assert.Equal(t, "portal_base.CSV", f.Table.Name)
	assert.Len(t, f.Table.Columns, 5)
	assert.Equal(t, "19 500,00", f.Table.Rows[0][4])
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(write(t, "dados.json", []byte("{}")))
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))

	_, err = Load(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	_, err = Load(write(t, "narrow.csv", []byte("a,b\n1,2\n")))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contratos.xlsx")
	header := []any{"nifAdjudicante", "nomeAdjudicante", "nifAdjudicatario", "nomeAdjudicatario", "precoContratual", "dataCelebracaoContrato"}

	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &header))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"500", "Hospital A", "600", "Fornecedor X", 18500.5, time.Date(2024, time.December, 27, 0, 0, 0, 0, time.UTC)}))
	// Row 3 left empty
	require.NoError(t, wb.SetSheetRow(sheet, "A4", &[]any{"501", "Hospital B", "601", "Fornecedor Y", "4000", "03/02/2024"}))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "xlsx", f.Format)
	assert.Equal(t, sheet, f.Sheet)
	assert.Equal(t, "contratos.xlsx", f.Table.Name)
	assert.Equal(t, []string{"nifAdjudicante", "nomeAdjudicante", "nifAdjudicatario", "nomeAdjudicatario", "precoContratual", "dataCelebracaoContrato"}, f.Table.Columns)
	require.Len(t, f.Table.Rows, 2)
	assert.Equal(t, "Hospital A", f.Table.Rows[0][1])
	assert.Equal(t, "18500.5", f.Table.Rows[0][4])
	assert.Equal(t, "2024-12-27", f.Table.Rows[0][5])
	assert.Equal(t, "Fornecedor Y", f.Table.Rows[1][3])
	assert.Equal(t, "03/02/2024", f.Table.Rows[1][5])

	ds, _ := schema.Normalize(f.Table, schema.Default())
	require.Equal(t, 2, ds.Len())
	for i, want := range []time.Time{
		time.Date(2024, time.December, 27, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 3, 0, 0, 0, 0, time.UTC),
	} {
		got, ok := ds.Records[i].AwardDate.Get()
		require.True(t, ok, "row %d award date", i)
		assert.Equal(t, want, got)
	}
	price, ok := ds.Records[0].Price.Get()
	require.True(t, ok)
	assert.Equal(t, 18500.5, price)
}

func TestIsDateFormat(t *testing.T) {
	custom := func(s string) *string { return &s }

	assert.True(t, isDateFormat(14, nil))
	assert.True(t, isDateFormat(22, nil))
	assert.False(t, isDateFormat(0, nil))
	assert.False(t, isDateFormat(4, nil))
	assert.True(t, isDateFormat(164, custom("dd/mm/yyyy")))
	assert.False(t, isDateFormat(164, custom(`#,##0.00 "dias"`)))
	assert.False(t, isDateFormat(164, custom("[Red]0.00")))
	assert.False(t, isDateFormat(164, custom("h:mm")))
}

func TestLoad_XLSXTooNarrow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "narrow.xlsx")
	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow(wb.GetSheetName(0), "A1", &[]any{"a", "b"}))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnreadable)
}
