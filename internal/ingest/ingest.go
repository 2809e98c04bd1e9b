// Package ingest decodes contract and entity files into raw tables for the
// schema normalizer. CSV files are sniffed for delimiter and encoding; XLSX
// files are read from their first sheet.
package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ppiankov/integridade/internal/model"
)

var (
	// ErrUnsupportedFormat is returned for extensions other than .csv and .xlsx
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrUnreadable is returned when no delimiter yields a usable header
	ErrUnreadable = errors.New("table has 3 columns or fewer")
)

// minColumns is exclusive: a usable table has more columns than this
const minColumns = 3

// delimiters are tried in order
var delimiters = []rune{';', ',', '\t'}

// File is a decoded source file
type File struct {
	Table     model.Table
	Format    string // csv, xlsx
	Encoding  string // utf-8-bom, utf-8, iso-8859-1, windows-1252 (CSV only)
	Delimiter rune   // CSV only
	Sheet     string // XLSX only
}

// Load decodes path according to its extension
func Load(path string) (*File, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		f, err := DecodeCSV(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		f.Table.Name = filepath.Base(path)
		return f, nil
	case ".xlsx":
		return LoadXLSX(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// DecodeCSV sniffs the encoding, then tries each delimiter until the header
// has more than three columns
func DecodeCSV(data []byte) (*File, error) {
	text, enc, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	for _, d := range delimiters {
		rows, err := readCSV(text, d)
		if err != nil || len(rows) == 0 || len(rows[0]) <= minColumns {
			continue
		}
		return &File{
			Table:     model.Table{Columns: rows[0], Rows: rows[1:]},
			Format:    "csv",
			Encoding:  enc,
			Delimiter: d,
		}, nil
	}
	return nil, ErrUnreadable
}

func readCSV(text string, delim rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText returns data as UTF-8. Invalid UTF-8 is read as Windows-1252
// when it uses the 0x80-0x9F range (C1 controls in Latin-1), else Latin-1.
func decodeText(data []byte) (string, string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(data[len(utf8BOM):]), "utf-8-bom", nil
	}
	if utf8.Valid(data) {
		return string(data), "utf-8", nil
	}

	cm, name := charmap.ISO8859_1, "iso-8859-1"
	for _, b := range data {
		if b >= 0x80 && b <= 0x9F {
			cm, name = charmap.Windows1252, "windows-1252"
			break
		}
	}
	out, _, err := transform.Bytes(cm.NewDecoder(), data)
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", name, err)
	}
	return string(out), name, nil
}
