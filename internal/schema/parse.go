package schema

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/integridade/internal/model"
)

// ParseAmount coerces a price cell. Unparseable, empty and non-finite values
// become Missing; they never fail the row.
func ParseAmount(s string) model.Amount {
	raw := strings.NewReplacer("\u00a0", "", " ", "", "€", "").Replace(strings.TrimSpace(s))
	if raw == "" {
		return model.MissingAmount()
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		var ok bool
		if f, ok = parseLocaleNumber(raw); !ok {
			return model.MissingAmount()
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return model.MissingAmount()
	}
	return model.ValidAmount(f)
}

// parseLocaleNumber accepts "19.500,00" and "19,500.00" style numbers:
// whichever of ',' or '.' appears last is the decimal separator.
func parseLocaleNumber(raw string) (float64, bool) {
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")

	dec, thou := ".", ","
	if cpos > dpos {
		dec, thou = ",", "."
	}
	raw = strings.ReplaceAll(raw, thou, "")
	if dec != "." {
		raw = strings.ReplaceAll(raw, dec, ".")
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// dateLayouts are tried in order; day-first layouts precede month-first
// ones because Portuguese publishers write dd/mm/yyyy.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
}

// ParseDate coerces a date cell. Unparseable values become Missing.
func ParseDate(s string) model.Date {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return model.MissingDate()
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return model.ValidDate(t)
		}
	}
	return model.MissingDate()
}
