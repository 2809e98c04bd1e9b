package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"19500", 19500, true},
		{"19500.50", 19500.5, true},
		{" 19500,50 ", 19500.5, true},
		{"19.500,50", 19500.5, true},
		{"19,500.50", 19500.5, true},
		{"1.234.567,89", 1234567.89, true},
		{"15 000 €", 15000, true},
		{"15 000,00", 15000, true},
		{"-250", -250, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
	}

	for _, tt := range tests {
		got, ok := ParseAmount(tt.in).Get()
		assert.Equal(t, tt.valid, ok, "valid for %q", tt.in)
		if tt.valid {
			assert.InDelta(t, tt.want, got, 1e-9, "value for %q", tt.in)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, time.December, 3, 0, 0, 0, 0, time.UTC)

	for _, in := range []string{
		"2024-12-03",
		"2024-12-03T10:15:00Z",
		"2024-12-03T10:15:00",
		"2024-12-03 10:15:00",
		"2024/12/03",
		"03/12/2024",
		"03-12-2024",
		"03.12.2024",
		"3/12/2024",
	} {
		got, ok := ParseDate(in).Get()
		if assert.True(t, ok, in) {
			assert.True(t, want.Equal(got), "%s parsed as %s", in, got)
		}
	}

	for _, in := range []string{"", "ontem", "2024-13-45", "32/01/2024"} {
		assert.False(t, ParseDate(in).Valid(), in)
	}
}
