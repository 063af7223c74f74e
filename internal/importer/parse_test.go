package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{" 2024-12-31 ", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"1/15/2024", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"01/05/2025", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)},
		{"12/1/99", time.Date(2099, 12, 1, 0, 0, 0, 0, time.UTC)},
		{"2/29/24", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, ok := ParseDate(tt.input)
		require.True(t, ok, "input: %q", tt.input)
		assert.True(t, tt.want.Equal(got), "ParseDate(%q) = %s", tt.input, got)
	}
}

func TestParseDate_Rejects(t *testing.T) {
	bad := []string{
		"",
		"NOTADATE",
		"2024/01/15",
		"15-01-2024",
		"2024-1-5",
		"1/15/024",
		"1/15/20245",
		"2024-02-30",
		"2/30/2024",
		"13/01/2024",
		"Jan 15, 2024",
		"2024-01-15T00:00:00Z",
	}
	for _, s := range bad {
		_, ok := ParseDate(s)
		assert.False(t, ok, "expected no date for %q", s)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"12.50", "12.5"},
		{"-42.99", "-42.99"},
		{"$1,234.56", "1234.56"},
		{"-$1,234.56", "-1234.56"},
		{" 7 ", "7"},
		{"€ 3,50", "350"},
		{"£10", "10"},
		{"+5.25", "5.25"},
		{".5", "0.5"},
		{"5.", "5"},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.input)
		require.True(t, ok, "input: %q", tt.input)
		assert.Equal(t, tt.want, got.String(), "ParseAmount(%q)", tt.input)
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, s := range []string{"", "   ", "$", "abc", "12abc", "N/A", "1.2.3",
		"1e50000000", "1E999999999", "-2.5e-40", "0x1F", "+-3", "."} {
		_, ok := ParseAmount(s)
		assert.False(t, ok, "expected no amount for %q", s)
	}
}
