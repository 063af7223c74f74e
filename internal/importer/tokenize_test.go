package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ,c ", []string{"a", "b", "c"}},
		{"a\tb\tc", []string{"a", "b", "c"}},
		{`"AWS, Inc",12.50`, []string{"AWS, Inc", "12.50"}},
		{"\"tab\tinside\",x", []string{"tab\tinside", "x"}},
		{"a,,c", []string{"a", "", "c"}},
		{"a,b,", []string{"a", "b", ""}},
		{"", []string{""}},
		{`x,"unterminated, rest of line`, []string{"x", "unterminated, rest of line"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.line), "Tokenize(%q)", tt.line)
	}
}

func TestSplitLines(t *testing.T) {
	text := "Date,Amount\r\n2024-01-15,1.00\n   \n\n2024-01-16,2.00\n"
	assert.Equal(t, []string{"Date,Amount", "2024-01-15,1.00", "2024-01-16,2.00"}, SplitLines(text))
	assert.Nil(t, SplitLines(" \n\t\n"))
}
