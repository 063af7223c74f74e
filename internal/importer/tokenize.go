package importer

import (
	"regexp"
	"strings"
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// SplitLines splits statement text into lines, dropping lines that are
// empty or all whitespace.
func SplitLines(text string) []string {
	var lines []string
	for _, l := range lineBreak.Split(text, -1) {
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// Tokenize splits one CSV or TSV line into trimmed fields. A double quote
// toggles quoted mode; commas and tabs only separate fields outside it.
// An unterminated quote swallows the rest of the line into one field.
func Tokenize(line string) []string {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	for _, c := range line {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case (c == ',' || c == '\t') && !inQuotes:
			fields = append(fields, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	return append(fields, strings.TrimSpace(cur.String()))
}
