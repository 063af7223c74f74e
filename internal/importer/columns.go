package importer

import "strings"

// Columns resolves semantic fields against a header row by
// case-insensitive substring match.
type Columns struct {
	headers []string
}

// NewColumns lower-cases and trims the header row once.
func NewColumns(headers []string) Columns {
	lower := make([]string, len(headers))
	for i, h := range headers {
		lower[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return Columns{headers: lower}
}

// Index returns the first column whose header contains alias, or -1.
func (c Columns) Index(alias string) int {
	alias = strings.ToLower(alias)
	for i, h := range c.headers {
		if strings.Contains(h, alias) {
			return i
		}
	}
	return -1
}

// Get tries aliases in order and returns the trimmed value of the first
// matching column present in row. It returns "" when nothing resolves.
func (c Columns) Get(row []string, aliases ...string) string {
	for _, a := range aliases {
		i := c.Index(a)
		if i >= 0 && i < len(row) {
			return strings.TrimSpace(row[i])
		}
	}
	return ""
}
