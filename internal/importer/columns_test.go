package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnsGet(t *testing.T) {
	cols := NewColumns([]string{"Posting Date", " DESCRIPTION ", "Amount", "Type"})
	row := []string{"1/15/2024", " AMZN Mktp ", "42.99", "Debit"}

	assert.Equal(t, "1/15/2024", cols.Get(row, "date"))
	assert.Equal(t, "AMZN Mktp", cols.Get(row, "description"))
	assert.Equal(t, "42.99", cols.Get(row, "missing", "amount"))
	assert.Equal(t, "", cols.Get(row, "category"))
}

func TestColumnsGet_AliasOrder(t *testing.T) {
	cols := NewColumns([]string{"Transaction Date", "Post Date"})
	row := []string{"01/02/2024", "01/03/2024"}

	// First alias wins even though another header appears earlier.
	assert.Equal(t, "01/03/2024", cols.Get(row, "post date", "transaction date"))
	// First header containing the alias wins.
	assert.Equal(t, "01/02/2024", cols.Get(row, "date"))
}

func TestColumnsGet_ShortRow(t *testing.T) {
	cols := NewColumns([]string{"Date", "Description", "Memo"})
	row := []string{"2024-01-01", "Coffee"}

	assert.Equal(t, "Coffee", cols.Get(row, "description"))
	// Memo column missing from row: fall through to the next alias.
	assert.Equal(t, "Coffee", cols.Get(row, "memo", "description"))
	assert.Equal(t, "", cols.Get(row, "memo"))
}

func TestColumnsIndex(t *testing.T) {
	cols := NewColumns([]string{"Date", "Debit", "Credit"})
	assert.Equal(t, 1, cols.Index("DEBIT"))
	assert.Equal(t, -1, cols.Index("amount"))
}
