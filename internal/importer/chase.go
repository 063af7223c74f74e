package importer

import (
	"strings"

	"github.com/cleared-dev/tally/internal/model"
)

// ChaseAdapter parses Chase checking and credit card CSV exports, e.g.
// "Details,Posting Date,Description,Amount,Type,Balance,Check or Slip #" or
// "Transaction Date,Post Date,Description,Category,Type,Amount,Memo".
type ChaseAdapter struct{}

var (
	chaseDate     = []string{"posting date", "post date", "transaction date", "date"}
	chaseDesc     = []string{"description", "memo"}
	chaseAmount   = []string{"amount"}
	chaseType     = []string{"type", "debit/credit"}
	chaseCategory = []string{"category"}
)

// Format returns the adapter name.
func (a *ChaseAdapter) Format() string { return "chase" }

// ParseRow converts one data row. A Type containing "credit" makes the
// amount income; anything else is an expense.
func (a *ChaseAdapter) ParseRow(cols Columns, row []string) (model.Parsed, bool) {
	date, ok := ParseDate(cols.Get(row, chaseDate...))
	if !ok {
		return model.Parsed{}, false
	}
	amount, ok := ParseAmount(cols.Get(row, chaseAmount...))
	if !ok {
		return model.Parsed{}, false
	}

	typ := strings.ToLower(cols.Get(row, chaseType...))
	switch {
	case strings.Contains(typ, "credit"):
		amount = amount.Abs()
	case amount.IsPositive():
		amount = amount.Neg()
	}

	return model.Parsed{
		Date:         date,
		Amount:       amount,
		MerchantName: cols.Get(row, chaseDesc...),
		Category:     optional(cols.Get(row, chaseCategory...)),
	}, true
}
