package importer

import (
	"github.com/cleared-dev/tally/internal/model"
)

// GenericAdapter handles statements with loosely named Date, Description
// and Amount columns, or separate Debit and Credit columns.
type GenericAdapter struct{}

var (
	genericDate     = []string{"date", "transaction date"}
	genericDesc     = []string{"description", "memo", "merchant", "name"}
	genericAmount   = []string{"amount", "debit", "credit"}
	genericCategory = []string{"category"}
)

// Format returns the adapter name.
func (a *GenericAdapter) Format() string { return "generic" }

// ParseRow converts one data row. Debit values become expenses and credit
// values income; a bare amount column is assumed to list expenses as
// positive numbers and is flipped.
func (a *GenericAdapter) ParseRow(cols Columns, row []string) (model.Parsed, bool) {
	date, ok := ParseDate(cols.Get(row, genericDate...))
	if !ok {
		return model.Parsed{}, false
	}

	var p model.Parsed
	if debit, ok := ParseAmount(cols.Get(row, "debit")); ok {
		p.Amount = debit.Abs().Neg()
	} else if credit, ok := ParseAmount(cols.Get(row, "credit")); ok {
		p.Amount = credit.Abs()
	} else {
		amount, ok := ParseAmount(cols.Get(row, genericAmount...))
		if !ok {
			return model.Parsed{}, false
		}
		if amount.IsPositive() {
			amount = amount.Neg()
		}
		p.Amount = amount
	}

	p.Date = date
	p.MerchantName = cols.Get(row, genericDesc...)
	p.Category = optional(cols.Get(row, genericCategory...))
	return p, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
