// Package normalize applies the post-conditions shared by the upload and
// feed pipelines, so downstream code sees uniform records.
package normalize

import (
	"strings"

	"github.com/cleared-dev/tally/internal/model"
)

// Transaction fills defaults: currency USD, merchant "Unknown", and a nil
// category when the label is blank.
func Transaction(p model.Parsed) model.Parsed {
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	if p.Currency == "" {
		p.Currency = model.DefaultCurrency
	}

	p.MerchantName = strings.TrimSpace(p.MerchantName)
	if p.MerchantName == "" {
		p.MerchantName = model.UnknownMerchant
	}

	if p.Category != nil {
		c := strings.TrimSpace(*p.Category)
		if c == "" {
			p.Category = nil
		} else {
			p.Category = &c
		}
	}
	return p
}

// Transactions normalizes every element, returning a new slice.
func Transactions(in []model.Parsed) []model.Parsed {
	if in == nil {
		return nil
	}
	out := make([]model.Parsed, len(in))
	for i, p := range in {
		out[i] = Transaction(p)
	}
	return out
}
