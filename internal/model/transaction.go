package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Source records where a transaction came from.
type Source string

const (
	SourceUpload Source = "upload"
	SourceFeed   Source = "feed"
)

// DefaultCurrency is used when a source omits the currency.
const DefaultCurrency = "USD"

// UnknownMerchant is used when no merchant descriptor can be resolved.
const UnknownMerchant = "Unknown"

// Transaction is the canonical, normalized transaction record.
type Transaction struct {
	ID           string
	AccountID    string
	Date         time.Time       // UTC midnight, no time-of-day semantics
	Amount       decimal.Decimal // negative = money out, positive = money in
	Currency     string
	MerchantName string
	Category     *string // nil when unknown
	Notes        string
	Source       Source
	DedupeKey    string // upload rows: unique per account
	ExternalID   string // feed rows: globally unique
	CreatedAt    time.Time
}

// CategoryString returns the category or "" when unset.
func (t Transaction) CategoryString() string {
	if t.Category == nil {
		return ""
	}
	return *t.Category
}

// Parsed is a transaction as produced by a format adapter or the feed,
// before the shared normalization step.
type Parsed struct {
	Date         time.Time
	Amount       decimal.Decimal
	Currency     string
	MerchantName string
	Category     *string
}
