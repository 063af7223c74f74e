package id

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const keyDateFormat = "2006-01-02"

// New returns a random identifier for accounts and transactions.
func New() string {
	return uuid.NewString()
}

// DedupeKey fingerprints an uploaded row within one account:
// hex SHA-256 of "accountID-YYYY-MM-DD-amount-merchant".
func DedupeKey(accountID string, date time.Time, amount decimal.Decimal, merchant string) string {
	raw := fmt.Sprintf("%s-%s-%s-%s", accountID, date.Format(keyDateFormat), amount.String(), merchant)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Valid reports whether s parses as an identifier produced by New.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
