// Package feed talks to the external bank-data provider. The provider
// returns transaction deltas behind an opaque, monotonically advancing
// cursor, one connection ("item") at a time.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_feed.go -package=mocks -source=feed.go Client

// ErrMissingCredentials is returned when the provider client id or secret
// is not configured.
var ErrMissingCredentials = errors.New("feed client id and secret must be set")

// Client is the change-feed contract used by the sync orchestrator.
type Client interface {
	// TransactionsSync returns the page of changes after cursor. An empty
	// cursor starts from the beginning of the item's history.
	TransactionsSync(ctx context.Context, credential, cursor string) (Page, error)
	// Accounts lists the sub-accounts of the item behind credential.
	Accounts(ctx context.Context, credential string) (Item, error)
	// ExchangePublicToken trades a short-lived link token for a long-lived
	// credential and the item id it grants access to.
	ExchangePublicToken(ctx context.Context, publicToken string) (credential, itemID string, err error)
}

// Page is one response of the change feed.
type Page struct {
	HasMore    bool
	NextCursor string
	Added      []Transaction
}

// Transaction is a provider transaction. Amount uses the provider's sign:
// positive means money left the account.
type Transaction struct {
	ID           string
	AccountID    string
	Date         time.Time
	Amount       decimal.Decimal
	Currency     string
	MerchantName string
	Name         string
	Category     *string
	Pending      bool
}

// Merchant returns the best available merchant descriptor.
func (t Transaction) Merchant() string {
	if t.MerchantName != "" {
		return t.MerchantName
	}
	return t.Name
}

// Item is a provider connection and its sub-accounts.
type Item struct {
	ID              string
	InstitutionName string
	Accounts        []Account
}

// Account is one sub-account of an item.
type Account struct {
	ID           string
	Name         string
	OfficialName string
	Mask         string
}

// DisplayName picks the name shown for a newly linked account.
func (a Account) DisplayName() string {
	switch {
	case a.Name != "":
		return a.Name
	case a.OfficialName != "":
		return a.OfficialName
	default:
		return a.ID
	}
}

// APIError is a non-2xx response from the provider.
type APIError struct {
	Status    int
	Type      string
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("feed api: %d %s/%s: %s", e.Status, e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("feed api: status %d", e.Status)
}
