// Package store defines the persistence contract used by both ingestion
// pipelines. Implementations must enforce the uniqueness keys atomically:
// (account, dedupe key) for uploaded rows and the external id for feed
// rows. A write that loses a uniqueness race is a silent no-op.
package store

import (
	"context"
	"errors"

	"github.com/cleared-dev/tally/internal/model"
)

var (
	// ErrNotFound is returned when an account does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCursorConflict is returned by SetItemCursor when no account of
	// the item still holds the expected cursor.
	ErrCursorConflict = errors.New("sync cursor changed concurrently")
)

// AccountFilter narrows ListAccounts. Zero fields match everything.
type AccountFilter struct {
	OwnerID           string
	Source            model.Source
	ExternalItemID    string
	ExternalAccountID string
}

// Match reports whether a satisfies the filter.
func (f AccountFilter) Match(a model.Account) bool {
	if f.OwnerID != "" && a.OwnerID != f.OwnerID {
		return false
	}
	if f.Source != "" && a.Source != f.Source {
		return false
	}
	if f.ExternalItemID != "" && a.ExternalItemID != f.ExternalItemID {
		return false
	}
	if f.ExternalAccountID != "" && a.ExternalAccountID != f.ExternalAccountID {
		return false
	}
	return true
}

// Store is the generic relational store behind the pipelines.
type Store interface {
	CreateAccount(ctx context.Context, a model.Account) error
	UpdateAccount(ctx context.Context, a model.Account) error
	GetAccount(ctx context.Context, id string) (model.Account, error)
	// ListAccounts returns matches in creation order.
	ListAccounts(ctx context.Context, f AccountFilter) ([]model.Account, error)
	// DeleteAccount removes the account and all of its transactions.
	DeleteAccount(ctx context.Context, id string) error
	// SetItemCursor moves the owner's item from cursor from to cursor to,
	// atomically, on the accounts that still hold from. ErrCursorConflict
	// when none do.
	SetItemCursor(ctx context.Context, ownerID, itemID, from, to string) error

	// InsertTransactions writes a batch, skipping rows that collide with a
	// uniqueness key, and returns how many were written.
	InsertTransactions(ctx context.Context, txns []model.Transaction) (int, error)
	// InsertTransaction writes one row unless its uniqueness key is taken.
	InsertTransaction(ctx context.Context, txn model.Transaction) (bool, error)
	// DedupeKeys returns the dedupe keys already stored for an account.
	DedupeKeys(ctx context.Context, accountID string) (map[string]bool, error)
	// ListTransactions returns an account's rows ordered by date, then insertion.
	ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error)
}
