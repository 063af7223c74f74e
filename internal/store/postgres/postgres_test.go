package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TALLY_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TALLY_TEST_DATABASE_URL not set, skipping postgres test")
	}
	s, err := Open(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestStore_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner := id.New()

	acct := model.Account{ID: id.New(), OwnerID: owner, Name: "Checking", Source: model.SourceUpload}
	require.NoError(t, s.CreateAccount(ctx, acct))
	t.Cleanup(func() { _ = s.DeleteAccount(ctx, acct.ID) })

	cat := "Food"
	d := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	txn := model.Transaction{
		ID: id.New(), AccountID: acct.ID, Date: d, Amount: decimal.RequireFromString("-12.50"),
		Currency: "USD", MerchantName: "Coffee Shop", Category: &cat, Source: model.SourceUpload,
		DedupeKey: id.DedupeKey(acct.ID, d, decimal.RequireFromString("-12.50"), "Coffee Shop"),
	}
	dup := txn
	dup.ID = id.New()

	n, err := s.InsertTransactions(ctx, []model.Transaction{txn, dup})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.ListTransactions(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "-12.50", got[0].Amount.StringFixed(2))
	assert.Equal(t, "Food", got[0].CategoryString())
	assert.True(t, d.Equal(got[0].Date))

	keys, err := s.DedupeKeys(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, keys[txn.DedupeKey])
}

func TestStore_AmountPrecision(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	acct := model.Account{ID: id.New(), OwnerID: id.New(), Name: "FX", Source: model.SourceUpload}
	require.NoError(t, s.CreateAccount(ctx, acct))
	t.Cleanup(func() { _ = s.DeleteAccount(ctx, acct.ID) })

	amount := decimal.RequireFromString("-0.123456789")
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	txn := model.Transaction{
		ID: id.New(), AccountID: acct.ID, Date: d, Amount: amount, Currency: "BTC",
		MerchantName: "Exchange", Source: model.SourceUpload,
		DedupeKey: id.DedupeKey(acct.ID, d, amount, "Exchange"),
	}
	_, err := s.InsertTransactions(ctx, []model.Transaction{txn})
	require.NoError(t, err)

	got, err := s.ListTransactions(ctx, acct.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "-0.123456789", got[0].Amount.String())
	assert.Equal(t, txn.DedupeKey, id.DedupeKey(acct.ID, d, got[0].Amount, "Exchange"), "stored amount rekeys the same")
}

func TestStore_ExternalIDAndCursor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	owner, item := id.New(), id.New()

	a := model.Account{ID: id.New(), OwnerID: owner, Name: "Card", Source: model.SourceFeed, ExternalItemID: item, ExternalAccountID: "ext-a", AccessCredential: "access-x"}
	b := a
	b.ID, b.ExternalAccountID = id.New(), "ext-b"
	require.NoError(t, s.CreateAccount(ctx, a))
	require.NoError(t, s.CreateAccount(ctx, b))
	t.Cleanup(func() {
		_ = s.DeleteAccount(ctx, a.ID)
		_ = s.DeleteAccount(ctx, b.ID)
	})

	extID := id.New()
	txn := model.Transaction{ID: id.New(), AccountID: a.ID, Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("5"), Currency: "USD", MerchantName: "x", Source: model.SourceFeed, ExternalID: extID}
	created, err := s.InsertTransaction(ctx, txn)
	require.NoError(t, err)
	assert.True(t, created)

	txn.ID, txn.AccountID = id.New(), b.ID
	created, err = s.InsertTransaction(ctx, txn)
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, s.SetItemCursor(ctx, owner, item, "", "cursor-1"))
	accts, err := s.ListAccounts(ctx, store.AccountFilter{OwnerID: owner, ExternalItemID: item})
	require.NoError(t, err)
	require.Len(t, accts, 2)
	for _, acct := range accts {
		assert.Equal(t, "cursor-1", acct.SyncCursor)
	}
	err = s.SetItemCursor(ctx, owner, item, "", "stale")
	assert.ErrorIs(t, err, store.ErrCursorConflict)

	require.NoError(t, s.DeleteAccount(ctx, a.ID))
	got, err := s.ListTransactions(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = s.GetAccount(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
