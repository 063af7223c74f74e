package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/feed"
	"github.com/cleared-dev/tally/internal/feed/mocks"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
	"github.com/cleared-dev/tally/internal/syncer"
)

type fakeSyncer struct {
	calls  []string
	report syncer.Report
	err    error
}

func (f *fakeSyncer) Sync(_ context.Context, ownerID, itemID string) (syncer.Report, error) {
	f.calls = append(f.calls, ownerID+"/"+itemID)
	return f.report, f.err
}

var testItem = feed.Item{
	ID:              "item-1",
	InstitutionName: "First Platypus Bank",
	Accounts: []feed.Account{
		{ID: "acc-a", Name: "Checking", Mask: "0000"},
		{ID: "acc-b", OfficialName: "Plaid Saving", Mask: "1111"},
		{ID: "acc-c"},
	},
}

func TestLink_CreatesAccountsAndSyncs(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mem := store.NewMemory()
	client := mocks.NewMockClient(ctrl)
	sy := &fakeSyncer{report: syncer.Report{Added: 7}}
	ctx := context.Background()

	client.EXPECT().ExchangePublicToken(gomock.Any(), "public-1").Return("access-1", "item-1", nil)
	client.EXPECT().Accounts(gomock.Any(), "access-1").Return(testItem, nil)

	res, err := NewLinker(mem, client, sy, zerolog.Nop()).Link(ctx, "u1", "public-1")
	require.NoError(t, err)
	assert.Equal(t, LinkResult{ItemID: "item-1", Accounts: 3, Added: 7}, res)
	assert.Equal(t, []string{"u1/item-1"}, sy.calls)

	accts, err := mem.ListAccounts(ctx, store.AccountFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, accts, 3)
	assert.Equal(t, "Checking", accts[0].Name)
	assert.Equal(t, "Plaid Saving", accts[1].Name)
	assert.Equal(t, "acc-c", accts[2].Name)
	for _, a := range accts {
		assert.True(t, a.Linked())
		assert.Equal(t, "First Platypus Bank", a.InstitutionName)
		assert.Equal(t, "access-1", a.AccessCredential)
	}
}

func TestLink_RefreshesExistingAccounts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.CreateAccount(ctx, model.Account{
		ID: "a1", OwnerID: "u1", Name: "Old name", Source: model.SourceFeed,
		ExternalItemID: "item-1", ExternalAccountID: "acc-a", AccessCredential: "access-old", SyncCursor: "c9",
	}))

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().ExchangePublicToken(gomock.Any(), "public-2").Return("access-new", "item-1", nil)
	client.EXPECT().Accounts(gomock.Any(), "access-new").Return(feed.Item{
		Accounts: []feed.Account{{ID: "acc-a", Name: "Checking", Mask: "0000"}},
	}, nil)

	res, err := NewLinker(mem, client, &fakeSyncer{}, zerolog.Nop()).Link(ctx, "u1", "public-2")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Accounts)

	accts, err := mem.ListAccounts(ctx, store.AccountFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, "a1", accts[0].ID)
	assert.Equal(t, "Checking", accts[0].Name)
	assert.Equal(t, "access-new", accts[0].AccessCredential)
	assert.Equal(t, "c9", accts[0].SyncCursor, "cursor survives relink")
}

func TestLink_NewAccountJoinsItemCursor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.CreateAccount(ctx, model.Account{
		ID: "a1", OwnerID: "u1", Source: model.SourceFeed,
		ExternalItemID: "item-1", ExternalAccountID: "acc-a", AccessCredential: "access-old", SyncCursor: "c9",
	}))

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().ExchangePublicToken(gomock.Any(), "public-3").Return("access-new", "item-1", nil)
	client.EXPECT().Accounts(gomock.Any(), "access-new").Return(feed.Item{
		Accounts: []feed.Account{{ID: "acc-a"}, {ID: "acc-b", Name: "Savings"}},
	}, nil)

	_, err := NewLinker(mem, client, &fakeSyncer{}, zerolog.Nop()).Link(ctx, "u1", "public-3")
	require.NoError(t, err)

	accts, err := mem.ListAccounts(ctx, store.AccountFilter{OwnerID: "u1", ExternalItemID: "item-1"})
	require.NoError(t, err)
	require.Len(t, accts, 2)
	for _, a := range accts {
		assert.Equal(t, "c9", a.SyncCursor, a.ExternalAccountID)
	}

	// One compare-and-set moves the whole item.
	require.NoError(t, mem.SetItemCursor(ctx, "u1", "item-1", "c9", "c10"))
	accts, err = mem.ListAccounts(ctx, store.AccountFilter{OwnerID: "u1", ExternalItemID: "item-1"})
	require.NoError(t, err)
	for _, a := range accts {
		assert.Equal(t, "c10", a.SyncCursor, a.ExternalAccountID)
	}
}

func TestLink_SyncFailureStillLinks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mem := store.NewMemory()
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().ExchangePublicToken(gomock.Any(), gomock.Any()).Return("access-1", "item-1", nil)
	client.EXPECT().Accounts(gomock.Any(), "access-1").Return(testItem, nil)

	sy := &fakeSyncer{err: errors.New("listing failed")}
	res, err := NewLinker(mem, client, sy, zerolog.Nop()).Link(context.Background(), "u1", "public-1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Accounts)
	assert.Zero(t, res.Added)
}

func TestLink_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	l := NewLinker(store.NewMemory(), client, &fakeSyncer{}, zerolog.Nop())
	ctx := context.Background()

	_, err := l.Link(ctx, "u1", " ")
	assert.ErrorIs(t, err, ErrPublicTokenRequired)

	boom := errors.New("boom")
	client.EXPECT().ExchangePublicToken(gomock.Any(), "bad").Return("", "", boom)
	_, err = l.Link(ctx, "u1", "bad")
	assert.ErrorIs(t, err, boom)

	client.EXPECT().ExchangePublicToken(gomock.Any(), "p").Return("access-1", "item-1", nil)
	client.EXPECT().Accounts(gomock.Any(), "access-1").Return(feed.Item{}, boom)
	_, err = l.Link(ctx, "u1", "p")
	assert.ErrorIs(t, err, boom)
}

func TestLink_WithOrchestrator(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mem := store.NewMemory()
	client := mocks.NewMockClient(ctrl)
	ctx := context.Background()

	client.EXPECT().ExchangePublicToken(gomock.Any(), "public-1").Return("access-1", "item-1", nil)
	client.EXPECT().Accounts(gomock.Any(), "access-1").Return(testItem, nil)
	client.EXPECT().TransactionsSync(gomock.Any(), "access-1", "").Return(feed.Page{
		NextCursor: "c1",
		Added: []feed.Transaction{{
			ID: "tx1", AccountID: "acc-b", Date: time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
			Amount: decimal.RequireFromString("20"), Name: "Coffee",
		}},
	}, nil)

	orch := syncer.New(mem, client, zerolog.Nop())
	res, err := NewLinker(mem, client, orch, zerolog.Nop()).Link(ctx, "u1", "public-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)

	accts, err := mem.ListAccounts(ctx, store.AccountFilter{ExternalAccountID: "acc-b"})
	require.NoError(t, err)
	require.Len(t, accts, 1)
	assert.Equal(t, "c1", accts[0].SyncCursor)
}
