package ledger

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

func uploadTxn(id, acct, key string) model.Transaction {
	return model.Transaction{
		ID:           id,
		AccountID:    acct,
		Date:         date(2025, 1, 3),
		Amount:       decimal.RequireFromString("-4.00"),
		Currency:     model.DefaultCurrency,
		MerchantName: "GitHub",
		Source:       model.SourceUpload,
		DedupeKey:    key,
	}
}

func TestFileStore_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, fs.CreateAccount(ctx, model.Account{ID: "a1", OwnerID: "u1", Name: "Uploads", Source: model.SourceUpload}))
	require.NoError(t, fs.CreateAccount(ctx, model.Account{ID: "a2", OwnerID: "u1", Source: model.SourceFeed, ExternalItemID: "item-1", ExternalAccountID: "x"}))

	n, err := fs.InsertTransactions(ctx, []model.Transaction{uploadTxn("t1", "a1", "k1"), uploadTxn("t2", "a1", "k2")})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, fs.SetItemCursor(ctx, "u1", "item-1", "", "c-1"))

	assert.FileExists(t, filepath.Join(dir, accountsFile))
	assert.FileExists(t, filepath.Join(dir, transactionsFile))

	reopened, err := Open(dir)
	require.NoError(t, err)

	accts, err := reopened.ListAccounts(ctx, store.AccountFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, accts, 2)
	assert.Equal(t, "c-1", accts[1].SyncCursor)

	keys, err := reopened.DedupeKeys(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"k1": true, "k2": true}, keys)

	// Uniqueness survives a reload.
	n, err = reopened.InsertTransactions(ctx, []model.Transaction{uploadTxn("t3", "a1", "k1")})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFileStore_CredentialsKeptOutOfLedger(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := Open(dir)
	require.NoError(t, err)
	for _, ext := range []string{"acc-a", "acc-b"} {
		require.NoError(t, fs.CreateAccount(ctx, model.Account{
			ID: "id-" + ext, OwnerID: "u1", Source: model.SourceFeed,
			ExternalItemID: "item-1", ExternalAccountID: ext, AccessCredential: "access-secret",
		}))
	}

	for _, name := range LedgerFiles {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotContains(t, string(data), "access-secret", name)
	}
	creds, err := os.ReadFile(filepath.Join(dir, CredentialsFile))
	require.NoError(t, err)
	assert.Equal(t, CredentialHeader+"\nu1,item-1,access-secret\n", string(creds))

	reopened, err := Open(dir)
	require.NoError(t, err)
	accts, err := reopened.ListAccounts(ctx, store.AccountFilter{ExternalItemID: "item-1"})
	require.NoError(t, err)
	require.Len(t, accts, 2)
	for _, a := range accts {
		assert.True(t, a.Linked(), a.ID)
		assert.Equal(t, "access-secret", a.AccessCredential)
	}
}

func TestFileStore_DeletePersistsCascade(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, fs.CreateAccount(ctx, model.Account{ID: "a1", OwnerID: "u1", Source: model.SourceUpload}))
	created, err := fs.InsertTransaction(ctx, uploadTxn("t1", "a1", "k1"))
	require.NoError(t, err)
	assert.True(t, created)

	require.NoError(t, fs.DeleteAccount(ctx, "a1"))

	reopened, err := Open(dir)
	require.NoError(t, err)
	_, err = reopened.GetAccount(ctx, "a1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	txns, err := reopened.ListTransactions(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestFileStore_FailedMutationLeavesFilesAlone(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	fs, err := Open(dir)
	require.NoError(t, err)
	assert.ErrorIs(t, fs.UpdateAccount(ctx, model.Account{ID: "nope"}), store.ErrNotFound)
	assert.NoFileExists(t, filepath.Join(dir, accountsFile))
}

func TestOpen_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, accountsFile), []byte(AccountHeader+"\nonly,two\n"), 0o644))

	_, err := Open(dir)
	assert.ErrorContains(t, err, accountsFile)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.CreateAccount(ctx, model.Account{ID: "a1", OwnerID: "u1", Source: model.SourceUpload}))
	_, err := mem.InsertTransactions(ctx, []model.Transaction{uploadTxn("t1", "a1", "k1"), uploadTxn("t2", "a1", "k2")})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := Export(ctx, &buf, mem, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := ReadTransactions(&buf)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].ID)

	_, err = Export(ctx, &buf, mem, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
