// Package postgres implements store.Store on PostgreSQL. Uniqueness is
// enforced by unique indexes and every insert uses ON CONFLICT DO NOTHING,
// so concurrent writers race safely.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

//go:embed schema.sql
var schema string

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to url and applies the schema.
func Open(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

const accountColumns = `id, owner_id, name, source, institution_name, mask, external_item_id,
	external_account_id, sync_cursor, access_credential, created_at`

func (s *Store) CreateAccount(ctx context.Context, a model.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.OwnerID, a.Name, string(a.Source), a.InstitutionName, a.Mask, a.ExternalItemID,
		a.ExternalAccountID, a.SyncCursor, a.AccessCredential, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting account %s: %w", a.ID, err)
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, a model.Account) error {
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET owner_id = $2, name = $3, source = $4,
		institution_name = $5, mask = $6, external_item_id = $7, external_account_id = $8,
		sync_cursor = $9, access_credential = $10 WHERE id = $1`,
		a.ID, a.OwnerID, a.Name, string(a.Source), a.InstitutionName, a.Mask, a.ExternalItemID,
		a.ExternalAccountID, a.SyncCursor, a.AccessCredential)
	if err != nil {
		return fmt.Errorf("updating account %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	var source string
	err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &source, &a.InstitutionName, &a.Mask,
		&a.ExternalItemID, &a.ExternalAccountID, &a.SyncCursor, &a.AccessCredential, &a.CreatedAt)
	a.Source = model.Source(source)
	return a, err
}

func (s *Store) GetAccount(ctx context.Context, id string) (model.Account, error) {
	a, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("reading account %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, f store.AccountFilter) ([]model.Account, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts
		WHERE ($1 = '' OR owner_id = $1)
		  AND ($2 = '' OR source = $2)
		  AND ($3 = '' OR external_item_id = $3)
		  AND ($4 = '' OR external_account_id = $4)
		ORDER BY created_at, id`,
		f.OwnerID, string(f.Source), f.ExternalItemID, f.ExternalAccountID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// SetItemCursor is a compare-and-set: the sync_cursor condition is
// rechecked on each row after any concurrent update commits.
func (s *Store) SetItemCursor(ctx context.Context, ownerID, itemID, from, to string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE accounts SET sync_cursor = $4
		WHERE owner_id = $1 AND external_item_id = $2 AND sync_cursor = $3`, ownerID, itemID, from, to)
	if err != nil {
		return fmt.Errorf("saving cursor for item %s: %w", itemID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", itemID, store.ErrCursorConflict)
	}
	return nil
}

const insertTransaction = `INSERT INTO transactions (id, account_id, date, amount, currency,
	merchant_name, category, notes, source, dedupe_key, external_id, created_at)
	VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT DO NOTHING`

func insertArgs(t model.Transaction) []any {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return []any{t.ID, t.AccountID, t.Date, t.Amount.String(), t.Currency, t.MerchantName,
		t.Category, t.Notes, string(t.Source), nullable(t.DedupeKey), nullable(t.ExternalID), t.CreatedAt}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *Store) InsertTransactions(ctx context.Context, txns []model.Transaction) (int, error) {
	if len(txns) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, t := range txns {
		batch.Queue(insertTransaction, insertArgs(t)...)
	}
	results := tx.SendBatch(ctx, batch)
	inserted := 0
	for i := range txns {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, fmt.Errorf("inserting row %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing transactions: %w", err)
	}
	return inserted, nil
}

func (s *Store) InsertTransaction(ctx context.Context, txn model.Transaction) (bool, error) {
	tag, err := s.pool.Exec(ctx, insertTransaction, insertArgs(txn)...)
	if err != nil {
		return false, fmt.Errorf("inserting transaction %s: %w", txn.ID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DedupeKeys(ctx context.Context, accountID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT dedupe_key FROM transactions
		WHERE account_id = $1 AND dedupe_key IS NOT NULL`, accountID)
	if err != nil {
		return nil, fmt.Errorf("reading dedupe keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning dedupe key: %w", err)
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, account_id, date, amount::text, currency, merchant_name,
		category, notes, source, COALESCE(dedupe_key, ''), COALESCE(external_id, ''), created_at
		FROM transactions WHERE account_id = $1 ORDER BY date, seq`, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var t model.Transaction
		var amount, source string
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Date, &amount, &t.Currency, &t.MerchantName,
			&t.Category, &t.Notes, &source, &t.DedupeKey, &t.ExternalID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
		}
		t.Source = model.Source(source)
		t.Date = t.Date.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

var _ store.Store = (*Store)(nil)
