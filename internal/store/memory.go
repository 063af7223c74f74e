package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cleared-dev/tally/internal/model"
)

// Memory is an in-process Store. It is safe for concurrent use; the
// uniqueness checks and inserts happen under one lock.
type Memory struct {
	mu         sync.RWMutex
	accounts   map[string]model.Account
	order      []string // account ids in creation order
	txns       []model.Transaction
	byExternal map[string]bool
	byDedupe   map[string]bool // accountID + "\x00" + dedupe key
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		accounts:   make(map[string]model.Account),
		byExternal: make(map[string]bool),
		byDedupe:   make(map[string]bool),
	}
}

func dedupeIndex(accountID, key string) string {
	return accountID + "\x00" + key
}

func (m *Memory) CreateAccount(_ context.Context, a model.Account) error {
	if a.ID == "" {
		return fmt.Errorf("account ID is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	m.accounts[a.ID] = a
	m.order = append(m.order, a.ID)
	return nil
}

func (m *Memory) UpdateAccount(_ context.Context, a model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[a.ID]; !ok {
		return fmt.Errorf("account %s: %w", a.ID, ErrNotFound)
	}
	m.accounts[a.ID] = a
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id string) (model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *Memory) ListAccounts(_ context.Context, f AccountFilter) ([]model.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Account
	for _, id := range m.order {
		if a := m.accounts[id]; f.Match(a) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) DeleteAccount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	delete(m.accounts, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	kept := m.txns[:0]
	for _, t := range m.txns {
		if t.AccountID != id {
			kept = append(kept, t)
			continue
		}
		if t.ExternalID != "" {
			delete(m.byExternal, t.ExternalID)
		}
		if t.DedupeKey != "" {
			delete(m.byDedupe, dedupeIndex(t.AccountID, t.DedupeKey))
		}
	}
	m.txns = kept
	return nil
}

func (m *Memory) SetItemCursor(_ context.Context, ownerID, itemID, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, a := range m.accounts {
		if a.OwnerID == ownerID && a.ExternalItemID == itemID && a.SyncCursor == from {
			a.SyncCursor = to
			m.accounts[id] = a
			n++
		}
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", itemID, ErrCursorConflict)
	}
	return nil
}

func (m *Memory) InsertTransactions(_ context.Context, txns []model.Transaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range txns {
		if _, ok := m.accounts[t.AccountID]; !ok {
			return 0, fmt.Errorf("account %s: %w", t.AccountID, ErrNotFound)
		}
	}
	n := 0
	for _, t := range txns {
		if m.insertLocked(t) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) InsertTransaction(_ context.Context, txn model.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[txn.AccountID]; !ok {
		return false, fmt.Errorf("account %s: %w", txn.AccountID, ErrNotFound)
	}
	return m.insertLocked(txn), nil
}

func (m *Memory) insertLocked(t model.Transaction) bool {
	if t.ExternalID != "" && m.byExternal[t.ExternalID] {
		return false
	}
	if t.DedupeKey != "" && m.byDedupe[dedupeIndex(t.AccountID, t.DedupeKey)] {
		return false
	}
	if t.ExternalID != "" {
		m.byExternal[t.ExternalID] = true
	}
	if t.DedupeKey != "" {
		m.byDedupe[dedupeIndex(t.AccountID, t.DedupeKey)] = true
	}
	m.txns = append(m.txns, t)
	return true
}

func (m *Memory) DedupeKeys(_ context.Context, accountID string) (map[string]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make(map[string]bool)
	for _, t := range m.txns {
		if t.AccountID == accountID && t.DedupeKey != "" {
			keys[t.DedupeKey] = true
		}
	}
	return keys, nil
}

func (m *Memory) ListTransactions(_ context.Context, accountID string) ([]model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Transaction
	for _, t := range m.txns {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Snapshot returns copies of every account (creation order) and
// transaction (insertion order).
func (m *Memory) Snapshot() ([]model.Account, []model.Transaction) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accts := make([]model.Account, len(m.order))
	for i, id := range m.order {
		accts[i] = m.accounts[id]
	}
	txns := make([]model.Transaction, len(m.txns))
	copy(txns, m.txns)
	return accts, txns
}

// Restore replaces the contents of the store. Transactions that collide
// with a uniqueness key or reference a missing account are rejected.
func (m *Memory) Restore(accts []model.Account, txns []model.Transaction) error {
	fresh := NewMemory()
	ctx := context.Background()
	for _, a := range accts {
		if err := fresh.CreateAccount(ctx, a); err != nil {
			return err
		}
	}
	for i, t := range txns {
		ok, err := fresh.InsertTransaction(ctx, t)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
		if !ok {
			return fmt.Errorf("transaction %d (%s): duplicate uniqueness key", i, t.ID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = fresh.accounts
	m.order = fresh.order
	m.txns = fresh.txns
	m.byExternal = fresh.byExternal
	m.byDedupe = fresh.byDedupe
	return nil
}
