package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

const (
	accountsFile     = "accounts.csv"
	transactionsFile = "transactions.csv"
	// CredentialsFile holds feed access credentials apart from the ledger
	// so the ledger can be versioned without them.
	CredentialsFile = "credentials.csv"
)

// LedgerFiles are the data files safe to put under version control.
var LedgerFiles = []string{accountsFile, transactionsFile}

// FileStore is a store.Store kept in CSV files under a data directory.
// Every mutation rewrites the files. It is meant for a single process.
type FileStore struct {
	dir string
	mu  sync.Mutex
	mem *store.Memory
}

// Open loads the ledger in dir, creating the directory if needed.
func Open(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	var accts []model.Account
	if err := readFile(filepath.Join(dir, accountsFile), func(r io.Reader) (err error) {
		accts, err = ReadAccounts(r)
		return err
	}); err != nil {
		return nil, err
	}

	var txns []model.Transaction
	if err := readFile(filepath.Join(dir, transactionsFile), func(r io.Reader) (err error) {
		txns, err = ReadTransactions(r)
		return err
	}); err != nil {
		return nil, err
	}

	var creds []ItemCredential
	if err := readFile(filepath.Join(dir, CredentialsFile), func(r io.Reader) (err error) {
		creds, err = ReadCredentials(r)
		return err
	}); err != nil {
		return nil, err
	}
	ApplyCredentials(accts, creds)

	mem := store.NewMemory()
	if err := mem.Restore(accts, txns); err != nil {
		return nil, fmt.Errorf("loading ledger %s: %w", dir, err)
	}
	return &FileStore{dir: dir, mem: mem}, nil
}

func readFile(path string, read func(io.Reader) error) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if err := read(f); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

// flush rewrites the files from the in-memory state. Callers hold mu.
func (s *FileStore) flush() error {
	accts, txns := s.mem.Snapshot()
	if err := writeFileAtomic(filepath.Join(s.dir, CredentialsFile), func(w io.Writer) error {
		return WriteCredentials(w, Credentials(accts))
	}); err != nil {
		return err
	}
	if err := writeFileAtomic(filepath.Join(s.dir, accountsFile), func(w io.Writer) error {
		return WriteAccounts(w, accts)
	}); err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dir, transactionsFile), func(w io.Writer) error {
		return WriteTransactions(w, txns)
	})
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// mutate runs fn and persists the result.
func (s *FileStore) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(); err != nil {
		return err
	}
	return s.flush()
}

func (s *FileStore) CreateAccount(ctx context.Context, a model.Account) error {
	return s.mutate(func() error { return s.mem.CreateAccount(ctx, a) })
}

func (s *FileStore) UpdateAccount(ctx context.Context, a model.Account) error {
	return s.mutate(func() error { return s.mem.UpdateAccount(ctx, a) })
}

func (s *FileStore) GetAccount(ctx context.Context, id string) (model.Account, error) {
	return s.mem.GetAccount(ctx, id)
}

func (s *FileStore) ListAccounts(ctx context.Context, f store.AccountFilter) ([]model.Account, error) {
	return s.mem.ListAccounts(ctx, f)
}

func (s *FileStore) DeleteAccount(ctx context.Context, id string) error {
	return s.mutate(func() error { return s.mem.DeleteAccount(ctx, id) })
}

func (s *FileStore) SetItemCursor(ctx context.Context, ownerID, itemID, from, to string) error {
	return s.mutate(func() error { return s.mem.SetItemCursor(ctx, ownerID, itemID, from, to) })
}

func (s *FileStore) InsertTransactions(ctx context.Context, txns []model.Transaction) (int, error) {
	var n int
	err := s.mutate(func() (err error) {
		n, err = s.mem.InsertTransactions(ctx, txns)
		return err
	})
	return n, err
}

func (s *FileStore) InsertTransaction(ctx context.Context, txn model.Transaction) (bool, error) {
	var created bool
	err := s.mutate(func() (err error) {
		created, err = s.mem.InsertTransaction(ctx, txn)
		return err
	})
	return created, err
}

func (s *FileStore) DedupeKeys(ctx context.Context, accountID string) (map[string]bool, error) {
	return s.mem.DedupeKeys(ctx, accountID)
}

func (s *FileStore) ListTransactions(ctx context.Context, accountID string) ([]model.Transaction, error) {
	return s.mem.ListTransactions(ctx, accountID)
}

var _ store.Store = (*FileStore)(nil)
