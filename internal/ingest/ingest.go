// Package ingest runs the statement upload pipeline: read rows, adapt the
// vendor layout, normalize, fingerprint, dedupe and write.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/importer"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/normalize"
	"github.com/cleared-dev/tally/internal/store"
)

// DefaultFormat is used when a request names no format.
const DefaultFormat = "generic"

var (
	ErrNoFiles             = errors.New("no files provided")
	ErrUnknownFormat       = errors.New("unknown statement format")
	ErrNoValidTransactions = errors.New("no valid transactions found")
)

// File is one uploaded statement.
type File struct {
	Name string
	Data []byte
}

// Request is one upload call. When AccountID is set the rows go into that
// existing account; otherwise a new upload account named AccountName is
// created for the call.
type Request struct {
	OwnerID     string
	AccountName string
	AccountID   string
	Format      string
	Files       []File
}

// FileResult holds the counts for one file. Rows that failed to parse are
// not counted anywhere.
type FileResult struct {
	Name        string `json:"name"`
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
	Imported    int    `json:"imported"`
	Skipped     int    `json:"skipped"`
}

// Result is the outcome of a successful upload.
type Result struct {
	AccountID   string       `json:"accountId"`
	AccountName string       `json:"accountName"`
	Files       []FileResult `json:"files"`
	Imported    int          `json:"imported"`
	Skipped     int          `json:"skipped"`
}

// Service runs uploads against a store.
type Service struct {
	store    store.Store
	accounts *accounts.Service
	registry *importer.Registry
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService creates a Service. A nil registry means the built-in formats.
func NewService(s store.Store, reg *importer.Registry, log zerolog.Logger) *Service {
	if reg == nil {
		reg = importer.DefaultRegistry()
	}
	return &Service{
		store:    s,
		accounts: accounts.NewService(s),
		registry: reg,
		log:      log,
		now:      time.Now,
		newID:    id.New,
	}
}

type parsedFile struct {
	name string
	rows []model.Parsed
}

// Upload imports every file of the request into one account.
func (s *Service) Upload(ctx context.Context, req Request) (Result, error) {
	if len(req.Files) == 0 {
		return Result{}, ErrNoFiles
	}
	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = DefaultFormat
	}
	adapter := s.registry.Get(format)
	if adapter == nil {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	files, total := s.parse(req.Files, adapter)
	if total == 0 {
		return Result{}, ErrNoValidTransactions
	}

	acct, created, err := s.targetAccount(ctx, req)
	if err != nil {
		return Result{}, err
	}

	res, err := s.write(ctx, acct, files, created)
	if err != nil {
		if created {
			if derr := s.store.DeleteAccount(ctx, acct.ID); derr != nil {
				s.log.Error().Err(derr).Str("account_id", acct.ID).Msg("rolling back upload account")
			}
		}
		return Result{}, err
	}

	s.log.Info().
		Str("owner_id", req.OwnerID).
		Str("account_id", acct.ID).
		Str("format", adapter.Format()).
		Int("files", len(files)).
		Int("imported", res.Imported).
		Int("skipped", res.Skipped).
		Msg("statement upload")
	return res, nil
}

// parse reads and normalizes every file, keeping file-then-row order.
func (s *Service) parse(in []File, adapter importer.Adapter) ([]parsedFile, int) {
	out := make([]parsedFile, 0, len(in))
	total := 0
	for _, f := range in {
		rows, err := importer.ReadRows(f.Name, f.Data)
		if err != nil {
			s.log.Warn().Err(err).Str("file", f.Name).Msg("unreadable statement")
		}
		parsed := normalize.Transactions(importer.ParseRows(rows, adapter))
		total += len(parsed)
		out = append(out, parsedFile{name: f.Name, rows: parsed})
	}
	return out, total
}

func (s *Service) targetAccount(ctx context.Context, req Request) (model.Account, bool, error) {
	if req.AccountID != "" {
		a, err := s.accounts.Get(ctx, req.OwnerID, req.AccountID)
		if err != nil {
			return model.Account{}, false, fmt.Errorf("target account %s: %w", req.AccountID, err)
		}
		return a, false, nil
	}
	a, err := s.accounts.CreateUpload(ctx, req.OwnerID, req.AccountName)
	if err != nil {
		return model.Account{}, false, err
	}
	return a, true, nil
}

// write fingerprints, dedupes and stores each file's rows. seen starts
// with the keys already stored when the account is not new.
func (s *Service) write(ctx context.Context, acct model.Account, files []parsedFile, fresh bool) (Result, error) {
	seen := make(map[string]bool)
	if !fresh {
		stored, err := s.store.DedupeKeys(ctx, acct.ID)
		if err != nil {
			return Result{}, fmt.Errorf("loading stored rows: %w", err)
		}
		seen = stored
	}

	res := Result{AccountID: acct.ID, AccountName: acct.Name}
	createdAt := s.now().UTC()
	for _, f := range files {
		fr := FileResult{Name: f.name, AccountID: acct.ID, AccountName: acct.Name}

		batch := make([]model.Transaction, 0, len(f.rows))
		for _, p := range f.rows {
			key := id.DedupeKey(acct.ID, p.Date, p.Amount, p.MerchantName)
			if seen[key] {
				fr.Skipped++
				continue
			}
			seen[key] = true
			batch = append(batch, model.Transaction{
				ID:           s.newID(),
				AccountID:    acct.ID,
				Date:         p.Date,
				Amount:       p.Amount,
				Currency:     p.Currency,
				MerchantName: p.MerchantName,
				Category:     p.Category,
				Source:       model.SourceUpload,
				DedupeKey:    key,
				CreatedAt:    createdAt,
			})
		}

		n, err := s.store.InsertTransactions(ctx, batch)
		if err != nil {
			return Result{}, fmt.Errorf("writing %s: %w", f.name, err)
		}
		fr.Imported = n
		fr.Skipped += len(batch) - n

		res.Files = append(res.Files, fr)
		res.Imported += fr.Imported
		res.Skipped += fr.Skipped
	}
	return res, nil
}
