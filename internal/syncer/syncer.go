// Package syncer pulls settled transactions from the change feed into the
// store, one external connection (item) at a time.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tally/internal/feed"
	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// errCursorStalled stops a loop whose feed keeps reporting more data
// without moving the cursor.
var errCursorStalled = errors.New("feed reported more pages without advancing the cursor")

// ItemReport is the outcome of syncing one item.
type ItemReport struct {
	OwnerID    string
	ItemID     string
	Added      int
	Pending    int
	Orphaned   int
	Duplicates int
	Pages      int
	Cursor     string // cursor stored after the run
	Err        error
}

// Report is the outcome of one Sync call.
type Report struct {
	Items []ItemReport
	Added int
}

// Failed returns the items whose sync stopped on an error.
func (r Report) Failed() []ItemReport {
	var out []ItemReport
	for _, it := range r.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// Orchestrator runs the sync pipeline.
type Orchestrator struct {
	store store.Store
	feed  feed.Client
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

// New creates an Orchestrator.
func New(s store.Store, f feed.Client, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store: s,
		feed:  f,
		log:   log,
		now:   time.Now,
		newID: id.New,
	}
}

// Sync pulls new transactions for every linked item of the owner, or only
// for itemID when it is set. Items are processed in order and a failing
// item does not stop the others. The returned error is only set when the
// owner's accounts cannot be listed.
func (o *Orchestrator) Sync(ctx context.Context, ownerID, itemID string) (Report, error) {
	accts, err := o.store.ListAccounts(ctx, store.AccountFilter{
		OwnerID:        ownerID,
		Source:         model.SourceFeed,
		ExternalItemID: itemID,
	})
	if err != nil {
		return Report{}, fmt.Errorf("listing feed accounts: %w", err)
	}

	var report Report
	for _, group := range groupByItem(accts) {
		ir := o.syncItem(ctx, ownerID, group)
		report.Items = append(report.Items, ir)
		report.Added += ir.Added
	}
	return report, nil
}

// groupByItem keeps linked accounts only, grouped by item in first-seen order.
func groupByItem(accts []model.Account) [][]model.Account {
	var groups [][]model.Account
	idx := make(map[string]int)
	for _, a := range accts {
		if !a.Linked() {
			continue
		}
		i, ok := idx[a.ExternalItemID]
		if !ok {
			i = len(groups)
			idx[a.ExternalItemID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], a)
	}
	return groups
}

func (o *Orchestrator) syncItem(ctx context.Context, ownerID string, accts []model.Account) ItemReport {
	first := accts[0]
	log := o.log.With().Str("owner_id", ownerID).Str("item_id", first.ExternalItemID).Logger()

	byExternal := make(map[string]string, len(accts))
	for _, a := range accts {
		if a.ExternalAccountID != "" {
			byExternal[a.ExternalAccountID] = a.ID
		}
	}

	log.Info().Str("cursor", first.SyncCursor).Int("accounts", len(accts)).Msg("sync started")
	res := o.pageLoop(ctx, first.AccessCredential, first.SyncCursor, byExternal)

	ir := ItemReport{
		OwnerID:    ownerID,
		ItemID:     first.ExternalItemID,
		Added:      res.added,
		Pending:    res.pending,
		Orphaned:   res.orphaned,
		Duplicates: res.duplicates,
		Pages:      res.pages,
		Cursor:     first.SyncCursor,
		Err:        res.err,
	}

	if res.cursor != first.SyncCursor {
		err := o.store.SetItemCursor(ctx, ownerID, first.ExternalItemID, first.SyncCursor, res.cursor)
		switch {
		case errors.Is(err, store.ErrCursorConflict):
			// Another run committed first. Its cursor stands; rows written
			// here were idempotent.
			log.Warn().Str("cursor", res.cursor).Msg("sync cursor moved by a concurrent sync; not saving")
		case err != nil:
			log.Error().Err(err).Str("cursor", res.cursor).Msg("saving sync cursor")
			ir.Err = errors.Join(ir.Err, fmt.Errorf("saving cursor: %w", err))
		default:
			ir.Cursor = res.cursor
		}
	}

	if ir.Err != nil {
		log.Warn().Err(ir.Err).Stringer("state", res.state).Str("cursor", ir.Cursor).Int("added", ir.Added).Msg("sync stopped")
	} else {
		log.Info().Str("cursor", ir.Cursor).Int("added", ir.Added).Int("pages", ir.Pages).Msg("sync finished")
	}
	return ir
}

// SyncAll runs Sync for every owner that has a linked item, in the order
// the owners' feed accounts were created.
func (o *Orchestrator) SyncAll(ctx context.Context) (Report, error) {
	accts, err := o.store.ListAccounts(ctx, store.AccountFilter{Source: model.SourceFeed})
	if err != nil {
		return Report{}, fmt.Errorf("listing feed accounts: %w", err)
	}

	var owners []string
	seen := make(map[string]bool)
	for _, a := range accts {
		if a.Linked() && !seen[a.OwnerID] {
			seen[a.OwnerID] = true
			owners = append(owners, a.OwnerID)
		}
	}

	var report Report
	for _, owner := range owners {
		r, err := o.Sync(ctx, owner, "")
		if err != nil {
			return report, err
		}
		report.Items = append(report.Items, r.Items...)
		report.Added += r.Added
	}
	return report, nil
}
