package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cleared-dev/tally/internal/feed"
	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
	"github.com/cleared-dev/tally/internal/syncer"
)

// ErrPublicTokenRequired is returned by Link for a blank token.
var ErrPublicTokenRequired = errors.New("public token required")

// unknownInstitution is stored when the provider omits the name.
const unknownInstitution = "Unknown"

// Syncer runs the feed sync for one owner's item.
type Syncer interface {
	Sync(ctx context.Context, ownerID, itemID string) (syncer.Report, error)
}

// LinkResult summarizes a Link call.
type LinkResult struct {
	ItemID   string
	Accounts int
	Added    int
}

// Linker connects an owner to an external item.
type Linker struct {
	store  store.Store
	feed   feed.Client
	syncer Syncer
	log    zerolog.Logger
	now    func() time.Time
}

// NewLinker creates a Linker.
func NewLinker(s store.Store, f feed.Client, sy Syncer, log zerolog.Logger) *Linker {
	return &Linker{store: s, feed: f, syncer: sy, log: log, now: time.Now}
}

// Link exchanges publicToken, creates or refreshes a feed account for each
// sub-account of the item and runs the first sync. A failing initial sync
// is logged and leaves Added at what was stored; the accounts stay linked.
func (l *Linker) Link(ctx context.Context, ownerID, publicToken string) (LinkResult, error) {
	if strings.TrimSpace(publicToken) == "" {
		return LinkResult{}, ErrPublicTokenRequired
	}

	credential, itemID, err := l.feed.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return LinkResult{}, fmt.Errorf("exchanging public token: %w", err)
	}
	item, err := l.feed.Accounts(ctx, credential)
	if err != nil {
		return LinkResult{}, fmt.Errorf("listing item accounts: %w", err)
	}

	institution := item.InstitutionName
	if institution == "" {
		institution = unknownInstitution
	}

	// Accounts added to an item that is already linked join it at the
	// item's cursor so the item keeps one cursor.
	linked, err := l.store.ListAccounts(ctx, store.AccountFilter{OwnerID: ownerID, ExternalItemID: itemID})
	if err != nil {
		return LinkResult{}, fmt.Errorf("looking up item %s: %w", itemID, err)
	}
	var cursor string
	if len(linked) > 0 {
		cursor = linked[0].SyncCursor
	}

	for _, fa := range item.Accounts {
		if err := l.upsert(ctx, ownerID, itemID, credential, institution, cursor, fa); err != nil {
			return LinkResult{}, err
		}
	}

	res := LinkResult{ItemID: itemID, Accounts: len(item.Accounts)}
	report, err := l.syncer.Sync(ctx, ownerID, itemID)
	if err != nil {
		l.log.Error().Err(err).Str("item_id", itemID).Msg("initial sync after link")
		return res, nil
	}
	for _, f := range report.Failed() {
		l.log.Warn().Err(f.Err).Str("item_id", f.ItemID).Msg("initial sync after link")
	}
	res.Added = report.Added
	return res, nil
}

func (l *Linker) upsert(ctx context.Context, ownerID, itemID, credential, institution, cursor string, fa feed.Account) error {
	existing, err := l.store.ListAccounts(ctx, store.AccountFilter{
		OwnerID:           ownerID,
		ExternalItemID:    itemID,
		ExternalAccountID: fa.ID,
	})
	if err != nil {
		return fmt.Errorf("looking up account %s: %w", fa.ID, err)
	}

	if len(existing) > 0 {
		a := existing[0]
		a.AccessCredential = credential
		if fa.Name != "" || fa.OfficialName != "" {
			a.Name = fa.DisplayName()
		}
		a.Mask = fa.Mask
		if err := l.store.UpdateAccount(ctx, a); err != nil {
			return fmt.Errorf("refreshing account %s: %w", a.ID, err)
		}
		return nil
	}

	a := model.Account{
		ID:                id.New(),
		OwnerID:           ownerID,
		Name:              fa.DisplayName(),
		Source:            model.SourceFeed,
		InstitutionName:   institution,
		Mask:              fa.Mask,
		ExternalItemID:    itemID,
		ExternalAccountID: fa.ID,
		AccessCredential:  credential,
		SyncCursor:        cursor,
		CreatedAt:         l.now().UTC(),
	}
	if err := l.store.CreateAccount(ctx, a); err != nil {
		return fmt.Errorf("creating account for %s: %w", fa.ID, err)
	}
	return nil
}
