package syncer

import (
	"context"
	"fmt"

	"github.com/cleared-dev/tally/internal/feed"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/normalize"
)

type loopState int

const (
	stateIdle loopState = iota
	statePaging
	stateFailed
)

func (s loopState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case statePaging:
		return "paging"
	case stateFailed:
		return "failed"
	}
	return fmt.Sprintf("loopState(%d)", int(s))
}

// loopResult is everything the commit step needs. cursor is the last
// cursor whose page was fully applied.
type loopResult struct {
	state      loopState
	cursor     string
	added      int
	pending    int
	orphaned   int
	duplicates int
	pages      int
	err        error
}

// pageLoop requests pages until the feed is drained or a page fails. It
// never writes the cursor.
func (o *Orchestrator) pageLoop(ctx context.Context, credential, cursor string, accounts map[string]string) loopResult {
	res := loopResult{state: statePaging, cursor: cursor}

	for res.state == statePaging {
		page, err := o.feed.TransactionsSync(ctx, credential, res.cursor)
		if err != nil {
			res.state, res.err = stateFailed, fmt.Errorf("fetching page after cursor %q: %w", res.cursor, err)
			break
		}
		if err := o.applyPage(ctx, page, accounts, &res); err != nil {
			res.state, res.err = stateFailed, err
			break
		}
		if page.HasMore && (page.NextCursor == "" || page.NextCursor == res.cursor) {
			res.state, res.err = stateFailed, errCursorStalled
			break
		}

		res.pages++
		if page.NextCursor != "" {
			res.cursor = page.NextCursor
		}
		if !page.HasMore {
			res.state = stateIdle
		}
	}
	return res
}

// applyPage writes a page's posted rows in one batch, so a page is stored
// whole or not at all. Rows whose external id is already stored count as
// duplicates.
func (o *Orchestrator) applyPage(ctx context.Context, page feed.Page, accounts map[string]string, res *loopResult) error {
	var batch []model.Transaction
	for _, ft := range page.Added {
		if ft.Pending {
			res.pending++
			continue
		}
		accountID, ok := accounts[ft.AccountID]
		if !ok {
			res.orphaned++
			continue
		}
		batch = append(batch, o.toTransaction(accountID, ft))
	}
	if len(batch) == 0 {
		return nil
	}

	n, err := o.store.InsertTransactions(ctx, batch)
	if err != nil {
		return fmt.Errorf("storing %d transactions: %w", len(batch), err)
	}
	res.added += n
	res.duplicates += len(batch) - n
	return nil
}

// toTransaction flips the feed's sign: feed-positive is money out.
func (o *Orchestrator) toTransaction(accountID string, ft feed.Transaction) model.Transaction {
	p := normalize.Transaction(model.Parsed{
		Date:         ft.Date,
		Amount:       ft.Amount.Neg(),
		Currency:     ft.Currency,
		MerchantName: ft.Merchant(),
		Category:     ft.Category,
	})
	return model.Transaction{
		ID:           o.newID(),
		AccountID:    accountID,
		Date:         p.Date,
		Amount:       p.Amount,
		Currency:     p.Currency,
		MerchantName: p.MerchantName,
		Category:     p.Category,
		Source:       model.SourceFeed,
		ExternalID:   ft.ID,
		CreatedAt:    o.now().UTC(),
	}
}
