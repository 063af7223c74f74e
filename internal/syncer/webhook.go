package syncer

import (
	"context"
	"fmt"

	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// Webhook is a provider notification.
type Webhook struct {
	Type   string `json:"webhook_type"`
	Code   string `json:"webhook_code"`
	ItemID string `json:"item_id"`
}

// Triggers reports whether the notification announces new transactions.
func (w Webhook) Triggers() bool {
	if w.Type != "TRANSACTIONS" || w.ItemID == "" {
		return false
	}
	return w.Code == "DEFAULT_UPDATE" || w.Code == "INITIAL_UPDATE"
}

// HandleWebhook syncs the item named by w for its owner. It reports
// whether a sync ran; unknown items and other notification kinds are
// ignored.
func (o *Orchestrator) HandleWebhook(ctx context.Context, w Webhook) (bool, error) {
	if !w.Triggers() {
		return false, nil
	}

	accts, err := o.store.ListAccounts(ctx, store.AccountFilter{
		Source:         model.SourceFeed,
		ExternalItemID: w.ItemID,
	})
	if err != nil {
		return false, fmt.Errorf("looking up item %s: %w", w.ItemID, err)
	}
	if len(accts) == 0 {
		o.log.Debug().Str("item_id", w.ItemID).Msg("webhook for unknown item")
		return false, nil
	}

	if _, err := o.Sync(ctx, accts[0].OwnerID, w.ItemID); err != nil {
		return true, err
	}
	return true, nil
}
