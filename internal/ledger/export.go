package ledger

import (
	"context"
	"fmt"
	"io"

	"github.com/cleared-dev/tally/internal/store"
)

// Export writes every transaction of an account as CSV.
func Export(ctx context.Context, w io.Writer, s store.Store, accountID string) (int, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return 0, err
	}
	txns, err := s.ListTransactions(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("listing transactions: %w", err)
	}
	if err := WriteTransactions(w, txns); err != nil {
		return 0, fmt.Errorf("exporting account %s: %w", accountID, err)
	}
	return len(txns), nil
}
