package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/tally/internal/id"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/store"
)

// DefaultUploadName names upload containers created without a name.
const DefaultUploadName = "Uploaded statement"

// Service provides owner-scoped account operations.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a Service.
func NewService(s store.Store) *Service {
	return &Service{store: s, now: time.Now}
}

// CreateUpload creates an empty upload account for the owner.
func (s *Service) CreateUpload(ctx context.Context, ownerID, name string) (model.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultUploadName
	}
	a := model.Account{
		ID:        id.New(),
		OwnerID:   ownerID,
		Name:      name,
		Source:    model.SourceUpload,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return model.Account{}, fmt.Errorf("creating account %q: %w", name, err)
	}
	return a, nil
}

// Get returns the owner's account. Accounts of other owners are reported
// as store.ErrNotFound.
func (s *Service) Get(ctx context.Context, ownerID, accountID string) (model.Account, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return model.Account{}, err
	}
	if a.OwnerID != ownerID {
		return model.Account{}, store.ErrNotFound
	}
	return a, nil
}

// List returns the owner's accounts in creation order.
func (s *Service) List(ctx context.Context, ownerID string) ([]model.Account, error) {
	return s.store.ListAccounts(ctx, store.AccountFilter{OwnerID: ownerID})
}

// Delete removes the owner's account and its transactions.
func (s *Service) Delete(ctx context.Context, ownerID, accountID string) error {
	if _, err := s.Get(ctx, ownerID, accountID); err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, accountID); err != nil {
		return fmt.Errorf("deleting account %s: %w", accountID, err)
	}
	return nil
}
