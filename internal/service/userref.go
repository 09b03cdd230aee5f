package service

import (
	"context"
	"fmt"
	"strings"

	"secret-santa-bot/internal/store"
)

// UserRefService caches human-readable names for user ids so that pairing
// announcements can still name a recipient when a live profile lookup fails.
type UserRefService struct {
	store store.Store
}

// NewUserRefService creates a new UserRefService instance.
func NewUserRefService(st store.Store) *UserRefService {
	return &UserRefService{store: st}
}

// Remember caches the latest known display name for the user. Empty names
// are ignored so a bad lookup never erases a previously good one.
func (s *UserRefService) Remember(ctx context.Context, userID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	if err := s.store.SaveUserReference(ctx, userID, name); err != nil {
		return fmt.Errorf("failed to save user reference: %w", err)
	}
	return nil
}

// Lookup returns the cached display name for the user.
func (s *UserRefService) Lookup(ctx context.Context, userID int64) (string, error) {
	return s.store.GetUserReference(ctx, userID)
}
