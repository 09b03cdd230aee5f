package service

import (
	"context"
	"fmt"

	"secret-santa-bot/internal/store"
)

// WishlistService handles the shared per-game wish board.
type WishlistService struct {
	store store.Store
}

// NewWishlistService creates a new WishlistService instance.
func NewWishlistService(st store.Store) *WishlistService {
	return &WishlistService{store: st}
}

// RecordBoardMessage stores the message id of the game's wish board so a
// later re-post can supersede it and item updates can edit it in place.
func (s *WishlistService) RecordBoardMessage(ctx context.Context, pollID string, messageID int64) error {
	if err := s.store.CreateOrUpdateWishlistMessage(ctx, pollID, messageID); err != nil {
		return fmt.Errorf("failed to record wishlist board: %w", err)
	}
	return nil
}

// AddItem sets the user's wish for the game; the latest wish per user wins.
func (s *WishlistService) AddItem(ctx context.Context, pollID string, userID int64, text string) error {
	if err := s.store.UpsertWishlistItem(ctx, pollID, userID, text); err != nil {
		return fmt.Errorf("failed to add wishlist item: %w", err)
	}
	return nil
}

// Items returns the game's wishes keyed by user.
func (s *WishlistService) Items(ctx context.Context, pollID string) (map[int64]string, error) {
	return s.store.GetWishlist(ctx, pollID)
}

// ResolveBoard maps a wish board message back to its game's poll id.
func (s *WishlistService) ResolveBoard(ctx context.Context, messageID int64) (string, error) {
	return s.store.GetWishlistIDByMessage(ctx, messageID)
}
