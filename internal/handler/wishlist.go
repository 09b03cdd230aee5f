package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"secret-santa-bot/internal/service"
	"secret-santa-bot/internal/store"
)

// WishlistHandler handles the per-game wish board.
type WishlistHandler struct {
	wishes *service.WishlistService
	games  *service.GameService
	refs   *service.UserRefService
}

// NewWishlistHandler creates a new WishlistHandler.
func NewWishlistHandler(wishes *service.WishlistService, games *service.GameService, refs *service.UserRefService) *WishlistHandler {
	return &WishlistHandler{
		wishes: wishes,
		games:  games,
		refs:   refs,
	}
}

// HandleWishlist handles the /wishlist command. Sent as a reply to a game's
// recruitment poll, it posts the game's wish board. Posting again replaces
// the old board: wish updates edit the newest board message in place.
func (h *WishlistHandler) HandleWishlist(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	msg := c.Message()
	if chat == nil || msg == nil {
		return nil
	}

	if chat.Type != tele.ChatGroup && chat.Type != tele.ChatSuperGroup {
		return c.Reply("❌ The wish board lives in the game's group chat")
	}
	if msg.ReplyTo == nil || msg.ReplyTo.Poll == nil {
		return c.Reply("❌ Reply to the game's recruitment poll with /wishlist")
	}
	pollID := msg.ReplyTo.Poll.ID

	game, err := h.games.Game(ctx, pollID)
	if errors.Is(err, store.ErrGameNotFound) {
		return c.Reply("❌ That poll doesn't belong to a Secret Santa game")
	}
	if err != nil {
		log.Error().Err(err).Str("poll_id", pollID).Msg("Failed to load game")
		return c.Reply("❌ Something went wrong, please try again later")
	}

	items, err := h.wishes.Items(ctx, pollID)
	if err != nil {
		log.Error().Err(err).Str("poll_id", pollID).Msg("Failed to load wishlist")
		return c.Reply("❌ Something went wrong, please try again later")
	}

	board, err := c.Bot().Send(chat, h.renderBoard(ctx, c.Bot(), game.Name, items))
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to post wish board")
		return c.Reply("❌ Failed to post the wish board")
	}

	if err := h.wishes.RecordBoardMessage(ctx, pollID, int64(board.ID)); err != nil {
		log.Error().Err(err).Str("poll_id", pollID).Msg("Failed to record wish board message")
		return c.Reply("❌ Something went wrong, please try again later")
	}
	return nil
}

// HandleWish handles the /wish command. Sent as a reply to the game's wish
// board (or its recruitment poll), it records the sender's wish and edits
// the board in place. The latest wish per user wins.
func (h *WishlistHandler) HandleWish(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	sender := c.Sender()
	msg := c.Message()
	if chat == nil || sender == nil || msg == nil {
		return nil
	}

	text := strings.TrimSpace(msg.Payload)
	if text == "" {
		return c.Reply("❌ Usage: /wish <what you'd like to get>")
	}

	pollID, boardID, err := h.resolveTarget(ctx, msg)
	if err != nil {
		return c.Reply("❌ Reply to the game's wish board or recruitment poll with /wish")
	}

	if err := h.wishes.AddItem(ctx, pollID, sender.ID, text); err != nil {
		if errors.Is(err, store.ErrGameNotFound) {
			return c.Reply("❌ That game doesn't exist anymore")
		}
		log.Error().Err(err).Str("poll_id", pollID).Msg("Failed to save wish")
		return c.Reply("❌ Something went wrong, please try again later")
	}

	if name := displayNameOf(sender); name != "" {
		if err := h.refs.Remember(ctx, sender.ID, name); err != nil {
			log.Warn().Err(err).Int64("user_id", sender.ID).Msg("Failed to cache user reference")
		}
	}

	if boardID != 0 {
		h.refreshBoard(ctx, c.Bot(), chat.ID, boardID, pollID)
	}
	return c.Reply("🎁 Wish saved!")
}

// resolveTarget maps the replied-to message to a game's poll id. Replying to
// the wish board also gives back the board's message id so it can be edited.
func (h *WishlistHandler) resolveTarget(ctx context.Context, msg *tele.Message) (pollID string, boardID int64, err error) {
	if msg.ReplyTo == nil {
		return "", 0, store.ErrWishlistNotFound
	}
	if msg.ReplyTo.Poll != nil {
		return msg.ReplyTo.Poll.ID, 0, nil
	}
	pollID, err = h.wishes.ResolveBoard(ctx, int64(msg.ReplyTo.ID))
	if err != nil {
		return "", 0, err
	}
	return pollID, int64(msg.ReplyTo.ID), nil
}

// refreshBoard re-renders the wish board message after a wish changed.
func (h *WishlistHandler) refreshBoard(ctx context.Context, bot *tele.Bot, chatID, boardID int64, pollID string) {
	game, err := h.games.Game(ctx, pollID)
	if err != nil {
		log.Warn().Err(err).Str("poll_id", pollID).Msg("Failed to load game for board refresh")
		return
	}
	items, err := h.wishes.Items(ctx, pollID)
	if err != nil {
		log.Warn().Err(err).Str("poll_id", pollID).Msg("Failed to load wishlist for board refresh")
		return
	}

	stored := tele.StoredMessage{
		MessageID: strconv.FormatInt(boardID, 10),
		ChatID:    chatID,
	}
	if _, err := bot.Edit(stored, h.renderBoard(ctx, bot, game.Name, items)); err != nil {
		log.Warn().Err(err).Int64("message_id", boardID).Msg("Failed to edit wish board")
	}
}

// renderBoard formats the wish board text, one line per wisher.
func (h *WishlistHandler) renderBoard(ctx context.Context, bot *tele.Bot, gameName string, items map[int64]string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📝 Wish board for %s\n", gameName)
	if len(items) == 0 {
		sb.WriteString("No wishes yet — reply to this message with /wish <text>")
		return sb.String()
	}

	userIDs := make([]int64, 0, len(items))
	for userID := range items {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	for _, userID := range userIDs {
		fmt.Fprintf(&sb, "• %s: %s\n", h.wisherName(ctx, bot, userID), items[userID])
	}
	return sb.String()
}

// wisherName resolves a wisher to a readable name, preferring the cached
// reference so board rendering doesn't hammer the Telegram API.
func (h *WishlistHandler) wisherName(ctx context.Context, bot *tele.Bot, userID int64) string {
	if name, err := h.refs.Lookup(ctx, userID); err == nil {
		return name
	}
	if chat, err := bot.ChatByID(userID); err == nil {
		if name := strings.TrimSpace(strings.TrimSpace(chat.FirstName) + " " + strings.TrimSpace(chat.LastName)); name != "" {
			return name
		}
		if chat.Username != "" {
			return chat.Username
		}
	}
	return fmt.Sprintf("user %d", userID)
}
