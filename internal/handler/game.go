// Package handler provides Telegram bot command handlers.
package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"secret-santa-bot/internal/model"
	"secret-santa-bot/internal/pairing"
	"secret-santa-bot/internal/service"
	"secret-santa-bot/internal/store"
)

// Recruitment poll options. Option 0 is the one that joins the game.
const (
	pollOptionJoin    = "I'm in! 🎅"
	pollOptionDecline = "Not this time"
)

// GameHandler handles game lifecycle commands and poll answers.
type GameHandler struct {
	games *service.GameService
	refs  *service.UserRefService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(games *service.GameService, refs *service.UserRefService) *GameHandler {
	return &GameHandler{
		games: games,
		refs:  refs,
	}
}

// HandleNew handles the /new command. It posts a recruitment poll in the
// group and registers a game keyed by the poll's id, led by the sender.
func (h *GameHandler) HandleNew(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	if chat.Type != tele.ChatGroup && chat.Type != tele.ChatSuperGroup {
		return c.Reply("❌ Secret Santa games can only be started in a group chat")
	}

	name := strings.TrimSpace(c.Message().Payload)
	if name == "" {
		return c.Reply("❌ Usage: /new <game name>\nFor example: /new Xmas 2026")
	}

	exists, err := h.games.GameExists(ctx, name, chat.ID)
	if err != nil {
		log.Error().Err(err).Str("game", name).Msg("Failed to check game existence")
		return c.Reply("❌ Something went wrong, please try again later")
	}
	if exists {
		return c.Reply(fmt.Sprintf("❌ A game called %q already exists in this group", name))
	}

	poll := &tele.Poll{
		Type:      tele.PollRegular,
		Question:  fmt.Sprintf("🎁 Secret Santa: %s — who's in?", name),
		Anonymous: false,
	}
	poll.AddOptions(pollOptionJoin, pollOptionDecline)

	msg, err := c.Bot().Send(chat, poll)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to send recruitment poll")
		return c.Reply("❌ Failed to post the recruitment poll")
	}
	if msg.Poll == nil {
		return c.Reply("❌ Failed to post the recruitment poll")
	}

	group := model.Group{ID: chat.ID, Title: chat.Title}
	if err := h.games.CreateGame(ctx, name, group, msg.Poll.ID, sender.ID); err != nil {
		if errors.Is(err, store.ErrGameExists) {
			return c.Reply(fmt.Sprintf("❌ A game called %q already exists in this group", name))
		}
		log.Error().Err(err).Str("game", name).Msg("Failed to create game")
		return c.Reply("❌ Something went wrong, please try again later")
	}

	return c.Reply(fmt.Sprintf(
		"🎄 %s started! Vote in the poll above to join.\n"+
			"When at least %d people are in, the game leader replies to the poll with /shuffle.",
		name, h.games.MinParticipants(),
	))
}

// HandleShuffle handles the /shuffle command. It must be sent as a reply to
// the game's recruitment poll, by the game leader. Each participant gets
// their gift recipient by private message.
func (h *GameHandler) HandleShuffle(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	sender := c.Sender()
	msg := c.Message()
	if chat == nil || sender == nil || msg == nil {
		return nil
	}

	if msg.ReplyTo == nil || msg.ReplyTo.Poll == nil {
		return c.Reply("❌ Reply to the game's recruitment poll with /shuffle")
	}
	pollID := msg.ReplyTo.Poll.ID

	game, pairings, err := h.games.Shuffle(ctx, pollID, sender.ID)
	switch {
	case errors.Is(err, store.ErrGameNotFound):
		return c.Reply("❌ That poll doesn't belong to a Secret Santa game")
	case errors.Is(err, service.ErrNotLeader):
		return c.Reply("❌ Only the game leader can shuffle")
	case errors.Is(err, pairing.ErrNotEnoughParticipants):
		return c.Reply(fmt.Sprintf("❌ Not enough players yet — at least %d needed", h.games.MinParticipants()))
	case err != nil:
		log.Error().Err(err).Str("poll_id", pollID).Msg("Failed to shuffle")
		return c.Reply("❌ Something went wrong, please try again later")
	}

	undelivered := 0
	for santa, recipient := range pairings {
		text := fmt.Sprintf(
			"🎁 %s (%s): you are the Secret Santa of %s!",
			game.Name, chat.Title, h.displayName(ctx, c.Bot(), recipient),
		)
		if _, err := c.Bot().Send(&tele.User{ID: santa}, text); err != nil {
			undelivered++
			log.Warn().Err(err).
				Int64("user_id", santa).
				Str("game", game.Name).
				Msg("Failed to deliver pairing")
		}
	}

	reply := fmt.Sprintf("🎅 %s shuffled for %d players! Check your private messages.", game.Name, len(pairings))
	if undelivered > 0 {
		reply += fmt.Sprintf(
			"\n⚠️ %d players couldn't be messaged — they should open a private chat with me and use /status.",
			undelivered,
		)
	}
	return c.Reply(reply)
}

// HandleStatus handles the /status command in a private chat. It lists the
// sender's current recipient in every game they have a pairing in.
func (h *GameHandler) HandleStatus(c tele.Context) error {
	ctx := context.Background()
	chat := c.Chat()
	sender := c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	if chat.Type != tele.ChatPrivate {
		return c.Reply("❌ Ask me in a private chat, your recipient is a secret!")
	}

	assignments, err := h.games.Assignments(ctx, sender.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load assignments")
		return c.Send("❌ Something went wrong, please try again later")
	}
	if len(assignments) == 0 {
		return c.Send("🎄 You have no active Secret Santa assignments")
	}

	sort.Slice(assignments, func(i, j int) bool {
		return assignments[i].Game.CreatedAt.Before(assignments[j].Game.CreatedAt)
	})

	var sb strings.Builder
	sb.WriteString("🎁 Your Secret Santa assignments:\n")
	for _, a := range assignments {
		fmt.Fprintf(&sb, "• %s (%s): %s\n",
			a.Game.Name, groupTitle(c.Bot(), a.Game.GroupID), h.displayName(ctx, c.Bot(), a.RecipientID))
	}
	return c.Send(sb.String())
}

// HandlePollAnswer handles recruitment poll votes. Voting for the first
// option joins the game, any other vote or a retracted vote leaves it.
func (h *GameHandler) HandlePollAnswer(c tele.Context) error {
	ctx := context.Background()
	answer := c.PollAnswer()
	if answer == nil || answer.Sender == nil {
		return nil
	}

	joined := false
	for _, option := range answer.Options {
		if option == 0 {
			joined = true
			break
		}
	}

	var err error
	if joined {
		err = h.games.Join(ctx, answer.Sender.ID, answer.PollID)
	} else {
		err = h.games.Leave(ctx, answer.Sender.ID, answer.PollID)
	}
	if errors.Is(err, store.ErrGameNotFound) {
		// The bot sees answers to every poll in the chat, not only ours.
		return nil
	}
	if err != nil {
		log.Error().Err(err).
			Str("poll_id", answer.PollID).
			Int64("user_id", answer.Sender.ID).
			Bool("joined", joined).
			Msg("Failed to record poll answer")
		return err
	}

	name := displayNameOf(answer.Sender)
	if name != "" {
		if err := h.refs.Remember(ctx, answer.Sender.ID, name); err != nil {
			log.Warn().Err(err).Int64("user_id", answer.Sender.ID).Msg("Failed to cache user reference")
		}
	}
	return nil
}

// displayName resolves a user id to something readable. It tries a live
// profile lookup first and falls back to the cached reference.
func (h *GameHandler) displayName(ctx context.Context, bot *tele.Bot, userID int64) string {
	if chat, err := bot.ChatByID(userID); err == nil {
		name := strings.TrimSpace(strings.TrimSpace(chat.FirstName) + " " + strings.TrimSpace(chat.LastName))
		if name == "" {
			name = chat.Username
		}
		if name != "" {
			if err := h.refs.Remember(ctx, userID, name); err != nil {
				log.Warn().Err(err).Int64("user_id", userID).Msg("Failed to cache user reference")
			}
			return name
		}
	}

	if name, err := h.refs.Lookup(ctx, userID); err == nil {
		return name
	}
	return fmt.Sprintf("user %d", userID)
}

// groupTitle resolves a group chat's current title.
func groupTitle(bot *tele.Bot, groupID int64) string {
	if chat, err := bot.ChatByID(groupID); err == nil && chat.Title != "" {
		return chat.Title
	}
	return fmt.Sprintf("group %d", groupID)
}

// displayNameOf builds a display name from a Telegram user profile.
func displayNameOf(user *tele.User) string {
	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	if name == "" {
		name = user.Username
	}
	return name
}
