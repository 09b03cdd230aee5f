// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"secret-santa-bot/internal/config"
	"secret-santa-bot/internal/handler"
	"secret-santa-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot *tele.Bot
	cfg *config.Config

	gameHandler     *handler.GameHandler
	wishlistHandler *handler.WishlistHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config          *config.Config
	GameService     *service.GameService
	WishlistService *service.WishlistService
	UserRefService  *service.UserRefService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot: teleBot,
		cfg: deps.Config,
	}

	b.gameHandler = handler.NewGameHandler(deps.GameService, deps.UserRefService)
	b.wishlistHandler = handler.NewWishlistHandler(deps.WishlistService, deps.GameService, deps.UserRefService)

	b.registerMiddleware(deps.UserRefService)
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware(refs *service.UserRefService) {
	b.bot.Use(RecoveryMiddleware())

	// Whitelist middleware - check if chat is allowed
	b.bot.Use(WhitelistMiddleware(b.cfg))

	// Logging middleware
	b.bot.Use(LoggingMiddleware())

	// Keep display names fresh for pairing announcements
	b.bot.Use(UserReferenceMiddleware(refs))
}

// registerHandlers registers all command and poll handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/new", b.gameHandler.HandleNew)
	b.bot.Handle("/shuffle", b.gameHandler.HandleShuffle)
	b.bot.Handle("/status", b.gameHandler.HandleStatus)

	b.bot.Handle("/wishlist", b.wishlistHandler.HandleWishlist)
	b.bot.Handle("/wish", b.wishlistHandler.HandleWish)

	// Joins and leaves arrive as answers to the recruitment poll
	b.bot.Handle(tele.OnPollAnswer, b.gameHandler.HandlePollAnswer)
}

// handleStart greets the user and explains the commands.
func (b *Bot) handleStart(c tele.Context) error {
	return c.Send(
		"🎄 Hi! I organize Secret Santa games.\n\n" +
			"In a group:\n" +
			"/new <name> — start a game with a recruitment poll\n" +
			"/shuffle — (leader, as a reply to the poll) draw the pairings\n" +
			"/wishlist — (as a reply to the poll) post the wish board\n" +
			"/wish <text> — (as a reply to the board) record your wish\n\n" +
			"In a private chat:\n" +
			"/status — see who you're gifting to",
	)
}

// Start starts the bot polling.
func (b *Bot) Start() {
	log.Info().Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// GetBot returns the underlying telebot instance.
func (b *Bot) GetBot() *tele.Bot {
	return b.bot
}
