package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"miniapp-games/internal/models"
	"miniapp-games/internal/services"
)

// starsCurrency is the Telegram Stars currency code. Stars invoices take
// no provider token.
const starsCurrency = "XTR"

// Sender is the part of *tgbotapi.BotAPI the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// Directory records players and lists them for broadcasts. It is
// satisfied by services.RedisService.
type Directory interface {
	StoreUser(ctx context.Context, user *models.TelegramUser) error
	ListUserIDs(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int64, error)
}

type Options struct {
	// AdminUsername may run /admin. Empty disables the admin panel.
	AdminUsername string
	// WebAppURL is opened by the button under broadcast messages.
	WebAppURL string
}

// Bot sells gold for Telegram Stars, credits confirmed payments and lets
// the admin broadcast to every known player.
type Bot struct {
	api        Sender
	gameEngine *services.GameEngine
	users      Directory
	opts       Options
	log        logrus.FieldLogger

	mu     sync.Mutex
	promos map[string]string          // invoice payload -> promo code
	drafts map[int64]*broadcastDraft // admin chat -> broadcast in progress
}

// NewBot builds a bot. users may be nil, which disables /admin.
func NewBot(api Sender, gameEngine *services.GameEngine, users Directory, opts Options, log logrus.FieldLogger) *Bot {
	opts.AdminUsername = strings.TrimPrefix(opts.AdminUsername, "@")
	return &Bot{
		api:        api,
		gameEngine: gameEngine,
		users:      users,
		opts:       opts,
		log:        log.WithField("component", "bot"),
		promos:     make(map[string]string),
		drafts:     make(map[int64]*broadcastDraft),
	}
}

// Run handles updates until ctx is cancelled or the channel closes.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	b.log.Info("Starting bot...")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.PreCheckoutQuery != nil:
		b.handlePreCheckout(update.PreCheckoutQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		b.handleSuccessfulPayment(ctx, update.Message)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleDraftReply(ctx, update.Message)
	}
}

// remember adds the sender to the player directory.
func (b *Bot) remember(ctx context.Context, from *tgbotapi.User) {
	if b.users == nil || from == nil {
		return
	}
	user := &models.TelegramUser{
		ID:           from.ID,
		Username:     from.UserName,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		LanguageCode: from.LanguageCode,
	}
	if err := b.users.StoreUser(ctx, user); err != nil {
		b.log.WithError(err).WithField("user_id", from.ID).Warn("Failed to store user")
	}
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.WithError(err).Error("Failed to send message")
	}
}
