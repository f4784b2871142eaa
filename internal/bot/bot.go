// Package bot routes Telegram updates: the self-service subscription menu,
// the admin panel, and the pending-action answers that both flows collect
// through plain text messages.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"

	"compliment_bot/internal/bitrix24"
	"compliment_bot/internal/compliment"
	"compliment_bot/internal/config"
	"compliment_bot/internal/generator"
	"compliment_bot/internal/storage"
)

const pollRetryDelay = 5 * time.Second

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Bot is the Telegram frontend of the compliment service.
type Bot struct {
	api         telegramAPI
	store       storage.Storage
	cfg         *config.Config
	b24         *bitrix24.Client
	compliments *compliment.Service
	sessions    SessionStore
	loc         *time.Location
	log         *slog.Logger
}

// New creates a Bot and the compliment service it delivers through.
func New(token string, store storage.Storage, gen generator.Generator, b24 *bitrix24.Client, cfg *config.Config, loc *time.Location, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	b := &Bot{
		api:      api,
		store:    store,
		cfg:      cfg,
		b24:      b24,
		sessions: NewSessionStore(),
		loc:      loc,
		log:      log,
	}
	b.compliments = compliment.NewService(store, gen, b, b24, log)
	return b, nil
}

// Compliments exposes the shared compliment service, the dispatch engine
// delivers through the same instance.
func (b *Bot) Compliments() *compliment.Service {
	return b.compliments
}

// Run polls Telegram for updates until ctx is cancelled. The offset is
// advanced past every received update so a batch is never consumed twice;
// transient API failures are retried with a constant delay.
func (b *Bot) Run(ctx context.Context) {
	offset := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = 30

		var updates []tgbotapi.Update
		err := retry.Do(ctx, retry.NewConstant(pollRetryDelay), func(ctx context.Context) error {
			var err error
			updates, err = b.api.GetUpdates(u)
			if err != nil {
				b.log.Warn("get updates", "error", err)
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			// Only context cancellation gets here.
			return
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.Chat == nil {
		return
	}

	msg := update.Message
	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	// Pending prompts are admin dialogs; in a group chat nobody else may
	// answer them. All other plain text is ignored.
	if _, ok := b.sessions.Get(msg.Chat.ID); ok && b.isAdmin(msg.From) {
		b.handleTextInput(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	b.sessions.Clear(chatID)

	b.log.Debug("command", "cmd", msg.Command(), "chat_id", chatID)

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, chatID, msg.From)
	case "admin":
		if !b.isAdmin(msg.From) {
			b.reply(chatID, "⛔ Доступ запрещён.")
			return
		}
		b.sendAdminHome(chatID)
	default:
		b.sendMainMenu(ctx, chatID, msg.From)
	}
}

// SendMessage sends a plain text message and reports whether Telegram
// accepted it.
func (b *Bot) SendMessage(chatID int64, text string) bool {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
		return false
	}
	return true
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

// answerCallback answers a callback query; text, when non-empty, is shown
// to the tapping user as a toast.
func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("answer callback", "error", err)
	}
}

func (b *Bot) replyMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) isAdmin(user *tgbotapi.User) bool {
	if user == nil || b.cfg.AdminUsername == "" {
		return false
	}
	return strings.EqualFold(user.UserName, b.cfg.AdminUsername)
}
