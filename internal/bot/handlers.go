package bot

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"compliment_bot/internal/generator"
	"compliment_bot/internal/model"
	"compliment_bot/internal/role"
	"compliment_bot/internal/storage"
)

const welcomeText = "Привет! 👋 Я бот-комплиментщик.\n\n" +
	"Каждое утро я присылаю тёплый комплимент, сгенерированный нейросетью. " +
	"Подпишитесь и выберите, кем я буду для вас."

const errorText = "❌ Произошла ошибка, попробуйте позже."

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	action, args := parseCallback(cb.Data)
	b.log.Info("callback",
		"action", action,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	if isAdminAction(action) && !b.isAdmin(cb.From) {
		b.answerCallback(cb.ID, "Нет доступа")
		return
	}
	b.answerCallback(cb.ID, "")

	// Tapping any button abandons a half-finished text dialog.
	b.sessions.Clear(chatID)

	switch action {
	case cbSubscribe:
		b.handleSubscribe(ctx, chatID, cb.From)
	case cbUnsubscribe:
		b.handleUnsubscribe(ctx, chatID)
	case cbCompliment:
		b.handleComplimentNow(ctx, chatID, cb.From)
	case cbChooseRole:
		b.handleChooseRole(ctx, chatID)
	case cbToggleWeekend:
		b.handleToggleWeekend(ctx, chatID, cb.From)
	case cbRole:
		if len(args) == 1 {
			b.handleRoleSelect(ctx, chatID, cb.From, args[0])
		}
	case cbMenu:
		b.sendMainMenu(ctx, chatID, cb.From)
	case cbNoop:
	default:
		if isAdminAction(action) {
			b.handleAdminCallback(ctx, chatID, action, args)
		}
	}
}

func isAdminAction(action string) bool {
	return strings.HasPrefix(action, "admin_") || strings.HasPrefix(action, "b24_")
}

func (b *Bot) handleStart(ctx context.Context, chatID int64, from *tgbotapi.User) {
	b.reply(chatID, welcomeText)
	b.sendMainMenu(ctx, chatID, from)
}

func (b *Bot) sendMainMenu(ctx context.Context, chatID int64, from *tgbotapi.User) {
	sub, err := b.store.GetSubscriptionByChatID(ctx, chatID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		b.log.Error("get subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}
	b.replyMarkup(chatID, "Выберите действие:", mainMenuKeyboard(sub, b.isAdmin(from)))
}

// handleSubscribe creates a subscription for the chat, or reactivates a
// paused one. Pressing the button twice never creates a duplicate.
func (b *Bot) handleSubscribe(ctx context.Context, chatID int64, from *tgbotapi.User) {
	sub, err := b.store.GetSubscriptionByChatID(ctx, chatID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		sub = model.NewSubscription(chatID)
		if from != nil {
			sub.TelegramUsername = from.UserName
			sub.TelegramFirstName = from.FirstName
		}
		if err := b.store.CreateSubscription(ctx, sub); err != nil {
			b.log.Error("create subscription", "chat_id", chatID, "error", err)
			b.reply(chatID, errorText)
			return
		}
		b.reply(chatID, "✅ Подписка оформлена! Каждое утро вас будет ждать комплимент 💌")
		b.replyMarkup(chatID, "Кем мне быть для вас?", roleKeyboard())
	case err != nil:
		b.log.Error("get subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
	case sub.IsActive:
		b.reply(chatID, "Вы уже подписаны 😊")
		b.sendMainMenu(ctx, chatID, from)
	default:
		sub.IsActive = true
		if err := b.store.UpdateSubscription(ctx, sub); err != nil {
			b.log.Error("update subscription", "chat_id", chatID, "error", err)
			b.reply(chatID, errorText)
			return
		}
		b.reply(chatID, "✅ Подписка возобновлена! С возвращением 💌")
		b.sendMainMenu(ctx, chatID, from)
	}
}

func (b *Bot) handleUnsubscribe(ctx context.Context, chatID int64) {
	sub, err := b.store.GetSubscriptionByChatID(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, "Вы ещё не подписаны.")
		return
	}
	if err != nil {
		b.log.Error("get subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}

	sub.IsActive = false
	if err := b.store.UpdateSubscription(ctx, sub); err != nil {
		b.log.Error("update subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}
	b.reply(chatID, "🔕 Подписка приостановлена. Возвращайтесь!")
}

// handleComplimentNow sends a compliment on demand. Subscribers get one in
// their chosen role with history recorded; everyone else gets a one-off
// neutral compliment.
func (b *Bot) handleComplimentNow(ctx context.Context, chatID int64, from *tgbotapi.User) {
	sub, err := b.store.GetSubscriptionByChatID(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		name := ""
		if from != nil {
			name = from.FirstName
		}
		if _, err := b.compliments.SendAdHoc(ctx, chatID, name); err != nil {
			b.log.Warn("ad-hoc compliment failed", "chat_id", chatID, "error", err)
		}
		return
	}
	if err != nil {
		b.log.Error("get subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}

	if _, err := b.compliments.SendToSubscriber(ctx, sub, time.Now()); err != nil {
		b.log.Warn("on-demand compliment failed", "chat_id", chatID, "error", err)
		// Generation failures already produced a chat notice; anything
		// else would otherwise fail silently.
		var genErr *generator.GenerationError
		if !errors.As(err, &genErr) {
			b.reply(chatID, errorText)
		}
	}
}

func (b *Bot) handleChooseRole(ctx context.Context, chatID int64) {
	if _, err := b.store.GetSubscriptionByChatID(ctx, chatID); errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, "Сначала оформите подписку 💌")
		return
	} else if err != nil {
		b.log.Error("get subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}
	b.replyMarkup(chatID, "Кем мне быть для вас?", roleKeyboard())
}

func (b *Bot) handleRoleSelect(ctx context.Context, chatID int64, from *tgbotapi.User, value string) {
	r, ok := role.Parse(value)
	if !ok {
		b.reply(chatID, "⚠️ Неизвестная роль.")
		return
	}

	sub, err := b.store.GetSubscriptionByChatID(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, "Сначала оформите подписку 💌")
		return
	}
	if err != nil {
		b.log.Error("get subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}

	sub.Role = string(r)
	if err := b.store.UpdateSubscription(ctx, sub); err != nil {
		b.log.Error("update subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}
	b.reply(chatID, "✅ Роль обновлена: "+r.Label())
	b.sendMainMenu(ctx, chatID, from)
}

func (b *Bot) handleToggleWeekend(ctx context.Context, chatID int64, from *tgbotapi.User) {
	sub, err := b.store.GetSubscriptionByChatID(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, "Сначала оформите подписку 💌")
		return
	}
	if err != nil {
		b.log.Error("get subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}

	sub.WeekendEnabled = !sub.WeekendEnabled
	if err := b.store.UpdateSubscription(ctx, sub); err != nil {
		b.log.Error("update subscription", "chat_id", chatID, "error", err)
		b.reply(chatID, errorText)
		return
	}

	if sub.WeekendEnabled {
		b.reply(chatID, "📅 Комплименты по выходным включены (в "+sub.WeekendTime.String()+").")
	} else {
		b.reply(chatID, "📅 Комплименты по выходным выключены.")
	}
	b.sendMainMenu(ctx, chatID, from)
}

// handleTextInput consumes a plain text message as the answer to the
// chat's pending question. A malformed answer keeps the question armed so
// the user can simply try again.
func (b *Bot) handleTextInput(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	action, ok := b.sessions.Get(chatID)
	if !ok {
		return
	}
	text := strings.TrimSpace(msg.Text)

	switch action.Kind {
	case PendingSetTime:
		dt, err := model.ParseDayTime(text)
		if err != nil {
			b.reply(chatID, "⚠️ Неверный формат времени. Отправьте время в формате ЧЧ:ММ, например 08:30.")
			return
		}
		b.sessions.Clear(chatID)
		b.applyTime(ctx, chatID, action, dt)
	case PendingAddB24User:
		b.sessions.Clear(chatID)
		b.handleB24AddInput(ctx, chatID, text)
	}
}
