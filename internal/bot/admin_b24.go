package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"compliment_bot/internal/model"
	"compliment_bot/internal/storage"
)

func (b *Bot) handleB24Callback(ctx context.Context, chatID int64, action string, args []string) {
	if !b.b24.IsConfigured() {
		b.reply(chatID, "🏢 Bitrix24 не настроен.")
		return
	}

	switch action {
	case cbB24Home:
		b.replyMarkup(chatID, "🏢 Bitrix24: "+b.b24.PortalURL(), b24HomeKeyboard())
	case cbB24List:
		b.sendB24List(ctx, chatID, 0)
	case cbB24Page:
		b.sendB24List(ctx, chatID, argPage(args, 0))
	case cbB24Sub:
		b.withB24Subscription(ctx, chatID, args, func(sub *model.B24Subscription) {
			b.sendB24SubDetail(sub, chatID)
		})
	case cbB24Toggle:
		b.handleB24Toggle(ctx, chatID, args)
	case cbB24Send:
		b.handleB24Send(ctx, chatID, args)
	case cbB24History:
		b.sendB24History(ctx, chatID, args)
	case cbB24Weekday:
		b.promptTime(chatID, args, platformBitrix24, periodWeekday)
	case cbB24Weekend:
		b.promptTime(chatID, args, platformBitrix24, periodWeekend)
	case cbB24Time:
		b.handleTimePreset(ctx, chatID, args, platformBitrix24)
	case cbB24Add:
		b.sessions.Set(chatID, PendingAction{Kind: PendingAddB24User, Platform: platformBitrix24})
		b.reply(chatID, "Отправьте ID пользователя Bitrix24 числом.")
	case cbB24DeleteAsk:
		b.handleB24DeleteAsk(ctx, chatID, args)
	case cbB24Delete:
		b.handleB24Delete(ctx, chatID, args)
	}
}

func (b *Bot) sendB24List(ctx context.Context, chatID int64, page int) {
	count, err := b.store.CountB24Subscriptions(ctx)
	if err != nil {
		b.log.Error("count b24 subscriptions", "error", err)
		b.reply(chatID, errorText)
		return
	}
	if count == 0 {
		b.replyMarkup(chatID, "Получателей пока нет.", b24HomeKeyboard())
		return
	}

	pages := (count + adminPageSize - 1) / adminPageSize
	if page >= pages {
		page = pages - 1
	}
	subs, err := b.store.ListB24SubscriptionsPage(ctx, page*adminPageSize, adminPageSize)
	if err != nil {
		b.log.Error("list b24 subscriptions", "error", err)
		b.reply(chatID, errorText)
		return
	}

	text := fmt.Sprintf("👥 Получатели Bitrix24: %d (стр. %d/%d)", count, page+1, pages)
	b.replyMarkup(chatID, text, b24ListKeyboard(subs, page, pages))
}

func (b *Bot) sendB24SubDetail(sub *model.B24Subscription, chatID int64) {
	b.replyMarkup(chatID, b.formatB24Detail(sub), b24SubKeyboard(sub))
}

func (b *Bot) handleB24Toggle(ctx context.Context, chatID int64, args []string) {
	b.withB24Subscription(ctx, chatID, args, func(sub *model.B24Subscription) {
		sub.IsActive = !sub.IsActive
		if err := b.store.UpdateB24Subscription(ctx, sub); err != nil {
			b.log.Error("update b24 subscription", "subscription_id", sub.ID, "error", err)
			b.reply(chatID, errorText)
			return
		}
		b.sendB24SubDetail(sub, chatID)
	})
}

func (b *Bot) handleB24Send(ctx context.Context, chatID int64, args []string) {
	b.withB24Subscription(ctx, chatID, args, func(sub *model.B24Subscription) {
		if _, err := b.compliments.SendToB24Subscriber(ctx, sub, time.Now()); err != nil {
			b.reply(chatID, "❌ Не удалось отправить: "+err.Error())
			return
		}
		b.reply(chatID, fmt.Sprintf("✅ Комплимент отправлен получателю #%d.", sub.ID))
	})
}

func (b *Bot) sendB24History(ctx context.Context, chatID int64, args []string) {
	id, err := argID(args, 0)
	if err != nil {
		return
	}
	page := argPage(args, 1)

	count, err := b.store.CountB24History(ctx, id)
	if err != nil {
		b.log.Error("count b24 history", "subscription_id", id, "error", err)
		b.reply(chatID, errorText)
		return
	}
	if count == 0 {
		b.reply(chatID, "История пуста.")
		return
	}

	pages := (count + adminPageSize - 1) / adminPageSize
	if page >= pages {
		page = pages - 1
	}
	entries, err := b.store.B24HistoryPage(ctx, id, page*adminPageSize, adminPageSize)
	if err != nil {
		b.log.Error("b24 history page", "subscription_id", id, "error", err)
		b.reply(chatID, errorText)
		return
	}

	text := b.formatHistoryPage(fmt.Sprintf("История получателя #%d", id), entries, page, pages)
	b.replyMarkup(chatID, text, historyNavKeyboard(cbB24History, id, page, pages, fmt.Sprintf("%s:%d", cbB24Sub, id)))
}

// handleB24AddInput finishes the add dialog: the text must be a numeric
// user ID, the user must exist on the portal, and duplicates are rejected.
func (b *Bot) handleB24AddInput(ctx context.Context, chatID int64, text string) {
	userID, err := strconv.ParseInt(text, 10, 64)
	if err != nil || userID <= 0 {
		b.sessions.Set(chatID, PendingAction{Kind: PendingAddB24User, Platform: platformBitrix24})
		b.reply(chatID, "⚠️ ID пользователя должен быть положительным числом, например 42.")
		return
	}

	existing, err := b.store.GetB24SubscriptionByUserID(ctx, userID)
	if err == nil {
		b.reply(chatID, "Этот пользователь уже добавлен.")
		b.sendB24SubDetail(existing, chatID)
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		b.log.Error("get b24 subscription", "b24_user_id", userID, "error", err)
		b.reply(chatID, errorText)
		return
	}

	info, err := b.b24.UserInfo(ctx, userID)
	if err != nil {
		b.log.Warn("b24 user lookup failed", "b24_user_id", userID, "error", err)
		b.reply(chatID, fmt.Sprintf("❌ Не удалось найти пользователя %d на портале.", userID))
		return
	}

	sub := model.NewB24Subscription(userID, b.b24.PortalURL())
	sub.B24UserName = info.Name
	if err := b.store.CreateB24Subscription(ctx, sub); err != nil {
		b.log.Error("create b24 subscription", "b24_user_id", userID, "error", err)
		b.reply(chatID, errorText)
		return
	}

	b.reply(chatID, fmt.Sprintf("✅ Получатель добавлен: %s", b24Name(sub)))
	b.sendB24SubDetail(sub, chatID)
}

func (b *Bot) handleB24DeleteAsk(ctx context.Context, chatID int64, args []string) {
	b.withB24Subscription(ctx, chatID, args, func(sub *model.B24Subscription) {
		text := fmt.Sprintf("Удалить получателя #%d %s вместе с историей?", sub.ID, b24Name(sub))
		markup := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				btn("🗑 Да, удалить", fmt.Sprintf("%s:%d", cbB24Delete, sub.ID)),
				btn("Отмена", fmt.Sprintf("%s:%d", cbB24Sub, sub.ID)),
			),
		)
		b.replyMarkup(chatID, text, markup)
	})
}

func (b *Bot) handleB24Delete(ctx context.Context, chatID int64, args []string) {
	id, err := argID(args, 0)
	if err != nil {
		return
	}
	if err := b.store.DeleteB24Subscription(ctx, id); err != nil {
		b.log.Error("delete b24 subscription", "subscription_id", id, "error", err)
		b.reply(chatID, errorText)
		return
	}
	b.reply(chatID, "🗑 Получатель удалён.")
	b.sendB24List(ctx, chatID, 0)
}

// withB24Subscription resolves args[0] to a Bitrix24 subscription and runs
// fn on it.
func (b *Bot) withB24Subscription(ctx context.Context, chatID int64, args []string, fn func(*model.B24Subscription)) {
	id, err := argID(args, 0)
	if err != nil {
		return
	}
	sub, err := b.store.GetB24Subscription(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.reply(chatID, fmt.Sprintf("❌ Получатель #%d не найден.", id))
			return
		}
		b.log.Error("get b24 subscription", "subscription_id", id, "error", err)
		b.reply(chatID, errorText)
		return
	}
	fn(sub)
}
