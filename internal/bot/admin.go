package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"compliment_bot/internal/model"
	"compliment_bot/internal/storage"
)

const adminPageSize = 5

func (b *Bot) handleAdminCallback(ctx context.Context, chatID int64, action string, args []string) {
	switch action {
	case cbAdminHome:
		b.sendAdminHome(chatID)
	case cbAdminList:
		b.sendAdminList(ctx, chatID, 0)
	case cbAdminPage:
		b.sendAdminList(ctx, chatID, argPage(args, 0))
	case cbAdminSub:
		b.withSubscription(ctx, chatID, args, func(sub *model.Subscription) {
			b.sendAdminSubDetail(sub, chatID)
		})
	case cbAdminToggle:
		b.handleAdminToggle(ctx, chatID, args)
	case cbAdminSend:
		b.handleAdminSend(ctx, chatID, args)
	case cbAdminHistory:
		b.sendAdminHistory(ctx, chatID, args)
	case cbAdminWeekday:
		b.promptTime(chatID, args, platformTelegram, periodWeekday)
	case cbAdminWeekend:
		b.promptTime(chatID, args, platformTelegram, periodWeekend)
	case cbAdminTime:
		b.handleTimePreset(ctx, chatID, args, platformTelegram)
	default:
		b.handleB24Callback(ctx, chatID, action, args)
	}
}

func (b *Bot) sendAdminHome(chatID int64) {
	b.replyMarkup(chatID, "⚙️ Админ-панель", adminHomeKeyboard(b.b24.IsConfigured()))
}

func (b *Bot) sendAdminList(ctx context.Context, chatID int64, page int) {
	count, err := b.store.CountSubscriptions(ctx)
	if err != nil {
		b.log.Error("count subscriptions", "error", err)
		b.reply(chatID, errorText)
		return
	}
	if count == 0 {
		b.replyMarkup(chatID, "Подписчиков пока нет.", adminHomeKeyboard(b.b24.IsConfigured()))
		return
	}

	pages := (count + adminPageSize - 1) / adminPageSize
	if page >= pages {
		page = pages - 1
	}
	subs, err := b.store.ListSubscriptionsPage(ctx, page*adminPageSize, adminPageSize)
	if err != nil {
		b.log.Error("list subscriptions", "error", err)
		b.reply(chatID, errorText)
		return
	}

	text := fmt.Sprintf("👥 Подписчики: %d (стр. %d/%d)", count, page+1, pages)
	b.replyMarkup(chatID, text, adminListKeyboard(subs, page, pages))
}

func (b *Bot) sendAdminSubDetail(sub *model.Subscription, chatID int64) {
	b.replyMarkup(chatID, b.formatSubscriberDetail(sub), adminSubKeyboard(sub))
}

func (b *Bot) handleAdminToggle(ctx context.Context, chatID int64, args []string) {
	b.withSubscription(ctx, chatID, args, func(sub *model.Subscription) {
		sub.IsActive = !sub.IsActive
		if err := b.store.UpdateSubscription(ctx, sub); err != nil {
			b.log.Error("update subscription", "subscription_id", sub.ID, "error", err)
			b.reply(chatID, errorText)
			return
		}
		b.sendAdminSubDetail(sub, chatID)
	})
}

func (b *Bot) handleAdminSend(ctx context.Context, chatID int64, args []string) {
	b.withSubscription(ctx, chatID, args, func(sub *model.Subscription) {
		if _, err := b.compliments.SendToSubscriber(ctx, sub, time.Now()); err != nil {
			b.reply(chatID, "❌ Не удалось отправить: "+err.Error())
			return
		}
		b.reply(chatID, fmt.Sprintf("✅ Комплимент отправлен подписчику #%d.", sub.ID))
	})
}

func (b *Bot) sendAdminHistory(ctx context.Context, chatID int64, args []string) {
	id, err := argID(args, 0)
	if err != nil {
		return
	}
	page := argPage(args, 1)

	count, err := b.store.CountHistory(ctx, id)
	if err != nil {
		b.log.Error("count history", "subscription_id", id, "error", err)
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
	entries, err := b.store.HistoryPage(ctx, id, page*adminPageSize, adminPageSize)
	if err != nil {
		b.log.Error("history page", "subscription_id", id, "error", err)
		b.reply(chatID, errorText)
		return
	}

	text := b.formatHistoryPage(fmt.Sprintf("История подписчика #%d", id), entries, page, pages)
	b.replyMarkup(chatID, text, historyNavKeyboard(cbAdminHistory, id, page, pages, fmt.Sprintf("%s:%d", cbAdminSub, id)))
}

// promptTime arms the time dialog and shows the preset keyboard. Both the
// presets and a typed ЧЧ:ММ answer end up in applyTime.
func (b *Bot) promptTime(chatID int64, args []string, platform, period string) {
	id, err := argID(args, 0)
	if err != nil {
		return
	}
	b.sessions.Set(chatID, PendingAction{
		Kind:           PendingSetTime,
		Platform:       platform,
		Period:         period,
		SubscriptionID: id,
	})

	action := cbAdminTime
	if platform == platformBitrix24 {
		action = cbB24Time
	}
	label := "будних дней"
	if period == periodWeekend {
		label = "выходных"
	}
	text := fmt.Sprintf("🕐 Выберите время для %s или отправьте его сообщением в формате ЧЧ:ММ.", label)
	b.replyMarkup(chatID, text, timePresetKeyboard(action, id, period))
}

func (b *Bot) handleTimePreset(ctx context.Context, chatID int64, args []string, platform string) {
	id, err := argID(args, 0)
	if err != nil {
		return
	}
	if len(args) < 2 {
		return
	}
	period := args[1]
	raw, err := timeArg(args, 2)
	if err != nil {
		return
	}
	dt, err := model.ParseDayTime(raw)
	if err != nil {
		return
	}
	b.applyTime(ctx, chatID, PendingAction{
		Kind:           PendingSetTime,
		Platform:       platform,
		Period:         period,
		SubscriptionID: id,
	}, dt)
}

// applyTime stores a new delivery time on the subscription the dialog was
// opened for.
func (b *Bot) applyTime(ctx context.Context, chatID int64, a PendingAction, dt model.DayTime) {
	switch a.Platform {
	case platformTelegram:
		sub, err := b.store.GetSubscription(ctx, a.SubscriptionID)
		if err != nil {
			b.subLookupError(chatID, a.SubscriptionID, err)
			return
		}
		if a.Period == periodWeekend {
			sub.WeekendTime = dt
		} else {
			sub.WeekdayTime = dt
		}
		if err := b.store.UpdateSubscription(ctx, sub); err != nil {
			b.log.Error("update subscription", "subscription_id", sub.ID, "error", err)
			b.reply(chatID, errorText)
			return
		}
		b.reply(chatID, "✅ Время обновлено: "+dt.String())
		b.sendAdminSubDetail(sub, chatID)
	case platformBitrix24:
		sub, err := b.store.GetB24Subscription(ctx, a.SubscriptionID)
		if err != nil {
			b.subLookupError(chatID, a.SubscriptionID, err)
			return
		}
		if a.Period == periodWeekend {
			sub.WeekendTime = dt
		} else {
			sub.WeekdayTime = dt
		}
		if err := b.store.UpdateB24Subscription(ctx, sub); err != nil {
			b.log.Error("update b24 subscription", "subscription_id", sub.ID, "error", err)
			b.reply(chatID, errorText)
			return
		}
		b.reply(chatID, "✅ Время обновлено: "+dt.String())
		b.sendB24SubDetail(sub, chatID)
	}
}

// withSubscription resolves args[0] to a subscription and runs fn on it.
func (b *Bot) withSubscription(ctx context.Context, chatID int64, args []string, fn func(*model.Subscription)) {
	id, err := argID(args, 0)
	if err != nil {
		return
	}
	sub, err := b.store.GetSubscription(ctx, id)
	if err != nil {
		b.subLookupError(chatID, id, err)
		return
	}
	fn(sub)
}

func (b *Bot) subLookupError(chatID, id int64, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		b.reply(chatID, fmt.Sprintf("❌ Подписка #%d не найдена.", id))
		return
	}
	b.log.Error("get subscription", "subscription_id", id, "error", err)
	b.reply(chatID, errorText)
}
