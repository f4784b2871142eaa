package bot

import (
	"fmt"
	"strings"
	"time"

	"compliment_bot/internal/model"
	"compliment_bot/internal/role"
)

const snippetLen = 100

func statusLabel(active bool) string {
	if active {
		return "✅ активна"
	}
	return "⏸ приостановлена"
}

func onOff(enabled bool) string {
	if enabled {
		return "✅ вкл"
	}
	return "❌ выкл"
}

func subscriberName(sub *model.Subscription) string {
	name := sub.TelegramFirstName
	if name == "" {
		name = fmt.Sprintf("chat %d", sub.TelegramChatID)
	}
	if sub.TelegramUsername != "" {
		name += " (@" + sub.TelegramUsername + ")"
	}
	return name
}

func subscriberButtonLabel(sub *model.Subscription) string {
	mark := "✅"
	if !sub.IsActive {
		mark = "⏸"
	}
	return fmt.Sprintf("%s #%d %s", mark, sub.ID, subscriberName(sub))
}

func b24Name(sub *model.B24Subscription) string {
	if sub.B24UserName != "" {
		return sub.B24UserName
	}
	return fmt.Sprintf("user %d", sub.B24UserID)
}

func b24ButtonLabel(sub *model.B24Subscription) string {
	mark := "✅"
	if !sub.IsActive {
		mark = "⏸"
	}
	return fmt.Sprintf("%s #%d %s", mark, sub.ID, b24Name(sub))
}

func (b *Bot) formatSubscriberDetail(sub *model.Subscription) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 Подписчик #%d\n\n", sub.ID)
	fmt.Fprintf(&sb, "Имя: %s\n", subscriberName(sub))
	fmt.Fprintf(&sb, "Статус: %s\n", statusLabel(sub.IsActive))
	if r, ok := role.Parse(sub.Role); ok {
		fmt.Fprintf(&sb, "Роль: %s\n", r.Label())
	} else {
		fmt.Fprintf(&sb, "Роль: %s\n", sub.Role)
	}
	fmt.Fprintf(&sb, "Будни: %s\n", sub.WeekdayTime)
	fmt.Fprintf(&sb, "Выходные: %s (%s)\n", sub.WeekendTime, onOff(sub.WeekendEnabled))
	fmt.Fprintf(&sb, "Последний комплимент: %s", b.formatSentAt(sub.LastComplimentAt))
	return sb.String()
}

func (b *Bot) formatB24Detail(sub *model.B24Subscription) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏢 Получатель Bitrix24 #%d\n\n", sub.ID)
	fmt.Fprintf(&sb, "Имя: %s\n", b24Name(sub))
	fmt.Fprintf(&sb, "ID пользователя: %d\n", sub.B24UserID)
	fmt.Fprintf(&sb, "Портал: %s\n", sub.PortalURL)
	fmt.Fprintf(&sb, "Статус: %s\n", statusLabel(sub.IsActive))
	fmt.Fprintf(&sb, "Будни: %s\n", sub.WeekdayTime)
	fmt.Fprintf(&sb, "Выходные: %s (%s)\n", sub.WeekendTime, onOff(sub.WeekendEnabled))
	fmt.Fprintf(&sb, "Последний комплимент: %s", b.formatSentAt(sub.LastComplimentAt))
	return sb.String()
}

func (b *Bot) formatHistoryPage(title string, entries []model.HistoryEntry, page, pages int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📜 %s (стр. %d/%d)\n", title, page+1, pages)
	for _, e := range entries {
		fmt.Fprintf(&sb, "\n%s\n%s\n", e.SentAt.In(b.loc).Format("02.01.2006 15:04"), snippet(e.Text))
	}
	return sb.String()
}

func (b *Bot) formatSentAt(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.In(b.loc).Format("02.01.2006 15:04")
}

// snippet shortens a compliment to its first words for list views.
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLen {
		return text
	}
	return string(runes[:snippetLen]) + "..."
}
