package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"compliment_bot/internal/model"
	"compliment_bot/internal/role"
)

// Callback action tokens. Arguments are appended ":"-separated.
const (
	cbSubscribe     = "subscribe"
	cbUnsubscribe   = "unsubscribe"
	cbCompliment    = "compliment"
	cbChooseRole    = "choose_role"
	cbToggleWeekend = "toggle_weekend"
	cbRole          = "role"
	cbMenu          = "menu"
	cbNoop          = "noop"

	cbAdminHome    = "admin_home"
	cbAdminList    = "admin_list"
	cbAdminPage    = "admin_page"
	cbAdminSub     = "admin_sub"
	cbAdminToggle  = "admin_toggle"
	cbAdminSend    = "admin_send"
	cbAdminHistory = "admin_hist"
	cbAdminWeekday = "admin_chwdt"
	cbAdminWeekend = "admin_chwet"
	cbAdminTime    = "admin_time"

	cbB24Home      = "b24_home"
	cbB24List      = "b24_list"
	cbB24Page      = "b24_page"
	cbB24Sub       = "b24_sub"
	cbB24Toggle    = "b24_toggle"
	cbB24Send      = "b24_send"
	cbB24History   = "b24_hist"
	cbB24Weekday   = "b24_chwdt"
	cbB24Weekend   = "b24_chwet"
	cbB24Time      = "b24_time"
	cbB24Add       = "b24_add"
	cbB24Delete    = "b24_del"
	cbB24DeleteAsk = "b24_del_confirm"
)

var timePresets = []string{"07:00", "08:00", "09:00", "10:00", "12:00", "18:00", "20:00", "21:00"}

func btn(label, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(label, data)
}

// mainMenuKeyboard is the self-service menu. Its buttons follow the
// subscription state: either subscribe or unsubscribe is offered, and the
// weekend toggle shows the current setting.
func mainMenuKeyboard(sub *model.Subscription, isAdmin bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	if sub == nil || !sub.IsActive {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("💌 Подписаться", cbSubscribe)))
	} else {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("🔕 Отписаться", cbUnsubscribe)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("✨ Комплимент сейчас", cbCompliment)))

	if sub != nil && sub.IsActive {
		weekend := "❌"
		if sub.WeekendEnabled {
			weekend = "✅"
		}
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(btn("🎭 Выбрать роль", cbChooseRole)),
			tgbotapi.NewInlineKeyboardRow(btn("📅 Выходные: "+weekend, cbToggleWeekend)),
		)
	}
	if isAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("⚙️ Админ-панель", cbAdminHome)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func roleKeyboard() tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range role.Selectable {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn(r.Label(), fmt.Sprintf("%s:%s", cbRole, r))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("⬅️ Назад", cbMenu)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func adminHomeKeyboard(b24Enabled bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(btn("👥 Подписчики", cbAdminList)),
	}
	if b24Enabled {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("🏢 Bitrix24", cbB24Home)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("⬅️ Меню", cbMenu)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func adminListKeyboard(subs []model.Subscription, page, pages int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, sub := range subs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			btn(subscriberButtonLabel(&sub), fmt.Sprintf("%s:%d", cbAdminSub, sub.ID)),
		))
	}
	if nav := pageNav(cbAdminPage, page, pages); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("⬅️ Назад", cbAdminHome)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func adminSubKeyboard(sub *model.Subscription) tgbotapi.InlineKeyboardMarkup {
	toggle := "⏸ Приостановить"
	if !sub.IsActive {
		toggle = "▶️ Возобновить"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn(toggle, fmt.Sprintf("%s:%d", cbAdminToggle, sub.ID)),
			btn("✨ Отправить сейчас", fmt.Sprintf("%s:%d", cbAdminSend, sub.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			btn("📜 История", fmt.Sprintf("%s:%d:0", cbAdminHistory, sub.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			btn("🕐 Время (будни)", fmt.Sprintf("%s:%d", cbAdminWeekday, sub.ID)),
			btn("🕑 Время (выходные)", fmt.Sprintf("%s:%d", cbAdminWeekend, sub.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Назад", cbAdminList)),
	)
}

// timePresetKeyboard offers the usual delivery times. A custom value can
// always be typed instead, the prompt says so.
func timePresetKeyboard(action string, id int64, period string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := 0; i < len(timePresets); i += 4 {
		var row []tgbotapi.InlineKeyboardButton
		for _, preset := range timePresets[i : i+4] {
			row = append(row, btn(preset, fmt.Sprintf("%s:%d:%s:%s", action, id, period, preset)))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func b24HomeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(btn("👥 Получатели", cbB24List)),
		tgbotapi.NewInlineKeyboardRow(btn("➕ Добавить по ID", cbB24Add)),
		tgbotapi.NewInlineKeyboardRow(btn("⬅️ Назад", cbAdminHome)),
	)
}

func b24ListKeyboard(subs []model.B24Subscription, page, pages int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, sub := range subs {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			btn(b24ButtonLabel(&sub), fmt.Sprintf("%s:%d", cbB24Sub, sub.ID)),
		))
	}
	if nav := pageNav(cbB24Page, page, pages); nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("⬅️ Назад", cbB24Home)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func b24SubKeyboard(sub *model.B24Subscription) tgbotapi.InlineKeyboardMarkup {
	toggle := "⏸ Приостановить"
	if !sub.IsActive {
		toggle = "▶️ Возобновить"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			btn(toggle, fmt.Sprintf("%s:%d", cbB24Toggle, sub.ID)),
			btn("✨ Отправить сейчас", fmt.Sprintf("%s:%d", cbB24Send, sub.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			btn("📜 История", fmt.Sprintf("%s:%d:0", cbB24History, sub.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			btn("🕐 Время (будни)", fmt.Sprintf("%s:%d", cbB24Weekday, sub.ID)),
			btn("🕑 Время (выходные)", fmt.Sprintf("%s:%d", cbB24Weekend, sub.ID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			btn("🗑 Удалить", fmt.Sprintf("%s:%d", cbB24DeleteAsk, sub.ID)),
			btn("⬅️ Назад", cbB24List),
		),
	)
}

func historyNavKeyboard(action string, id int64, page, pages int, back string) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, btn("⬅️", fmt.Sprintf("%s:%d:%d", action, id, page-1)))
	}
	if page < pages-1 {
		nav = append(nav, btn("➡️", fmt.Sprintf("%s:%d:%d", action, id, page+1)))
	}
	if nav != nil {
		rows = append(rows, nav)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn("⬅️ Назад", back)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func pageNav(action string, page, pages int) []tgbotapi.InlineKeyboardButton {
	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, btn("⬅️", fmt.Sprintf("%s:%d", action, page-1)))
	}
	if page < pages-1 {
		nav = append(nav, btn("➡️", fmt.Sprintf("%s:%d", action, page+1)))
	}
	return nav
}
