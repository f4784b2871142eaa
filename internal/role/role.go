// Package role maps a generation role to its prompt template, label, and emoji.
package role

import (
	"fmt"
	"strings"
)

// Role selects the style of generated compliments.
type Role string

// Supported roles. Telegram subscribers pick one of the first four;
// Bitrix24 subscribers always get Teammate.
const (
	Wife     Role = "wife"
	Sister   Role = "sister"
	Friend   Role = "friend"
	Neutral  Role = "neutral"
	Teammate Role = "teammate"
)

// Selectable lists the roles offered in the Telegram role menu.
var Selectable = []Role{Wife, Sister, Friend, Neutral}

// Parse returns the role for a tag, or false for an unknown one.
func Parse(s string) (Role, bool) {
	switch Role(s) {
	case Wife, Sister, Friend, Neutral, Teammate:
		return Role(s), true
	}
	return "", false
}

// Label returns the human-readable menu label.
func (r Role) Label() string {
	switch r {
	case Wife:
		return "💝 Любимой жене"
	case Sister:
		return "👧 Сестре"
	case Friend:
		return "🤗 Другу"
	case Neutral:
		return "✨ Нейтральный"
	case Teammate:
		return "🤝 Коллеге"
	}
	return string(r)
}

// Emoji returns the prefix shown before a delivered compliment.
func (r Role) Emoji() string {
	switch r {
	case Wife:
		return "💝"
	case Sister:
		return "👧"
	case Friend:
		return "🤗"
	case Neutral:
		return "✨"
	case Teammate:
		return "🤝"
	}
	return "💬"
}

func (r Role) target() string {
	switch r {
	case Wife:
		return "для любимой жены"
	case Sister:
		return "для младшей сестры"
	case Friend:
		return "для хорошего друга"
	case Teammate:
		return "для коллеги по работе"
	default:
		return "для близкого человека"
	}
}

func (r Role) tone() string {
	switch r {
	case Wife:
		return "тёплым, нежным и романтичным"
	case Sister:
		return "добрым, поддерживающим и заботливым, без романтики"
	case Friend:
		return "искренним и ободряющим, без романтики"
	case Teammate:
		return "уважительным и профессиональным, отметить вклад в общее дело, без романтики и фамильярности"
	default:
		return "тёплым и искренним"
	}
}

// BuildPrompt assembles the generation prompt. previous holds recently sent
// texts, newest first; they are appended as examples not to repeat.
func (r Role) BuildPrompt(name string, previous []string) string {
	namePhrase := ""
	if name != "" {
		namePhrase = fmt.Sprintf(" по имени %s", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Напиши один красивый и искренний комплимент на русском языке %s%s. Комплимент должен быть %s.\n\n", r.target(), namePhrase, r.tone())
	b.WriteString("Требования:\n")
	b.WriteString("- Не более 2-3 предложений\n")
	b.WriteString("- Без кавычек и префиксов типа \"Комплимент:\"\n")
	b.WriteString("- Просто текст комплимента, без пояснений\n")

	if len(previous) > 0 {
		b.WriteString("\nНе повторяй эти недавние комплименты и не перефразируй их:\n")
		for _, p := range previous {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	return b.String()
}
