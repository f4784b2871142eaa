// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DayTime is a time of day with minute precision and no date or zone.
type DayTime struct {
	Hour   int
	Minute int
}

var dayTimeRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)

// ParseDayTime parses "H:MM" or "HH:MM" into a DayTime.
func ParseDayTime(s string) (DayTime, error) {
	m := dayTimeRe.FindStringSubmatch(s)
	if m == nil {
		return DayTime{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, _ := strconv.Atoi(m[1])
	min, _ := strconv.Atoi(m[2])
	if h > 23 || min > 59 {
		return DayTime{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return DayTime{Hour: h, Minute: min}, nil
}

// MustDayTime parses s and panics on error. For defaults and tests.
func MustDayTime(s string) DayTime {
	d, err := ParseDayTime(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the time as "HH:MM".
func (d DayTime) String() string {
	return fmt.Sprintf("%02d:%02d", d.Hour, d.Minute)
}

// Matches reports whether t falls in this DayTime's clock minute.
func (d DayTime) Matches(t time.Time) bool {
	return t.Hour() == d.Hour && t.Minute() == d.Minute
}

// Subscription is a Telegram compliment subscriber.
// Unsubscribing deactivates the record; it is never hard-deleted.
type Subscription struct {
	ID                 int64
	TelegramChatID     int64
	TelegramUsername   string
	TelegramFirstName  string
	IsActive           bool
	Role               string
	WeekdayTime        DayTime
	WeekendTime        DayTime
	WeekendEnabled     bool
	HistoryContextSize int
	LastComplimentAt   *time.Time
	CreatedAt          time.Time
}

// NewSubscription returns a subscription with the Telegram defaults.
func NewSubscription(chatID int64) *Subscription {
	return &Subscription{
		TelegramChatID:     chatID,
		IsActive:           true,
		Role:               "wife",
		WeekdayTime:        MustDayTime("07:00"),
		WeekendTime:        MustDayTime("09:00"),
		WeekendEnabled:     true,
		HistoryContextSize: 1,
	}
}

// B24Subscription is a Bitrix24 compliment subscriber. The generation role is
// always "teammate"; admins may hard-delete these records.
type B24Subscription struct {
	ID                 int64
	B24UserID          int64
	B24UserName        string
	PortalURL          string
	IsActive           bool
	WeekdayTime        DayTime
	WeekendTime        DayTime
	WeekendEnabled     bool
	HistoryContextSize int
	LastComplimentAt   *time.Time
	CreatedAt          time.Time
}

// NewB24Subscription returns a subscription with the Bitrix24 defaults.
func NewB24Subscription(userID int64, portalURL string) *B24Subscription {
	return &B24Subscription{
		B24UserID:          userID,
		PortalURL:          portalURL,
		IsActive:           true,
		WeekdayTime:        MustDayTime("10:25"),
		WeekendTime:        MustDayTime("10:25"),
		WeekendEnabled:     false,
		HistoryContextSize: 1,
	}
}

// HistoryEntry is one sent compliment. Append-only; removed only when its
// Bitrix24 subscription is deleted.
type HistoryEntry struct {
	ID             int64
	SubscriptionID int64
	Text           string
	SentAt         time.Time
}
