// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"compliment_bot/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateSubscription(ctx context.Context, sub *model.Subscription) error
	GetSubscription(ctx context.Context, id int64) (*model.Subscription, error)
	GetSubscriptionByChatID(ctx context.Context, chatID int64) (*model.Subscription, error)
	ListSubscriptionsPage(ctx context.Context, offset, limit int) ([]model.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]model.Subscription, error)
	CountSubscriptions(ctx context.Context) (int, error)
	UpdateSubscription(ctx context.Context, sub *model.Subscription) error

	CreateB24Subscription(ctx context.Context, sub *model.B24Subscription) error
	GetB24Subscription(ctx context.Context, id int64) (*model.B24Subscription, error)
	GetB24SubscriptionByUserID(ctx context.Context, userID int64) (*model.B24Subscription, error)
	ListB24SubscriptionsPage(ctx context.Context, offset, limit int) ([]model.B24Subscription, error)
	ListActiveB24Subscriptions(ctx context.Context) ([]model.B24Subscription, error)
	CountB24Subscriptions(ctx context.Context) (int, error)
	UpdateB24Subscription(ctx context.Context, sub *model.B24Subscription) error
	// DeleteB24Subscription removes the subscription and all of its history.
	DeleteB24Subscription(ctx context.Context, id int64) error

	AddHistory(ctx context.Context, subscriptionID int64, text string, sentAt time.Time) error
	RecentHistoryTexts(ctx context.Context, subscriptionID int64, limit int) ([]string, error)
	HistoryPage(ctx context.Context, subscriptionID int64, offset, limit int) ([]model.HistoryEntry, error)
	CountHistory(ctx context.Context, subscriptionID int64) (int, error)

	AddB24History(ctx context.Context, subscriptionID int64, text string, sentAt time.Time) error
	RecentB24HistoryTexts(ctx context.Context, subscriptionID int64, limit int) ([]string, error)
	B24HistoryPage(ctx context.Context, subscriptionID int64, offset, limit int) ([]model.HistoryEntry, error)
	CountB24History(ctx context.Context, subscriptionID int64) (int, error)

	Close() error
}
