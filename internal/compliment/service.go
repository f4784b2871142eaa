// Package compliment implements the generate → deliver → record sequence
// shared by the scheduled dispatcher, the self-service "compliment now"
// button, and the admin send-now routes.
package compliment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"compliment_bot/internal/generator"
	"compliment_bot/internal/model"
	"compliment_bot/internal/role"
	"compliment_bot/internal/storage"
)

// ErrDeliveryFailed means the messaging backend reported a send failure.
// Nothing is recorded for the attempt.
var ErrDeliveryFailed = errors.New("delivery failed")

// TelegramSender sends plain text messages to a Telegram chat.
type TelegramSender interface {
	SendMessage(chatID int64, text string) bool
}

// B24Sender delivers direct messages to Bitrix24 portal users.
type B24Sender interface {
	IsConfigured() bool
	SendMessage(ctx context.Context, userID int64, text string) error
}

// Service generates a compliment for a subscriber, delivers it, and records
// the outcome.
type Service struct {
	store storage.Storage
	gen   generator.Generator
	tg    TelegramSender
	b24   B24Sender
	log   *slog.Logger
}

// NewService creates a Service.
func NewService(store storage.Storage, gen generator.Generator, tg TelegramSender, b24 B24Sender, log *slog.Logger) *Service {
	return &Service{store: store, gen: gen, tg: tg, b24: b24, log: log}
}

// B24Configured reports whether the Bitrix24 backend can be used at all.
func (s *Service) B24Configured() bool {
	return s.b24.IsConfigured()
}

// SendToSubscriber generates and delivers one compliment to a Telegram
// subscriber. On success the sent text is recorded in history and
// LastComplimentAt is set to now. A generation failure is reported to the
// recipient in place of the compliment; nothing is recorded then, nor on a
// delivery failure.
func (s *Service) SendToSubscriber(ctx context.Context, sub *model.Subscription, now time.Time) (string, error) {
	previous, err := s.store.RecentHistoryTexts(ctx, sub.ID, sub.HistoryContextSize)
	if err != nil {
		return "", fmt.Errorf("load history for subscription %d: %w", sub.ID, err)
	}

	r, ok := role.Parse(sub.Role)
	if !ok {
		r = role.Neutral
	}

	text, err := s.gen.Generate(ctx, sub.TelegramFirstName, r, previous)
	if err != nil {
		s.notifyGenerationFailure(sub.TelegramChatID, err)
		return "", err
	}

	if !s.tg.SendMessage(sub.TelegramChatID, r.Emoji()+" "+text) {
		return "", fmt.Errorf("send to chat %d: %w", sub.TelegramChatID, ErrDeliveryFailed)
	}

	sub.LastComplimentAt = &now
	if err := s.store.UpdateSubscription(ctx, sub); err != nil {
		return "", fmt.Errorf("update subscription %d: %w", sub.ID, err)
	}
	if err := s.store.AddHistory(ctx, sub.ID, text, now); err != nil {
		return "", fmt.Errorf("record history for subscription %d: %w", sub.ID, err)
	}

	return text, nil
}

// SendToB24Subscriber generates and delivers one compliment to a Bitrix24
// subscriber, always in the teammate role. Generation failures are not
// reported to the recipient; the portal only ever sees finished compliments.
func (s *Service) SendToB24Subscriber(ctx context.Context, sub *model.B24Subscription, now time.Time) (string, error) {
	previous, err := s.store.RecentB24HistoryTexts(ctx, sub.ID, sub.HistoryContextSize)
	if err != nil {
		return "", fmt.Errorf("load history for b24 subscription %d: %w", sub.ID, err)
	}

	text, err := s.gen.Generate(ctx, sub.B24UserName, role.Teammate, previous)
	if err != nil {
		return "", err
	}

	if err := s.b24.SendMessage(ctx, sub.B24UserID, text); err != nil {
		return "", fmt.Errorf("send to b24 user %d: %w", sub.B24UserID, errors.Join(ErrDeliveryFailed, err))
	}

	sub.LastComplimentAt = &now
	if err := s.store.UpdateB24Subscription(ctx, sub); err != nil {
		return "", fmt.Errorf("update b24 subscription %d: %w", sub.ID, err)
	}
	if err := s.store.AddB24History(ctx, sub.ID, text, now); err != nil {
		return "", fmt.Errorf("record history for b24 subscription %d: %w", sub.ID, err)
	}

	return text, nil
}

// SendAdHoc delivers a one-off neutral compliment to a chat without a
// subscription. Nothing is recorded.
func (s *Service) SendAdHoc(ctx context.Context, chatID int64, name string) (string, error) {
	text, err := s.gen.Generate(ctx, name, role.Neutral, nil)
	if err != nil {
		s.notifyGenerationFailure(chatID, err)
		return "", err
	}

	if !s.tg.SendMessage(chatID, role.Neutral.Emoji()+" "+text) {
		return "", fmt.Errorf("send to chat %d: %w", chatID, ErrDeliveryFailed)
	}
	return text, nil
}

// notifyGenerationFailure tells the recipient why no compliment arrived.
// The outbound channel already works, so this is best effort only.
func (s *Service) notifyGenerationFailure(chatID int64, err error) {
	var genErr *generator.GenerationError
	msg := err.Error()
	if errors.As(err, &genErr) {
		msg = genErr.UserMessage()
	}
	if !s.tg.SendMessage(chatID, "❌ Не удалось сгенерировать сообщение:\n\n"+msg) {
		s.log.Warn("failed to deliver generation failure notice", "chat_id", chatID)
	}
}
