// Package dispatch drives the scheduled delivery of compliments. Once a
// minute it walks the active subscriptions of both backends and sends to
// everyone whose configured time matches the current wall clock.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"compliment_bot/internal/model"
	"compliment_bot/internal/storage"
)

// Sender performs the generate, deliver and record sequence for one
// subscriber. *compliment.Service implements it.
type Sender interface {
	SendToSubscriber(ctx context.Context, sub *model.Subscription, now time.Time) (string, error)
	SendToB24Subscriber(ctx context.Context, sub *model.B24Subscription, now time.Time) (string, error)
	B24Configured() bool
}

// Engine fires a dispatch pass every minute.
type Engine struct {
	store   storage.Storage
	sender  Sender
	loc     *time.Location
	limiter *rate.Limiter
	log     *slog.Logger
}

// New creates an Engine. The location decides whose midnight and whose
// weekend the subscription times refer to.
func New(store storage.Storage, sender Sender, loc *time.Location, log *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		sender: sender,
		loc:    loc,
		// Bitrix24 throttles webhook calls at 2 requests per second.
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 1),
		log:     log,
	}
}

// Run ticks every minute until ctx is cancelled, then waits for an
// in-flight pass to finish.
func (e *Engine) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(e.loc))
	if _, err := c.AddFunc("* * * * *", func() {
		e.OnTick(ctx, time.Now().In(e.loc))
	}); err != nil {
		return err
	}
	c.Start()
	e.log.Info("dispatch engine started", "timezone", e.loc.String())

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	e.log.Info("dispatch engine stopped")
	return nil
}

// OnTick runs one dispatch pass over both backends. A failure in one
// backend never blocks the other.
func (e *Engine) OnTick(ctx context.Context, now time.Time) {
	e.tickTelegram(ctx, now)
	e.tickBitrix24(ctx, now)
}

func (e *Engine) tickTelegram(ctx context.Context, now time.Time) {
	subs, err := e.store.ListActiveSubscriptions(ctx)
	if err != nil {
		e.log.Error("failed to list active subscriptions", "error", err)
		return
	}

	var sent, failed int
	for _, sub := range subs {
		if !e.due(sub.WeekdayTime, sub.WeekendTime, sub.WeekendEnabled, sub.LastComplimentAt, now) {
			continue
		}
		if _, err := e.sender.SendToSubscriber(ctx, &sub, now); err != nil {
			failed++
			e.log.Warn("scheduled compliment failed", "subscription_id", sub.ID, "chat_id", sub.TelegramChatID, "error", err)
			continue
		}
		sent++
	}
	if sent > 0 || failed > 0 {
		e.log.Info("telegram dispatch pass done", "checked", len(subs), "sent", sent, "failed", failed)
	}
}

func (e *Engine) tickBitrix24(ctx context.Context, now time.Time) {
	if !e.sender.B24Configured() {
		return
	}
	subs, err := e.store.ListActiveB24Subscriptions(ctx)
	if err != nil {
		e.log.Error("failed to list active b24 subscriptions", "error", err)
		return
	}

	var sent, failed int
	for _, sub := range subs {
		if !e.due(sub.WeekdayTime, sub.WeekendTime, sub.WeekendEnabled, sub.LastComplimentAt, now) {
			continue
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return
		}
		if _, err := e.sender.SendToB24Subscriber(ctx, &sub, now); err != nil {
			failed++
			e.log.Warn("scheduled b24 compliment failed", "subscription_id", sub.ID, "b24_user_id", sub.B24UserID, "error", err)
			continue
		}
		sent++
	}
	if sent > 0 || failed > 0 {
		e.log.Info("b24 dispatch pass done", "checked", len(subs), "sent", sent, "failed", failed)
	}
}

// due reports whether a subscription should receive a compliment at now.
// On weekends the weekend time applies, and only if weekend delivery is
// enabled. A subscriber already served in this same minute is skipped, so
// overlapping passes cannot double-send.
func (e *Engine) due(weekday, weekend model.DayTime, weekendEnabled bool, lastAt *time.Time, now time.Time) bool {
	target := weekday
	if isWeekend(now) {
		if !weekendEnabled {
			return false
		}
		target = weekend
	}
	if !target.Matches(now) {
		return false
	}
	if lastAt != nil && sameMinute(lastAt.In(e.loc), now) {
		return false
	}
	return true
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func sameMinute(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay() &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute()
}
