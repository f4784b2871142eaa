package bot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"compliment_bot/internal/bitrix24"
	"compliment_bot/internal/compliment"
	"compliment_bot/internal/config"
	"compliment_bot/internal/generator"
	"compliment_bot/internal/model"
	"compliment_bot/internal/role"
	"compliment_bot/internal/storage"
)

// --- mocks ---

type sentMsg struct {
	ChatID int64
	Text   string
}

type mockAPI struct {
	mu      sync.Mutex
	sent    []sentMsg
	answers []string
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		m.mu.Lock()
		m.sent = append(m.sent, sentMsg{ChatID: msg.ChatID, Text: msg.Text})
		m.mu.Unlock()
	}
	return tgbotapi.Message{}, nil
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		m.mu.Lock()
		m.answers = append(m.answers, cb.Text)
		m.mu.Unlock()
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockAPI) GetUpdates(_ tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	return nil, nil
}

func (m *mockAPI) lastText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return ""
	}
	return m.sent[len(m.sent)-1].Text
}

func (m *mockAPI) allTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.Text
	}
	return out
}

func (m *mockAPI) lastAnswer() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.answers) == 0 {
		return ""
	}
	return m.answers[len(m.answers)-1]
}

func (m *mockAPI) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
	m.answers = nil
}

type stubGenerator struct {
	text string
	err  error
}

func (g *stubGenerator) Generate(_ context.Context, _ string, _ role.Role, _ []string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	return g.text, nil
}

type mockHTTPClient struct {
	body string
	err  error
}

func (m *mockHTTPClient) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBotWith(t *testing.T, gen generator.Generator, b24 *bitrix24.Client) (*Bot, *mockAPI, *storage.SQLite) {
	t.Helper()
	store, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	api := &mockAPI{}
	log := discardLogger()
	b := &Bot{
		api:      api,
		store:    store,
		cfg:      &config.Config{AdminUsername: "admin"},
		b24:      b24,
		sessions: NewSessionStore(),
		loc:      time.UTC,
		log:      log,
	}
	b.compliments = compliment.NewService(store, gen, b, b24, log)
	return b, api, store
}

func newTestBot(t *testing.T) (*Bot, *mockAPI, *storage.SQLite) {
	t.Helper()
	b24 := bitrix24.New(&mockHTTPClient{}, discardLogger(), "", "", "")
	return newTestBotWith(t, &stubGenerator{text: "Ты молодец"}, b24)
}

func seedSubscription(t *testing.T, store *storage.SQLite, chatID int64) *model.Subscription {
	t.Helper()
	sub := model.NewSubscription(chatID)
	sub.TelegramFirstName = "Анна"
	if err := store.CreateSubscription(context.Background(), sub); err != nil {
		t.Fatalf("seed subscription: %v", err)
	}
	return sub
}

func user(username string) *tgbotapi.User {
	return &tgbotapi.User{ID: 1, UserName: username, FirstName: "Анна"}
}

func textMessage(chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("reply missing %q, got:\n%s", want, got)
	}
}

// --- handler tests ---

func TestHandleStart(t *testing.T) {
	b, api, _ := newTestBot(t)

	b.handleStart(context.Background(), 100, user("anna"))

	texts := api.allTexts()
	if len(texts) != 2 {
		t.Fatalf("expected welcome and menu, got %v", texts)
	}
	requireContains(t, texts[0], "Привет")
	requireContains(t, texts[1], "Выберите действие")
}

func TestSubscribeIdempotent(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)

	b.handleSubscribe(ctx, 100, user("anna"))
	requireContains(t, api.allTexts()[0], "Подписка оформлена")

	api.reset()
	b.handleSubscribe(ctx, 100, user("anna"))
	requireContains(t, api.allTexts()[0], "уже подписаны")

	count, err := store.CountSubscriptions(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("subscriptions = %d, want 1", count)
	}
}

func TestSubscribeReactivates(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)

	sub := seedSubscription(t, store, 100)
	sub.IsActive = false
	if err := store.UpdateSubscription(ctx, sub); err != nil {
		t.Fatalf("update: %v", err)
	}

	b.handleSubscribe(ctx, 100, user("anna"))
	requireContains(t, api.allTexts()[0], "возобновлена")

	got, err := store.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsActive {
		t.Error("subscription should be active again")
	}
}

func TestUnsubscribe(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	sub := seedSubscription(t, store, 100)

	b.handleUnsubscribe(ctx, 100)
	requireContains(t, api.lastText(), "приостановлена")

	got, err := store.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsActive {
		t.Error("subscription should be paused")
	}
}

func TestRoleSelect(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	sub := seedSubscription(t, store, 100)

	b.handleRoleSelect(ctx, 100, user("anna"), "sister")
	requireContains(t, api.allTexts()[0], "Роль обновлена")

	got, err := store.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Role != string(role.Sister) {
		t.Errorf("role = %q, want sister", got.Role)
	}

	// An unknown role value is rejected and changes nothing.
	api.reset()
	b.handleRoleSelect(ctx, 100, user("anna"), "villain")
	requireContains(t, api.lastText(), "Неизвестная роль")
	got, _ = store.GetSubscription(ctx, sub.ID)
	if got.Role != string(role.Sister) {
		t.Errorf("role = %q, want sister", got.Role)
	}
}

func TestToggleWeekend(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	sub := seedSubscription(t, store, 100) // weekends on by default

	b.handleToggleWeekend(ctx, 100, user("anna"))
	requireContains(t, api.allTexts()[0], "выключены")

	got, err := store.GetSubscription(ctx, sub.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WeekendEnabled {
		t.Error("weekend delivery should be off")
	}
}

func TestComplimentNowRecordsHistory(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	sub := seedSubscription(t, store, 100)

	b.handleComplimentNow(ctx, 100, user("anna"))

	requireContains(t, api.lastText(), "Ты молодец")
	if !strings.HasPrefix(api.lastText(), role.Wife.Emoji()) {
		t.Errorf("compliment should carry the role emoji, got %q", api.lastText())
	}

	count, err := store.CountHistory(ctx, sub.ID)
	if err != nil {
		t.Fatalf("count history: %v", err)
	}
	if count != 1 {
		t.Errorf("history count = %d, want 1", count)
	}
	got, _ := store.GetSubscription(ctx, sub.ID)
	if got.LastComplimentAt == nil {
		t.Error("LastComplimentAt should be set")
	}
}

func TestComplimentNowAdHoc(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)

	b.handleComplimentNow(ctx, 100, user("anna"))

	requireContains(t, api.lastText(), "Ты молодец")
	count, err := store.CountSubscriptions(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("ad-hoc compliment must not create a subscription, count = %d", count)
	}
}

func TestComplimentNowGenerationFailure(t *testing.T) {
	ctx := context.Background()
	gen := &stubGenerator{err: &generator.GenerationError{
		Provider: "deepseek",
		Message:  "Сервис генерации временно недоступен",
		Err:      errors.New("status 500"),
	}}
	b24 := bitrix24.New(&mockHTTPClient{}, discardLogger(), "", "", "")
	b, api, store := newTestBotWith(t, gen, b24)
	sub := seedSubscription(t, store, 100)

	b.handleComplimentNow(ctx, 100, user("anna"))

	requireContains(t, api.lastText(), "Не удалось сгенерировать")
	if count, _ := store.CountHistory(ctx, sub.ID); count != 0 {
		t.Errorf("history count = %d, want 0", count)
	}
}

func TestTextInputInvalidTimeKeepsDialog(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	sub := seedSubscription(t, store, 100)

	b.sessions.Set(100, PendingAction{
		Kind:           PendingSetTime,
		Platform:       platformTelegram,
		Period:         periodWeekday,
		SubscriptionID: sub.ID,
	})

	b.handleTextInput(ctx, textMessage(100, "25:99"))
	requireContains(t, api.lastText(), "Неверный формат")

	got, _ := store.GetSubscription(ctx, sub.ID)
	if got.WeekdayTime.String() != "07:00" {
		t.Errorf("weekday time = %s, want unchanged 07:00", got.WeekdayTime)
	}
	if _, ok := b.sessions.Get(100); !ok {
		t.Fatal("dialog should stay armed after invalid input")
	}

	// A correct answer on the next try still lands.
	b.handleTextInput(ctx, textMessage(100, "08:30"))
	got, _ = store.GetSubscription(ctx, sub.ID)
	if got.WeekdayTime.String() != "08:30" {
		t.Errorf("weekday time = %s, want 08:30", got.WeekdayTime)
	}
	if _, ok := b.sessions.Get(100); ok {
		t.Error("dialog should be closed after a valid answer")
	}
}

func TestPendingPromptRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	sub := seedSubscription(t, store, 100)

	b.sessions.Set(100, PendingAction{
		Kind:           PendingSetTime,
		Platform:       platformTelegram,
		Period:         periodWeekday,
		SubscriptionID: sub.ID,
	})

	// In a group chat anyone can type; only the admin's answer counts.
	msg := textMessage(100, "08:30")
	msg.From = user("mallory")
	b.handleUpdate(ctx, tgbotapi.Update{Message: msg})

	if len(api.allTexts()) != 0 {
		t.Errorf("unexpected replies: %v", api.allTexts())
	}
	got, _ := store.GetSubscription(ctx, sub.ID)
	if got.WeekdayTime.String() != "07:00" {
		t.Errorf("weekday time = %s, want unchanged 07:00", got.WeekdayTime)
	}
	if _, ok := b.sessions.Get(100); !ok {
		t.Fatal("prompt should stay armed for the admin")
	}

	msg = textMessage(100, "08:30")
	msg.From = user("admin")
	b.handleUpdate(ctx, tgbotapi.Update{Message: msg})

	got, _ = store.GetSubscription(ctx, sub.ID)
	if got.WeekdayTime.String() != "08:30" {
		t.Errorf("weekday time = %s, want 08:30", got.WeekdayTime)
	}
}

func TestStrayTextIgnored(t *testing.T) {
	b, api, _ := newTestBot(t)

	msg := textMessage(100, "привет")
	msg.From = user("anna")
	b.handleUpdate(context.Background(), tgbotapi.Update{Message: msg})

	if len(api.allTexts()) != 0 {
		t.Errorf("plain text without a pending prompt should be ignored, got %v", api.allTexts())
	}
}

// historyErrStore fails history reads while the rest of the store works.
type historyErrStore struct {
	storage.Storage
}

func (s *historyErrStore) RecentHistoryTexts(context.Context, int64, int) ([]string, error) {
	return nil, errors.New("database is locked")
}

func TestComplimentNowStoreFailureNotifiesUser(t *testing.T) {
	ctx := context.Background()
	b, api, store := newTestBot(t)
	sub := seedSubscription(t, store, 100)

	failing := &historyErrStore{Storage: store}
	b.store = failing
	b.compliments = compliment.NewService(failing, &stubGenerator{text: "Ты молодец"}, b, b.b24, discardLogger())

	b.handleComplimentNow(ctx, 100, user("anna"))

	requireContains(t, api.lastText(), "Произошла ошибка")
	if count, _ := store.CountHistory(ctx, sub.ID); count != 0 {
		t.Errorf("history count = %d, want 0", count)
	}
}

func TestCallbackClearsPendingDialog(t *testing.T) {
	ctx := context.Background()
	b, _, store := newTestBot(t)
	sub := seedSubscription(t, store, 100)

	b.sessions.Set(100, PendingAction{
		Kind:           PendingSetTime,
		Platform:       platformTelegram,
		Period:         periodWeekday,
		SubscriptionID: sub.ID,
	})

	b.handleCallback(ctx, &tgbotapi.CallbackQuery{
		ID:      "1",
		From:    user("anna"),
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 100}},
		Data:    cbMenu,
	})

	if _, ok := b.sessions.Get(100); ok {
		t.Error("tapping a button should abandon the pending dialog")
	}
}
