package bot

import "sync"

// PendingKind names the input a chat is expected to send next.
type PendingKind string

const (
	// PendingSetTime waits for a delivery time in ЧЧ:ММ form.
	PendingSetTime PendingKind = "set_time"
	// PendingAddB24User waits for a numeric Bitrix24 user ID.
	PendingAddB24User PendingKind = "add_b24_user"
)

const (
	platformTelegram = "telegram"
	platformBitrix24 = "bitrix24"

	periodWeekday = "weekday"
	periodWeekend = "weekend"
)

// PendingAction is the state of a chat that was asked a question and has
// not answered yet. The next plain-text message from that chat is consumed
// as the answer.
type PendingAction struct {
	Kind           PendingKind
	Platform       string
	Period         string
	SubscriptionID int64
}

// SessionStore keeps at most one pending action per chat. Arming a new
// action replaces the previous one.
type SessionStore interface {
	Get(chatID int64) (PendingAction, bool)
	Set(chatID int64, action PendingAction)
	Clear(chatID int64)
}

type memorySessions struct {
	mu      sync.Mutex
	pending map[int64]PendingAction
}

// NewSessionStore returns an in-memory SessionStore. State does not
// survive a restart, which only costs the user a tap on the button again.
func NewSessionStore() SessionStore {
	return &memorySessions{pending: make(map[int64]PendingAction)}
}

func (s *memorySessions) Get(chatID int64) (PendingAction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.pending[chatID]
	return a, ok
}

func (s *memorySessions) Set(chatID int64, action PendingAction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[chatID] = action
}

func (s *memorySessions) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, chatID)
}
