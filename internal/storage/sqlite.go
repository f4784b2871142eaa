package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"compliment_bot/internal/model"
	"compliment_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// ─── Telegram subscriptions ─────────────────────────────────────────

const subscriptionColumns = `id, telegram_chat_id, telegram_username, telegram_first_name,
	is_active, role, weekday_time, weekend_time, weekend_enabled,
	history_context_size, last_compliment_at, created_at`

// CreateSubscription inserts a new subscription and populates ID and CreatedAt.
func (s *SQLite) CreateSubscription(ctx context.Context, sub *model.Subscription) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (telegram_chat_id, telegram_username, telegram_first_name,
		   is_active, role, weekday_time, weekend_time, weekend_enabled,
		   history_context_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.TelegramChatID, nullString(sub.TelegramUsername), nullString(sub.TelegramFirstName),
		boolToInt(sub.IsActive), sub.Role, sub.WeekdayTime.String(), sub.WeekendTime.String(),
		boolToInt(sub.WeekendEnabled), sub.HistoryContextSize, now,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetSubscription returns a subscription by its ID.
func (s *SQLite) GetSubscription(ctx context.Context, id int64) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id)
	return scanSubscription(row)
}

// GetSubscriptionByChatID returns the subscription for a Telegram chat.
func (s *SQLite) GetSubscriptionByChatID(ctx context.Context, chatID int64) (*model.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE telegram_chat_id = ?`, chatID)
	return scanSubscription(row)
}

// ListSubscriptionsPage returns a page of subscriptions ordered by ID.
func (s *SQLite) ListSubscriptionsPage(ctx context.Context, offset, limit int) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions page: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

// ListActiveSubscriptions returns all active subscriptions ordered by ID.
func (s *SQLite) ListActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSubscriptions(rows)
}

// CountSubscriptions returns the total number of subscriptions.
func (s *SQLite) CountSubscriptions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subscriptions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return count, nil
}

// UpdateSubscription persists changes to an existing subscription.
func (s *SQLite) UpdateSubscription(ctx context.Context, sub *model.Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET telegram_username = ?, telegram_first_name = ?,
		   is_active = ?, role = ?, weekday_time = ?, weekend_time = ?,
		   weekend_enabled = ?, history_context_size = ?, last_compliment_at = ?
		 WHERE id = ?`,
		nullString(sub.TelegramUsername), nullString(sub.TelegramFirstName),
		boolToInt(sub.IsActive), sub.Role, sub.WeekdayTime.String(), sub.WeekendTime.String(),
		boolToInt(sub.WeekendEnabled), sub.HistoryContextSize, nullTime(sub.LastComplimentAt),
		sub.ID,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	return nil
}

// ─── Bitrix24 subscriptions ─────────────────────────────────────────

const b24Columns = `id, b24_user_id, b24_user_name, portal_url,
	is_active, weekday_time, weekend_time, weekend_enabled,
	history_context_size, last_compliment_at, created_at`

// CreateB24Subscription inserts a new Bitrix24 subscription.
func (s *SQLite) CreateB24Subscription(ctx context.Context, sub *model.B24Subscription) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO bitrix24_subscriptions (b24_user_id, b24_user_name, portal_url,
		   is_active, weekday_time, weekend_time, weekend_enabled,
		   history_context_size, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.B24UserID, nullString(sub.B24UserName), sub.PortalURL,
		boolToInt(sub.IsActive), sub.WeekdayTime.String(), sub.WeekendTime.String(),
		boolToInt(sub.WeekendEnabled), sub.HistoryContextSize, now,
	)
	if err != nil {
		return fmt.Errorf("insert b24 subscription: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	sub.ID = id
	sub.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetB24Subscription returns a Bitrix24 subscription by its ID.
func (s *SQLite) GetB24Subscription(ctx context.Context, id int64) (*model.B24Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+b24Columns+` FROM bitrix24_subscriptions WHERE id = ?`, id)
	return scanB24Subscription(row)
}

// GetB24SubscriptionByUserID returns the subscription for a portal user.
func (s *SQLite) GetB24SubscriptionByUserID(ctx context.Context, userID int64) (*model.B24Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+b24Columns+` FROM bitrix24_subscriptions WHERE b24_user_id = ?`, userID)
	return scanB24Subscription(row)
}

// ListB24SubscriptionsPage returns a page of Bitrix24 subscriptions ordered by ID.
func (s *SQLite) ListB24SubscriptionsPage(ctx context.Context, offset, limit int) ([]model.B24Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+b24Columns+` FROM bitrix24_subscriptions ORDER BY id LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query b24 subscriptions page: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanB24Subscriptions(rows)
}

// ListActiveB24Subscriptions returns all active Bitrix24 subscriptions.
func (s *SQLite) ListActiveB24Subscriptions(ctx context.Context) ([]model.B24Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+b24Columns+` FROM bitrix24_subscriptions WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query active b24 subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanB24Subscriptions(rows)
}

// CountB24Subscriptions returns the total number of Bitrix24 subscriptions.
func (s *SQLite) CountB24Subscriptions(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bitrix24_subscriptions`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count b24 subscriptions: %w", err)
	}
	return count, nil
}

// UpdateB24Subscription persists changes to an existing Bitrix24 subscription.
func (s *SQLite) UpdateB24Subscription(ctx context.Context, sub *model.B24Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE bitrix24_subscriptions SET b24_user_name = ?, portal_url = ?,
		   is_active = ?, weekday_time = ?, weekend_time = ?, weekend_enabled = ?,
		   history_context_size = ?, last_compliment_at = ?
		 WHERE id = ?`,
		nullString(sub.B24UserName), sub.PortalURL,
		boolToInt(sub.IsActive), sub.WeekdayTime.String(), sub.WeekendTime.String(),
		boolToInt(sub.WeekendEnabled), sub.HistoryContextSize, nullTime(sub.LastComplimentAt),
		sub.ID,
	)
	if err != nil {
		return fmt.Errorf("update b24 subscription: %w", err)
	}
	return nil
}

// DeleteB24Subscription removes a Bitrix24 subscription and its history.
func (s *SQLite) DeleteB24Subscription(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM bitrix24_compliment_history WHERE subscription_id = ?`, id); err != nil {
		return fmt.Errorf("delete b24 history: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bitrix24_subscriptions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete b24 subscription: %w", err)
	}
	return tx.Commit()
}

// ─── Compliment history ─────────────────────────────────────────────

// AddHistory appends a sent compliment for a Telegram subscription.
func (s *SQLite) AddHistory(ctx context.Context, subscriptionID int64, text string, sentAt time.Time) error {
	return s.addHistory(ctx, "compliment_history", subscriptionID, text, sentAt)
}

// RecentHistoryTexts returns up to limit most recent texts, newest first.
func (s *SQLite) RecentHistoryTexts(ctx context.Context, subscriptionID int64, limit int) ([]string, error) {
	return s.recentTexts(ctx, "compliment_history", subscriptionID, limit)
}

// HistoryPage returns a page of history entries, newest first.
func (s *SQLite) HistoryPage(ctx context.Context, subscriptionID int64, offset, limit int) ([]model.HistoryEntry, error) {
	return s.historyPage(ctx, "compliment_history", subscriptionID, offset, limit)
}

// CountHistory returns the number of history entries for a subscription.
func (s *SQLite) CountHistory(ctx context.Context, subscriptionID int64) (int, error) {
	return s.countHistory(ctx, "compliment_history", subscriptionID)
}

// AddB24History appends a sent compliment for a Bitrix24 subscription.
func (s *SQLite) AddB24History(ctx context.Context, subscriptionID int64, text string, sentAt time.Time) error {
	return s.addHistory(ctx, "bitrix24_compliment_history", subscriptionID, text, sentAt)
}

// RecentB24HistoryTexts returns up to limit most recent texts, newest first.
func (s *SQLite) RecentB24HistoryTexts(ctx context.Context, subscriptionID int64, limit int) ([]string, error) {
	return s.recentTexts(ctx, "bitrix24_compliment_history", subscriptionID, limit)
}

// B24HistoryPage returns a page of history entries, newest first.
func (s *SQLite) B24HistoryPage(ctx context.Context, subscriptionID int64, offset, limit int) ([]model.HistoryEntry, error) {
	return s.historyPage(ctx, "bitrix24_compliment_history", subscriptionID, offset, limit)
}

// CountB24History returns the number of history entries for a subscription.
func (s *SQLite) CountB24History(ctx context.Context, subscriptionID int64) (int, error) {
	return s.countHistory(ctx, "bitrix24_compliment_history", subscriptionID)
}

func (s *SQLite) addHistory(ctx context.Context, table string, subscriptionID int64, text string, sentAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (subscription_id, compliment_text, sent_at) VALUES (?, ?, ?)`,
		subscriptionID, text, sentAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (s *SQLite) recentTexts(ctx context.Context, table string, subscriptionID int64, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT compliment_text FROM `+table+`
		 WHERE subscription_id = ? ORDER BY sent_at DESC, id DESC LIMIT ?`,
		subscriptionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var texts []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan history text: %w", err)
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}

func (s *SQLite) historyPage(ctx context.Context, table string, subscriptionID int64, offset, limit int) ([]model.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subscription_id, compliment_text, sent_at FROM `+table+`
		 WHERE subscription_id = ? ORDER BY sent_at DESC, id DESC LIMIT ? OFFSET ?`,
		subscriptionID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query history page: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var sentStr string
		if err := rows.Scan(&e.ID, &e.SubscriptionID, &e.Text, &sentStr); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.SentAt, _ = time.Parse(timeLayout, sentStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLite) countHistory(ctx context.Context, table string, subscriptionID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE subscription_id = ?`, subscriptionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count history: %w", err)
	}
	return count, nil
}

// ─── scanning helpers ───────────────────────────────────────────────

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.UTC().Format(timeLayout)
	return &v
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSubscription(row scannable) (*model.Subscription, error) {
	var sub model.Subscription
	var username, firstName, lastAt, created sql.NullString
	var isActive, weekendEnabled int
	var weekday, weekend string
	err := row.Scan(&sub.ID, &sub.TelegramChatID, &username, &firstName,
		&isActive, &sub.Role, &weekday, &weekend, &weekendEnabled,
		&sub.HistoryContextSize, &lastAt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.TelegramUsername = username.String
	sub.TelegramFirstName = firstName.String
	sub.IsActive = isActive == 1
	sub.WeekendEnabled = weekendEnabled == 1
	if sub.WeekdayTime, err = model.ParseDayTime(weekday); err != nil {
		return nil, fmt.Errorf("subscription %d weekday time: %w", sub.ID, err)
	}
	if sub.WeekendTime, err = model.ParseDayTime(weekend); err != nil {
		return nil, fmt.Errorf("subscription %d weekend time: %w", sub.ID, err)
	}
	if lastAt.Valid {
		t, _ := time.Parse(timeLayout, lastAt.String)
		sub.LastComplimentAt = &t
	}
	if created.Valid {
		sub.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]model.Subscription, error) {
	var subs []model.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func scanB24Subscription(row scannable) (*model.B24Subscription, error) {
	var sub model.B24Subscription
	var userName, lastAt, created sql.NullString
	var isActive, weekendEnabled int
	var weekday, weekend string
	err := row.Scan(&sub.ID, &sub.B24UserID, &userName, &sub.PortalURL,
		&isActive, &weekday, &weekend, &weekendEnabled,
		&sub.HistoryContextSize, &lastAt, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan b24 subscription: %w", err)
	}
	sub.B24UserName = userName.String
	sub.IsActive = isActive == 1
	sub.WeekendEnabled = weekendEnabled == 1
	if sub.WeekdayTime, err = model.ParseDayTime(weekday); err != nil {
		return nil, fmt.Errorf("b24 subscription %d weekday time: %w", sub.ID, err)
	}
	if sub.WeekendTime, err = model.ParseDayTime(weekend); err != nil {
		return nil, fmt.Errorf("b24 subscription %d weekend time: %w", sub.ID, err)
	}
	if lastAt.Valid {
		t, _ := time.Parse(timeLayout, lastAt.String)
		sub.LastComplimentAt = &t
	}
	if created.Valid {
		sub.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &sub, nil
}

func scanB24Subscriptions(rows *sql.Rows) ([]model.B24Subscription, error) {
	var subs []model.B24Subscription
	for rows.Next() {
		sub, err := scanB24Subscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}
