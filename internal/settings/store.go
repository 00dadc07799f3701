// Package settings persists string settings, the admin allow-list, and the
// admin action log.
package settings

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"
)

// Setting keys for forum topic destinations. The stored value overrides the
// statically configured topic ID, so topics can be rebound from chat.
const (
	KeyTopicMonitoring = "topic_monitoring"
	KeyTopicPayments   = "topic_payments"
	KeyTopicBalance    = "topic_balance"
	KeyTopicAdmin      = "topic_admin"
)

// Notification switches consumed by the scheduled jobs. Stored as
// "1"/"0"; unset means enabled.
const (
	KeyMonitorEnabled = "monitor_enabled"
	KeyPaymentNotify  = "payment_notify_enabled"
)

// Admin is an allow-listed Telegram account.
type Admin struct {
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username,omitempty"`
	AddedAt    time.Time `json:"added_at"`
}

// ActionEntry is one audit record of an admin operation.
type ActionEntry struct {
	ID        int64     `json:"id"`
	AdminID   int64     `json:"admin_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store provides database access for settings, admins, and the action log.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// -- Settings --

// Get returns the value for key, or fallback if the key is unset.
func (s *Store) Get(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return fallback, nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// Set stores a setting, replacing any existing value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetInt returns the integer value for key, or fallback if unset or malformed.
func (s *Store) GetInt(ctx context.Context, key string, fallback int) (int, error) {
	raw, err := s.Get(ctx, key, "")
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback, nil
	}
	return n, nil
}

// GetBool returns the boolean value for key ("1" or "0"), or fallback
// if unset or malformed.
func (s *Store) GetBool(ctx context.Context, key string, fallback bool) (bool, error) {
	raw, err := s.Get(ctx, key, "")
	if err != nil {
		return false, err
	}
	switch raw {
	case "1":
		return true, nil
	case "0":
		return false, nil
	default:
		return fallback, nil
	}
}

// SetBool stores a boolean setting as "1" or "0".
func (s *Store) SetBool(ctx context.Context, key string, value bool) error {
	raw := "0"
	if value {
		raw = "1"
	}
	return s.Set(ctx, key, raw)
}

// -- Admins --

// AddAdmin allow-lists a Telegram account. Adding an existing admin is a no-op.
func (s *Store) AddAdmin(ctx context.Context, telegramID int64, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO admins (telegram_id, username) VALUES (?, ?)`,
		telegramID, username)
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	return nil
}

// RemoveAdmin removes a Telegram account from the allow-list.
func (s *Store) RemoveAdmin(ctx context.Context, telegramID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE telegram_id = ?`, telegramID)
	if err != nil {
		return fmt.Errorf("remove admin: %w", err)
	}
	return nil
}

// IsAdmin reports whether the account is in the allow-list table.
func (s *Store) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM admins WHERE telegram_id = ?`, telegramID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is admin: %w", err)
	}
	return true, nil
}

// ListAdmins returns all allow-listed accounts.
func (s *Store) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT telegram_id, COALESCE(username, ''), added_at FROM admins ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []Admin
	for rows.Next() {
		var a Admin
		if err := rows.Scan(&a.TelegramID, &a.Username, &a.AddedAt); err != nil {
			return nil, fmt.Errorf("scan admin row: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// -- Action log --

// LogAction appends an audit record of an admin operation.
func (s *Store) LogAction(ctx context.Context, adminID int64, action, details string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO action_logs (admin_id, action, details) VALUES (?, ?, ?)`,
		adminID, action, details)
	if err != nil {
		return fmt.Errorf("log action: %w", err)
	}
	return nil
}

// RecentActions returns the latest audit records, newest first.
// If limit <= 0, defaults to 20.
func (s *Store) RecentActions(ctx context.Context, limit int) ([]ActionEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, admin_id, action, COALESCE(details, ''), created_at
		FROM action_logs ORDER BY id DESC LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("recent actions: %w", err)
	}
	defer rows.Close()

	var entries []ActionEntry
	for rows.Next() {
		var e ActionEntry
		if err := rows.Scan(&e.ID, &e.AdminID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
