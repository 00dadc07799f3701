// Package billing manages recurring payments, due-date reminders, and the
// balance ledger.
package billing

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the due-date encoding used in the payments table.
const DateLayout = "2006-01-02"

// Balance operation types.
const (
	OpIncome  = "income"
	OpExpense = "expense"
	OpPayment = "payment"
)

// Payment is a tracked server payment with reminder state.
type Payment struct {
	ID              int64   `json:"id"`
	ServerID        int64   `json:"server_id"` // 0 when not tied to a server
	ServerName      string  `json:"server_name,omitempty"`
	Description     string  `json:"description"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	DueDate         string  `json:"due_date"`
	Recurring       bool    `json:"recurring"`
	RecurringMonths int     `json:"recurring_months"`
	Paid            bool    `json:"paid"`
	NotifiedDays    string  `json:"notified_days"` // CSV of already-sent offsets
}

// Due parses the payment's due date.
func (p *Payment) Due() (time.Time, error) {
	return time.Parse(DateLayout, p.DueDate)
}

// NotifiedOffsets returns the reminder offsets already delivered.
func (p *Payment) NotifiedOffsets() []int {
	var out []int
	for _, part := range strings.Split(p.NotifiedDays, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

// HasNotified reports whether a reminder for the given offset was delivered.
func (p *Payment) HasNotified(offset int) bool {
	for _, n := range p.NotifiedOffsets() {
		if n == offset {
			return true
		}
	}
	return false
}

// BalanceEntry is one row of the append-only balance ledger.
type BalanceEntry struct {
	ID            int64     `json:"id"`
	OperationType string    `json:"operation_type"`
	Amount        float64   `json:"amount"`
	Description   string    `json:"description,omitempty"`
	BalanceBefore float64   `json:"balance_before"`
	BalanceAfter  float64   `json:"balance_after"`
	CreatedAt     time.Time `json:"created_at"`
}

// Store provides database access for payments and the balance ledger.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// -- Payments --

// InsertPayment adds a payment and fills in its assigned ID.
func (s *Store) InsertPayment(ctx context.Context, p *Payment) error {
	if p.Currency == "" {
		p.Currency = "RUB"
	}
	if p.RecurringMonths == 0 {
		p.RecurringMonths = 1
	}
	var serverID any
	if p.ServerID != 0 {
		serverID = p.ServerID
	}
	recurring := 0
	if p.Recurring {
		recurring = 1
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (server_id, description, amount, currency, due_date, is_recurring, recurring_months, is_paid, notified_days)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, '')`,
		serverID, p.Description, p.Amount, p.Currency, p.DueDate, recurring, p.RecurringMonths,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert payment id: %w", err)
	}
	p.ID = id
	return nil
}

// GetPayment returns a payment by ID. Returns nil, nil if not found.
func (s *Store) GetPayment(ctx context.Context, id int64) (*Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, `
		SELECT p.id, p.server_id, COALESCE(s.name, ''), p.description, p.amount, p.currency,
		       p.due_date, p.is_recurring, p.recurring_months, p.is_paid, p.notified_days
		FROM payments p LEFT JOIN servers s ON p.server_id = s.id
		WHERE p.id = ?`,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// ListUnpaid returns unpaid payments with their server name, due soonest first.
func (s *Store) ListUnpaid(ctx context.Context) ([]Payment, error) {
	return s.list(ctx, true)
}

// ListAll returns every payment, due soonest first.
func (s *Store) ListAll(ctx context.Context) ([]Payment, error) {
	return s.list(ctx, false)
}

func (s *Store) list(ctx context.Context, unpaidOnly bool) ([]Payment, error) {
	query := `
		SELECT p.id, p.server_id, COALESCE(s.name, ''), p.description, p.amount, p.currency,
		       p.due_date, p.is_recurring, p.recurring_months, p.is_paid, p.notified_days
		FROM payments p LEFT JOIN servers s ON p.server_id = s.id`
	if unpaidOnly {
		query += ` WHERE p.is_paid = 0`
	}
	query += ` ORDER BY p.due_date`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// MarkPaid marks a payment as paid.
func (s *Store) MarkPaid(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE payments SET is_paid = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	return nil
}

// Renew pushes a payment's due date to now + days, reopens it, and
// clears the notified set so the new cycle gets fresh reminders.
func (s *Store) Renew(ctx context.Context, id int64, days int, now time.Time) error {
	newDue := now.AddDate(0, 0, days).Format(DateLayout)
	_, err := s.db.ExecContext(ctx, `
		UPDATE payments SET due_date = ?, is_paid = 0, notified_days = '' WHERE id = ?`,
		newDue, id,
	)
	if err != nil {
		return fmt.Errorf("renew payment: %w", err)
	}
	return nil
}

// SetNotifiedDays overwrites the delivered-offsets record for a payment.
func (s *Store) SetNotifiedDays(ctx context.Context, id int64, notified string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE payments SET notified_days = ? WHERE id = ?`, notified, id)
	if err != nil {
		return fmt.Errorf("set notified days: %w", err)
	}
	return nil
}

// AppendNotifiedOffset records one more delivered reminder offset.
// Call only after the reminder was actually delivered.
func (s *Store) AppendNotifiedOffset(ctx context.Context, p *Payment, offset int) error {
	parts := []string{}
	if p.NotifiedDays != "" {
		parts = append(parts, p.NotifiedDays)
	}
	parts = append(parts, strconv.Itoa(offset))
	joined := strings.Join(parts, ",")
	if err := s.SetNotifiedDays(ctx, p.ID, joined); err != nil {
		return err
	}
	p.NotifiedDays = joined
	return nil
}

func scanPayment(row rowScanner) (*Payment, error) {
	var p Payment
	var serverID sql.NullInt64
	var recurringInt, paidInt int
	if err := row.Scan(
		&p.ID, &serverID, &p.ServerName, &p.Description, &p.Amount, &p.Currency,
		&p.DueDate, &recurringInt, &p.RecurringMonths, &paidInt, &p.NotifiedDays,
	); err != nil {
		return nil, err
	}
	p.ServerID = serverID.Int64
	p.Recurring = recurringInt != 0
	p.Paid = paidInt != 0
	return &p, nil
}

// -- Balance --

// Balance returns the current balance (the last ledger entry's balance_after).
func (s *Store) Balance(ctx context.Context) (float64, error) {
	var balance float64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance_after FROM balance_history ORDER BY id DESC LIMIT 1`,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// AddOperation appends a ledger entry. Income increases the balance; every
// other operation type decreases it. Returns the balance before and after.
func (s *Store) AddOperation(ctx context.Context, opType string, amount float64, description string) (before, after float64, err error) {
	before, err = s.Balance(ctx)
	if err != nil {
		return 0, 0, err
	}
	if opType == OpIncome {
		after = before + amount
	} else {
		after = before - amount
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO balance_history (operation_type, amount, description, balance_before, balance_after)
		VALUES (?, ?, ?, ?, ?)`,
		opType, amount, description, before, after,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("add balance operation: %w", err)
	}
	return before, after, nil
}

// History returns the most recent ledger entries, newest first.
// If limit <= 0, defaults to 10.
func (s *Store) History(ctx context.Context, limit int) ([]BalanceEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, operation_type, amount, COALESCE(description, ''), balance_before, balance_after, created_at
		FROM balance_history ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("balance history: %w", err)
	}
	defer rows.Close()

	var entries []BalanceEntry
	for rows.Next() {
		var e BalanceEntry
		if err := rows.Scan(
			&e.ID, &e.OperationType, &e.Amount, &e.Description,
			&e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan balance row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}
