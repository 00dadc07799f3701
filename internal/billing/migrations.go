package billing

import (
	"database/sql"

	"github.com/sentinelvps/sentinel/internal/store"
)

// Migrations returns the schema migrations for the billing module.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create payments and balance tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS payments (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						server_id INTEGER REFERENCES servers(id),
						description TEXT NOT NULL,
						amount REAL NOT NULL,
						currency TEXT NOT NULL DEFAULT 'RUB',
						due_date TEXT NOT NULL,
						is_recurring INTEGER NOT NULL DEFAULT 1,
						recurring_months INTEGER NOT NULL DEFAULT 1,
						is_paid INTEGER NOT NULL DEFAULT 0,
						notified_days TEXT NOT NULL DEFAULT '',
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_payments_unpaid ON payments(is_paid, due_date)`,

					`CREATE TABLE IF NOT EXISTS balance_history (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						operation_type TEXT NOT NULL,
						amount REAL NOT NULL,
						description TEXT,
						balance_before REAL NOT NULL DEFAULT 0,
						balance_after REAL NOT NULL DEFAULT 0,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
