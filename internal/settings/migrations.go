package settings

import (
	"database/sql"

	"github.com/sentinelvps/sentinel/internal/store"
)

// Migrations returns the schema migrations for the settings module.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create settings, admins, and action log tables",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS settings (
						key TEXT PRIMARY KEY,
						value TEXT NOT NULL
					)`,

					`CREATE TABLE IF NOT EXISTS admins (
						telegram_id INTEGER PRIMARY KEY,
						username TEXT,
						added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,

					`CREATE TABLE IF NOT EXISTS action_logs (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						admin_id INTEGER NOT NULL,
						action TEXT NOT NULL,
						details TEXT,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_action_logs_admin ON action_logs(admin_id)`,
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
