package fleet

import (
	"database/sql"

	"github.com/sentinelvps/sentinel/internal/store"
)

// Migrations returns the schema migrations for the fleet module.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "create servers table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS servers (
						id INTEGER PRIMARY KEY AUTOINCREMENT,
						name TEXT NOT NULL,
						host TEXT NOT NULL,
						port INTEGER NOT NULL DEFAULT 22,
						username TEXT NOT NULL DEFAULT 'root',
						auth_type TEXT NOT NULL DEFAULT 'password',
						password TEXT,
						ssh_key TEXT,
						is_active INTEGER NOT NULL DEFAULT 1,
						created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
					)`,
					`CREATE INDEX IF NOT EXISTS idx_servers_active ON servers(is_active)`,
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
