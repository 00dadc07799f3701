// Package fleet manages the registered VPS server records.
package fleet

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Auth modes accepted for a server.
const (
	AuthPassword = "password"
	AuthKey      = "key"
)

// Server is a registered VPS target.
type Server struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Host       string    `json:"host"`
	Port       int       `json:"port"`
	Username   string    `json:"username"`
	AuthType   string    `json:"auth_type"`
	Password   string    `json:"-"`
	PrivateKey string    `json:"-"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store provides database access for server records.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Insert adds a new server and fills in its assigned ID.
func (s *Store) Insert(ctx context.Context, srv *Server) error {
	if srv.Port == 0 {
		srv.Port = 22
	}
	if srv.Username == "" {
		srv.Username = "root"
	}
	if srv.AuthType == "" {
		srv.AuthType = AuthPassword
	}
	if srv.CreatedAt.IsZero() {
		srv.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO servers (name, host, port, username, auth_type, password, ssh_key, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		srv.Name, srv.Host, srv.Port, srv.Username, srv.AuthType,
		srv.Password, srv.PrivateKey, srv.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert server: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert server id: %w", err)
	}
	srv.ID = id
	srv.Active = true
	return nil
}

// Get returns a server by ID. Returns nil, nil if not found.
func (s *Store) Get(ctx context.Context, id int64) (*Server, error) {
	srv, err := scanServer(s.db.QueryRowContext(ctx, `
		SELECT id, name, host, port, username, auth_type, password, ssh_key, is_active, created_at
		FROM servers WHERE id = ?`,
		id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get server: %w", err)
	}
	return srv, nil
}

// ListActive returns all active servers ordered by creation time.
func (s *Store) ListActive(ctx context.Context) ([]Server, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, host, port, username, auth_type, password, ssh_key, is_active, created_at
		FROM servers WHERE is_active = 1 ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list active servers: %w", err)
	}
	defer rows.Close()

	var servers []Server
	for rows.Next() {
		srv, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan server row: %w", err)
		}
		servers = append(servers, *srv)
	}
	return servers, rows.Err()
}

// Update persists all mutable fields of a server.
func (s *Store) Update(ctx context.Context, srv *Server) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE servers
		SET name = ?, host = ?, port = ?, username = ?, auth_type = ?, password = ?, ssh_key = ?
		WHERE id = ?`,
		srv.Name, srv.Host, srv.Port, srv.Username, srv.AuthType,
		srv.Password, srv.PrivateKey, srv.ID,
	)
	if err != nil {
		return fmt.Errorf("update server: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a server; existing payments keep referencing it.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE servers SET is_active = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate server: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanServer(row rowScanner) (*Server, error) {
	var srv Server
	var activeInt int
	var password, key sql.NullString
	if err := row.Scan(
		&srv.ID, &srv.Name, &srv.Host, &srv.Port, &srv.Username,
		&srv.AuthType, &password, &key, &activeInt, &srv.CreatedAt,
	); err != nil {
		return nil, err
	}
	srv.Password = password.String
	srv.PrivateKey = key.String
	srv.Active = activeInt != 0
	return &srv, nil
}
