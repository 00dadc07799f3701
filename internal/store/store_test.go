package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
)

func testMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create things table",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`)
				return err
			},
		},
		{
			Version:     2,
			Description: "add note column",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`ALTER TABLE things ADD COLUMN note TEXT`)
				return err
			},
		},
	}
}

func TestMigrate_AppliesAndSkips(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	if err := s.Migrate(ctx, "test", testMigrations()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Running again must be a no-op.
	if err := s.Migrate(ctx, "test", testMigrations()); err != nil {
		t.Fatalf("Migrate (second run): %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM _migrations WHERE module = 'test'").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("applied migrations = %d, want 2", count)
	}

	// The migrated schema must be usable.
	if _, err := s.DB().Exec("INSERT INTO things (name, note) VALUES ('a', 'b')"); err != nil {
		t.Errorf("insert into migrated table: %v", err)
	}
}

func TestMigrate_FailedMigrationRollsBack(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	bad := []Migration{
		{
			Version:     1,
			Description: "broken",
			Up: func(tx *sql.Tx) error {
				return fmt.Errorf("boom")
			},
		},
	}
	if err := s.Migrate(ctx, "bad", bad); err == nil {
		t.Fatal("Migrate succeeded, want error")
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM _migrations WHERE module = 'bad'").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 0 {
		t.Errorf("recorded migrations after failure = %d, want 0", count)
	}
}

func TestTx_RollsBackOnError(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	if _, err := s.DB().Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	txErr := s.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t (id) VALUES (1)"); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	if txErr == nil {
		t.Fatal("Tx succeeded, want error")
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM t").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("rows after rollback = %d, want 0", count)
	}
}
