package settings

import (
	"context"
	"testing"

	"github.com/sentinelvps/sentinel/internal/store"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background(), "settings", Migrations()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewStore(db.DB())
}

func TestSettings_GetSetFallback(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	got, err := s.Get(ctx, "missing", "default")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "default" {
		t.Errorf("Get(missing) = %q, want default", got)
	}

	if err := s.Set(ctx, KeyTopicMonitoring, "42"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, KeyTopicMonitoring, "43"); err != nil {
		t.Fatalf("Set (replace): %v", err)
	}

	n, err := s.GetInt(ctx, KeyTopicMonitoring, 0)
	if err != nil {
		t.Fatalf("GetInt: %v", err)
	}
	if n != 43 {
		t.Errorf("GetInt = %d, want 43", n)
	}
}

func TestGetInt_MalformedFallsBack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", "not-a-number"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	n, err := s.GetInt(ctx, "k", 7)
	if err != nil {
		t.Fatalf("GetInt: %v", err)
	}
	if n != 7 {
		t.Errorf("GetInt = %d, want fallback 7", n)
	}
}

func TestAdmins(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	ok, err := s.IsAdmin(ctx, 100)
	if err != nil {
		t.Fatalf("IsAdmin: %v", err)
	}
	if ok {
		t.Error("IsAdmin(100) = true before add")
	}

	if err := s.AddAdmin(ctx, 100, "alice"); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	// Duplicate add is a no-op.
	if err := s.AddAdmin(ctx, 100, "alice"); err != nil {
		t.Fatalf("AddAdmin (duplicate): %v", err)
	}
	if err := s.AddAdmin(ctx, 200, ""); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}

	admins, err := s.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("ListAdmins: %v", err)
	}
	if len(admins) != 2 {
		t.Fatalf("ListAdmins returned %d, want 2", len(admins))
	}

	ok, err = s.IsAdmin(ctx, 100)
	if err != nil {
		t.Fatalf("IsAdmin: %v", err)
	}
	if !ok {
		t.Error("IsAdmin(100) = false after add")
	}

	if err := s.RemoveAdmin(ctx, 100); err != nil {
		t.Fatalf("RemoveAdmin: %v", err)
	}
	ok, err = s.IsAdmin(ctx, 100)
	if err != nil {
		t.Fatalf("IsAdmin: %v", err)
	}
	if ok {
		t.Error("IsAdmin(100) = true after remove")
	}
}

func TestActionLog(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	for _, action := range []string{"add_server", "delete_server", "mark_paid"} {
		if err := s.LogAction(ctx, 100, action, "details"); err != nil {
			t.Fatalf("LogAction(%s): %v", action, err)
		}
	}

	entries, err := s.RecentActions(ctx, 2)
	if err != nil {
		t.Fatalf("RecentActions: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("RecentActions returned %d, want 2", len(entries))
	}
	if entries[0].Action != "mark_paid" {
		t.Errorf("newest action = %q, want mark_paid", entries[0].Action)
	}
}

func TestGetBool_SetBoolRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	on, err := s.GetBool(ctx, KeyMonitorEnabled, true)
	if err != nil {
		t.Fatalf("GetBool: %v", err)
	}
	if !on {
		t.Error("unset switch = false, want the fallback true")
	}

	if err := s.SetBool(ctx, KeyMonitorEnabled, false); err != nil {
		t.Fatalf("SetBool: %v", err)
	}
	on, err = s.GetBool(ctx, KeyMonitorEnabled, true)
	if err != nil || on {
		t.Errorf("GetBool after SetBool(false) = %v, %v; want false", on, err)
	}

	if err := s.Set(ctx, KeyPaymentNotify, "maybe"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	on, err = s.GetBool(ctx, KeyPaymentNotify, false)
	if err != nil || on {
		t.Errorf("GetBool(malformed) = %v, %v; want the fallback false", on, err)
	}
}
