package billing

import (
	"context"
	"testing"
	"time"

	"github.com/sentinelvps/sentinel/internal/fleet"
	"github.com/sentinelvps/sentinel/internal/store"
)

func testStores(t *testing.T) (*Store, *fleet.Store) {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := db.Migrate(ctx, "fleet", fleet.Migrations()); err != nil {
		t.Fatalf("migrate fleet: %v", err)
	}
	if err := db.Migrate(ctx, "billing", Migrations()); err != nil {
		t.Fatalf("migrate billing: %v", err)
	}
	return NewStore(db.DB()), fleet.NewStore(db.DB())
}

func TestListUnpaid_JoinsServerName(t *testing.T) {
	payments, servers := testStores(t)
	ctx := context.Background()

	srv := &fleet.Server{Name: "web-1", Host: "10.0.0.1", Password: "x"}
	if err := servers.Insert(ctx, srv); err != nil {
		t.Fatalf("insert server: %v", err)
	}

	p := &Payment{ServerID: srv.ID, Description: "VPS rent", Amount: 500, DueDate: "2026-09-15", Recurring: true}
	if err := payments.InsertPayment(ctx, p); err != nil {
		t.Fatalf("InsertPayment: %v", err)
	}
	standalone := &Payment{Description: "domain", Amount: 120, DueDate: "2026-09-01"}
	if err := payments.InsertPayment(ctx, standalone); err != nil {
		t.Fatalf("InsertPayment: %v", err)
	}

	unpaid, err := payments.ListUnpaid(ctx)
	if err != nil {
		t.Fatalf("ListUnpaid: %v", err)
	}
	if len(unpaid) != 2 {
		t.Fatalf("ListUnpaid returned %d, want 2", len(unpaid))
	}
	// Ordered by due date.
	if unpaid[0].Description != "domain" {
		t.Errorf("first unpaid = %q, want domain", unpaid[0].Description)
	}
	if unpaid[1].ServerName != "web-1" {
		t.Errorf("ServerName = %q, want web-1", unpaid[1].ServerName)
	}
	if unpaid[0].ServerName != "" {
		t.Errorf("standalone payment ServerName = %q, want empty", unpaid[0].ServerName)
	}

	if err := payments.MarkPaid(ctx, p.ID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	unpaid, err = payments.ListUnpaid(ctx)
	if err != nil {
		t.Fatalf("ListUnpaid: %v", err)
	}
	if len(unpaid) != 1 {
		t.Errorf("unpaid after MarkPaid = %d, want 1", len(unpaid))
	}
}

func TestNotifiedOffsets_Roundtrip(t *testing.T) {
	payments, _ := testStores(t)
	ctx := context.Background()

	p := &Payment{Description: "rent", Amount: 300, DueDate: "2026-09-07"}
	if err := payments.InsertPayment(ctx, p); err != nil {
		t.Fatalf("InsertPayment: %v", err)
	}

	if p.HasNotified(7) {
		t.Error("fresh payment reports offset 7 as notified")
	}

	if err := payments.AppendNotifiedOffset(ctx, p, 7); err != nil {
		t.Fatalf("AppendNotifiedOffset: %v", err)
	}
	if err := payments.AppendNotifiedOffset(ctx, p, 3); err != nil {
		t.Fatalf("AppendNotifiedOffset: %v", err)
	}

	got, err := payments.GetPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.NotifiedDays != "7,3" {
		t.Errorf("NotifiedDays = %q, want \"7,3\"", got.NotifiedDays)
	}
	if !got.HasNotified(7) || !got.HasNotified(3) {
		t.Errorf("HasNotified(7/3) = %v/%v, want true/true", got.HasNotified(7), got.HasNotified(3))
	}
	if got.HasNotified(0) {
		t.Error("HasNotified(0) = true, want false")
	}
}

func TestNotifiedOffsets_IgnoresGarbage(t *testing.T) {
	p := &Payment{NotifiedDays: " 7, x,3,,1 "}
	got := p.NotifiedOffsets()
	want := []int{7, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("NotifiedOffsets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NotifiedOffsets[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBalance_Chain(t *testing.T) {
	payments, _ := testStores(t)
	ctx := context.Background()

	balance, err := payments.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 0 {
		t.Errorf("empty ledger balance = %v, want 0", balance)
	}

	before, after, err := payments.AddOperation(ctx, OpIncome, 1000, "topup")
	if err != nil {
		t.Fatalf("AddOperation: %v", err)
	}
	if before != 0 || after != 1000 {
		t.Errorf("income: before/after = %v/%v, want 0/1000", before, after)
	}

	before, after, err = payments.AddOperation(ctx, OpPayment, 250, "vps rent")
	if err != nil {
		t.Fatalf("AddOperation: %v", err)
	}
	if before != 1000 || after != 750 {
		t.Errorf("payment: before/after = %v/%v, want 1000/750", before, after)
	}

	history, err := payments.History(ctx, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History returned %d entries, want 2", len(history))
	}
	// Newest first.
	if history[0].OperationType != OpPayment {
		t.Errorf("History[0].OperationType = %q, want payment", history[0].OperationType)
	}

	balance, err = payments.Balance(ctx)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if balance != 750 {
		t.Errorf("Balance = %v, want 750", balance)
	}
}

func TestRenew_ResetsCycle(t *testing.T) {
	payments, _ := testStores(t)
	ctx := context.Background()

	p := &Payment{Description: "VPS rent", Amount: 500, DueDate: "2026-03-01", Recurring: true}
	if err := payments.InsertPayment(ctx, p); err != nil {
		t.Fatalf("InsertPayment: %v", err)
	}
	if err := payments.AppendNotifiedOffset(ctx, p, 7); err != nil {
		t.Fatalf("AppendNotifiedOffset: %v", err)
	}
	if err := payments.MarkPaid(ctx, p.ID); err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := payments.Renew(ctx, p.ID, 30, now); err != nil {
		t.Fatalf("Renew: %v", err)
	}

	got, err := payments.GetPayment(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPayment: %v", err)
	}
	if got.DueDate != "2026-03-31" {
		t.Errorf("DueDate = %q, want 2026-03-31", got.DueDate)
	}
	if got.Paid {
		t.Error("renewed payment still marked paid")
	}
	if got.NotifiedDays != "" {
		t.Errorf("NotifiedDays = %q, want cleared", got.NotifiedDays)
	}
}
