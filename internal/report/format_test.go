package report

import (
	"strings"
	"testing"
	"time"

	"github.com/sentinelvps/sentinel/internal/billing"
	"github.com/sentinelvps/sentinel/internal/fleet"
	"github.com/sentinelvps/sentinel/internal/monitor"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{0, "\u2591\u2591\u2591\u2591\u2591\u2591\u2591\u2591\u2591\u2591"},
		{50, "\u2593\u2593\u2593\u2593\u2593\u2591\u2591\u2591\u2591\u2591"},
		{100, "\u2593\u2593\u2593\u2593\u2593\u2593\u2593\u2593\u2593\u2593"},
		{120, "\u2593\u2593\u2593\u2593\u2593\u2593\u2593\u2593\u2593\u2593"},
		{-5, "\u2591\u2591\u2591\u2591\u2591\u2591\u2591\u2591\u2591\u2591"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.percent); got != tt.want {
			t.Errorf("ProgressBar(%v) = %q, want %q", tt.percent, got, tt.want)
		}
	}
}

func TestBytes(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{512, "512.0 B"},
		{2048, "2.0 KB"},
		{8323469312, "7.8 GB"},
	}
	for _, tt := range tests {
		if got := Bytes(tt.in); got != tt.want {
			t.Errorf("Bytes(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestUptime(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{59, "0m"},
		{3660, "1h 1m"},
		{90061, "1d 1h 1m"},
		{86400, "1d 0m"},
	}
	for _, tt := range tests {
		if got := Uptime(tt.in); got != tt.want {
			t.Errorf("Uptime(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMoney(t *testing.T) {
	tests := []struct {
		amount   float64
		currency string
		want     string
	}{
		{1500, "", "1 500\u20bd"},
		{1500, "RUB", "1 500\u20bd"},
		{99.5, "", "99.50\u20bd"},
		{1234567, "", "1 234 567\u20bd"},
		{5, "USD", "5$"},
	}
	for _, tt := range tests {
		if got := Money(tt.amount, tt.currency); got != tt.want {
			t.Errorf("Money(%v, %q) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	short := "hello"
	if got := Truncate(short); got != short {
		t.Errorf("Truncate(short) = %q, want unchanged", got)
	}

	long := strings.Repeat("a", OutputLimit) + "TAIL"
	got := Truncate(long)
	if !strings.HasSuffix(got, "TAIL") {
		t.Error("Truncate dropped the tail instead of the head")
	}
	if len(got) > OutputLimit+len("\u2026") {
		t.Errorf("Truncate kept %d bytes, want at most %d", len(got), OutputLimit+len("\u2026"))
	}
}

func TestServerStatus_Offline(t *testing.T) {
	srv := &fleet.Server{Name: "web-1", Host: "10.0.0.1"}
	got := ServerStatus(srv, nil)
	if !strings.Contains(got, "Offline") {
		t.Errorf("offline card missing status: %q", got)
	}
	if !strings.Contains(got, "10.0.0.1") {
		t.Errorf("offline card missing host: %q", got)
	}
}

func TestServerStatus_Online(t *testing.T) {
	srv := &fleet.Server{Name: "web-1", Host: "10.0.0.1"}
	snap := &monitor.Snapshot{
		CPUPercent:    42,
		CPUCores:      4,
		RAMPercent:    50,
		RAMUsed:       4 << 30,
		RAMTotal:      8 << 30,
		DiskPercent:   20,
		UptimeSeconds: 90061,
		PingMS:        12,
		CollectedAt:   time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}
	got := ServerStatus(srv, snap)
	for _, want := range []string{"web-1", "Online", "42%", "4 cores", "4.0 GB", "8.0 GB", "1d 1h 1m", "12ms", "01.03.2026 12:30"} {
		if !strings.Contains(got, want) {
			t.Errorf("status card missing %q:\n%s", want, got)
		}
	}
}

func TestPaymentReminder_Urgency(t *testing.T) {
	p := &billing.Payment{Description: "VPS hosting", Amount: 500, DueDate: "2026-03-10", ServerName: "web-1"}

	tests := []struct {
		days int
		want string
	}{
		{0, "TODAY"},
		{1, "tomorrow"},
		{3, "in 3 days"},
		{7, "in 7 days"},
	}
	for _, tt := range tests {
		got := PaymentReminder(p, tt.days)
		if !strings.Contains(got, tt.want) {
			t.Errorf("days=%d: reminder missing %q:\n%s", tt.days, tt.want, got)
		}
	}

	got := PaymentReminder(p, 0)
	for _, want := range []string{"VPS hosting", "web-1", "500\u20bd", "2026-03-10"} {
		if !strings.Contains(got, want) {
			t.Errorf("reminder missing %q:\n%s", want, got)
		}
	}
}

func TestBalanceReport(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	history := []billing.BalanceEntry{
		{OperationType: billing.OpIncome, Amount: 1000, BalanceBefore: 500, BalanceAfter: 1500},
		{OperationType: billing.OpPayment, Amount: 250, BalanceBefore: 1500, BalanceAfter: 1250},
	}
	got := BalanceReport(1250, history, now)
	for _, want := range []string{"1 250\u20bd", "1 000\u20bd", "250\u20bd", "500\u20bd", "01.03.2026"} {
		if !strings.Contains(got, want) {
			t.Errorf("balance report missing %q:\n%s", want, got)
		}
	}
	// No expenses in history renders a dash.
	if !strings.Contains(got, "\u2014") {
		t.Errorf("balance report missing dash for empty category:\n%s", got)
	}
}

func TestServerList(t *testing.T) {
	if got := ServerList(nil); !strings.Contains(got, "No servers") {
		t.Errorf("empty list = %q", got)
	}

	servers := []fleet.Server{
		{Name: "web-1", Host: "10.0.0.1", Port: 22, Active: true},
		{Name: "db-1", Host: "10.0.0.2", Port: 2222, Active: false},
	}
	got := ServerList(servers)
	for _, want := range []string{"(2)", "web-1", "10.0.0.1:22", "db-1", "10.0.0.2:2222", "\U0001f7e2", "\U0001f534"} {
		if !strings.Contains(got, want) {
			t.Errorf("server list missing %q:\n%s", want, got)
		}
	}
}

func TestFleetOverview(t *testing.T) {
	if got := FleetOverview(nil, nil); !strings.Contains(got, "No servers") {
		t.Errorf("empty overview = %q", got)
	}

	servers := []fleet.Server{
		{ID: 1, Name: "web-1", Active: true},
		{ID: 2, Name: "db-1", Active: true},
	}
	snaps := map[int64]*monitor.Snapshot{
		1: {CPUPercent: 42, RAMPercent: 50, DiskPercent: 60, UptimeSeconds: 3600},
	}
	got := FleetOverview(servers, snaps)
	for _, want := range []string{"web-1", "CPU 42%", "RAM 50%", "Disk 60%", "1h 0m", "db-1", "offline"} {
		if !strings.Contains(got, want) {
			t.Errorf("overview missing %q:\n%s", want, got)
		}
	}
}

func TestExecResult(t *testing.T) {
	got := ExecResult("ls <dir>", "file1\nfile2", "", 0)
	if !strings.Contains(got, "exit 0") {
		t.Errorf("missing exit status: %q", got)
	}
	if strings.Contains(got, "<dir>") {
		t.Error("command not HTML-escaped")
	}
	if !strings.Contains(got, "file1") {
		t.Errorf("missing stdout: %q", got)
	}

	got = ExecResult("false", "", "boom", 1)
	if !strings.Contains(got, "exit 1") || !strings.Contains(got, "boom") {
		t.Errorf("failure rendering = %q", got)
	}
}
