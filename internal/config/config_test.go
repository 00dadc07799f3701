package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}

	if cfg.Monitor.Interval != 300*time.Second {
		t.Errorf("Monitor.Interval = %s, want 300s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.CPUThreshold != 90 {
		t.Errorf("CPUThreshold = %v, want 90", cfg.Monitor.CPUThreshold)
	}
	if cfg.Monitor.RAMThreshold != 90 {
		t.Errorf("RAMThreshold = %v, want 90", cfg.Monitor.RAMThreshold)
	}
	if cfg.Monitor.DiskThreshold != 85 {
		t.Errorf("DiskThreshold = %v, want 85", cfg.Monitor.DiskThreshold)
	}
	if cfg.Billing.ReminderHour != 9 {
		t.Errorf("ReminderHour = %d, want 9", cfg.Billing.ReminderHour)
	}
	want := []int{7, 3, 1, 0}
	if len(cfg.Billing.ReminderDays) != len(want) {
		t.Fatalf("ReminderDays = %v, want %v", cfg.Billing.ReminderDays, want)
	}
	for i, d := range want {
		if cfg.Billing.ReminderDays[i] != d {
			t.Errorf("ReminderDays[%d] = %d, want %d", i, cfg.Billing.ReminderDays[i], d)
		}
	}
	if cfg.Telegram.GroupID != 0 {
		t.Errorf("GroupID = %d, want 0", cfg.Telegram.GroupID)
	}
	if cfg.Database.Path != "./data/sentinel.db" {
		t.Errorf("Database.Path = %q, want ./data/sentinel.db", cfg.Database.Path)
	}
}

func TestLoad_EnvOverridesNestedKey(t *testing.T) {
	t.Setenv("SENTINEL_TELEGRAM_TOKEN", "123:env-token")
	t.Setenv("SENTINEL_MONITOR_INTERVAL", "60s")

	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := FromViper(v)
	if err != nil {
		t.Fatalf("FromViper: %v", err)
	}

	if cfg.Telegram.Token != "123:env-token" {
		t.Errorf("Telegram.Token = %q, want env value", cfg.Telegram.Token)
	}
	if cfg.Monitor.Interval != time.Minute {
		t.Errorf("Monitor.Interval = %s, want 1m from env", cfg.Monitor.Interval)
	}
}

func TestFromViper_RejectsBadInterval(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	v.Set("monitor.interval", "0s")

	if _, err := FromViper(v); err == nil {
		t.Error("FromViper accepted zero monitor.interval, want error")
	}
}

func TestFromViper_RejectsBadReminderHour(t *testing.T) {
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	v.Set("billing.reminder_hour", 24)

	if _, err := FromViper(v); err == nil {
		t.Error("FromViper accepted reminder_hour=24, want error")
	}
}
