// Package config loads Sentinel configuration and builds the logger.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the fully resolved Sentinel configuration.
type Config struct {
	Telegram TelegramConfig
	Database DatabaseConfig
	Monitor  MonitorConfig
	Billing  BillingConfig
	Metrics  MetricsConfig
}

// TelegramConfig holds the Bot API credentials and destinations.
type TelegramConfig struct {
	Token    string
	GroupID  int64
	AdminIDs []int64
	Topics   TopicConfig
}

// TopicConfig maps message categories to forum topic (thread) IDs inside
// the configured group. A zero value means "post to the main thread".
type TopicConfig struct {
	Monitoring int
	Payments   int
	Balance    int
	Admin      int
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string
}

// MonitorConfig holds the collection interval and alert thresholds.
type MonitorConfig struct {
	Interval      time.Duration
	CPUThreshold  float64
	RAMThreshold  float64
	DiskThreshold float64
}

// BillingConfig holds payment reminder scheduling options.
type BillingConfig struct {
	ReminderDays []int
	ReminderHour int
}

// MetricsConfig holds the optional Prometheus listener address.
type MetricsConfig struct {
	Listen string
}

// Load reads configuration from file and environment variables.
// When configPath is empty, sentinel.yaml is searched in the usual places.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.group_id", 0)
	v.SetDefault("telegram.admin_ids", []int64{})
	v.SetDefault("telegram.topics.monitoring", 0)
	v.SetDefault("telegram.topics.payments", 0)
	v.SetDefault("telegram.topics.balance", 0)
	v.SetDefault("telegram.topics.admin", 0)
	v.SetDefault("database.path", "./data/sentinel.db")
	v.SetDefault("monitor.interval", "300s")
	v.SetDefault("monitor.thresholds.cpu", 90)
	v.SetDefault("monitor.thresholds.ram", 90)
	v.SetDefault("monitor.thresholds.disk", 85)
	v.SetDefault("billing.reminder_days", []int{7, 3, 1, 0})
	v.SetDefault("billing.reminder_hour", 9)
	v.SetDefault("metrics.listen", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("sentinel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/sentinel")
	}

	// Environment variable support: SENTINEL_TELEGRAM_TOKEN=...
	v.SetEnvPrefix("SENTINEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}

// FromViper resolves a typed Config from the raw Viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Telegram: TelegramConfig{
			Token:    v.GetString("telegram.token"),
			GroupID:  v.GetInt64("telegram.group_id"),
			AdminIDs: readInt64Slice(v, "telegram.admin_ids"),
			Topics: TopicConfig{
				Monitoring: v.GetInt("telegram.topics.monitoring"),
				Payments:   v.GetInt("telegram.topics.payments"),
				Balance:    v.GetInt("telegram.topics.balance"),
				Admin:      v.GetInt("telegram.topics.admin"),
			},
		},
		Database: DatabaseConfig{
			Path: v.GetString("database.path"),
		},
		Monitor: MonitorConfig{
			Interval:      v.GetDuration("monitor.interval"),
			CPUThreshold:  v.GetFloat64("monitor.thresholds.cpu"),
			RAMThreshold:  v.GetFloat64("monitor.thresholds.ram"),
			DiskThreshold: v.GetFloat64("monitor.thresholds.disk"),
		},
		Billing: BillingConfig{
			ReminderDays: v.GetIntSlice("billing.reminder_days"),
			ReminderHour: v.GetInt("billing.reminder_hour"),
		},
		Metrics: MetricsConfig{
			Listen: v.GetString("metrics.listen"),
		},
	}

	if cfg.Monitor.Interval <= 0 {
		return nil, fmt.Errorf("monitor.interval must be positive, got %s", cfg.Monitor.Interval)
	}
	if cfg.Billing.ReminderHour < 0 || cfg.Billing.ReminderHour > 23 {
		return nil, fmt.Errorf("billing.reminder_hour must be 0-23, got %d", cfg.Billing.ReminderHour)
	}

	return cfg, nil
}

func readInt64Slice(v *viper.Viper, key string) []int64 {
	raw := v.GetIntSlice(key)
	out := make([]int64, 0, len(raw))
	for _, n := range raw {
		out = append(out, int64(n))
	}
	return out
}
