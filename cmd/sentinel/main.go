package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sentinelvps/sentinel/internal/billing"
	"github.com/sentinelvps/sentinel/internal/bot"
	"github.com/sentinelvps/sentinel/internal/config"
	"github.com/sentinelvps/sentinel/internal/fleet"
	"github.com/sentinelvps/sentinel/internal/monitor"
	"github.com/sentinelvps/sentinel/internal/sched"
	"github.com/sentinelvps/sentinel/internal/settings"
	"github.com/sentinelvps/sentinel/internal/sshx"
	"github.com/sentinelvps/sentinel/internal/store"
	"github.com/sentinelvps/sentinel/internal/telegram"
	"github.com/sentinelvps/sentinel/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.FromViper(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("sentinel starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults")
	}

	// Open database and run migrations.
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for module, migrations := range map[string][]store.Migration{
		"fleet":    fleet.Migrations(),
		"billing":  billing.Migrations(),
		"settings": settings.Migrations(),
	} {
		if err := db.Migrate(ctx, module, migrations); err != nil {
			logger.Fatal("migration failed", zap.String("module", module), zap.Error(err))
		}
	}
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	fleetStore := fleet.NewStore(db.DB())
	billingStore := billing.NewStore(db.DB())
	settingsStore := settings.NewStore(db.DB())

	executor := sshx.NewExecutor(config.Component(logger, "ssh"))
	svc := monitor.NewService(executor, fleetStore, monitor.Thresholds{
		CPU:  cfg.Monitor.CPUThreshold,
		RAM:  cfg.Monitor.RAMThreshold,
		Disk: cfg.Monitor.DiskThreshold,
	}, config.Component(logger, "monitor"))

	tg := telegram.NewClient(cfg.Telegram.Token, config.Component(logger, "telegram"))

	// Topic routing: the settings table wins over the config file so
	// destinations can be moved without a restart-and-redeploy cycle.
	topicMonitoring := topicID(ctx, settingsStore, settings.KeyTopicMonitoring, cfg.Telegram.Topics.Monitoring, logger)
	topicPayments := topicID(ctx, settingsStore, settings.KeyTopicPayments, cfg.Telegram.Topics.Payments, logger)

	monitorJob := sched.NewMonitor(
		svc, fleetStore, tg, settingsStore,
		cfg.Telegram.GroupID, topicMonitoring,
		cfg.Monitor.Interval,
		config.Component(logger, "sched"),
	)
	reminderJob := sched.NewReminder(
		billingStore, tg, settingsStore,
		cfg.Telegram.GroupID, topicPayments,
		cfg.Billing.ReminderDays, cfg.Billing.ReminderHour,
		config.Component(logger, "sched"),
	)

	monitorJob.Start(ctx)
	if err := reminderJob.Start(); err != nil {
		logger.Fatal("failed to start reminder job", zap.Error(err))
	}
	logger.Info("scheduler started",
		zap.Duration("monitor_interval", cfg.Monitor.Interval),
		zap.Ints("reminder_days", cfg.Billing.ReminderDays),
	)

	if cfg.Metrics.Listen != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info("metrics listener started", zap.String("addr", cfg.Metrics.Listen))
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				logger.Error("metrics listener failed", zap.Error(err))
			}
		}()
	}

	if tg.Enabled() {
		b := bot.New(tg, executor, svc, fleetStore, billingStore, settingsStore, cfg.Telegram.AdminIDs, config.Component(logger, "bot"))
		go func() {
			if err := b.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("bot loop exited", zap.Error(err))
			}
		}()
		logger.Info("bot polling started", zap.Int("admins", len(cfg.Telegram.AdminIDs)))
	} else {
		logger.Warn("no telegram token configured; chat interface disabled")
	}

	logger.Info("sentinel ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	cancel()
	stopped := make(chan struct{})
	go func() {
		monitorJob.Stop()
		reminderJob.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out waiting for jobs")
	}

	logger.Info("sentinel stopped")
}

// topicID resolves a topic destination, preferring the runtime setting
// over the config file value.
func topicID(ctx context.Context, s *settings.Store, key string, fallback int, logger *zap.Logger) int {
	id, err := s.GetInt(ctx, key, fallback)
	if err != nil {
		logger.Warn("reading topic setting failed, using config value",
			zap.String("key", key), zap.Error(err))
		return fallback
	}
	return id
}
