// Package monitor collects server metrics over SSH and evaluates
// alert thresholds against them.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelvps/sentinel/internal/fleet"
	"github.com/sentinelvps/sentinel/internal/sshx"
)

// alertCooldown suppresses repeat alerts for the same (server, metric)
// pair. The entry is cleared as soon as the metric recovers, so a fresh
// breach after recovery alerts immediately.
const alertCooldown = 600 * time.Second

// CommandRunner executes a command on a remote target. Satisfied by
// *sshx.Executor.
type CommandRunner interface {
	Execute(ctx context.Context, target sshx.Target, command string, timeout time.Duration) sshx.Result
}

// ServerLister provides the servers to monitor. Satisfied by *fleet.Store.
type ServerLister interface {
	ListActive(ctx context.Context) ([]fleet.Server, error)
	Get(ctx context.Context, id int64) (*fleet.Server, error)
}

// Thresholds are the alert levels in percent.
type Thresholds struct {
	CPU  float64
	RAM  float64
	Disk float64
}

// Service fans metric collection out across the fleet and keeps the
// last-known snapshot per server.
type Service struct {
	runner     CommandRunner
	servers    ServerLister
	thresholds Thresholds
	logger     *zap.Logger

	mu         sync.Mutex
	cache      map[int64]*Snapshot
	alertsSent map[string]time.Time

	// Injectable for tests.
	now  func() time.Time
	ping func(ctx context.Context, host string, timeout time.Duration) (time.Duration, error)
}

// NewService creates a monitoring service.
func NewService(runner CommandRunner, servers ServerLister, thresholds Thresholds, logger *zap.Logger) *Service {
	return &Service{
		runner:     runner,
		servers:    servers,
		thresholds: thresholds,
		logger:     logger,
		cache:      make(map[int64]*Snapshot),
		alertsSent: make(map[string]time.Time),
		now:        time.Now,
		ping:       sshx.Ping,
	}
}

// CollectAll gathers metrics from every active server concurrently and
// returns a map of server ID to snapshot. Servers whose probe failed map
// to nil; one server's failure never affects the rest of the batch.
func (s *Service) CollectAll(ctx context.Context) (map[int64]*Snapshot, error) {
	servers, err := s.servers.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}

	results := make(map[int64]*Snapshot, len(servers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	start := s.now()
	for i := range servers {
		wg.Add(1)
		go func(srv fleet.Server) {
			defer wg.Done()
			snap := s.collect(ctx, &srv)
			mu.Lock()
			results[srv.ID] = snap
			mu.Unlock()
		}(servers[i])
	}
	wg.Wait()
	collectionDuration.Observe(time.Since(start).Seconds())

	return results, nil
}

// CollectServer refreshes metrics for a single server on demand.
// Returns (nil, nil) when the server does not exist and (nil, nil) when
// the probe failed; the previous cached snapshot is kept in both cases.
func (s *Service) CollectServer(ctx context.Context, id int64) (*Snapshot, error) {
	srv, err := s.servers.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if srv == nil {
		return nil, nil
	}
	return s.collect(ctx, srv), nil
}

// CachedSnapshot returns the last collected snapshot for a server, or
// nil if none was ever collected.
func (s *Service) CachedSnapshot(id int64) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache[id]
}

// collect runs the probe on one server. A non-zero probe exit returns
// nil and leaves the cache untouched.
func (s *Service) collect(ctx context.Context, srv *fleet.Server) *Snapshot {
	target := sshx.Target{
		Host:       srv.Host,
		Port:       srv.Port,
		Username:   srv.Username,
		AuthType:   srv.AuthType,
		Password:   srv.Password,
		PrivateKey: srv.PrivateKey,
	}

	result := s.runner.Execute(ctx, target, probeScript, sshx.ProbeTimeout)
	if result.ExitCode != 0 {
		s.logger.Warn("metrics probe failed",
			zap.Int64("server_id", srv.ID),
			zap.String("name", srv.Name),
			zap.Int("exit_code", result.ExitCode),
			zap.String("stderr", result.Stderr),
		)
		collectionsTotal.WithLabelValues("failure").Inc()
		return nil
	}

	snap := ParseSnapshot(result.Stdout)
	snap.CollectedAt = s.now()

	if rtt, err := s.ping(ctx, srv.Host, 3*time.Second); err == nil {
		snap.PingMS = float64(rtt.Microseconds()) / 1000
	}

	s.mu.Lock()
	s.cache[srv.ID] = snap
	s.mu.Unlock()

	collectionsTotal.WithLabelValues("success").Inc()
	return snap
}

// CheckAlerts evaluates one snapshot against the thresholds and returns
// formatted alert messages for every metric at or above its threshold
// that is not inside the cooldown window. A metric below threshold
// clears its cooldown entry.
func (s *Service) CheckAlerts(serverID int64, serverName string, snap *Snapshot) []string {
	if snap == nil {
		return nil
	}

	checks := []struct {
		key       string
		value     float64
		threshold float64
		label     string
	}{
		{"cpu", snap.CPUPercent, s.thresholds.CPU, "CPU"},
		{"ram", snap.RAMPercent, s.thresholds.RAM, "RAM"},
		{"disk", snap.DiskPercent, s.thresholds.Disk, "Disk"},
	}

	now := s.now()
	var alerts []string

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range checks {
		key := fmt.Sprintf("%d:%s", serverID, c.key)
		if c.value >= c.threshold {
			if last, ok := s.alertsSent[key]; ok && now.Sub(last) <= alertCooldown {
				continue
			}
			alerts = append(alerts, fmt.Sprintf(
				"⚠️ <b>Alert: %s</b>\n%s: <b>%.0f%%</b> (> %.0f%%)",
				serverName, c.label, c.value, c.threshold,
			))
			s.alertsSent[key] = now
			alertsFiredTotal.WithLabelValues(c.key).Inc()
		} else {
			delete(s.alertsSent, key)
		}
	}

	return alerts
}
