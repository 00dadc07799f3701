// Package sched drives the two background jobs: interval-based metric
// collection with alert push, and the daily payment-reminder sweep.
package sched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelvps/sentinel/internal/fleet"
	"github.com/sentinelvps/sentinel/internal/monitor"
	"github.com/sentinelvps/sentinel/internal/settings"
)

// Sink delivers a formatted message to a chat, optionally into a forum
// topic thread. Satisfied by *telegram.Client.
type Sink interface {
	SendMessage(ctx context.Context, chatID int64, threadID int, text string) error
}

// Collector is the monitoring surface the scheduler drives. Satisfied
// by *monitor.Service.
type Collector interface {
	CollectAll(ctx context.Context) (map[int64]*monitor.Snapshot, error)
	CheckAlerts(serverID int64, serverName string, snap *monitor.Snapshot) []string
}

// ServerLister names the servers in a collection round.
type ServerLister interface {
	ListActive(ctx context.Context) ([]fleet.Server, error)
}

// Toggles reads the runtime notification switches. Satisfied by
// *settings.Store. A nil Toggles means always enabled.
type Toggles interface {
	GetBool(ctx context.Context, key string, fallback bool) (bool, error)
}

// Monitor runs the periodic collection job and pushes threshold alerts
// to the configured destination.
type Monitor struct {
	collector Collector
	servers   ServerLister
	sink      Sink
	toggles   Toggles
	groupID   int64
	topicID   int
	interval  time.Duration
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates the monitoring job. A zero groupID disables the
// scheduled push path entirely; on-demand collection is unaffected.
func NewMonitor(collector Collector, servers ServerLister, sink Sink, toggles Toggles, groupID int64, topicID int, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		collector: collector,
		servers:   servers,
		sink:      sink,
		toggles:   toggles,
		groupID:   groupID,
		topicID:   topicID,
		interval:  interval,
		logger:    logger,
	}
}

// Start begins the collection loop. Returns immediately; use Stop to
// shut the loop down.
func (m *Monitor) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		// Run immediately on start, then on each tick.
		m.tick()

		for {
			select {
			case <-m.ctx.Done():
				return
			case <-ticker.C:
				m.tick()
			}
		}
	}()
}

// Stop signals the loop to stop and waits for completion.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// enabled consults the runtime monitoring switch.
func (m *Monitor) enabled(ctx context.Context) bool {
	if m.toggles == nil {
		return true
	}
	on, err := m.toggles.GetBool(ctx, settings.KeyMonitorEnabled, true)
	if err != nil {
		m.logger.Warn("reading monitoring switch failed", zap.Error(err))
		return true
	}
	return on
}

// tick collects the whole fleet and pushes any resulting alerts. One
// alert's delivery failure never blocks the rest.
func (m *Monitor) tick() {
	if m.sink == nil || m.groupID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, m.interval)
	defer cancel()

	if !m.enabled(ctx) {
		return
	}

	results, err := m.collector.CollectAll(ctx)
	if err != nil {
		m.logger.Warn("collection round failed", zap.Error(err))
		return
	}

	servers, err := m.servers.ListActive(ctx)
	if err != nil {
		m.logger.Warn("listing servers for alert push failed", zap.Error(err))
		return
	}

	for _, srv := range servers {
		snap := results[srv.ID]
		if snap == nil {
			continue
		}
		alerts := m.collector.CheckAlerts(srv.ID, srv.Name, snap)
		for _, text := range alerts {
			if err := m.sink.SendMessage(ctx, m.groupID, m.topicID, text); err != nil {
				m.logger.Error("alert delivery failed",
					zap.Int64("server_id", srv.ID),
					zap.Error(err),
				)
			}
		}
	}
}
