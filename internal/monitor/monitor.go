// Package monitor runs scheduled health checks over every registered
// website, persists the results, pushes live status events, and emails
// account owners when a site goes down.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"webwatch/internal/email"
	"webwatch/internal/model"
	"webwatch/internal/probe"
	"webwatch/internal/store"
	"webwatch/internal/websocket"
)

type Monitor struct {
	websites *store.WebsiteStore
	users    *store.UserStore
	checker  *probe.Checker
	hub      *websocket.Hub
	mailer   *email.Client
	logger   *slog.Logger
}

func New(websites *store.WebsiteStore, users *store.UserStore, checker *probe.Checker, hub *websocket.Hub, mailer *email.Client, logger *slog.Logger) *Monitor {
	return &Monitor{
		websites: websites,
		users:    users,
		checker:  checker,
		hub:      hub,
		mailer:   mailer,
		logger:   logger.With("component", "monitor"),
	}
}

// CheckWebsite probes one website, persists the snapshot, and broadcasts
// the result. A transition from online to offline on a user-owned site
// triggers a downtime alert. Returns the refreshed record.
func (m *Monitor) CheckWebsite(ctx context.Context, w *model.Website) (*model.Website, error) {
	res := m.checker.Probe(ctx, w.URL)

	if err := m.websites.UpdateProbeResult(w.ID, res.Status, res.ResponseTimeMs, res.TLS, res.SEO); err != nil {
		return nil, err
	}

	m.hub.Broadcast(websocket.StatusChanged(w.ID, w.URL, res.Status, res.ResponseTimeMs))

	if w.Status == model.StatusOnline && res.Status == model.StatusOffline {
		m.alertDowntime(w)
	}

	return m.websites.GetByID(w.ID)
}

// RunAll rechecks every registered website. Failures on individual sites
// are logged and do not stop the pass.
func (m *Monitor) RunAll(ctx context.Context) {
	sites, err := m.websites.ListAll()
	if err != nil {
		m.logger.Error("list websites", "error", err)
		return
	}

	start := time.Now()
	var offline int
	for i := range sites {
		if ctx.Err() != nil {
			return
		}
		w := &sites[i]
		updated, err := m.CheckWebsite(ctx, w)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Deleted mid-pass
				continue
			}
			m.logger.Error("check website", "url", w.URL, "error", err)
			continue
		}
		if updated.Status == model.StatusOffline {
			offline++
		}
	}

	m.logger.Info("recheck pass complete",
		"checked", len(sites),
		"offline", offline,
		"duration", time.Since(start).Round(time.Millisecond))
}

// alertDowntime emails the owning user. Guest sites have no address to
// notify, and an unconfigured mailer turns alerts off.
func (m *Monitor) alertDowntime(w *model.Website) {
	if w.UserID == nil || !m.mailer.Configured() {
		return
	}
	user, err := m.users.GetByID(*w.UserID)
	if err != nil {
		m.logger.Error("lookup alert recipient", "error", err)
		return
	}
	if err := m.mailer.SendDowntimeAlert(user.Email, w.Name, w.URL); err != nil {
		m.logger.Error("send downtime alert", "url", w.URL, "error", err)
		return
	}
	m.logger.Info("downtime alert sent", "url", w.URL, "user_id", user.ID)
}

// Scheduler reruns the full check pass on a fixed interval.
type Scheduler struct {
	mu       sync.RWMutex
	monitor  *Monitor
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(monitor *Monitor) *Scheduler {
	return &Scheduler{
		monitor:  monitor,
		interval: 24 * time.Hour,
	}
}

// Start begins the scheduler loop with an immediate first pass.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)

		s.monitor.RunAll(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.monitor.RunAll(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
