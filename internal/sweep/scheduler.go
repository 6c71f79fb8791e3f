package sweep

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs the sweeper on a fixed interval.
type Scheduler struct {
	mu       sync.RWMutex
	sweeper  *Sweeper
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a sweep scheduler. Daily is enough: lazy expiry on
// read keeps tokens correct between runs.
func NewScheduler(sweeper *Sweeper) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: 24 * time.Hour,
	}
}

// Start begins the scheduler loop with an immediate first run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)

		s.run()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.run()
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

func (s *Scheduler) run() {
	if _, err := s.sweeper.Run(time.Now().UTC()); err != nil {
		s.sweeper.logger.Error("sweep run", "error", err)
	}
}
