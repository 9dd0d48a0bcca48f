// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package monitoring

import (
	"sync"
	"time"

	"arguslm/platform/shared/logger"
)

// Scheduler owns the periodic monitoring job. At most one job exists at a
// time; Configure replaces it and Stop waits for an in-flight tick to
// finish. The tick body must never panic.
type Scheduler struct {
	tick func()
	log  *logger.Logger

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewScheduler creates a Scheduler driving the given tick body.
func NewScheduler(tick func(), log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.New("monitoring")
	}
	return &Scheduler{tick: tick, log: log}
}

// Configure removes any installed job and, when enabled, installs a new one
// firing every intervalMinutes. This is the only way interval or enablement
// changes take effect.
func (s *Scheduler) Configure(intervalMinutes int, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeJob()

	if !enabled {
		s.log.Info("Monitoring scheduler disabled", nil)
		return
	}
	if intervalMinutes < 1 {
		s.log.Warn("Monitoring scheduler not installed: interval below one minute", map[string]interface{}{
			"interval_minutes": intervalMinutes,
		})
		return
	}

	s.installJob(time.Duration(intervalMinutes) * time.Minute)
	s.log.Info("Monitoring scheduler configured", map[string]interface{}{
		"interval_minutes": intervalMinutes,
	})
}

// Running reports whether a job is installed.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Stop removes the job and waits for a tick already underway.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeJob()
	s.log.Info("Monitoring scheduler stopped", nil)
}

// installJob starts the job goroutine. Caller holds the lock.
func (s *Scheduler) installJob(interval time.Duration) {
	stop := make(chan struct{})
	s.stop = stop

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			// Re-check stop before honouring a pending tick so a
			// removed job never starts another run.
			select {
			case <-stop:
				return
			default:
			}

			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

// removeJob signals the job goroutine and waits for it, including any tick
// it is executing. Caller holds the lock.
func (s *Scheduler) removeJob() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	s.wg.Wait()
}
