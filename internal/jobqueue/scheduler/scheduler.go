// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package scheduler drives a registry's tick loop against wall-clock time:
// it sleeps until the registry's next scheduled event and processes it,
// repeating for as long as the server runs. Tests exercise
// Registry.Tick directly against a timeutil.SimulatedClock instead of
// going through this package.
package scheduler

import (
	"sync"
	"time"

	"github.com/hemant/beanq/internal/jobqueue/registry"
	"github.com/hemant/beanq/internal/log"
)

// maxSleep bounds how long the scheduler ever sleeps in one step, so a
// registry with nothing scheduled still wakes periodically instead of
// blocking indefinitely in the rare case a wakeup was missed due to a
// clock or timer anomaly.
const maxSleep = 5 * time.Second

// Scheduler periodically calls Tick on its registry.
type Scheduler struct {
	logger *log.Logger
	reg    *registry.Registry

	done chan struct{}
}

// New returns a Scheduler driving reg.
func New(reg *registry.Registry, logger *log.Logger) *Scheduler {
	return &Scheduler{logger: logger, reg: reg, done: make(chan struct{})}
}

// Start runs the sleep/tick loop in a new goroutine, registering it on wg.
func (s *Scheduler) Start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.run()
	}()
}

// Shutdown signals the loop to stop and returns without waiting; the
// WaitGroup passed to Start reports when the loop has exited.
func (s *Scheduler) Shutdown() {
	close(s.done)
}

func (s *Scheduler) run() {
	timer := time.NewTimer(s.sleepDuration())
	defer timer.Stop()
	for {
		select {
		case <-s.done:
			s.logger.Debug("scheduler stopped")
			return
		case <-timer.C:
			s.reg.Tick()
			timer.Reset(s.sleepDuration())
		case <-s.reg.WakeChan():
			// A waiter with a sooner FireAt was just registered; re-arm
			// against it instead of sleeping out the current timer.
			stopAndDrain(timer)
			timer.Reset(s.sleepDuration())
		}
	}
}

// stopAndDrain stops timer, draining its channel if it had already fired
// and not yet been received, so a subsequent Reset starts clean.
func stopAndDrain(timer *time.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}

func (s *Scheduler) sleepDuration() time.Duration {
	wake, ok := s.reg.NextWakeAt()
	if !ok {
		return maxSleep
	}
	d := time.Until(wake)
	if d <= 0 {
		return time.Millisecond
	}
	if d > maxSleep {
		return maxSleep
	}
	return d
}
