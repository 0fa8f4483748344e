// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package timeutil provides a Clock abstraction so the scheduler and
// reservation leases can be driven by a fake clock in tests instead of
// wall-clock time.
package timeutil

import "time"

// Clock returns the current time. It exists so tests can substitute a
// deterministic fake without threading time.Time everywhere by hand.
type Clock interface {
	Now() time.Time
}

// realClock is the production Clock backed by time.Now.
type realClock struct{}

// NewRealClock returns a Clock backed by the system clock.
func NewRealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

// SimulatedClock is a Clock whose value is only advanced explicitly. It is
// used by tests that exercise the scheduler's tick loop and reservation
// expiry without sleeping.
type SimulatedClock struct {
	t time.Time
}

// NewSimulatedClock returns a SimulatedClock set to t.
func NewSimulatedClock(t time.Time) *SimulatedClock {
	return &SimulatedClock{t: t}
}

func (c *SimulatedClock) Now() time.Time { return c.t }

// Set moves the clock to t directly.
func (c *SimulatedClock) Set(t time.Time) { c.t = t }

// AdvanceTime moves the clock forward by d.
func (c *SimulatedClock) AdvanceTime(d time.Duration) { c.t = c.t.Add(d) }
