// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package walhook defines the write-ahead-log side channel the registry
// notifies of committed job-state transitions. The in-memory core never
// reads a WAL back (there is no crash recovery in scope); the hook exists
// so an operator can mirror the event stream somewhere durable without the
// registry's critical section knowing anything about where it goes.
package walhook

import (
	"context"
	"time"
)

// Event is one committed state transition, emitted after the registry has
// already applied it in memory. Fields other than those relevant to Kind
// are zero.
type Event struct {
	Kind      string // "put", "reserve", "release", "delete", "bury", "kick", "touch-extend", "timeout"
	JobID     uint64
	Tube      string
	Pri       uint32
	At        time.Time
	ConnID    uint64
	BodyBytes int
}

// Hook receives committed job events. Emit must not block the caller for
// long: the registry calls Emit while still holding its lock.
type Hook interface {
	Emit(ctx context.Context, ev Event)
}

// NoopHook discards every event. It is the default Hook.
type NoopHook struct{}

// Emit implements Hook.
func (NoopHook) Emit(context.Context, Event) {}
