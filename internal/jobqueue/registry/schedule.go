// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package registry

import (
	"time"

	"github.com/hemant/beanq/internal/jobqueue/waiter"
)

// NextWakeAt returns the earliest instant any scheduled event could fire:
// a delayed job's ready-at, a reservation's TTR deadline, a paused tube's
// lift instant, or a parked waiter's timeout/DEADLINE_SOON firing. It
// returns ok == false when nothing is pending.
func (r *Registry) NextWakeAt() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextWakeAtLocked()
}

func (r *Registry) nextWakeAtLocked() (time.Time, bool) {
	var earliest time.Time
	found := false
	consider := func(t time.Time) {
		if !found || t.Before(earliest) {
			earliest, found = t, true
		}
	}

	for _, t := range r.tubes {
		if j, ok := t.Delay.Peek(); ok {
			consider(j.ReadyAt)
		}
		if !t.PausedUntil.IsZero() {
			consider(t.PausedUntil)
		}
	}
	if j, ok := r.reservations.Peek(); ok {
		consider(j.DeadlineAt)
	}
	if w, ok := r.waiterClock.Peek(); ok {
		consider(w.FireAt)
	}
	return earliest, found
}

// Tick processes every event due as of the registry clock's current
// instant, looping until a full pass makes no further progress. Within one
// pass, delay promotions run before TTR expiries, before pause lifts,
// before waiter-timeout/DEADLINE_SOON firings, preferring to make work
// available over cancelling it.
func (r *Registry) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		now := r.now()
		progressed := r.promoteDelayedLocked(now)
		progressed = r.expireReservationsLocked(now) || progressed
		progressed = r.liftPausesLocked(now) || progressed
		progressed = r.fireWaitersLocked(now) || progressed
		if !progressed {
			return
		}
	}
}

// promoteDelayedLocked moves every job whose ready-at has arrived, in
// every tube, from delayed to ready.
func (r *Registry) promoteDelayedLocked(now time.Time) bool {
	progressed := false
	for _, t := range r.tubes {
		moved := false
		for {
			j, ok := t.Delay.Peek()
			if !ok || j.ReadyAt.After(now) {
				break
			}
			t.Delay.Pop()
			r.putReady(t, j)
			moved = true
			progressed = true
		}
		if moved {
			r.serviceWaiters(t)
		}
	}
	return progressed
}

// expireReservationsLocked requeues every reservation whose TTR deadline
// has passed, back to ready, incrementing timeouts (not releases).
func (r *Registry) expireReservationsLocked(now time.Time) bool {
	progressed := false
	affected := map[string]struct{}{}
	for {
		j, ok := r.reservations.Peek()
		if !ok || j.DeadlineAt.After(now) {
			break
		}
		r.reservations.Pop()

		if c, ok := r.conns[j.Reserver]; ok {
			delete(c.ReservedJobs, j.ID)
		}
		j.Reserver = 0
		j.Timeouts++
		j.DeadlineSoonSent = false
		r.stats.JobTimeouts++
		if r.metrics != nil {
			r.metrics.RecordTimeout()
		}

		t := r.getOrCreateTube(j.Tube)
		r.putReady(t, j)
		r.emit("timeout", j, 0)
		affected[j.Tube] = struct{}{}
		progressed = true
	}
	for name := range affected {
		r.serviceWaiters(r.tubes[name])
	}
	return progressed
}

// liftPausesLocked clears the pause window of every tube whose
// paused-until has arrived and services its waiters.
func (r *Registry) liftPausesLocked(now time.Time) bool {
	progressed := false
	for _, t := range r.tubes {
		if !t.PausedUntil.IsZero() && !t.PausedUntil.After(now) {
			t.Pause(now, 0)
			r.serviceWaiters(t)
			progressed = true
		}
	}
	return progressed
}

// fireWaitersLocked resolves every parked waiter whose FireAt has arrived
// with its precomputed outcome (TIMED_OUT or DEADLINE_SOON).
func (r *Registry) fireWaitersLocked(now time.Time) bool {
	progressed := false
	for {
		w, ok := r.waiterClock.Peek()
		if !ok || w.FireAt.After(now) {
			break
		}
		r.waiterClock.Pop()
		r.detachWaiterFromTubesLocked(w)
		delete(r.waitersByConn, w.ConnID)
		if c, ok := r.conns[w.ConnID]; ok {
			c.waiting = nil
			if w.FireOutcome == waiter.DeadlineSoon {
				r.markDeadlineSoonLocked(c, now)
			}
		}
		w.Resolve(waiter.Result{Outcome: w.FireOutcome})
		progressed = true
	}
	return progressed
}

// detachWaiterFromTubesLocked removes w from every tube FIFO it occupies,
// without touching the waiter-fire heap (the caller already popped it, or
// w was never armed).
func (r *Registry) detachWaiterFromTubesLocked(w *waiter.Waiter) {
	for _, name := range w.Tubes() {
		if t, ok := r.tubes[name]; ok {
			t.RemoveWaiter(w)
		}
	}
}

// markDeadlineSoonLocked flags every one of c's reserved jobs that has
// already crossed its DEADLINE_SOON safety instant, so it isn't reported
// again for the same reservation.
func (r *Registry) markDeadlineSoonLocked(c *Connection, now time.Time) {
	for jid := range c.ReservedJobs {
		j, ok := r.jobs[jid]
		if !ok || j.DeadlineSoonSent {
			continue
		}
		if !now.Before(j.DeadlineAt.Add(-time.Second)) {
			j.DeadlineSoonSent = true
		}
	}
}
