// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package registry

import (
	"time"

	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/jobqueue/job"
	"github.com/hemant/beanq/internal/jobqueue/tube"
	"github.com/hemant/beanq/internal/jobqueue/waiter"
)

// ReserveKind distinguishes an immediately-resolved reserve from one that
// parked the connection as a waiter.
type ReserveKind int

const (
	// ReserveImmediate means the call resolved without blocking: Outcome
	// and (if Awarded) Job are set.
	ReserveImmediate ReserveKind = iota
	// ReserveWaiting means the connection was enqueued as a waiter; the
	// caller must select on Waiter.Result for the eventual outcome.
	ReserveWaiting
)

// ReserveResult is the outcome of a call to Reserve.
type ReserveResult struct {
	Kind    ReserveKind
	Outcome waiter.Outcome
	Job     *job.Job
	Waiter  *waiter.Waiter
}

// Reserve implements the cross-tube reserve-matching algorithm for connID,
// with an optional reserve-with-timeout deadline. It
// never blocks: when no job and no immediate DEADLINE_SOON/TIMED_OUT
// applies, it registers a waiter and returns it for the caller to await.
func (r *Registry) Reserve(connID uint64, hasTimeout bool, timeout time.Duration) ReserveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.conns[connID]
	now := r.now()
	if hasTimeout {
		r.stats.CmdReserveWithTimeout++
	} else {
		r.stats.CmdReserve++
	}

	if j, t, ok := r.matchBestLocked(c, now); ok {
		t.TakeReady(j)
		r.awardJobLocked(j, connID, now)
		return ReserveResult{Kind: ReserveImmediate, Outcome: waiter.Awarded, Job: j}
	}

	if jid, ok := r.deadlineSoonCandidateLocked(c, now); ok {
		r.jobs[jid].DeadlineSoonSent = true
		return ReserveResult{Kind: ReserveImmediate, Outcome: waiter.DeadlineSoon}
	}

	if hasTimeout && timeout <= 0 {
		return ReserveResult{Kind: ReserveImmediate, Outcome: waiter.TimedOut}
	}

	hasFireAt := false
	var fireAt time.Time
	var outcome waiter.Outcome
	if hasTimeout {
		fireAt, outcome, hasFireAt = now.Add(timeout), waiter.TimedOut, true
	}
	if safetyAt, ok := r.earliestSafetyLocked(c); ok && (!hasFireAt || safetyAt.Before(fireAt)) {
		fireAt, outcome, hasFireAt = safetyAt, waiter.DeadlineSoon, true
	}

	w := waiter.New(connID, hasFireAt, fireAt, outcome)
	c.waiting = w
	r.waitersByConn[connID] = w
	for name := range c.Watched {
		r.getOrCreateTube(name).EnqueueWaiter(w)
	}
	if hasFireAt {
		r.waiterClock.Push(w)
		r.signalWake()
	}
	return ReserveResult{Kind: ReserveWaiting, Waiter: w}
}

// CancelReserve abandons connID's parked waiter (e.g. a half-closed
// receive side), resolving it with TIMED_OUT. It is a no-op if connID is
// not currently waiting.
func (r *Registry) CancelReserve(connID uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.waitersByConn[connID]
	if !ok {
		return
	}
	r.removeWaiterLocked(w)
	w.Resolve(waiter.Result{Outcome: waiter.TimedOut})
}

// awardJobLocked transitions j (already removed from its tube's ready
// heap) to reserved by connID.
func (r *Registry) awardJobLocked(j *job.Job, connID uint64, now time.Time) {
	j.State = base.JobReserved
	j.Reserver = connID
	j.DeadlineAt = now.Add(j.TTR)
	j.DeadlineSoonSent = false
	j.Reserves++
	r.reservations.Push(j)

	c := r.conns[connID]
	c.ReservedJobs[j.ID] = struct{}{}
	if !c.hasConsumed {
		c.hasConsumed = true
		r.stats.CurrentWorkers++
	}

	r.emit("reserve", j, connID)
	if r.metrics != nil {
		r.metrics.RecordReserve()
	}
}

// betterReady reports whether a sorts before b under the ready-selection
// key (pri, id).
func betterReady(a, b *job.Job) bool {
	if a.Pri != b.Pri {
		return a.Pri < b.Pri
	}
	return a.ID < b.ID
}

// matchBestLocked returns the minimum-(pri,id) ready job across every tube
// c watches that is not currently paused.
func (r *Registry) matchBestLocked(c *Connection, now time.Time) (*job.Job, *tube.Tube, bool) {
	var bestJob *job.Job
	var bestTube *tube.Tube
	for name := range c.Watched {
		t, ok := r.tubes[name]
		if !ok || t.IsPaused(now) {
			continue
		}
		top, ok := t.Ready.Peek()
		if !ok {
			continue
		}
		if bestJob == nil || betterReady(top, bestJob) {
			bestJob, bestTube = top, t
		}
	}
	return bestJob, bestTube, bestJob != nil
}

// deadlineSoonCandidateLocked returns a reserved job of c's that has
// already crossed its DEADLINE_SOON safety instant and not yet been
// reported, if any.
func (r *Registry) deadlineSoonCandidateLocked(c *Connection, now time.Time) (base.JobID, bool) {
	for jid := range c.ReservedJobs {
		j, ok := r.jobs[jid]
		if !ok || j.DeadlineSoonSent {
			continue
		}
		if !now.Before(j.DeadlineAt.Add(-time.Second)) {
			return jid, true
		}
	}
	return 0, false
}

// earliestSafetyLocked returns the soonest DEADLINE_SOON safety instant
// among c's reserved jobs that haven't already been reported.
func (r *Registry) earliestSafetyLocked(c *Connection) (time.Time, bool) {
	var earliest time.Time
	found := false
	for jid := range c.ReservedJobs {
		j, ok := r.jobs[jid]
		if !ok || j.DeadlineSoonSent {
			continue
		}
		safety := j.DeadlineAt.Add(-time.Second)
		if !found || safety.Before(earliest) {
			earliest, found = safety, true
		}
	}
	return earliest, found
}

// serviceWaiters awards ready jobs in t to t's waiters in FIFO order,
// stopping when t runs out of ready jobs or t's waiter list empties. A
// serviced waiter performs the full cross-tube selection, so it may
// actually be awarded a job from a different tube than t.
func (r *Registry) serviceWaiters(t *tube.Tube) {
	if t == nil {
		return
	}
	now := r.now()
	for t.Ready.Len() > 0 {
		w, ok := t.FrontWaiter()
		if !ok {
			break
		}
		c, ok := r.conns[w.ConnID]
		if !ok {
			r.removeWaiterLocked(w)
			continue
		}
		j, bt, ok := r.matchBestLocked(c, now)
		if !ok {
			break
		}
		bt.TakeReady(j)
		r.removeWaiterLocked(w)
		r.awardJobLocked(j, w.ConnID, now)
		w.Resolve(waiter.Result{Outcome: waiter.Awarded, JobID: j.ID})
	}
}

// removeWaiterLocked detaches w from every tube FIFO it occupies, the
// waiter-fire heap (if armed), and the connection's parked-waiter slot. It
// does not resolve w; callers do that themselves with the outcome that
// applies.
func (r *Registry) removeWaiterLocked(w *waiter.Waiter) {
	for _, name := range w.Tubes() {
		if t, ok := r.tubes[name]; ok {
			t.RemoveWaiter(w)
		}
	}
	if w.HasFireAt {
		r.waiterClock.Remove(w)
	}
	delete(r.waitersByConn, w.ConnID)
	if c, ok := r.conns[w.ConnID]; ok {
		c.waiting = nil
	}
}
