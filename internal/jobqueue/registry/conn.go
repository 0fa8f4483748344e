// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package registry

import (
	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/jobqueue/waiter"
)

// NewConnection registers a new connection with id, starting it out using
// and watching only the default tube.
func (r *Registry) NewConnection(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := &Connection{
		ID:           id,
		UsedTube:     base.DefaultTube,
		Watched:      map[string]bool{base.DefaultTube: true},
		ReservedJobs: make(map[base.JobID]struct{}),
	}
	r.conns[id] = c
	r.stats.TotalConnections++
	r.stats.CurrentConnections++

	dt := r.tubes[base.DefaultTube]
	dt.UsingCount++
	dt.WatchingCount++
}

// CloseConnection tears down connection id: cancels any parked waiter,
// releases every job it held reserved (respecting the owning tube's pause
// window), and drops its tube refcounts.
func (r *Registry) CloseConnection(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return
	}

	if w, parked := r.waitersByConn[id]; parked {
		r.removeWaiterLocked(w)
		w.Resolve(waiter.Result{Outcome: waiter.TimedOut})
	}

	now := r.now()
	affected := map[string]struct{}{}
	for jid := range c.ReservedJobs {
		j, ok := r.jobs[jid]
		if !ok || j.Reserver != id {
			continue
		}
		r.reservations.Remove(j)
		j.Reserver = 0
		j.Releases++
		j.DeadlineSoonSent = false

		t := r.getOrCreateTube(j.Tube)
		if t.IsPaused(now) {
			j.State = base.JobDelayed
			j.ReadyAt = t.PausedUntil
			t.PutDelayed(j)
		} else {
			r.putReady(t, j)
		}
		r.emit("release", j, id)
		affected[j.Tube] = struct{}{}
	}
	for name := range affected {
		r.serviceWaiters(r.tubes[name])
	}

	for name := range c.Watched {
		if t, ok := r.tubes[name]; ok {
			t.WatchingCount--
			r.gcIfEmpty(t)
		}
	}
	if t, ok := r.tubes[c.UsedTube]; ok {
		t.UsingCount--
		r.gcIfEmpty(t)
	}

	delete(r.conns, id)
	delete(r.waitersByConn, id)
	r.stats.CurrentConnections--
	if c.hasProduced {
		r.stats.CurrentProducers--
	}
	if c.hasConsumed {
		r.stats.CurrentWorkers--
	}
}
