// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package registry

import (
	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/errors"
	"github.com/hemant/beanq/internal/jobqueue/job"
	"github.com/hemant/beanq/internal/jobqueue/tube"
)

// Peek looks a job up by id, ignoring the caller's used tube.
func (r *Registry) Peek(id base.JobID) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.CmdPeek++
	j, ok := r.jobs[id]
	if !ok {
		return nil, errors.E(errors.NotFound, "no such job")
	}
	return j, nil
}

// PeekReady returns the head of connID's used tube's ready heap.
func (r *Registry) PeekReady(connID uint64) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CmdPeekReady++
	t := r.getOrCreateTube(r.conns[connID].UsedTube)
	defer r.gcIfEmpty(t)
	j, ok := t.Ready.Peek()
	if !ok {
		return nil, errors.E(errors.NotFound, "no ready jobs")
	}
	return j, nil
}

// PeekDelayed returns the soonest-ready job of connID's used tube's delay
// heap.
func (r *Registry) PeekDelayed(connID uint64) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CmdPeekDelayed++
	t := r.getOrCreateTube(r.conns[connID].UsedTube)
	defer r.gcIfEmpty(t)
	j, ok := t.Delay.Peek()
	if !ok {
		return nil, errors.E(errors.NotFound, "no delayed jobs")
	}
	return j, nil
}

// PeekBuried returns the head of connID's used tube's buried FIFO.
func (r *Registry) PeekBuried(connID uint64) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CmdPeekBuried++
	t := r.getOrCreateTube(r.conns[connID].UsedTube)
	defer r.gcIfEmpty(t)
	j, ok := t.PeekBuriedFront()
	if !ok {
		return nil, errors.E(errors.NotFound, "no buried jobs")
	}
	return j, nil
}

// Kick moves up to bound jobs from buried (if non-empty) or else delayed
// back to ready, in FIFO / ready-at order respectively.
func (r *Registry) Kick(tubeName string, bound int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.getOrCreateTube(tubeName)
	defer r.gcIfEmpty(t)
	r.stats.CmdKick++

	n := 0
	if t.Buried.Len() > 0 {
		for n < bound {
			j, ok := t.PeekBuriedFront()
			if !ok {
				break
			}
			t.TakeBuried(j)
			r.kickOne(t, j)
			n++
		}
	} else {
		for n < bound {
			j, ok := t.Delay.Peek()
			if !ok {
				break
			}
			t.TakeDelayed(j)
			r.kickOne(t, j)
			n++
		}
	}
	if n > 0 {
		r.serviceWaiters(t)
	}
	return n, nil
}

// KickJob kicks a single job, identified by id, out of buried or delayed
// state back to ready.
func (r *Registry) KickJob(id base.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return errors.E(errors.NotFound, "no such job")
	}
	t := r.getOrCreateTube(j.Tube)
	switch j.State {
	case base.JobBuried:
		t.TakeBuried(j)
	case base.JobDelayed:
		t.TakeDelayed(j)
	default:
		return errors.E(errors.NotFound, "job is not buried or delayed")
	}
	r.kickOne(t, j)
	r.serviceWaiters(t)
	r.stats.CmdKickJob++
	return nil
}

// StatsJob returns the job identified by id for the stats package to
// project into a stats-job body.
func (r *Registry) StatsJob(id base.JobID) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CmdStatsJob++
	j, ok := r.jobs[id]
	if !ok {
		return nil, errors.E(errors.NotFound, "no such job")
	}
	return j, nil
}

// Stats returns a snapshot of process-wide cumulative and instantaneous
// counters for the stats command.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.CmdStats++
	s := r.stats
	s.CurrentTubes = len(r.tubes)
	s.CurrentWaiting = len(r.waitersByConn)
	s.CurrentJobsReserved = r.reservations.Len()
	for _, t := range r.tubes {
		s.CurrentJobsReady += t.Ready.Len()
		s.CurrentJobsDelayed += t.Delay.Len()
		s.CurrentJobsBuried += t.Buried.Len()
		s.CurrentJobsUrgent += t.UrgentCount()
	}
	return s
}

// ReservedCountInTube returns the number of currently-reserved jobs whose
// tube is name, for the stats-tube response's current-jobs-reserved field.
func (r *Registry) ReservedCountInTube(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.reservations.Items() {
		if j.Tube == name {
			n++
		}
	}
	return n
}

// kickOne moves j (already removed from its buried/delayed container) to
// t's ready heap, bumping its kick counter and emitting the WAL event.
func (r *Registry) kickOne(t *tube.Tube, j *job.Job) {
	j.Kicks++
	r.putReady(t, j)
	r.emit("kick", j, 0)
	if r.metrics != nil {
		r.metrics.RecordKick()
	}
}
