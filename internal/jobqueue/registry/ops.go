// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package registry

import (
	"time"

	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/errors"
	"github.com/hemant/beanq/internal/jobqueue/job"
)

// Put creates a new job in the connection's used tube. ttr
// below 1 second is coerced up to 1 second, matching the reference
// server's floor. The returned state is either JobReady, JobDelayed, or
// JobBuried (the OUT_OF_MEMORY_WHILE_QUEUEING fallback).
func (r *Registry) Put(connID uint64, tubeName string, pri uint32, delay, ttr time.Duration, body []byte) (base.JobState, base.JobID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.draining {
		return base.JobUnknown, 0, errors.E(errors.Draining, "server is draining")
	}
	if len(body) > r.maxJobSize {
		return base.JobUnknown, 0, errors.Ef(errors.JobTooBig, "body of %d bytes exceeds max-job-size %d", len(body), r.maxJobSize)
	}
	if ttr < time.Second {
		ttr = time.Second
	}

	now := r.now()
	t := r.getOrCreateTube(tubeName)
	c := r.conns[connID]
	if c != nil && !c.hasProduced {
		c.hasProduced = true
		r.stats.CurrentProducers++
	}

	j := &job.Job{
		ID:        r.ids.Next(),
		Tube:      tubeName,
		Pri:       pri,
		Body:      body,
		CreatedAt: now,
		Delay:     delay,
		TTR:       ttr,
	}
	r.jobs[j.ID] = j

	pauseRemain := time.Duration(0)
	if t.IsPaused(now) {
		pauseRemain = t.PausedUntil.Sub(now)
	}
	effectiveDelay := delay
	if pauseRemain > effectiveDelay {
		effectiveDelay = pauseRemain
	}

	buried := false
	if effectiveDelay > 0 {
		j.State = base.JobDelayed
		j.ReadyAt = now.Add(effectiveDelay)
		t.PutDelayed(j)
	} else {
		buried = !r.putReady(t, j)
	}

	t.Stats.TotalJobs++
	r.stats.TotalJobs++
	r.stats.CmdPut++
	r.emit("put", j, connID)
	if r.metrics != nil {
		r.metrics.RecordPut()
	}

	if j.State == base.JobReady {
		r.serviceWaiters(t)
	}
	if buried {
		return base.JobBuried, j.ID, nil
	}
	return j.State, j.ID, nil
}

// ReserveJob atomically transitions a ready, delayed, or buried job to
// reserved by connID. It never blocks.
func (r *Registry) ReserveJob(connID uint64, id base.JobID) (*job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return nil, errors.E(errors.NotFound, "no such job")
	}
	switch j.State {
	case base.JobReady:
		r.getOrCreateTube(j.Tube).TakeReady(j)
	case base.JobDelayed:
		r.getOrCreateTube(j.Tube).TakeDelayed(j)
	case base.JobBuried:
		r.getOrCreateTube(j.Tube).TakeBuried(j)
	default:
		return nil, errors.E(errors.NotFound, "job is not reservable")
	}

	now := r.now()
	r.awardJobLocked(j, connID, now)
	r.stats.CmdReserveJob++
	return j, nil
}

// Release requeues a job reserved by connID back to ready (delay == 0) or
// delayed (delay > 0), updating its priority.
func (r *Registry) Release(connID uint64, id base.JobID, pri uint32, delay time.Duration) (buried bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.State != base.JobReserved || j.Reserver != connID {
		return false, errors.E(errors.NotFound, "job not reserved by this connection")
	}

	c := r.conns[connID]
	delete(c.ReservedJobs, id)
	r.reservations.Remove(j)

	j.Pri = pri
	j.Releases++
	j.Reserver = 0

	t := r.getOrCreateTube(j.Tube)
	now := r.now()
	if delay > 0 {
		j.State = base.JobDelayed
		j.ReadyAt = now.Add(delay)
		t.PutDelayed(j)
	} else {
		buried = !r.putReady(t, j)
	}

	r.stats.CmdRelease++
	r.emit("release", j, connID)
	if r.metrics != nil {
		r.metrics.RecordRelease()
	}
	if j.State == base.JobReady {
		r.serviceWaiters(t)
	}
	return buried, nil
}

// Delete removes a job entirely. Reserved jobs may only be deleted by
// their reserver; ready, delayed, and buried jobs may be deleted by any
// connection.
func (r *Registry) Delete(connID uint64, id base.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return errors.E(errors.NotFound, "no such job")
	}

	t := r.getOrCreateTube(j.Tube)
	switch j.State {
	case base.JobReserved:
		if j.Reserver != connID {
			return errors.E(errors.NotFound, "job reserved by another connection")
		}
		r.reservations.Remove(j)
		if c := r.conns[connID]; c != nil {
			delete(c.ReservedJobs, id)
		}
	case base.JobReady:
		t.TakeReady(j)
	case base.JobDelayed:
		t.TakeDelayed(j)
	case base.JobBuried:
		t.TakeBuried(j)
	}

	delete(r.jobs, id)
	t.Stats.CmdDelete++
	r.stats.CmdDelete++
	r.emit("delete", j, connID)
	if r.metrics != nil {
		r.metrics.RecordDelete(j.Age(r.now()).Seconds())
	}
	r.gcIfEmpty(t)
	return nil
}

// Bury transitions a job reserved by connID to buried, updating its
// priority.
func (r *Registry) Bury(connID uint64, id base.JobID, pri uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.State != base.JobReserved || j.Reserver != connID {
		return errors.E(errors.NotFound, "job not reserved by this connection")
	}

	c := r.conns[connID]
	delete(c.ReservedJobs, id)
	r.reservations.Remove(j)

	j.Pri = pri
	j.Reserver = 0
	j.State = base.JobBuried
	j.Buries++
	t := r.getOrCreateTube(j.Tube)
	t.PutBuried(j)

	r.stats.CmdBury++
	r.emit("bury", j, connID)
	if r.metrics != nil {
		r.metrics.RecordBury()
	}
	return nil
}

// Touch extends a reservation held by connID by its job's full TTR,
// resetting the DEADLINE_SOON-sent flag.
func (r *Registry) Touch(connID uint64, id base.JobID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok || j.State != base.JobReserved || j.Reserver != connID {
		return errors.E(errors.NotFound, "job not reserved by this connection")
	}

	j.DeadlineAt = r.now().Add(j.TTR)
	j.DeadlineSoonSent = false
	r.reservations.Fix(j)

	r.stats.CmdTouch++
	r.emit("touch-extend", j, connID)
	if r.metrics != nil {
		r.metrics.RecordTouch()
	}
	return nil
}
