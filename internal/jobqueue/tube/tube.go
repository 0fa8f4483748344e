// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package tube implements the per-tube job store: the priority-ordered
// ready heap, the time-ordered delay heap, the FIFO buried list, the pause
// window, and the FIFO waiter queue.
package tube

import (
	"container/list"
	"time"

	"github.com/hemant/beanq/internal/jobqueue/job"
	"github.com/hemant/beanq/internal/jobqueue/prioqueue"
	"github.com/hemant/beanq/internal/jobqueue/waiter"
)

// urgentThreshold is the priority below which a ready job counts towards
// "current-jobs-urgent" in stats (matching the reference protocol).
const urgentThreshold = 1024

// Stats holds the cumulative, non-derivable counters a Tube tracks. The
// instantaneous counts (ready/delayed/reserved/buried/using/watching/
// waiting) are always read live from the containers below instead of being
// tracked redundantly.
type Stats struct {
	TotalJobs    uint64
	CmdDelete    uint64
	CmdPauseTube uint64
	PauseSeconds uint64 // cumulative seconds requested by pause-tube commands
}

// Tube owns one named queue's job containers, pause state, and waiter FIFO.
//
// Tube is not safe for concurrent use on its own; callers (the registry)
// must serialize access.
type Tube struct {
	Name string

	Ready  *prioqueue.Heap[*job.Job]
	Delay  *prioqueue.Heap[*job.Job]
	Buried *list.List // of *job.Job

	// Waiters is the FIFO of connections blocked on reserve that have this
	// tube watched. Entries are *waiter.Waiter.
	Waiters *list.List

	PausedUntil time.Time // zero value means "not paused"

	UsingCount    int // connections with this tube as their used tube
	WatchingCount int // connections with this tube in their watch list

	Stats Stats
}

// New returns an empty Tube named name.
func New(name string) *Tube {
	return &Tube{
		Name:    name,
		Ready:   prioqueue.New(readyLess),
		Delay:   prioqueue.New(delayLess),
		Buried:  list.New(),
		Waiters: list.New(),
	}
}

func readyLess(a, b *job.Job) bool {
	if a.Pri != b.Pri {
		return a.Pri < b.Pri
	}
	return a.ID < b.ID
}

func delayLess(a, b *job.Job) bool {
	if !a.ReadyAt.Equal(b.ReadyAt) {
		return a.ReadyAt.Before(b.ReadyAt)
	}
	return a.ID < b.ID
}

// IsPaused reports whether the tube is currently paused as of now.
func (t *Tube) IsPaused(now time.Time) bool {
	return !t.PausedUntil.IsZero() && t.PausedUntil.After(now)
}

// Pause sets the tube's pause window. seconds == 0 clears any existing
// pause. cmd-pause-tube is incremented by the caller (Registry.PauseTube),
// since it must increment even when the tube didn't exist and had to be
// created.
func (t *Tube) Pause(now time.Time, seconds uint32) {
	if seconds == 0 {
		t.PausedUntil = time.Time{}
		return
	}
	t.PausedUntil = now.Add(time.Duration(seconds) * time.Second)
}

// PutReady inserts j into the ready heap.
func (t *Tube) PutReady(j *job.Job) { t.Ready.Push(j) }

// TakeReady removes j from the ready heap.
func (t *Tube) TakeReady(j *job.Job) { t.Ready.Remove(j) }

// PutDelayed inserts j into the delay heap.
func (t *Tube) PutDelayed(j *job.Job) { t.Delay.Push(j) }

// TakeDelayed removes j from the delay heap.
func (t *Tube) TakeDelayed(j *job.Job) { t.Delay.Remove(j) }

// PutBuried appends j to the buried FIFO, recording its list element on the
// job for O(1) removal later.
func (t *Tube) PutBuried(j *job.Job) {
	e := t.Buried.PushBack(j)
	j.SetBuriedElem(e)
}

// TakeBuried removes j from the buried FIFO.
func (t *Tube) TakeBuried(j *job.Job) {
	if e := j.BuriedElem(); e != nil {
		t.Buried.Remove(e)
		j.SetBuriedElem(nil)
	}
}

// PeekBuriedFront returns the job at the head of the buried FIFO.
func (t *Tube) PeekBuriedFront() (*job.Job, bool) {
	e := t.Buried.Front()
	if e == nil {
		return nil, false
	}
	return e.Value.(*job.Job), true
}

// EnqueueWaiter appends w to this tube's waiter FIFO.
func (t *Tube) EnqueueWaiter(w *waiter.Waiter) {
	e := t.Waiters.PushBack(w)
	w.Enqueue(t.Name, e)
}

// RemoveWaiter removes w from this tube's waiter FIFO, if present.
func (t *Tube) RemoveWaiter(w *waiter.Waiter) {
	if e, ok := w.ElemIn(t.Name); ok {
		t.Waiters.Remove(e)
		w.Forget(t.Name)
	}
}

// FrontWaiter returns the waiter at the head of this tube's FIFO.
func (t *Tube) FrontWaiter() (*waiter.Waiter, bool) {
	e := t.Waiters.Front()
	if e == nil {
		return nil, false
	}
	return e.Value.(*waiter.Waiter), true
}

// JobCount returns the number of jobs currently held across all three
// containers.
func (t *Tube) JobCount() int {
	return t.Ready.Len() + t.Delay.Len() + t.Buried.Len()
}

// Refcount is (jobs in any container) + (connections using) + (connections
// watching). A tube with Refcount() == 0 (and name != "default") is
// eligible for garbage collection.
func (t *Tube) Refcount() int {
	return t.JobCount() + t.UsingCount + t.WatchingCount
}

// UrgentCount returns the number of ready jobs with priority below
// urgentThreshold.
func (t *Tube) UrgentCount() int {
	n := 0
	for _, j := range t.Ready.Items() {
		if j.Pri < urgentThreshold {
			n++
		}
	}
	return n
}
