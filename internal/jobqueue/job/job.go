// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package job defines the Job record, its id allocator, and its per-job
// mutable state and counters.
package job

import (
	"container/list"
	"sync/atomic"
	"time"

	"github.com/hemant/beanq/internal/base"
)

// Job is the in-memory representation of a single job. A Job is owned
// exclusively by the registry; tubes and connections refer to it only by
// ID.
type Job struct {
	ID        base.JobID
	Tube      string
	Pri       uint32
	Body      []byte
	CreatedAt time.Time
	State     base.JobState

	Delay time.Duration
	TTR   time.Duration

	// ReadyAt is meaningful only while State == JobDelayed.
	ReadyAt time.Time
	// DeadlineAt is meaningful only while State == JobReserved.
	DeadlineAt time.Time
	// Reserver is the connection id holding the reservation, or 0 when
	// State != JobReserved.
	Reserver uint64

	// DeadlineSoonSent records whether DEADLINE_SOON has already been
	// emitted for the current reservation; it must happen at most once per
	// reservation.
	DeadlineSoonSent bool

	Reserves uint64
	Timeouts uint64
	Releases uint64
	Buries   uint64
	Kicks    uint64

	// BinlogFile is a WAL-file hint; always 0 since this implementation has
	// no write-ahead log, reported for wire compatibility only.
	BinlogFile uint32

	// buriedElem is this job's node in its tube's buried FIFO list, non-nil
	// only while State == JobBuried.
	buriedElem *list.Element

	// heapIndex is this job's slot in whichever of its tube's ready/delay
	// heaps currently holds it. See prioqueue.Item.
	heapIndex int
}

// HeapIndex implements prioqueue.Item.
func (j *Job) HeapIndex() int { return j.heapIndex }

// SetHeapIndex implements prioqueue.Item.
func (j *Job) SetHeapIndex(i int) { j.heapIndex = i }

// BuriedElem returns this job's node in the buried FIFO list.
func (j *Job) BuriedElem() *list.Element { return j.buriedElem }

// SetBuriedElem records this job's node in the buried FIFO list.
func (j *Job) SetBuriedElem(e *list.Element) { j.buriedElem = e }

// Age returns how long ago the job was created, relative to now.
func (j *Job) Age(now time.Time) time.Duration { return now.Sub(j.CreatedAt) }

// IDAllocator hands out unique, monotonically increasing job ids.
//
// IDAllocator is safe for concurrent use, though in practice the registry
// always calls Next while already holding its own lock.
type IDAllocator struct {
	next uint64
}

// Next returns the next job id. IDs start at 1; 0 is reserved to mean "no
// job"/"no reserver".
func (a *IDAllocator) Next() base.JobID {
	return base.JobID(atomic.AddUint64(&a.next, 1))
}
