// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package waiter defines the representation of a connection blocked on
// reserve/reserve-with-timeout. A Waiter is shared
// between every tube it is enqueued on, so it carries its own back-links for
// O(1) removal from each of those tubes' FIFOs.
package waiter

import (
	"container/list"
	"time"

	"github.com/hemant/beanq/internal/base"
)

// Outcome classifies how a Waiter was resolved.
type Outcome int

const (
	// Awarded means a job was matched to the waiter.
	Awarded Outcome = iota
	// TimedOut means the waiter's deadline elapsed with no match.
	TimedOut
	// DeadlineSoon means the waiter was cancelled because one of the
	// connection's existing reservations is about to expire.
	DeadlineSoon
)

// Result is sent on a Waiter's channel exactly once.
type Result struct {
	Outcome Outcome
	JobID   base.JobID
}

// Waiter represents one connection suspended in reserve/reserve-with-timeout.
//
// FireAt/FireOutcome are computed once, at registration time, from the
// connection's reserve-with-timeout deadline (if any) and the earliest
// DEADLINE_SOON safety instant among the connection's already-reserved jobs
// (if any) - whichever is sooner. This is safe to freeze at registration
// because the protocol processes each connection's commands strictly in
// order: a connection blocked in reserve cannot concurrently
// touch/release/delete a reservation and change its deadline out from under
// the waiter.
type Waiter struct {
	ConnID uint64

	// HasFireAt is false for a plain `reserve` with no existing reservations
	// approaching DEADLINE_SOON: such a waiter only resolves via a match or
	// connection close.
	HasFireAt   bool
	FireAt      time.Time
	FireOutcome Outcome

	// Result receives exactly one Result. It is buffered so the resolver
	// never blocks on a slow/gone reader.
	Result chan Result

	// elems holds this waiter's *list.Element in every tube it is currently
	// enqueued on, keyed by tube name, so the registry can detach it (via
	// Tubes and ElemIn) in O(watched tubes) instead of a linear scan per tube.
	elems map[string]*list.Element

	// heapIndex backs the scheduler's global timeout/deadline-soon index.
	heapIndex int
}

// New returns a Waiter for connID. If hasFireAt is false the waiter never
// resolves on its own; it only resolves via a match or the connection
// closing.
func New(connID uint64, hasFireAt bool, fireAt time.Time, outcome Outcome) *Waiter {
	return &Waiter{
		ConnID:      connID,
		HasFireAt:   hasFireAt,
		FireAt:      fireAt,
		FireOutcome: outcome,
		Result:      make(chan Result, 1),
		elems:       make(map[string]*list.Element),
	}
}

// HeapIndex implements prioqueue.Item.
func (w *Waiter) HeapIndex() int { return w.heapIndex }

// SetHeapIndex implements prioqueue.Item.
func (w *Waiter) SetHeapIndex(i int) { w.heapIndex = i }

// Enqueue records e as this waiter's slot in tube's FIFO.
func (w *Waiter) Enqueue(tube string, e *list.Element) { w.elems[tube] = e }

// ElemIn returns this waiter's slot in tube's FIFO, if enqueued there.
func (w *Waiter) ElemIn(tube string) (*list.Element, bool) {
	e, ok := w.elems[tube]
	return e, ok
}

// Forget drops the recorded slot for tube once the caller has removed it
// from that tube's list.
func (w *Waiter) Forget(tube string) { delete(w.elems, tube) }

// Tubes returns the names of every tube this waiter is currently enqueued
// on.
func (w *Waiter) Tubes() []string {
	tubes := make([]string, 0, len(w.elems))
	for t := range w.elems {
		tubes = append(tubes, t)
	}
	return tubes
}

// Resolve sends res on the waiter's channel. It must be called at most once.
func (w *Waiter) Resolve(res Result) {
	w.Result <- res
}
