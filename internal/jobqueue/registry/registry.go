// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package registry is the global job-queue core: the
// job-id and tube-name tables, the cross-tube reserve-matching algorithm,
// and every operation a connection or the scheduler performs against the
// shared in-memory model. Registry holds a single mutex: every exported
// method runs its body as one atomic critical section, so a command
// dispatch or scheduler event always sees a consistent snapshot.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/jobqueue/job"
	"github.com/hemant/beanq/internal/jobqueue/prioqueue"
	"github.com/hemant/beanq/internal/jobqueue/tube"
	"github.com/hemant/beanq/internal/jobqueue/waiter"
	"github.com/hemant/beanq/internal/log"
	"github.com/hemant/beanq/internal/metrics"
	"github.com/hemant/beanq/internal/timeutil"
	"github.com/hemant/beanq/internal/walhook"
)

// Connection is the registry's view of one client connection: the tubes it
// references and the jobs it currently holds. The conn package owns the
// byte-stream side of a connection and refers to it only by id; Connection
// is mutated exclusively under Registry's lock.
type Connection struct {
	ID           uint64
	UsedTube     string
	Watched      map[string]bool
	ReservedJobs map[base.JobID]struct{}

	hasProduced bool
	hasConsumed bool

	waiting *waiter.Waiter // non-nil while parked in reserve/reserve-with-timeout
}

// Stats is a point-in-time snapshot of process-wide cumulative and
// instantaneous counters, consumed by the stats package to build the
// `stats` command's YAML body.
type Stats struct {
	CurrentJobsUrgent     int
	CurrentJobsReady      int
	CurrentJobsReserved   int
	CurrentJobsDelayed    int
	CurrentJobsBuried     int
	CmdPut                uint64
	CmdPeek               uint64
	CmdPeekReady          uint64
	CmdPeekDelayed        uint64
	CmdPeekBuried         uint64
	CmdReserve            uint64
	CmdReserveWithTimeout uint64
	CmdReserveJob         uint64
	CmdDelete             uint64
	CmdRelease            uint64
	CmdBury               uint64
	CmdKick               uint64
	CmdKickJob            uint64
	CmdTouch              uint64
	CmdStats              uint64
	CmdStatsJob           uint64
	CmdStatsTube          uint64
	CmdListTubes          uint64
	CmdListTubeUsed       uint64
	CmdListTubesWatched   uint64
	CmdPauseTube          uint64
	CmdUse                uint64
	CmdWatch              uint64
	CmdIgnore             uint64
	JobTimeouts           uint64
	TotalJobs             uint64
	CurrentTubes          int
	CurrentConnections    int
	CurrentProducers      int
	CurrentWorkers        int
	CurrentWaiting        int
	TotalConnections      uint64
	MaxJobSize            int
}

// Registry owns every tube and job in the server. The zero value is not
// usable; construct with New.
type Registry struct {
	mu sync.Mutex

	clock      timeutil.Clock
	maxJobSize int
	draining   bool

	jobs  map[base.JobID]*job.Job
	tubes map[string]*tube.Tube
	conns map[uint64]*Connection
	ids   job.IDAllocator

	// reservations indexes every reserved job by deadline-at, across all
	// tubes and connections, so the scheduler can find the next TTR
	// expiry without scanning every job.
	reservations *prioqueue.Heap[*job.Job]

	// waiterClock indexes every parked waiter that has a finite FireAt, so
	// the scheduler can find the next TIMED_OUT/DEADLINE_SOON firing
	// without scanning every connection.
	waiterClock   *prioqueue.Heap[*waiter.Waiter]
	waitersByConn map[uint64]*waiter.Waiter

	stats Stats

	wal     walhook.Hook
	metrics *metrics.Collector
	logger  *log.Logger

	// wake signals the scheduler to re-read NextWakeAt immediately, for when
	// Reserve parks a waiter whose FireAt is sooner than the scheduler's
	// current sleep. Buffered 1 and drained non-blocking, so it coalesces
	// any number of wakeups between scheduler ticks into one.
	wake chan struct{}

	// simulateOOM, when true, makes the next ready-heap insert behave as if
	// allocation failed,
	// burying the job instead. It is consumed (reset to false) on use, so
	// tests can deterministically exercise the fallback path.
	simulateOOM bool
}

func reservationLess(a, b *job.Job) bool {
	if !a.DeadlineAt.Equal(b.DeadlineAt) {
		return a.DeadlineAt.Before(b.DeadlineAt)
	}
	return a.ID < b.ID
}

func waiterLess(a, b *waiter.Waiter) bool {
	return a.FireAt.Before(b.FireAt)
}

// New returns an empty Registry. clock supplies the notion of "now" for
// every operation, so tests can substitute a timeutil.SimulatedClock. wal
// and mc may be nil, in which case events are discarded and no metrics are
// recorded.
func New(clock timeutil.Clock, maxJobSize int, wal walhook.Hook, mc *metrics.Collector, logger *log.Logger) *Registry {
	if wal == nil {
		wal = walhook.NoopHook{}
	}
	if logger == nil {
		logger = log.NewLogger(nil)
	}
	r := &Registry{
		clock:         clock,
		maxJobSize:    maxJobSize,
		jobs:          make(map[base.JobID]*job.Job),
		tubes:         make(map[string]*tube.Tube),
		conns:         make(map[uint64]*Connection),
		reservations:  prioqueue.New(reservationLess),
		waiterClock:   prioqueue.New(waiterLess),
		waitersByConn: make(map[uint64]*waiter.Waiter),
		wal:           wal,
		metrics:       mc,
		logger:        logger,
		wake:          make(chan struct{}, 1),
	}
	r.stats.MaxJobSize = maxJobSize
	r.tubes[base.DefaultTube] = tube.New(base.DefaultTube)
	return r
}

// now returns the registry clock's current instant. Exported methods read
// it once for the transition they perform, but the emit and serviceWaiters
// helpers read it again, so under a real clock one command dispatch or tick
// can observe more than one instant.
func (r *Registry) now() time.Time { return r.clock.Now() }

// Now returns the registry clock's current instant, for the connection
// layer to timestamp stats views built from a separately-fetched snapshot.
func (r *Registry) Now() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.now()
}

// getOrCreateTube returns the named tube, creating and registering it if
// it doesn't exist yet: tubes are created lazily on first reference.
// Callers that only read (stats-tube, peek-*) must follow up
// with gcIfEmpty so an ephemeral lookup doesn't leak a zero-refcount tube.
func (r *Registry) getOrCreateTube(name string) *tube.Tube {
	t, ok := r.tubes[name]
	if !ok {
		t = tube.New(name)
		r.tubes[name] = t
	}
	return t
}

// gcIfEmpty removes t from the registry if its refcount has dropped to
// zero, unless it is the default tube.
func (r *Registry) gcIfEmpty(t *tube.Tube) {
	if t.Name == base.DefaultTube {
		return
	}
	if t.Refcount() == 0 {
		delete(r.tubes, t.Name)
	}
}

// emit forwards a committed event to the WAL hook. Called while still
// holding r.mu, per the hook's documented contract.
func (r *Registry) emit(kind string, j *job.Job, connID uint64) {
	r.wal.Emit(context.Background(), walhook.Event{
		Kind:      kind,
		JobID:     uint64(j.ID),
		Tube:      j.Tube,
		Pri:       j.Pri,
		At:        r.now(),
		ConnID:    connID,
		BodyBytes: len(j.Body),
	})
}

// WakeChan returns the channel the scheduler selects on to learn that a
// sooner wake time may now be due, without waiting out its current sleep.
func (r *Registry) WakeChan() <-chan struct{} {
	return r.wake
}

// signalWake nudges the scheduler, if it's sleeping, to recompute its next
// wake time now rather than at the end of its current timer. Non-blocking:
// a pending signal already in the buffer is enough to cause a recheck, so
// extra wakeups are simply dropped.
func (r *Registry) signalWake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// MaxJobSize returns the configured maximum put body size, for the
// connection layer to decide whether to keep or discard a body before
// calling Put.
func (r *Registry) MaxJobSize() int {
	return r.maxJobSize
}

// Job returns the job identified by id without bumping any command
// counter, for the connection layer to fetch a job's body once a deferred
// reserve resolves with an award.
func (r *Registry) Job(id base.JobID) (*job.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	return j, ok
}

// SimulateOOMOnce arms the OUT_OF_MEMORY_WHILE_QUEUEING fallback for
// exactly the next ready-heap insert. It exists for tests;
// production code never calls it.
func (r *Registry) SimulateOOMOnce() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.simulateOOM = true
}

// putReady inserts j into t's ready heap, honoring a primed SimulateOOMOnce
// by burying j instead and returning false. Callers check the returned bool
// to decide whether to report INSERTED/RELEASED or BURIED.
func (r *Registry) putReady(t *tube.Tube, j *job.Job) (ok bool) {
	if r.simulateOOM {
		r.simulateOOM = false
		j.State = base.JobBuried
		j.Buries++
		t.PutBuried(j)
		return false
	}
	j.State = base.JobReady
	t.PutReady(j)
	return true
}
