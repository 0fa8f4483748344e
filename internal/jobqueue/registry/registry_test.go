// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/log"
	"github.com/hemant/beanq/internal/timeutil"
	"github.com/hemant/beanq/internal/walhook"
)

type recordingHook struct {
	events []walhook.Event
}

func (h *recordingHook) Emit(_ context.Context, ev walhook.Event) {
	h.events = append(h.events, ev)
}

func newTestRegistry(t *testing.T) (*Registry, *timeutil.SimulatedClock) {
	t.Helper()
	clock := timeutil.NewSimulatedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	r := New(clock, 1<<16, nil, nil, log.NewLogger(nil))
	return r, clock
}

func TestPutReadyThenReserveThenDelete(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	state, id, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, base.JobReady, state)

	res := r.Reserve(1, false, 0)
	require.Equal(t, ReserveImmediate, res.Kind)
	require.NotNil(t, res.Job)
	require.Equal(t, id, res.Job.ID)

	require.NoError(t, r.Delete(1, id))
	_, err = r.Peek(id)
	require.Error(t, err)
}

func TestPutWithDelayGoesToDelayed(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	state, id, err := r.Put(1, base.DefaultTube, 0, 5*time.Second, 60*time.Second, []byte("later"))
	require.NoError(t, err)
	require.Equal(t, base.JobDelayed, state)

	res := r.Reserve(1, true, 0)
	require.Equal(t, ReserveImmediate, res.Kind)
	require.Nil(t, res.Job)

	j, err := r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobDelayed, j.State)
}

func TestTickPromotesDelayedJobToReady(t *testing.T) {
	r, clock := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, id, err := r.Put(1, base.DefaultTube, 0, 5*time.Second, 60*time.Second, []byte("later"))
	require.NoError(t, err)

	clock.AdvanceTime(6 * time.Second)
	r.Tick()

	j, err := r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobReady, j.State)
}

func TestReserveParksWaiterWhenNothingReady(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	res := r.Reserve(1, false, 0)
	require.Equal(t, ReserveWaiting, res.Kind)
	require.NotNil(t, res.Waiter)
}

func TestReserveWithTimeoutZeroIsTimedOutImmediately(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	res := r.Reserve(1, true, 0)
	require.Equal(t, ReserveImmediate, res.Kind)
}

func TestWaiterIsServicedWhenJobArrivesInWatchedTube(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	r.NewConnection(2)
	defer r.CloseConnection(1)
	defer r.CloseConnection(2)

	res := r.Reserve(1, false, 0)
	require.Equal(t, ReserveWaiting, res.Kind)

	_, id, err := r.Put(2, base.DefaultTube, 0, 0, 60*time.Second, []byte("for waiter"))
	require.NoError(t, err)

	select {
	case result := <-res.Waiter.Result:
		require.Equal(t, id, result.JobID)
	case <-time.After(time.Second):
		t.Fatal("waiter was never serviced")
	}
}

func TestReleaseRequeuesJobToReady(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, id, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("x"))
	require.NoError(t, err)
	res := r.Reserve(1, false, 0)
	require.Equal(t, id, res.Job.ID)

	buried, err := r.Release(1, id, 0, 0)
	require.NoError(t, err)
	require.False(t, buried)

	j, err := r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobReady, j.State)
}

func TestBuryThenKickReturnsJobToReady(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, id, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("x"))
	require.NoError(t, err)
	res := r.Reserve(1, false, 0)
	require.Equal(t, id, res.Job.ID)

	require.NoError(t, r.Bury(1, id, 0))
	j, err := r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobBuried, j.State)

	n, err := r.Kick(base.DefaultTube, 10)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	j, err = r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobReady, j.State)
}

func TestTouchExtendsDeadline(t *testing.T) {
	r, clock := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, id, err := r.Put(1, base.DefaultTube, 0, 0, 2*time.Second, []byte("x"))
	require.NoError(t, err)
	res := r.Reserve(1, false, 0)
	require.Equal(t, id, res.Job.ID)

	clock.AdvanceTime(time.Second)
	require.NoError(t, r.Touch(1, id))

	clock.AdvanceTime(time.Second)
	r.Tick()

	j, err := r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobReserved, j.State, "touch should have pushed the deadline out past this tick")
}

func TestReservationExpiresAndRequeuesOnTTR(t *testing.T) {
	r, clock := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, id, err := r.Put(1, base.DefaultTube, 0, 0, time.Second, []byte("x"))
	require.NoError(t, err)
	res := r.Reserve(1, false, 0)
	require.Equal(t, id, res.Job.ID)

	clock.AdvanceTime(2 * time.Second)
	r.Tick()

	j, err := r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobReady, j.State)
	require.EqualValues(t, 1, j.Timeouts)
}

func TestPutRejectsOversizedBody(t *testing.T) {
	clock := timeutil.NewSimulatedClock(time.Now())
	r := New(clock, 4, nil, nil, log.NewLogger(nil))
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, _, err := r.Put(1, base.DefaultTube, 0, 0, time.Second, []byte("too big"))
	require.Error(t, err)
}

func TestPutRejectedWhileDraining(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	r.SetDraining(true)
	_, _, err := r.Put(1, base.DefaultTube, 0, 0, time.Second, []byte("x"))
	require.Error(t, err)

	// draining only blocks new work; reserve/delete still function.
	r.SetDraining(false)
	_, id, err := r.Put(1, base.DefaultTube, 0, 0, time.Second, []byte("x"))
	require.NoError(t, err)
	r.SetDraining(true)
	res := r.Reserve(1, false, 0)
	require.Equal(t, id, res.Job.ID)
	require.NoError(t, r.Delete(1, id))
}

func TestUseWatchIgnoreTubeLifecycle(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	require.NoError(t, r.Use(1, "jobs"))
	require.Equal(t, "jobs", r.ListTubeUsed(1))

	n, err := r.Watch(1, "jobs")
	require.NoError(t, err)
	require.Equal(t, 2, n) // default + jobs

	n, err = r.Ignore(1, base.DefaultTube)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = r.Ignore(1, "jobs")
	require.Error(t, err, "ignoring the last watched tube must fail")
}

func TestUnreferencedNonDefaultTubeIsGarbageCollected(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)

	_, err := r.StatsTube("ephemeral")
	require.NoError(t, err)

	tubes := r.ListTubes()
	require.NotContains(t, tubes, "ephemeral")
	r.CloseConnection(1)
}

func TestPauseTubeDelaysReadyJobUntilLifted(t *testing.T) {
	r, clock := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	require.NoError(t, r.PauseTube(base.DefaultTube, 10))
	_, _, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("x"))
	require.NoError(t, err)

	res := r.Reserve(1, true, 0)
	require.Equal(t, ReserveImmediate, res.Kind)
	require.Nil(t, res.Job, "a paused tube's ready jobs must not be handed out")

	clock.AdvanceTime(11 * time.Second)
	r.Tick()

	res = r.Reserve(1, false, 0)
	require.Equal(t, ReserveImmediate, res.Kind)
	require.NotNil(t, res.Job)
}

func TestSimulateOOMOnceBuriesInsteadOfQueueing(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	r.SimulateOOMOnce()
	state, id, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("x"))
	require.NoError(t, err)
	require.Equal(t, base.JobBuried, state)

	j, err := r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobBuried, j.State)

	// only the next insert is affected.
	state, _, err = r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("y"))
	require.NoError(t, err)
	require.Equal(t, base.JobReady, state)
}

func TestStatsCountsReflectQueueState(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, _, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("x"))
	require.NoError(t, err)
	_, _, err = r.Put(1, base.DefaultTube, 0, 5*time.Second, 60*time.Second, []byte("y"))
	require.NoError(t, err)

	s := r.Stats()
	require.Equal(t, 1, s.CurrentJobsReady)
	require.Equal(t, 1, s.CurrentJobsDelayed)
	require.EqualValues(t, 2, s.TotalJobs)
}

func TestPeekReadyDelayedBuried(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, err := r.PeekReady(1)
	require.Error(t, err)

	_, readyID, err := r.Put(1, base.DefaultTube, 5, 0, 60*time.Second, []byte("ready"))
	require.NoError(t, err)
	j, err := r.PeekReady(1)
	require.NoError(t, err)
	require.Equal(t, readyID, j.ID)

	_, delayedID, err := r.Put(1, base.DefaultTube, 5, 30*time.Second, 60*time.Second, []byte("later"))
	require.NoError(t, err)
	j, err = r.PeekDelayed(1)
	require.NoError(t, err)
	require.Equal(t, delayedID, j.ID)

	res := r.Reserve(1, false, 0)
	require.Equal(t, readyID, res.Job.ID)
	require.NoError(t, r.Bury(1, readyID, 0))
	j, err = r.PeekBuried(1)
	require.NoError(t, err)
	require.Equal(t, readyID, j.ID)
}

func TestKickBoundedPrefersBuriedOverDelayed(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, id1, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("a"))
	require.NoError(t, err)
	_, id2, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("b"))
	require.NoError(t, err)
	_, _, err = r.Put(1, base.DefaultTube, 0, 30*time.Second, 60*time.Second, []byte("c"))
	require.NoError(t, err)

	res := r.Reserve(1, false, 0)
	require.Equal(t, id1, res.Job.ID)
	require.NoError(t, r.Bury(1, id1, 0))
	res = r.Reserve(1, false, 0)
	require.Equal(t, id2, res.Job.ID)
	require.NoError(t, r.Bury(1, id2, 0))

	n, err := r.Kick(base.DefaultTube, 1)
	require.NoError(t, err)
	require.Equal(t, 1, n, "kick must not mix buried and delayed pools in one call")

	j, err := r.Peek(id1)
	require.NoError(t, err)
	require.Equal(t, base.JobReady, j.State, "burial FIFO order: id1 kicked first")

	j, err = r.Peek(id2)
	require.NoError(t, err)
	require.Equal(t, base.JobBuried, j.State)
}

func TestKickJobActsOnSpecificJob(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, id, err := r.Put(1, base.DefaultTube, 0, 30*time.Second, 60*time.Second, []byte("x"))
	require.NoError(t, err)

	require.NoError(t, r.KickJob(id))
	j, err := r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobReady, j.State)

	require.Error(t, r.KickJob(99999))
}

func TestPauseIsolatesOnlyThatTube(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	n, err := r.Watch(1, "paused-tube")
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, r.PauseTube("paused-tube", 10))
	_, _, err = r.Put(1, "paused-tube", 0, 0, 60*time.Second, []byte("x"))
	require.NoError(t, err)

	_, otherID, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("y"))
	require.NoError(t, err)

	res := r.Reserve(1, false, 0)
	require.Equal(t, ReserveImmediate, res.Kind)
	require.NotNil(t, res.Job)
	require.Equal(t, otherID, res.Job.ID, "the paused tube's ready job must not be offered")
}

func TestDeadlineSoonEmittedOnceBeforeTimeout(t *testing.T) {
	r, clock := newTestRegistry(t)
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, id, err := r.Put(1, base.DefaultTube, 0, 0, 3*time.Second, []byte("x"))
	require.NoError(t, err)
	res := r.Reserve(1, false, 0)
	require.Equal(t, id, res.Job.ID)

	clock.AdvanceTime(2500 * time.Millisecond) // within 1s safety window of the 3s TTR
	res = r.Reserve(1, false, 0)
	require.Equal(t, ReserveImmediate, res.Kind)
	require.Equal(t, 2, int(res.Outcome)) // waiter.DeadlineSoon

	res = r.Reserve(1, false, 0)
	require.Equal(t, ReserveWaiting, res.Kind, "DEADLINE_SOON must not repeat for the same reservation")
}

func TestReserveJobWinsOverPendingWaiter(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)
	r.NewConnection(2)
	defer r.CloseConnection(1)
	defer r.CloseConnection(2)

	_, id, err := r.Put(2, base.DefaultTube, 0, 30*time.Second, 60*time.Second, []byte("x"))
	require.NoError(t, err)

	res := r.Reserve(1, false, 0)
	require.Equal(t, ReserveWaiting, res.Kind)

	j, err := r.ReserveJob(2, id)
	require.NoError(t, err)
	require.Equal(t, id, j.ID)
	require.Equal(t, base.JobReserved, j.State)

	select {
	case <-res.Waiter.Result:
		t.Fatal("waiter must not have been resolved by reserve-job")
	default:
	}
}

func TestWALHookReceivesCommittedEvents(t *testing.T) {
	clock := timeutil.NewSimulatedClock(time.Now())
	hook := &recordingHook{}
	r := New(clock, 1<<16, hook, nil, log.NewLogger(nil))
	r.NewConnection(1)
	defer r.CloseConnection(1)

	_, id, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("x"))
	require.NoError(t, err)
	res := r.Reserve(1, false, 0)
	require.Equal(t, id, res.Job.ID)
	require.NoError(t, r.Delete(1, id))

	var kinds []string
	for _, ev := range hook.events {
		kinds = append(kinds, ev.Kind)
	}
	require.Equal(t, []string{"put", "reserve", "delete"}, kinds)
}

func TestCloseConnectionRequeuesItsReservedJobs(t *testing.T) {
	r, _ := newTestRegistry(t)
	r.NewConnection(1)

	_, id, err := r.Put(1, base.DefaultTube, 0, 0, 60*time.Second, []byte("x"))
	require.NoError(t, err)
	res := r.Reserve(1, false, 0)
	require.Equal(t, id, res.Job.ID)

	r.CloseConnection(1)

	j, err := r.Peek(id)
	require.NoError(t, err)
	require.Equal(t, base.JobReady, j.State)
}
