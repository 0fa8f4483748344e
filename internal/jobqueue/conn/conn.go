// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package conn drives one client connection's command/response loop: it
// parses commands off the wire, dispatches them against the registry, and
// writes back responses in the same order the commands arrived, including
// deferred reserve responses that hold their slot in the stream.
package conn

import (
	"context"
	"io"
	"time"

	"github.com/hemant/beanq/internal/base"
	berrors "github.com/hemant/beanq/internal/errors"
	"github.com/hemant/beanq/internal/jobqueue/job"
	"github.com/hemant/beanq/internal/jobqueue/registry"
	"github.com/hemant/beanq/internal/jobqueue/stats"
	"github.com/hemant/beanq/internal/jobqueue/waiter"
	"github.com/hemant/beanq/internal/log"
	"github.com/hemant/beanq/internal/wire"
)

// Identity carries the process-wide information needed to answer `stats`.
type Identity = stats.ServerIdentity

// parsedCmd is one fully-framed command event handed from the read pump to
// the dispatch loop, including a put's body when applicable.
type parsedCmd struct {
	cmd        wire.Command
	parseErr   error
	body       []byte
	bodyCRLFOK bool
	oversize   bool
}

// Conn owns one connection's read pump and dispatch loop.
type Conn struct {
	id       uint64
	reg      *registry.Registry
	r        *wire.Reader
	w        *wire.Writer
	logger   *log.Logger
	ident    Identity
	draining func() bool

	cmds    chan parsedCmd
	readErr chan error
}

// New returns a Conn for byte stream (r, w), identified by id. draining
// reports whether the server is currently draining, for the `stats`
// response.
func New(id uint64, r io.Reader, w io.Writer, reg *registry.Registry, logger *log.Logger, ident Identity, draining func() bool) *Conn {
	return &Conn{
		id:       id,
		reg:      reg,
		r:        wire.NewReader(r),
		w:        wire.NewWriter(w),
		logger:   logger,
		ident:    ident,
		draining: draining,
		cmds:     make(chan parsedCmd),
		readErr:  make(chan error, 1),
	}
}

// Serve registers the connection, runs the dispatch loop until the client
// quits or the stream fails, and tears the connection down. It always
// returns a non-nil reason (io.EOF on a clean quit).
func (c *Conn) Serve(ctx context.Context) error {
	c.reg.NewConnection(c.id)
	defer c.reg.CloseConnection(c.id)

	go c.pump()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pc := <-c.cmds:
			if pc.parseErr != nil {
				if err := c.reportParseError(pc.parseErr); err != nil {
					return err
				}
				continue
			}
			if pc.cmd.Op == wire.OpQuit {
				c.w.Flush()
				return io.EOF
			}
			if err := c.dispatch(ctx, pc.cmd, pc.body, pc.bodyCRLFOK, pc.oversize); err != nil {
				return err
			}
			if err := c.w.Flush(); err != nil {
				return err
			}
		case err := <-c.readErr:
			return err
		}
	}
}

// pump reads and parses one command at a time, including a put's body, and
// hands each to the dispatch loop in order. The handoff channel is
// unbuffered, so pump never reads more than one command ahead of what the
// dispatch loop has consumed; this is what lets a connection parked in a deferred reserve
// still notice its read side has gone away: pump keeps blocking in its next
// ReadCommandLine, and if that read fails, it reports the failure
// immediately rather than waiting for dispatch to ask for more input.
func (c *Conn) pump() {
	for {
		line, err := c.r.ReadCommandLine()
		if err != nil {
			if berrors.CodeOf(err) == berrors.BadFormat {
				// The offending line was consumed in full; answer
				// BAD_FORMAT and keep reading.
				c.cmds <- parsedCmd{parseErr: err}
				continue
			}
			c.reportReadErr(err)
			return
		}
		cmd, perr := wire.ParseLine(line)
		if perr != nil {
			c.cmds <- parsedCmd{parseErr: perr}
			continue
		}
		if cmd.Op != wire.OpPut {
			c.cmds <- parsedCmd{cmd: cmd}
			continue
		}
		if cmd.NBytes > c.reg.MaxJobSize() {
			// Oversize body: drain it in bounded chunks rather than
			// allocating NBytes up front, which a client controls.
			if err := c.r.DrainBody(cmd.NBytes); err != nil {
				c.reportReadErr(err)
				return
			}
			c.cmds <- parsedCmd{cmd: cmd, oversize: true}
			continue
		}
		body, crlfOK, err := c.r.ReadBody(cmd.NBytes)
		if err != nil {
			c.reportReadErr(err)
			return
		}
		c.cmds <- parsedCmd{cmd: cmd, body: body, bodyCRLFOK: crlfOK}
	}
}

func (c *Conn) reportReadErr(err error) {
	select {
	case c.readErr <- err:
	default:
	}
}

func (c *Conn) reportParseError(err error) error {
	if berrors.CodeOf(err) == berrors.BadFormat {
		return c.flushOrErr(c.w.BadFormat())
	}
	return c.flushOrErr(c.w.UnknownCommand())
}

func (c *Conn) flushOrErr(werr error) error {
	if werr != nil {
		return werr
	}
	return c.w.Flush()
}

// dispatch executes one parsed command and writes its response(s).
func (c *Conn) dispatch(ctx context.Context, cmd wire.Command, body []byte, bodyCRLFOK, oversize bool) error {
	switch cmd.Op {
	case wire.OpPut:
		return c.doPut(cmd, body, bodyCRLFOK, oversize)
	case wire.OpReserve:
		return c.doReserve(ctx, false, 0)
	case wire.OpReserveWithTimeout:
		return c.doReserve(ctx, true, cmd.Timeout)
	case wire.OpReserveJob:
		return c.doReserveJob(cmd.ID)
	case wire.OpDelete:
		return c.errResponse(c.reg.Delete(c.id, cmd.ID), c.w.Deleted)
	case wire.OpRelease:
		buried, err := c.reg.Release(c.id, cmd.ID, cmd.Pri, cmd.Delay)
		if err != nil {
			return c.writeNotFoundOr(err)
		}
		if buried {
			return c.w.Buried()
		}
		return c.w.Released()
	case wire.OpBury:
		return c.errResponse(c.reg.Bury(c.id, cmd.ID, cmd.Pri), c.w.Buried)
	case wire.OpTouch:
		return c.errResponse(c.reg.Touch(c.id, cmd.ID), c.w.Touched)
	case wire.OpWatch:
		n, _ := c.reg.Watch(c.id, cmd.Tube)
		return c.w.Watching(n)
	case wire.OpIgnore:
		n, err := c.reg.Ignore(c.id, cmd.Tube)
		if err != nil {
			if berrors.CodeOf(err) == berrors.FailedPrecondition {
				return c.w.NotIgnored()
			}
			return c.w.InternalError()
		}
		return c.w.Watching(n)
	case wire.OpUse:
		if err := c.reg.Use(c.id, cmd.Tube); err != nil {
			return c.w.InternalError()
		}
		return c.w.Using(cmd.Tube)
	case wire.OpPeek:
		j, err := c.reg.Peek(cmd.ID)
		return c.peekResponse(j, err)
	case wire.OpPeekReady:
		return c.peekResponse(c.reg.PeekReady(c.id))
	case wire.OpPeekDelayed:
		return c.peekResponse(c.reg.PeekDelayed(c.id))
	case wire.OpPeekBuried:
		return c.peekResponse(c.reg.PeekBuried(c.id))
	case wire.OpKick:
		n, _ := c.reg.Kick(c.reg.UsedTube(c.id), int(cmd.Bound))
		return c.w.KickedCount(n)
	case wire.OpKickJob:
		return c.errResponse(c.reg.KickJob(cmd.ID), c.w.Kicked)
	case wire.OpStatsJob:
		return c.doStatsJob(cmd.ID)
	case wire.OpStatsTube:
		return c.doStatsTube(cmd.Tube)
	case wire.OpStats:
		return c.doStats()
	case wire.OpListTubes:
		return c.writeList(c.reg.ListTubes())
	case wire.OpListTubeUsed:
		return c.w.Using(c.reg.ListTubeUsed(c.id))
	case wire.OpListTubesWatched:
		return c.writeList(c.reg.ListTubesWatched(c.id))
	case wire.OpPauseTube:
		if err := c.reg.PauseTube(cmd.Tube, uint32(cmd.Delay/time.Second)); err != nil {
			return c.w.NotFound()
		}
		return c.w.Paused()
	default:
		return c.w.UnknownCommand()
	}
}

func (c *Conn) doPut(cmd wire.Command, body []byte, bodyCRLFOK, oversize bool) error {
	if oversize {
		return c.w.JobTooBig()
	}
	if !bodyCRLFOK {
		return c.w.ExpectedCRLF()
	}
	usedTube := c.reg.UsedTube(c.id)
	state, id, err := c.reg.Put(c.id, usedTube, cmd.Pri, cmd.Delay, cmd.TTR, body)
	if err != nil {
		switch berrors.CodeOf(err) {
		case berrors.Draining:
			return c.w.Draining()
		case berrors.JobTooBig:
			return c.w.JobTooBig()
		default:
			return c.w.InternalError()
		}
	}
	if state == base.JobBuried {
		return c.w.BuriedID(uint64(id))
	}
	return c.w.Inserted(uint64(id))
}

// doReserve runs a reserve/reserve-with-timeout to completion, including
// suspending the dispatch loop (without blocking the read pump, which keeps
// watching for a half-close) when the registry parks this connection as a
// waiter.
func (c *Conn) doReserve(ctx context.Context, hasTimeout bool, timeout time.Duration) error {
	result := c.reg.Reserve(c.id, hasTimeout, timeout)
	if result.Kind == registry.ReserveImmediate {
		return c.writeReserveOutcome(result.Outcome, result.Job)
	}

	select {
	case res := <-result.Waiter.Result:
		if res.Outcome == waiter.Awarded {
			j, ok := c.reg.Job(res.JobID)
			if !ok {
				return c.w.InternalError()
			}
			return c.writeReserveOutcome(res.Outcome, j)
		}
		return c.writeReserveOutcome(res.Outcome, nil)
	case err := <-c.readErr:
		c.reg.CancelReserve(c.id)
		c.w.TimedOut()
		c.w.Flush()
		return err
	case <-ctx.Done():
		c.reg.CancelReserve(c.id)
		return ctx.Err()
	}
}

func (c *Conn) writeReserveOutcome(outcome waiter.Outcome, j *job.Job) error {
	switch outcome {
	case waiter.Awarded:
		return c.w.Reserved(uint64(j.ID), j.Body)
	case waiter.DeadlineSoon:
		return c.w.DeadlineSoon()
	default:
		return c.w.TimedOut()
	}
}

func (c *Conn) doReserveJob(id base.JobID) error {
	j, err := c.reg.ReserveJob(c.id, id)
	if err != nil {
		return c.w.NotFound()
	}
	return c.w.Reserved(uint64(j.ID), j.Body)
}

func (c *Conn) doStatsJob(id base.JobID) error {
	j, err := c.reg.StatsJob(id)
	if err != nil {
		return c.w.NotFound()
	}
	payload, err := stats.EncodeMapping(stats.Job(j, c.reg.Now()))
	if err != nil {
		return c.w.InternalError()
	}
	return c.w.OK(payload)
}

func (c *Conn) doStatsTube(name string) error {
	t, err := c.reg.StatsTube(name)
	if err != nil {
		return c.w.NotFound()
	}
	reserved := c.reg.ReservedCountInTube(name)
	payload, err := stats.EncodeMapping(stats.Tube(t, reserved, c.reg.Now()))
	if err != nil {
		return c.w.InternalError()
	}
	return c.w.OK(payload)
}

func (c *Conn) doStats() error {
	s := c.reg.Stats()
	payload, err := stats.EncodeMapping(stats.Server(s, c.ident, c.draining(), c.reg.Now()))
	if err != nil {
		return c.w.InternalError()
	}
	return c.w.OK(payload)
}

func (c *Conn) writeList(names []string) error {
	payload, err := stats.EncodeList(names)
	if err != nil {
		return c.w.InternalError()
	}
	return c.w.OK(payload)
}

func (c *Conn) peekResponse(j *job.Job, err error) error {
	if err != nil {
		return c.w.NotFound()
	}
	return c.w.Found(uint64(j.ID), j.Body)
}

func (c *Conn) errResponse(err error, onSuccess func() error) error {
	if err != nil {
		return c.writeNotFoundOr(err)
	}
	return onSuccess()
}

func (c *Conn) writeNotFoundOr(err error) error {
	if berrors.CodeOf(err) == berrors.NotFound {
		return c.w.NotFound()
	}
	return c.w.InternalError()
}
