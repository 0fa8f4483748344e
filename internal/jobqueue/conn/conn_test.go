// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package conn

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hemant/beanq/internal/jobqueue/registry"
	"github.com/hemant/beanq/internal/jobqueue/stats"
	"github.com/hemant/beanq/internal/log"
	"github.com/hemant/beanq/internal/timeutil"
)

// harness wires a Conn up to an in-process net.Pipe so tests can write raw
// protocol bytes in and read raw protocol bytes back out, exactly as a real
// client would.
type harness struct {
	client net.Conn
	reg    *registry.Registry
	clock  *timeutil.SimulatedClock
	done   chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithMaxSize(t, 1<<16)
}

func newHarnessWithMaxSize(t *testing.T, maxJobSize int) *harness {
	t.Helper()
	clock := timeutil.NewSimulatedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	reg := registry.New(clock, maxJobSize, nil, nil, log.NewLogger(nil))
	client, server := net.Pipe()

	c := New(1, server, server, reg, log.NewLogger(nil), stats.ServerIdentity{Version: "1.0.0"}, func() bool { return false })
	h := &harness{client: client, reg: reg, clock: clock, done: make(chan error, 1)}
	go func() {
		h.done <- c.Serve(context.Background())
	}()
	t.Cleanup(func() { client.Close() })
	return h
}

func (h *harness) send(t *testing.T, s string) {
	t.Helper()
	_, err := h.client.Write([]byte(s))
	require.NoError(t, err)
}

func (h *harness) readLine(t *testing.T) string {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := h.client.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestConnPutReserveDelete(t *testing.T) {
	h := newHarness(t)

	h.send(t, "put 10 0 60 5\r\nhello\r\n")
	require.Equal(t, "INSERTED 1\r\n", h.readLine(t))

	h.send(t, "reserve\r\n")
	require.Equal(t, "RESERVED 1 5\r\nhello\r\n", h.readLine(t))

	h.send(t, "delete 1\r\n")
	require.Equal(t, "DELETED\r\n", h.readLine(t))
}

func TestConnUnknownCommand(t *testing.T) {
	h := newHarness(t)
	h.send(t, "bogus\r\n")
	require.Equal(t, "UNKNOWN_COMMAND\r\n", h.readLine(t))
}

func TestConnBadFormatOnOverlongLine(t *testing.T) {
	h := newHarness(t)
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	h.send(t, string(long)+"\r\n")
	require.Equal(t, "BAD_FORMAT\r\n", h.readLine(t))
}

func TestConnJobTooBig(t *testing.T) {
	h := newHarnessWithMaxSize(t, 4)
	h.send(t, "put 0 0 60 10\r\n0123456789\r\n")
	require.Equal(t, "JOB_TOO_BIG\r\n", h.readLine(t))
}

func TestConnUseWatchIgnore(t *testing.T) {
	h := newHarness(t)

	h.send(t, "use jobs\r\n")
	require.Equal(t, "USING jobs\r\n", h.readLine(t))

	h.send(t, "watch jobs\r\n")
	require.Equal(t, "WATCHING 2\r\n", h.readLine(t))

	h.send(t, "ignore default\r\n")
	require.Equal(t, "WATCHING 1\r\n", h.readLine(t))

	h.send(t, "ignore jobs\r\n")
	require.Equal(t, "NOT_IGNORED\r\n", h.readLine(t))
}

func TestConnReserveWithTimeoutZeroTimesOutImmediately(t *testing.T) {
	h := newHarness(t)
	h.send(t, "reserve-with-timeout 0\r\n")
	require.Equal(t, "TIMED_OUT\r\n", h.readLine(t))
}

func TestConnPeekNotFound(t *testing.T) {
	h := newHarness(t)
	h.send(t, "peek 999\r\n")
	require.Equal(t, "NOT_FOUND\r\n", h.readLine(t))
}

func TestConnStatsReturnsYAML(t *testing.T) {
	h := newHarness(t)
	h.send(t, "stats\r\n")
	resp := h.readLine(t)
	require.Contains(t, resp, "OK ")
	require.Contains(t, resp, "version: 1.0.0")
}
