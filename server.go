// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package beanq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/jobqueue/conn"
	"github.com/hemant/beanq/internal/jobqueue/registry"
	"github.com/hemant/beanq/internal/jobqueue/scheduler"
	"github.com/hemant/beanq/internal/jobqueue/stats"
	"github.com/hemant/beanq/internal/log"
	"github.com/hemant/beanq/internal/metrics"
	"github.com/hemant/beanq/internal/timeutil"
	"github.com/hemant/beanq/internal/walhook"
)

// Server accepts TCP connections and serves the work-queue wire protocol
// against a single Registry shared across every connection.
//
// A Server goes through the same new -> active -> stopped -> closed
// lifecycle as a worker pool: Stop drains in place (existing connections
// keep running, put starts refusing new jobs, but the listener keeps
// accepting so reserve/delete/etc. continue to work), Shutdown tears
// everything down.
type Server struct {
	logger *log.Logger

	reg     *registry.Registry
	sched   *scheduler.Scheduler
	ident   conn.Identity
	walHC   *walHealthChecker

	listener net.Listener
	addr     string

	metricsAddr string
	metrics     *metrics.Collector

	state *serverState
	wg    sync.WaitGroup

	nextConnID uint64
	connsMu    sync.Mutex
	conns      map[uint64]context.CancelFunc

	metricsDone chan struct{}
}

type serverState struct {
	mu    sync.Mutex
	value serverStateValue
}

type serverStateValue int

const (
	srvStateNew serverStateValue = iota
	srvStateActive
	srvStateStopped
	srvStateClosed
)

var serverStates = []string{"new", "active", "stopped", "closed"}

func (s serverStateValue) String() string {
	if srvStateNew <= s && s <= srvStateClosed {
		return serverStates[s]
	}
	return "unknown status"
}

// Config specifies the server's listening address and queue behavior.
type Config struct {
	// Addr is the host:port the wire-protocol listener binds to.
	//
	// If unset, ":11300" is used, matching the reference server's default
	// port.
	Addr string

	// MaxJobSize is the largest job body, in bytes, put will accept.
	//
	// If unset or zero, DefaultMaxJobSize (64 KiB) is used.
	MaxJobSize int

	// Logger specifies the logger used by the server instance.
	//
	// If unset, a default logger writing to stderr is used.
	Logger log.Base

	// LogLevel specifies the minimum log level to enable.
	LogLevel log.Level

	// MetricsAddr, if non-empty, starts a Prometheus metrics listener
	// separate from the wire-protocol listener. Only its port is used: the
	// listener binds that port on all interfaces, whatever the host part.
	MetricsAddr string

	// WALRedisClient, if non-nil, enables a Redis-stream write-ahead log of
	// committed job transitions. A nil client means events are discarded.
	WALRedisClient redis.UniversalClient

	// WALStream is the Redis stream name the WAL hook writes to, when
	// WALRedisClient is set.
	WALStream string

	// WALRateLimit caps WAL writes per second.
	WALRateLimit float64

	// WALHealthCheckInterval specifies the interval between pings of
	// WALRedisClient. If unset or zero, the interval is set to 15 seconds.
	// Ignored when WALRedisClient is nil.
	WALHealthCheckInterval time.Duration

	// WALHealthCheckFunc is called with any error encountered pinging
	// WALRedisClient. If nil, a ping failure is only logged.
	WALHealthCheckFunc func(error)
}

const defaultWALHealthCheckInterval = 15 * time.Second

// ErrServerClosed indicates that the operation is now illegal because the
// server has been shut down.
var ErrServerClosed = errors.New("beanq: server closed")

// NewServer returns a new, unstarted Server.
func NewServer(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = ":11300"
	}
	maxJobSize := cfg.MaxJobSize
	if maxJobSize <= 0 {
		maxJobSize = base.DefaultMaxJobSize
	}

	logger := log.NewLogger(cfg.Logger)
	if cfg.LogLevel != 0 {
		logger.SetLevel(cfg.LogLevel)
	}

	var wal walhook.Hook = walhook.NoopHook{}
	var walHC *walHealthChecker
	if cfg.WALRedisClient != nil {
		stream := cfg.WALStream
		if stream == "" {
			stream = "beanq:wal"
		}
		limit := cfg.WALRateLimit
		if limit <= 0 {
			limit = 500
		}
		wal = walhook.NewRedisHook(cfg.WALRedisClient, stream, rate.Limit(limit), int(limit), logger)

		interval := cfg.WALHealthCheckInterval
		if interval <= 0 {
			interval = defaultWALHealthCheckInterval
		}
		walHC = newWALHealthChecker(walHealthCheckerParams{
			logger:          logger,
			client:          cfg.WALRedisClient,
			interval:        interval,
			healthcheckFunc: cfg.WALHealthCheckFunc,
		})
	}

	var mc *metrics.Collector
	if cfg.MetricsAddr != "" {
		mc = metrics.NewCollector(prometheus.DefaultRegisterer)
	}

	clock := timeutil.NewRealClock()
	reg := registry.New(clock, maxJobSize, wal, mc, logger)

	hostname, _ := os.Hostname()
	ident := conn.Identity{
		PID:      os.Getpid(),
		Version:  base.Version,
		ID:       uuid.NewString(),
		Hostname: hostname,
		OS:       runtime.GOOS,
		Platform: runtime.GOARCH,
		Started:  clock.Now(),
	}

	srv := &Server{
		logger:      logger,
		reg:         reg,
		ident:       ident,
		addr:        addr,
		metricsAddr: cfg.MetricsAddr,
		metrics:     mc,
		state:       &serverState{value: srvStateNew},
		conns:       make(map[uint64]context.CancelFunc),
		walHC:       walHC,
		metricsDone: make(chan struct{}),
	}
	srv.sched = scheduler.New(reg, logger)
	return srv
}

// Run starts the server and blocks until an OS signal requests shutdown,
// then shuts down gracefully.
func (srv *Server) Run() error {
	if err := srv.Start(); err != nil {
		return err
	}
	srv.waitForSignals()
	srv.Shutdown()
	return nil
}

// Start binds the listener and begins accepting connections. It does not
// block; call Run instead if you want signal-driven shutdown.
func (srv *Server) Start() error {
	if err := srv.start(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", srv.addr)
	if err != nil {
		srv.state.mu.Lock()
		srv.state.value = srvStateNew
		srv.state.mu.Unlock()
		return fmt.Errorf("beanq: listen on %s: %w", srv.addr, err)
	}
	srv.listener = ln
	srv.logger.Infof("listening on %s", ln.Addr())

	srv.sched.Start(&srv.wg)
	if srv.walHC != nil {
		srv.walHC.start(&srv.wg)
	}

	if srv.metrics != nil {
		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.logger.Infof("metrics listening on %s", srv.metricsAddr)
			if err := metrics.ListenAndServe(mustPort(srv.metricsAddr)); err != nil {
				srv.logger.Warnf("metrics listener stopped: %v", err)
			}
		}()
		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.updateGaugesLoop()
		}()
	}

	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		srv.acceptLoop(ln)
	}()
	return nil
}

func (srv *Server) start() error {
	srv.state.mu.Lock()
	defer srv.state.mu.Unlock()
	switch srv.state.value {
	case srvStateActive:
		return fmt.Errorf("beanq: the server is already running")
	case srvStateStopped:
		return fmt.Errorf("beanq: the server is in the stopped state, waiting for shutdown")
	case srvStateClosed:
		return ErrServerClosed
	}
	srv.state.value = srvStateActive
	return nil
}

// acceptLoop accepts connections until the listener is closed, spawning a
// conn.Conn goroutine per accepted connection.
func (srv *Server) acceptLoop(ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			srv.logger.Warnf("accept: %v", err)
			continue
		}

		id := srv.allocConnID()
		ctx, cancel := context.WithCancel(context.Background())
		srv.registerConn(id, cancel)

		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			defer srv.unregisterConn(id)
			defer nc.Close()

			c := conn.New(id, nc, nc, srv.reg, srv.logger, srv.ident, srv.isDraining)
			if err := c.Serve(ctx); err != nil {
				srv.logger.Debugf("conn %d closed: %v", id, err)
			}
		}()
	}
}

func (srv *Server) allocConnID() uint64 {
	srv.connsMu.Lock()
	defer srv.connsMu.Unlock()
	srv.nextConnID++
	return srv.nextConnID
}

func (srv *Server) registerConn(id uint64, cancel context.CancelFunc) {
	srv.connsMu.Lock()
	defer srv.connsMu.Unlock()
	srv.conns[id] = cancel
}

func (srv *Server) unregisterConn(id uint64) {
	srv.connsMu.Lock()
	defer srv.connsMu.Unlock()
	delete(srv.conns, id)
}

// updateGaugesLoop pushes instantaneous connection/tube counts into the
// metrics collector every few seconds until the server's listener closes.
// The collector has no way to pull these itself: the registry's lock is
// private, so the server pushes a snapshot instead (metrics.Gauges docs).
func (srv *Server) updateGaugesLoop() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-srv.metricsDone:
			return
		case <-ticker.C:
			s := srv.reg.Stats()
			srv.metrics.UpdateGauges(metrics.Gauges{
				CurrentConnections: s.CurrentConnections,
				CurrentTubes:       s.CurrentTubes,
			})
		}
	}
}

func (srv *Server) isDraining() bool {
	srv.state.mu.Lock()
	defer srv.state.mu.Unlock()
	return srv.state.value == srvStateStopped || srv.state.value == srvStateClosed
}

// Stop puts the server into draining mode: the listener keeps accepting
// and existing connections keep working, but put starts refusing new jobs.
func (srv *Server) Stop() {
	srv.state.mu.Lock()
	if srv.state.value != srvStateActive {
		srv.state.mu.Unlock()
		return
	}
	srv.state.value = srvStateStopped
	srv.state.mu.Unlock()

	srv.logger.Info("draining: refusing new jobs")
	srv.reg.SetDraining(true)
}

// Shutdown stops accepting connections, cancels every in-flight connection,
// and waits for all server goroutines to finish.
func (srv *Server) Shutdown() {
	srv.state.mu.Lock()
	if srv.state.value == srvStateNew || srv.state.value == srvStateClosed {
		srv.state.mu.Unlock()
		return
	}
	srv.state.value = srvStateClosed
	srv.state.mu.Unlock()

	srv.logger.Info("starting graceful shutdown")
	srv.reg.SetDraining(true)

	if srv.listener != nil {
		srv.listener.Close()
	}
	srv.sched.Shutdown()
	if srv.walHC != nil {
		srv.walHC.shutdown()
	}
	if srv.metrics != nil {
		close(srv.metricsDone)
	}

	srv.connsMu.Lock()
	for _, cancel := range srv.conns {
		cancel()
	}
	srv.connsMu.Unlock()

	srv.wg.Wait()
	srv.logger.Info("exiting")
}

// Stats returns a snapshot of the registry's process-wide counters, the
// same data reported to a client via the stats command.
func (srv *Server) Stats() stats.ServerView {
	return stats.Server(srv.reg.Stats(), srv.ident, srv.isDraining(), srv.reg.Now())
}

func mustPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)
	return port
}
