// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

/*
Package beanq is an in-memory work-queue server speaking the beanstalkd
text protocol.

beanq accepts TCP connections and serves put/reserve/delete and friends
against per-tube ready, delayed, and buried job containers, with a
background scheduler promoting delayed jobs, expiring reservations, and
lifting tube pauses.

# Quick Start

	srv := beanq.NewServer(beanq.Config{
		Addr:       ":11300",
		MaxJobSize: 1 << 16,
	})
	if err := srv.Run(); err != nil {
		log.Fatal(err)
	}

# Architecture

The registry package holds every tube and job behind a single mutex,
matching the one-critical-section-per-command concurrency model the wire
protocol assumes. The conn package drives two goroutines per client
connection, a read pump parsing commands off the wire and a dispatch loop
running them against the registry; a deferred reserve parks the dispatch
loop on a channel without
blocking that connection's read pump, so a half-closed connection is still
detected while its reserve is pending. The scheduler package walks the
registry's priority queues once per tick, promoting delayed jobs whose
ready-at has passed, expiring reservations whose deadline has passed,
lifting tube pauses whose window has ended, and firing any waiter's
DEADLINE_SOON or TIMED_OUT clock.

# Monitoring

If Config.MetricsAddr is set, the server starts a Prometheus metrics
listener alongside the wire-protocol listener.
*/
package beanq
