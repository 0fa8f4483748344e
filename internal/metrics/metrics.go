// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package metrics exposes server counters as Prometheus metrics, additive
// instrumentation mirroring the cumulative fields reported by stats/
// stats-tube/stats-job.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds every metric this server exposes. The zero value is not
// usable; construct with NewCollector.
type Collector struct {
	jobsPut       prometheus.Counter
	jobsReserved  prometheus.Counter
	jobsReleased  prometheus.Counter
	jobsDeleted   prometheus.Counter
	jobsBuried    prometheus.Counter
	jobsKicked    prometheus.Counter
	jobsTimedOut  prometheus.Counter
	jobsTouched   prometheus.Counter
	jobAge       prometheus.Histogram
	currentConns prometheus.Gauge
	currentTubes prometheus.Gauge
}

// Gauges is the instantaneous state a caller feeds into UpdateGauges; the
// registry owns the source of truth and pushes snapshots rather than the
// collector pulling under its own lock.
type Gauges struct {
	CurrentConnections int
	CurrentTubes       int
}

// NewCollector builds and registers a Collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer for production.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		jobsPut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beanq_jobs_put_total",
			Help: "Total number of jobs accepted by put.",
		}),
		jobsReserved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beanq_jobs_reserved_total",
			Help: "Total number of successful reservations.",
		}),
		jobsReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beanq_jobs_released_total",
			Help: "Total number of jobs released back to ready or delayed.",
		}),
		jobsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beanq_jobs_deleted_total",
			Help: "Total number of jobs deleted.",
		}),
		jobsBuried: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beanq_jobs_buried_total",
			Help: "Total number of jobs buried.",
		}),
		jobsKicked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beanq_jobs_kicked_total",
			Help: "Total number of jobs kicked back to ready.",
		}),
		jobsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beanq_jobs_timed_out_total",
			Help: "Total number of reservations that expired before release.",
		}),
		jobsTouched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beanq_jobs_touched_total",
			Help: "Total number of touch calls that extended a reservation.",
		}),
		jobAge: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "beanq_job_age_seconds",
			Help:    "Age of a job, in seconds, at the moment it is deleted.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 12),
		}),
		currentConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beanq_current_connections",
			Help: "Number of open client connections.",
		}),
		currentTubes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "beanq_current_tubes",
			Help: "Number of tubes currently in existence.",
		}),
	}

	reg.MustRegister(
		c.jobsPut, c.jobsReserved, c.jobsReleased, c.jobsDeleted,
		c.jobsBuried, c.jobsKicked, c.jobsTimedOut, c.jobsTouched,
		c.jobAge, c.currentConns, c.currentTubes,
	)
	return c
}

func (c *Collector) RecordPut()      { c.jobsPut.Inc() }
func (c *Collector) RecordReserve()  { c.jobsReserved.Inc() }
func (c *Collector) RecordRelease()  { c.jobsReleased.Inc() }
func (c *Collector) RecordBury()     { c.jobsBuried.Inc() }
func (c *Collector) RecordKick()     { c.jobsKicked.Inc() }
func (c *Collector) RecordTimeout()  { c.jobsTimedOut.Inc() }
func (c *Collector) RecordTouch()    { c.jobsTouched.Inc() }

// RecordDelete records a deletion and the deleted job's age.
func (c *Collector) RecordDelete(ageSeconds float64) {
	c.jobsDeleted.Inc()
	c.jobAge.Observe(ageSeconds)
}

// UpdateGauges overwrites the instantaneous gauges with g.
func (c *Collector) UpdateGauges(g Gauges) {
	c.currentConns.Set(float64(g.CurrentConnections))
	c.currentTubes.Set(float64(g.CurrentTubes))
}

// Handler returns the HTTP handler that serves the default Prometheus
// registry in the exposition format; a Collector registered on any other
// Registerer is not exposed by it.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ListenAndServe starts a dedicated metrics HTTP server on port, serving
// /metrics. It blocks until the listener fails.
func ListenAndServe(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
}
