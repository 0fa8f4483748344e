// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package config loads server configuration from defaults overlaid with
// BEANQ_* environment variables.
package config

import (
	"os"
	"time"

	"github.com/spf13/cast"
)

// Config holds every knob the server reads at startup. Flags (see
// cmd/beanqd) take precedence over these when both are set; Config is the
// base layer an operator can set once via environment without touching
// the unit's command line.
type Config struct {
	// Addr is the host:port the server listens on.
	Addr string
	// MaxJobSize is the largest job body, in bytes, put will accept.
	MaxJobSize int
	// DefaultTTR is a default time-to-run value. Every put carries its own
	// ttr, and nothing outside this package reads this field.
	DefaultTTR time.Duration
	// MetricsAddr is the host:port for the Prometheus handler; only its port
	// is used, and the listener binds it on all interfaces. Empty disables
	// the metrics server.
	MetricsAddr string
	// WALRedisAddr, if non-empty, enables the Redis-backed WAL hook against
	// that address.
	WALRedisAddr string
	// WALStream is the Redis stream name the WAL hook writes to.
	WALStream string
	// WALRateLimit caps WAL writes per second.
	WALRateLimit float64
}

// Default returns the configuration used when no environment overrides are
// present.
func Default() Config {
	return Config{
		Addr:         ":11300",
		MaxJobSize:   1 << 16,
		DefaultTTR:   60 * time.Second,
		MetricsAddr:  "",
		WALRedisAddr: "",
		WALStream:    "beanq:wal",
		WALRateLimit: 500,
	}
}

// FromEnv returns Default() overlaid with any BEANQ_* environment variables
// that are set. Malformed values are ignored in favor of the existing
// default, since a Config is always valid by construction.
func FromEnv() Config {
	c := Default()

	if v, ok := lookup("BEANQ_ADDR"); ok {
		c.Addr = v
	}
	if v, ok := lookup("BEANQ_MAX_JOB_SIZE"); ok {
		if n, err := cast.ToIntE(v); err == nil {
			c.MaxJobSize = n
		}
	}
	if v, ok := lookup("BEANQ_DEFAULT_TTR_SECONDS"); ok {
		if n, err := cast.ToFloat64E(v); err == nil {
			c.DefaultTTR = time.Duration(n * float64(time.Second))
		}
	}
	if v, ok := lookup("BEANQ_METRICS_ADDR"); ok {
		c.MetricsAddr = v
	}
	if v, ok := lookup("BEANQ_WAL_REDIS_ADDR"); ok {
		c.WALRedisAddr = v
	}
	if v, ok := lookup("BEANQ_WAL_STREAM"); ok {
		c.WALStream = v
	}
	if v, ok := lookup("BEANQ_WAL_RATE_LIMIT"); ok {
		if f, err := cast.ToFloat64E(v); err == nil {
			c.WALRateLimit = f
		}
	}

	return c
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
