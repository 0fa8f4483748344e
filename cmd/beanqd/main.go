// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Command beanqd runs a standalone work-queue server speaking the
// beanstalkd text protocol.
package main

import (
	"flag"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/hemant/beanq"
	"github.com/hemant/beanq/internal/config"
)

func main() {
	cfg := config.FromEnv()

	addr := flag.String("addr", cfg.Addr, "host:port to listen on")
	maxJobSize := flag.Int("max-job-size", cfg.MaxJobSize, "largest job body, in bytes, put will accept")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "host:port for the Prometheus /metrics endpoint (only the port is used; binds all interfaces), empty disables it")
	walRedisAddr := flag.String("wal-redis-addr", cfg.WALRedisAddr, "Redis address for the write-ahead-log stream, empty disables it")
	walStream := flag.String("wal-stream", cfg.WALStream, "Redis stream name the write-ahead log writes to")
	walRateLimit := flag.Float64("wal-rate-limit", cfg.WALRateLimit, "maximum write-ahead-log events per second")
	flag.Parse()

	var walClient redis.UniversalClient
	if *walRedisAddr != "" {
		walClient = redis.NewClient(&redis.Options{Addr: *walRedisAddr})
	}

	srv := beanq.NewServer(beanq.Config{
		Addr:           *addr,
		MaxJobSize:     *maxJobSize,
		MetricsAddr:    *metricsAddr,
		WALRedisClient: walClient,
		WALStream:      *walStream,
		WALRateLimit:   *walRateLimit,
		WALHealthCheckFunc: func(err error) {
			if err != nil {
				log.Printf("beanqd: wal redis health check failed: %v", err)
			}
		},
	})

	if err := srv.Run(); err != nil {
		log.Fatalf("beanqd: %v", err)
	}
}
