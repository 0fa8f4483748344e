// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package beanq

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hemant/beanq/internal/log"
)

// walHealthChecker periodically pings the Redis connection backing the WAL
// hook and invokes a user-provided callback with any error, so an operator
// can alert on a degraded WAL sink without it ever affecting the in-memory
// job-queue critical section.
type walHealthChecker struct {
	logger *log.Logger
	client redis.UniversalClient

	done chan struct{}

	interval        time.Duration
	healthcheckFunc func(error)
}

type walHealthCheckerParams struct {
	logger          *log.Logger
	client          redis.UniversalClient
	interval        time.Duration
	healthcheckFunc func(error)
}

func newWALHealthChecker(params walHealthCheckerParams) *walHealthChecker {
	return &walHealthChecker{
		logger:          params.logger,
		client:          params.client,
		done:            make(chan struct{}),
		interval:        params.interval,
		healthcheckFunc: params.healthcheckFunc,
	}
}

func (hc *walHealthChecker) shutdown() {
	hc.logger.Debug("wal health checker shutting down...")
	hc.done <- struct{}{}
}

func (hc *walHealthChecker) start(wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		timer := time.NewTimer(hc.interval)
		defer timer.Stop()
		for {
			select {
			case <-hc.done:
				hc.logger.Debug("wal health checker done")
				return
			case <-timer.C:
				hc.exec()
				timer.Reset(hc.interval)
			}
		}
	}()
}

func (hc *walHealthChecker) exec() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := hc.client.Ping(ctx).Err()
	if hc.healthcheckFunc != nil {
		hc.healthcheckFunc(err)
	} else if err != nil {
		hc.logger.Warnf("wal redis ping failed: %v", err)
	}
}
