// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package walhook

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/hemant/beanq/internal/log"
)

// RedisHook mirrors committed events onto a Redis stream, for an operator
// who wants a durable, replayable record of job transitions outside this
// process. It is rate limited: under sustained load it drops events rather
// than let a slow or unreachable Redis instance add latency to the
// registry's critical section.
type RedisHook struct {
	rdb       redis.UniversalClient
	stream    string
	limiter   *rate.Limiter
	logger    *log.Logger
	maxLenApx int64
}

// NewRedisHook returns a RedisHook that writes to stream on rdb, allowing at
// most limit events per second (burst events may exceed that momentarily).
func NewRedisHook(rdb redis.UniversalClient, stream string, limit rate.Limit, burst int, logger *log.Logger) *RedisHook {
	if logger == nil {
		logger = log.NewLogger(nil)
	}
	return &RedisHook{
		rdb:       rdb,
		stream:    stream,
		limiter:   rate.NewLimiter(limit, burst),
		logger:    logger,
		maxLenApx: 100_000,
	}
}

// Emit implements Hook. The registry calls Emit while holding its lock, so
// Emit only checks the rate limiter inline and does the actual network
// write on a separate goroutine; a denied event is logged and dropped
// without ever reaching Redis.
func (h *RedisHook) Emit(ctx context.Context, ev Event) {
	if !h.limiter.Allow() {
		h.logger.Debugf("walhook: dropped %s event for job %d, rate limit exceeded", ev.Kind, ev.JobID)
		return
	}

	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		err := h.rdb.XAdd(writeCtx, &redis.XAddArgs{
			Stream: h.stream,
			MaxLen: h.maxLenApx,
			Approx: true,
			Values: map[string]interface{}{
				"kind":       ev.Kind,
				"job_id":     strconv.FormatUint(ev.JobID, 10),
				"tube":       ev.Tube,
				"pri":        strconv.FormatUint(uint64(ev.Pri), 10),
				"at":         ev.At.Format(time.RFC3339Nano),
				"conn_id":    strconv.FormatUint(ev.ConnID, 10),
				"body_bytes": strconv.Itoa(ev.BodyBytes),
			},
		}).Err()
		if err != nil {
			h.logger.Warnf("walhook: XAdd to %s failed: %v", h.stream, err)
		}
	}()
}
