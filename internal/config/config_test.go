// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := Default()
	require.Equal(t, ":11300", c.Addr)
	require.Equal(t, 1<<16, c.MaxJobSize)
	require.Equal(t, 60*time.Second, c.DefaultTTR)
}

func TestFromEnvOverridesDefaults(t *testing.T) {
	t.Setenv("BEANQ_ADDR", ":9999")
	t.Setenv("BEANQ_MAX_JOB_SIZE", "1024")
	t.Setenv("BEANQ_DEFAULT_TTR_SECONDS", "5")
	t.Setenv("BEANQ_WAL_REDIS_ADDR", "localhost:6379")

	c := FromEnv()
	require.Equal(t, ":9999", c.Addr)
	require.Equal(t, 1024, c.MaxJobSize)
	require.Equal(t, 5*time.Second, c.DefaultTTR)
	require.Equal(t, "localhost:6379", c.WALRedisAddr)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BEANQ_MAX_JOB_SIZE", "not-a-number")
	c := FromEnv()
	require.Equal(t, Default().MaxJobSize, c.MaxJobSize)
}

func TestFromEnvIgnoresEmptyValues(t *testing.T) {
	t.Setenv("BEANQ_ADDR", "")
	c := FromEnv()
	require.Equal(t, Default().Addr, c.Addr)
}
