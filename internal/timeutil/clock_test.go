// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRealClockReturnsCurrentTime(t *testing.T) {
	c := NewRealClock()
	before := time.Now()
	got := c.Now()
	after := time.Now()
	require.False(t, got.Before(before))
	require.False(t, got.After(after.Add(time.Second)))
}

func TestSimulatedClockAdvanceAndSet(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewSimulatedClock(base)
	require.Equal(t, base, c.Now())

	c.AdvanceTime(5 * time.Second)
	require.Equal(t, base.Add(5*time.Second), c.Now())

	other := base.Add(time.Hour)
	c.Set(other)
	require.Equal(t, other, c.Now())
}
