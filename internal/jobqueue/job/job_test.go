// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package job

import (
	"container/list"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIDAllocatorStartsAtOneAndIsMonotonic(t *testing.T) {
	var a IDAllocator
	first := a.Next()
	second := a.Next()
	require.EqualValues(t, 1, first)
	require.EqualValues(t, 2, second)
}

func TestJobAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	j := &Job{CreatedAt: now.Add(-3 * time.Second)}
	require.Equal(t, 3*time.Second, j.Age(now))
}

func TestJobHeapIndexRoundTrip(t *testing.T) {
	j := &Job{}
	require.Equal(t, 0, j.HeapIndex())
	j.SetHeapIndex(5)
	require.Equal(t, 5, j.HeapIndex())
}

func TestJobBuriedElemRoundTrip(t *testing.T) {
	j := &Job{}
	require.Nil(t, j.BuriedElem())
	e := list.New().PushBack(j)
	j.SetBuriedElem(e)
	require.Same(t, e, j.BuriedElem())
}
