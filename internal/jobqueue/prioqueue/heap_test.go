// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package prioqueue

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

type intItem struct {
	val int
	idx int
}

func (it *intItem) HeapIndex() int     { return it.idx }
func (it *intItem) SetHeapIndex(i int) { it.idx = i }

func lessInt(a, b *intItem) bool { return a.val < b.val }

func TestHeapPushPopOrdered(t *testing.T) {
	h := New(lessInt)
	vals := []int{5, 3, 8, 1, 9, 2, 7, 0, 6, 4}
	for _, v := range vals {
		h.Push(&intItem{val: v})
	}
	require.Equal(t, 10, h.Len())

	var got []int
	for h.Len() > 0 {
		top, ok := h.Pop()
		require.True(t, ok)
		got = append(got, top.val)
	}
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestHeapRemoveArbitrary(t *testing.T) {
	h := New(lessInt)
	items := make([]*intItem, 0, 20)
	for i := 0; i < 20; i++ {
		it := &intItem{val: i}
		items = append(items, it)
		h.Push(it)
	}

	// Remove a handful of items from the middle, not just the top.
	for _, i := range []int{5, 10, 15, 0, 19} {
		h.Remove(items[i])
	}
	require.Equal(t, 15, h.Len())

	var got []int
	for h.Len() > 0 {
		top, _ := h.Pop()
		got = append(got, top.val)
	}
	for _, removed := range []int{5, 10, 15, 0, 19} {
		for _, v := range got {
			require.NotEqual(t, removed, v)
		}
	}
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1], got[i])
	}
}

func TestHeapFixAfterMutation(t *testing.T) {
	h := New(lessInt)
	items := make([]*intItem, 0, 10)
	for i := 0; i < 10; i++ {
		it := &intItem{val: i}
		items = append(items, it)
		h.Push(it)
	}

	// Mutate the minimum element to be the new maximum and fix it in place.
	min, _ := h.Peek()
	min.val = 100
	h.Fix(min)

	top, _ := h.Peek()
	require.Equal(t, 1, top.val)
}

func TestHeapRandomizedAgainstSort(t *testing.T) {
	h := New(lessInt)
	n := 200
	vals := make([]int, n)
	for i := range vals {
		vals[i] = rand.Intn(1000)
		h.Push(&intItem{val: vals[i]})
	}

	var got []int
	for h.Len() > 0 {
		top, _ := h.Pop()
		got = append(got, top.val)
	}
	for i := 1; i < len(got); i++ {
		require.LessOrEqual(t, got[i-1], got[i])
	}
}
