// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/jobqueue/job"
	"github.com/hemant/beanq/internal/jobqueue/tube"
)

func TestJobViewReflectsState(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 10, 0, time.UTC)
	j := &job.Job{
		ID:        1,
		Tube:      "default",
		Pri:       10,
		State:     base.JobDelayed,
		CreatedAt: now.Add(-5 * time.Second),
		ReadyAt:   now.Add(3 * time.Second),
		Delay:     8 * time.Second,
		TTR:       60 * time.Second,
	}
	v := Job(j, now)
	require.Equal(t, "delayed", v.State)
	require.EqualValues(t, 5, v.Age)
	require.EqualValues(t, 3, v.TimeLeft)
}

func TestJobViewEncodesAsYAMLMapping(t *testing.T) {
	j := &job.Job{ID: 2, Tube: "default", State: base.JobReady}
	payload, err := EncodeMapping(Job(j, time.Now()))
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, yaml.Unmarshal(payload, &m))
	require.EqualValues(t, 2, m["id"])
	require.Equal(t, "ready", m["state"])
}

func TestTubeViewCountsContainers(t *testing.T) {
	tb := tube.New("jobs")
	tb.PutReady(&job.Job{ID: 1, Pri: 0})
	tb.PutReady(&job.Job{ID: 2, Pri: 2000})
	tb.PutDelayed(&job.Job{ID: 3, ReadyAt: time.Now().Add(time.Minute)})
	tb.PutBuried(&job.Job{ID: 4})

	v := Tube(tb, 1, time.Now())
	require.Equal(t, 2, v.CurrentJobsReady)
	require.Equal(t, 1, v.CurrentJobsUrgent)
	require.Equal(t, 1, v.CurrentJobsDelayed)
	require.Equal(t, 1, v.CurrentJobsBuried)
	require.Equal(t, 1, v.CurrentJobsReserved)
}

func TestEncodeListProducesYAMLSequence(t *testing.T) {
	payload, err := EncodeList([]string{"default", "jobs"})
	require.NoError(t, err)

	var names []string
	require.NoError(t, yaml.Unmarshal(payload, &names))
	require.Equal(t, []string{"default", "jobs"}, names)
}
