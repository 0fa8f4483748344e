// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package stats projects registry and job/tube state into the exact
// YAML-keyed structures the protocol's stats, stats-tube, and stats-job
// commands report.
package stats

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/jobqueue/job"
	"github.com/hemant/beanq/internal/jobqueue/registry"
	"github.com/hemant/beanq/internal/jobqueue/tube"
)

// JobView is the stats-job response body.
type JobView struct {
	ID        uint64 `yaml:"id"`
	Tube      string `yaml:"tube"`
	State     string `yaml:"state"`
	Pri       uint32 `yaml:"pri"`
	Age       int64  `yaml:"age"`
	Delay     int64  `yaml:"delay"`
	TTR       int64  `yaml:"ttr"`
	TimeLeft  int64  `yaml:"time-left"`
	File      uint32 `yaml:"file"`
	Reserves  uint64 `yaml:"reserves"`
	Timeouts  uint64 `yaml:"timeouts"`
	Releases  uint64 `yaml:"releases"`
	Buries    uint64 `yaml:"buries"`
	Kicks     uint64 `yaml:"kicks"`
}

// Job projects j's state, as of now, into a JobView.
func Job(j *job.Job, now time.Time) JobView {
	var timeLeft time.Duration
	switch j.State {
	case base.JobDelayed:
		if j.ReadyAt.After(now) {
			timeLeft = j.ReadyAt.Sub(now)
		}
	case base.JobReserved:
		if j.DeadlineAt.After(now) {
			timeLeft = j.DeadlineAt.Sub(now)
		}
	}
	return JobView{
		ID:       uint64(j.ID),
		Tube:     j.Tube,
		State:    j.State.String(),
		Pri:      j.Pri,
		Age:      int64(j.Age(now).Seconds()),
		Delay:    int64(j.Delay.Seconds()),
		TTR:      int64(j.TTR.Seconds()),
		TimeLeft: int64(timeLeft.Seconds()),
		File:     j.BinlogFile,
		Reserves: j.Reserves,
		Timeouts: j.Timeouts,
		Releases: j.Releases,
		Buries:   j.Buries,
		Kicks:    j.Kicks,
	}
}

// TubeView is the stats-tube response body.
type TubeView struct {
	Name              string `yaml:"name"`
	CurrentJobsUrgent int    `yaml:"current-jobs-urgent"`
	CurrentJobsReady  int    `yaml:"current-jobs-ready"`
	CurrentJobsReserved int  `yaml:"current-jobs-reserved"`
	CurrentJobsDelayed int   `yaml:"current-jobs-delayed"`
	CurrentJobsBuried int    `yaml:"current-jobs-buried"`
	TotalJobs         uint64 `yaml:"total-jobs"`
	CurrentUsing      int    `yaml:"current-using"`
	CurrentWaiting    int    `yaml:"current-waiting"`
	CurrentWatching   int    `yaml:"current-watching"`
	Pause             uint64 `yaml:"pause"`
	CmdDelete         uint64 `yaml:"cmd-delete"`
	CmdPauseTube      uint64 `yaml:"cmd-pause-tube"`
	PauseTimeLeft     int64  `yaml:"pause-time-left"`
}

// Tube projects t, as of now, into a TubeView. reservedCount is supplied by
// the caller (see Registry.ReservedCountInTube), since reserved jobs are
// indexed by the registry rather than held in t's containers.
func Tube(t *tube.Tube, reservedCount int, now time.Time) TubeView {
	pauseTimeLeft := time.Duration(0)
	if t.PausedUntil.After(now) {
		pauseTimeLeft = t.PausedUntil.Sub(now)
	}
	return TubeView{
		Name:                t.Name,
		CurrentJobsUrgent:   t.UrgentCount(),
		CurrentJobsReady:    t.Ready.Len(),
		CurrentJobsReserved: reservedCount,
		CurrentJobsDelayed:  t.Delay.Len(),
		CurrentJobsBuried:   t.Buried.Len(),
		TotalJobs:           t.Stats.TotalJobs,
		CurrentUsing:        t.UsingCount,
		CurrentWaiting:      t.Waiters.Len(),
		CurrentWatching:     t.WatchingCount,
		Pause:               t.Stats.PauseSeconds,
		CmdDelete:           t.Stats.CmdDelete,
		CmdPauseTube:        t.Stats.CmdPauseTube,
		PauseTimeLeft:       int64(pauseTimeLeft.Seconds()),
	}
}

// ServerIdentity is the process-wide, rarely-changing information a
// ServerView reports alongside the registry's counters.
type ServerIdentity struct {
	PID      int
	Version  string
	ID       string
	Hostname string
	OS       string
	Platform string
	Started  time.Time
}

// ServerView is the stats response body.
type ServerView struct {
	CurrentJobsUrgent     int    `yaml:"current-jobs-urgent"`
	CurrentJobsReady      int    `yaml:"current-jobs-ready"`
	CurrentJobsReserved   int    `yaml:"current-jobs-reserved"`
	CurrentJobsDelayed    int    `yaml:"current-jobs-delayed"`
	CurrentJobsBuried     int    `yaml:"current-jobs-buried"`
	CmdPut                uint64 `yaml:"cmd-put"`
	CmdPeek                uint64 `yaml:"cmd-peek"`
	CmdPeekReady          uint64 `yaml:"cmd-peek-ready"`
	CmdPeekDelayed        uint64 `yaml:"cmd-peek-delayed"`
	CmdPeekBuried         uint64 `yaml:"cmd-peek-buried"`
	CmdReserve            uint64 `yaml:"cmd-reserve"`
	CmdReserveWithTimeout uint64 `yaml:"cmd-reserve-with-timeout"`
	CmdReserveJob         uint64 `yaml:"cmd-reserve-job"`
	CmdTouch              uint64 `yaml:"cmd-touch"`
	CmdUse                uint64 `yaml:"cmd-use"`
	CmdWatch              uint64 `yaml:"cmd-watch"`
	CmdIgnore             uint64 `yaml:"cmd-ignore"`
	CmdDelete             uint64 `yaml:"cmd-delete"`
	CmdRelease            uint64 `yaml:"cmd-release"`
	CmdBury               uint64 `yaml:"cmd-bury"`
	CmdKick               uint64 `yaml:"cmd-kick"`
	CmdKickJob            uint64 `yaml:"cmd-kick-job"`
	CmdStats              uint64 `yaml:"cmd-stats"`
	CmdStatsJob           uint64 `yaml:"cmd-stats-job"`
	CmdStatsTube          uint64 `yaml:"cmd-stats-tube"`
	CmdListTubes          uint64 `yaml:"cmd-list-tubes"`
	CmdListTubeUsed       uint64 `yaml:"cmd-list-tube-used"`
	CmdListTubesWatched   uint64 `yaml:"cmd-list-tubes-watched"`
	CmdPauseTube          uint64 `yaml:"cmd-pause-tube"`
	JobTimeouts           uint64 `yaml:"job-timeouts"`
	TotalJobs             uint64 `yaml:"total-jobs"`
	MaxJobSize            int    `yaml:"max-job-size"`
	CurrentTubes          int    `yaml:"current-tubes"`
	CurrentConnections    int    `yaml:"current-connections"`
	CurrentProducers      int    `yaml:"current-producers"`
	CurrentWorkers        int    `yaml:"current-workers"`
	CurrentWaiting        int    `yaml:"current-waiting"`
	TotalConnections      uint64 `yaml:"total-connections"`
	PID                   int    `yaml:"pid"`
	Version               string `yaml:"version"`
	Uptime                int64  `yaml:"uptime"`
	Draining              bool   `yaml:"draining"`
	ID                    string `yaml:"id"`
	Hostname              string `yaml:"hostname"`
	OS                    string `yaml:"os"`
	Platform              string `yaml:"platform"`
}

// Server projects a registry snapshot and server identity into a
// ServerView.
func Server(s registry.Stats, id ServerIdentity, draining bool, now time.Time) ServerView {
	return ServerView{
		CurrentJobsUrgent:     s.CurrentJobsUrgent,
		CurrentJobsReady:      s.CurrentJobsReady,
		CurrentJobsReserved:   s.CurrentJobsReserved,
		CurrentJobsDelayed:    s.CurrentJobsDelayed,
		CurrentJobsBuried:     s.CurrentJobsBuried,
		CmdPut:                s.CmdPut,
		CmdPeek:                s.CmdPeek,
		CmdPeekReady:          s.CmdPeekReady,
		CmdPeekDelayed:        s.CmdPeekDelayed,
		CmdPeekBuried:         s.CmdPeekBuried,
		CmdReserve:            s.CmdReserve,
		CmdReserveWithTimeout: s.CmdReserveWithTimeout,
		CmdReserveJob:         s.CmdReserveJob,
		CmdTouch:              s.CmdTouch,
		CmdUse:                s.CmdUse,
		CmdWatch:              s.CmdWatch,
		CmdIgnore:             s.CmdIgnore,
		CmdDelete:             s.CmdDelete,
		CmdRelease:            s.CmdRelease,
		CmdBury:               s.CmdBury,
		CmdKick:               s.CmdKick,
		CmdKickJob:            s.CmdKickJob,
		CmdStats:              s.CmdStats,
		CmdStatsJob:           s.CmdStatsJob,
		CmdStatsTube:          s.CmdStatsTube,
		CmdListTubes:          s.CmdListTubes,
		CmdListTubeUsed:       s.CmdListTubeUsed,
		CmdListTubesWatched:   s.CmdListTubesWatched,
		CmdPauseTube:          s.CmdPauseTube,
		JobTimeouts:           s.JobTimeouts,
		TotalJobs:             s.TotalJobs,
		MaxJobSize:            s.MaxJobSize,
		CurrentTubes:          s.CurrentTubes,
		CurrentConnections:    s.CurrentConnections,
		CurrentProducers:      s.CurrentProducers,
		CurrentWorkers:        s.CurrentWorkers,
		CurrentWaiting:        s.CurrentWaiting,
		TotalConnections:      s.TotalConnections,
		PID:                   id.PID,
		Version:               id.Version,
		Uptime:                int64(now.Sub(id.Started).Seconds()),
		Draining:              draining,
		ID:                    id.ID,
		Hostname:              id.Hostname,
		OS:                    id.OS,
		Platform:              id.Platform,
	}
}

// EncodeMapping marshals v (a JobView, TubeView, or ServerView) as a YAML
// mapping.
func EncodeMapping(v interface{}) ([]byte, error) {
	return yaml.Marshal(v)
}

// EncodeList marshals names as a YAML sequence of strings, for
// list-tubes/list-tubes-watched.
func EncodeList(names []string) ([]byte, error) {
	return yaml.Marshal(names)
}
