// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package registry

import (
	"sort"

	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/errors"
	"github.com/hemant/beanq/internal/jobqueue/tube"
)

// PauseTube sets or clears tubeName's pause window (seconds == 0 clears
// it), creating the tube if it doesn't exist yet. Lifting a
// pause immediately attempts to dispatch any jobs that became eligible.
func (r *Registry) PauseTube(tubeName string, seconds uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := base.ValidateTubeName(tubeName); err != nil {
		return errors.Ef(errors.BadFormat, "%v", err)
	}
	t := r.getOrCreateTube(tubeName)
	t.Pause(r.now(), seconds)
	t.Stats.CmdPauseTube++
	r.stats.CmdPauseTube++
	if seconds > 0 {
		t.Stats.PauseSeconds += uint64(seconds)
	} else {
		r.serviceWaiters(t)
	}
	r.gcIfEmpty(t)
	return nil
}

// Use sets connID's used tube, creating it if necessary.
func (r *Registry) Use(connID uint64, tubeName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := base.ValidateTubeName(tubeName); err != nil {
		return errors.Ef(errors.BadFormat, "%v", err)
	}
	c := r.conns[connID]
	if c.UsedTube == tubeName {
		r.stats.CmdUse++
		return nil
	}

	if old, ok := r.tubes[c.UsedTube]; ok {
		old.UsingCount--
		r.gcIfEmpty(old)
	}
	t := r.getOrCreateTube(tubeName)
	t.UsingCount++
	c.UsedTube = tubeName
	r.stats.CmdUse++
	return nil
}

// Watch adds tubeName to connID's watch list, creating it if necessary,
// and returns the resulting watch-list size.
func (r *Registry) Watch(connID uint64, tubeName string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := base.ValidateTubeName(tubeName); err != nil {
		return 0, errors.Ef(errors.BadFormat, "%v", err)
	}
	c := r.conns[connID]
	r.stats.CmdWatch++
	if c.Watched[tubeName] {
		return len(c.Watched), nil
	}
	t := r.getOrCreateTube(tubeName)
	t.WatchingCount++
	c.Watched[tubeName] = true
	return len(c.Watched), nil
}

// Ignore removes tubeName from connID's watch list and returns the
// resulting size. Ignoring the last watched tube fails with
// FailedPrecondition (NOT_IGNORED) and leaves the watch list intact.
// Ignoring a tube not currently watched is a harmless no-op.
func (r *Registry) Ignore(connID uint64, tubeName string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := r.conns[connID]
	r.stats.CmdIgnore++
	if !c.Watched[tubeName] {
		return len(c.Watched), nil
	}
	if len(c.Watched) == 1 {
		return 0, errors.E(errors.FailedPrecondition, "cannot ignore the only watched tube")
	}
	delete(c.Watched, tubeName)
	if t, ok := r.tubes[tubeName]; ok {
		t.WatchingCount--
		r.gcIfEmpty(t)
	}
	return len(c.Watched), nil
}

// ListTubes returns the name of every tube currently in existence, sorted
// for deterministic output.
func (r *Registry) ListTubes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CmdListTubes++
	names := make([]string, 0, len(r.tubes))
	for name := range r.tubes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListTubeUsed returns connID's used tube, for the list-tube-used command.
// Internal callers that merely need to know the used tube to perform some
// other operation (put, kick) must use UsedTube instead, so that command
// isn't falsely counted as having been issued by the client.
func (r *Registry) ListTubeUsed(connID uint64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CmdListTubeUsed++
	return r.conns[connID].UsedTube
}

// UsedTube returns connID's used tube without incrementing cmd-list-tube-used.
func (r *Registry) UsedTube(connID uint64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conns[connID].UsedTube
}

// ListTubesWatched returns connID's watch list, sorted for deterministic
// output.
func (r *Registry) ListTubesWatched(connID uint64) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.CmdListTubesWatched++
	c := r.conns[connID]
	names := make([]string, 0, len(c.Watched))
	for name := range c.Watched {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetDraining toggles the draining flag; while draining, Put refuses new
// jobs but every other operation continues to function.
func (r *Registry) SetDraining(draining bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draining = draining
}

// StatsTube returns the tube named name along with its current refcount
// components, for the stats package to project into a stats-tube body.
// Lazy-creation applies to stats-tube too, so a never-seen name is
// created, reported on, and immediately garbage collected if nothing else
// references it.
func (r *Registry) StatsTube(name string) (*tube.Tube, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := base.ValidateTubeName(name); err != nil {
		return nil, errors.Ef(errors.BadFormat, "%v", err)
	}
	t := r.getOrCreateTube(name)
	r.stats.CmdStatsTube++
	defer r.gcIfEmpty(t)
	return t, nil
}

