// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package base defines foundational types and constants shared across the
// job-queue core: job/tube identifiers, job states, and tube name
// validation.
package base

import (
	"fmt"
	"strings"
)

// Version of the beanq wire protocol implementation.
const Version = "1.0.0"

// DefaultTube is the tube name every connection starts out using and
// watching. It is the only tube that persists with zero jobs and zero
// referencing connections.
const DefaultTube = "default"

// MaxTubeNameLen is the maximum length, in bytes, of a tube name.
const MaxTubeNameLen = 200

// MaxCommandLineLen is the maximum length, in bytes, of a command line
// including its trailing CRLF.
const MaxCommandLineLen = 224

// DefaultMaxJobSize is the default ceiling on a job body's length, matching
// the reference server's default.
const DefaultMaxJobSize = 1 << 16

// JobID uniquely identifies a job for the lifetime of the server process.
// IDs are monotonically increasing and are never reused.
type JobID uint64

// JobState is the state a job occupies in its tube's containers.
type JobState int

const (
	JobUnknown JobState = iota
	JobReady
	JobDelayed
	JobReserved
	JobBuried
)

func (s JobState) String() string {
	switch s {
	case JobReady:
		return "ready"
	case JobDelayed:
		return "delayed"
	case JobReserved:
		return "reserved"
	case JobBuried:
		return "buried"
	default:
		return "invalid"
	}
}

// tubeNameCharsetOK reports whether b is one of the bytes the protocol
// allows in a tube name: [A-Za-z0-9\-+/;.$_()].
func tubeNameCharsetOK(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '+', '/', ';', '.', '$', '_', '(', ')':
		return true
	}
	return false
}

// ValidateTubeName reports whether name is a legal tube name: 1-200 bytes,
// drawn from the restricted charset, and not beginning with '-'.
func ValidateTubeName(name string) error {
	if len(name) == 0 || len(name) > MaxTubeNameLen {
		return fmt.Errorf("tube name must be between 1 and %d bytes", MaxTubeNameLen)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("tube name must not begin with '-'")
	}
	for i := 0; i < len(name); i++ {
		if !tubeNameCharsetOK(name[i]) {
			return fmt.Errorf("tube name contains an illegal character %q", name[i])
		}
	}
	return nil
}
