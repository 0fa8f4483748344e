// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package wire implements the text protocol spoken over a job-queue
// connection: command-line framing and parsing, and response encoding.
package wire

import (
	"strconv"
	"strings"
	"time"

	"github.com/hemant/beanq/internal/base"
	"github.com/hemant/beanq/internal/errors"
)

// Op identifies which command a Command line named.
type Op int

const (
	OpUnknown Op = iota
	OpPut
	OpReserve
	OpReserveWithTimeout
	OpReserveJob
	OpDelete
	OpRelease
	OpBury
	OpTouch
	OpWatch
	OpIgnore
	OpPeek
	OpPeekReady
	OpPeekDelayed
	OpPeekBuried
	OpKick
	OpKickJob
	OpStatsJob
	OpStatsTube
	OpStats
	OpListTubes
	OpListTubeUsed
	OpListTubesWatched
	OpPauseTube
	OpUse
	OpQuit
)

// Command is a fully parsed command line. Only the fields relevant to Op
// are meaningful; the rest are zero. For OpPut, NBytes names the body
// length still to be read off the connection as a separate step.
type Command struct {
	Op Op

	Tube  string
	ID    base.JobID
	Pri   uint32
	Delay time.Duration
	TTR   time.Duration

	Timeout time.Duration
	Bound   uint64

	NBytes int
}

// MaxCommandLineLen is the maximum size, including the trailing CRLF, the
// protocol allows for a single command line.
const MaxCommandLineLen = base.MaxCommandLineLen

// ParseLine parses a single command line (with the trailing CRLF already
// stripped by the Reader) into a Command. It returns a BadFormat error for
// malformed numeric fields, invalid tube names, or a wrong argument count,
// and an errors.Unspecified-coded error when the verb itself is not
// recognized (the caller maps that to UNKNOWN_COMMAND).
func ParseLine(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, errors.E(errors.BadFormat, "empty command line")
	}
	verb, args := fields[0], fields[1:]

	switch verb {
	case "put":
		return parsePut(args)
	case "reserve":
		return parseArity(args, 0, Command{Op: OpReserve})
	case "reserve-with-timeout":
		return parseReserveWithTimeout(args)
	case "reserve-job":
		return parseJobIDArg(args, OpReserveJob)
	case "delete":
		return parseJobIDArg(args, OpDelete)
	case "release":
		return parseRelease(args)
	case "bury":
		return parseBury(args)
	case "touch":
		return parseJobIDArg(args, OpTouch)
	case "watch":
		return parseTubeArg(args, OpWatch)
	case "ignore":
		return parseTubeArg(args, OpIgnore)
	case "peek":
		return parseJobIDArg(args, OpPeek)
	case "peek-ready":
		return parseArity(args, 0, Command{Op: OpPeekReady})
	case "peek-delayed":
		return parseArity(args, 0, Command{Op: OpPeekDelayed})
	case "peek-buried":
		return parseArity(args, 0, Command{Op: OpPeekBuried})
	case "kick":
		return parseKick(args)
	case "kick-job":
		return parseJobIDArg(args, OpKickJob)
	case "stats-job":
		return parseJobIDArg(args, OpStatsJob)
	case "stats-tube":
		return parseTubeArg(args, OpStatsTube)
	case "stats":
		return parseArity(args, 0, Command{Op: OpStats})
	case "list-tubes":
		return parseArity(args, 0, Command{Op: OpListTubes})
	case "list-tube-used":
		return parseArity(args, 0, Command{Op: OpListTubeUsed})
	case "list-tubes-watched":
		return parseArity(args, 0, Command{Op: OpListTubesWatched})
	case "pause-tube":
		return parsePauseTube(args)
	case "use":
		return parseTubeArg(args, OpUse)
	case "quit":
		return parseArity(args, 0, Command{Op: OpQuit})
	default:
		return Command{}, errors.E(errors.Unspecified, "unknown command")
	}
}

func parseArity(args []string, n int, c Command) (Command, error) {
	if len(args) != n {
		return Command{}, errors.Ef(errors.BadFormat, "expected %d arguments, got %d", n, len(args))
	}
	return c, nil
}

func parsePut(args []string) (Command, error) {
	if len(args) != 4 {
		return Command{}, errors.Ef(errors.BadFormat, "put: expected 4 arguments, got %d", len(args))
	}
	pri, err := parseUint32(args[0])
	if err != nil {
		return Command{}, err
	}
	delay, err := parseSeconds(args[1])
	if err != nil {
		return Command{}, err
	}
	ttr, err := parseSeconds(args[2])
	if err != nil {
		return Command{}, err
	}
	nbytes, err := strconv.Atoi(args[3])
	if err != nil || nbytes < 0 {
		return Command{}, errors.Ef(errors.BadFormat, "put: invalid byte count %q", args[3])
	}
	return Command{Op: OpPut, Pri: pri, Delay: delay, TTR: ttr, NBytes: nbytes}, nil
}

func parseReserveWithTimeout(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, errors.Ef(errors.BadFormat, "reserve-with-timeout: expected 1 argument, got %d", len(args))
	}
	timeout, err := parseSeconds(args[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpReserveWithTimeout, Timeout: timeout}, nil
}

func parseRelease(args []string) (Command, error) {
	if len(args) != 3 {
		return Command{}, errors.Ef(errors.BadFormat, "release: expected 3 arguments, got %d", len(args))
	}
	id, err := parseJobID(args[0])
	if err != nil {
		return Command{}, err
	}
	pri, err := parseUint32(args[1])
	if err != nil {
		return Command{}, err
	}
	delay, err := parseSeconds(args[2])
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpRelease, ID: id, Pri: pri, Delay: delay}, nil
}

func parseBury(args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, errors.Ef(errors.BadFormat, "bury: expected 2 arguments, got %d", len(args))
	}
	id, err := parseJobID(args[0])
	if err != nil {
		return Command{}, err
	}
	pri, err := parseUint32(args[1])
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpBury, ID: id, Pri: pri}, nil
}

func parseKick(args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, errors.E(errors.BadFormat, "kick: expected 1 argument")
	}
	bound, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return Command{}, errors.Ef(errors.BadFormat, "kick: invalid bound %q", args[0])
	}
	return Command{Op: OpKick, Bound: bound}, nil
}

func parsePauseTube(args []string) (Command, error) {
	if len(args) != 2 {
		return Command{}, errors.Ef(errors.BadFormat, "pause-tube: expected 2 arguments, got %d", len(args))
	}
	if err := base.ValidateTubeName(args[0]); err != nil {
		return Command{}, errors.Ef(errors.BadFormat, "%v", err)
	}
	delay, err := parseSeconds(args[1])
	if err != nil {
		return Command{}, err
	}
	return Command{Op: OpPauseTube, Tube: args[0], Delay: delay}, nil
}

func parseJobIDArg(args []string, op Op) (Command, error) {
	if len(args) != 1 {
		return Command{}, errors.E(errors.BadFormat, "expected a single job id argument")
	}
	id, err := parseJobID(args[0])
	if err != nil {
		return Command{}, err
	}
	return Command{Op: op, ID: id}, nil
}

func parseTubeArg(args []string, op Op) (Command, error) {
	if len(args) != 1 {
		return Command{}, errors.E(errors.BadFormat, "expected a single tube name argument")
	}
	if err := base.ValidateTubeName(args[0]); err != nil {
		return Command{}, errors.Ef(errors.BadFormat, "%v", err)
	}
	return Command{Op: op, Tube: args[0]}, nil
}

func parseJobID(s string) (base.JobID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Ef(errors.BadFormat, "invalid job id %q", s)
	}
	return base.JobID(n), nil
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Ef(errors.BadFormat, "invalid integer %q", s)
	}
	return uint32(n), nil
}

// parseSeconds parses a non-negative integer number of seconds into a
// Duration; the protocol never sends fractional seconds.
func parseSeconds(s string) (time.Duration, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, errors.Ef(errors.BadFormat, "invalid integer %q", s)
	}
	return time.Duration(n) * time.Second, nil
}
