// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hemant/beanq/internal/errors"
)

func TestParseLinePut(t *testing.T) {
	cmd, err := ParseLine("put 10 0 60 5")
	require.NoError(t, err)
	require.Equal(t, OpPut, cmd.Op)
	require.EqualValues(t, 10, cmd.Pri)
	require.Equal(t, time.Duration(0), cmd.Delay)
	require.Equal(t, 60*time.Second, cmd.TTR)
	require.Equal(t, 5, cmd.NBytes)
}

func TestParseLinePutBadArity(t *testing.T) {
	_, err := ParseLine("put 10 0 60")
	require.Error(t, err)
	require.Equal(t, errors.BadFormat, errors.CodeOf(err))
}

func TestParseLineReserveWithTimeout(t *testing.T) {
	cmd, err := ParseLine("reserve-with-timeout 5")
	require.NoError(t, err)
	require.Equal(t, OpReserveWithTimeout, cmd.Op)
	require.Equal(t, 5*time.Second, cmd.Timeout)
}

func TestParseLineRelease(t *testing.T) {
	cmd, err := ParseLine("release 42 1024 0")
	require.NoError(t, err)
	require.Equal(t, OpRelease, cmd.Op)
	require.EqualValues(t, 42, cmd.ID)
	require.EqualValues(t, 1024, cmd.Pri)
	require.Equal(t, time.Duration(0), cmd.Delay)
}

func TestParseLineBury(t *testing.T) {
	cmd, err := ParseLine("bury 7 100")
	require.NoError(t, err)
	require.Equal(t, OpBury, cmd.Op)
	require.EqualValues(t, 7, cmd.ID)
	require.EqualValues(t, 100, cmd.Pri)
}

func TestParseLineKick(t *testing.T) {
	cmd, err := ParseLine("kick 10")
	require.NoError(t, err)
	require.Equal(t, OpKick, cmd.Op)
	require.EqualValues(t, 10, cmd.Bound)
}

func TestParseLineTubeCommands(t *testing.T) {
	cmd, err := ParseLine("use some-tube")
	require.NoError(t, err)
	require.Equal(t, OpUse, cmd.Op)
	require.Equal(t, "some-tube", cmd.Tube)

	cmd, err = ParseLine("watch other_tube")
	require.NoError(t, err)
	require.Equal(t, OpWatch, cmd.Op)
	require.Equal(t, "other_tube", cmd.Tube)

	cmd, err = ParseLine("ignore default")
	require.NoError(t, err)
	require.Equal(t, OpIgnore, cmd.Op)
}

func TestParseLineRejectsBadTubeName(t *testing.T) {
	_, err := ParseLine("use -bad")
	require.Error(t, err)
	require.Equal(t, errors.BadFormat, errors.CodeOf(err))

	_, err = ParseLine("use " + string(make([]byte, 201)))
	require.Error(t, err)
}

func TestParseLineSimpleCommands(t *testing.T) {
	for _, tc := range []struct {
		line string
		op   Op
	}{
		{"reserve", OpReserve},
		{"peek-ready", OpPeekReady},
		{"peek-delayed", OpPeekDelayed},
		{"peek-buried", OpPeekBuried},
		{"stats", OpStats},
		{"list-tubes", OpListTubes},
		{"list-tube-used", OpListTubeUsed},
		{"list-tubes-watched", OpListTubesWatched},
		{"quit", OpQuit},
	} {
		cmd, err := ParseLine(tc.line)
		require.NoError(t, err, tc.line)
		require.Equal(t, tc.op, cmd.Op, tc.line)
	}
}

func TestParseLineJobIDCommands(t *testing.T) {
	for _, tc := range []struct {
		line string
		op   Op
	}{
		{"delete 5", OpDelete},
		{"touch 5", OpTouch},
		{"peek 5", OpPeek},
		{"kick-job 5", OpKickJob},
		{"stats-job 5", OpStatsJob},
		{"reserve-job 5", OpReserveJob},
	} {
		cmd, err := ParseLine(tc.line)
		require.NoError(t, err, tc.line)
		require.Equal(t, tc.op, cmd.Op, tc.line)
		require.EqualValues(t, 5, cmd.ID, tc.line)
	}
}

func TestParseLinePauseTube(t *testing.T) {
	cmd, err := ParseLine("pause-tube jobs 30")
	require.NoError(t, err)
	require.Equal(t, OpPauseTube, cmd.Op)
	require.Equal(t, "jobs", cmd.Tube)
	require.Equal(t, 30*time.Second, cmd.Delay)
}

func TestParseLineUnknownCommand(t *testing.T) {
	_, err := ParseLine("frobnicate")
	require.Error(t, err)
}

func TestParseLineEmpty(t *testing.T) {
	_, err := ParseLine("")
	require.Error(t, err)
	require.Equal(t, errors.BadFormat, errors.CodeOf(err))
}

func TestParseLineInvalidNumber(t *testing.T) {
	_, err := ParseLine("put abc 0 60 5")
	require.Error(t, err)
	require.Equal(t, errors.BadFormat, errors.CodeOf(err))
}
