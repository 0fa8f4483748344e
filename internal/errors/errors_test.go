// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOfClassifiesWrappedError(t *testing.T) {
	err := E(NotFound, "no such job")
	wrapped := fmt.Errorf("dispatch failed: %w", err)
	require.Equal(t, NotFound, CodeOf(wrapped))
}

func TestCodeOfUnspecifiedForPlainError(t *testing.T) {
	require.Equal(t, Unspecified, CodeOf(fmt.Errorf("plain")))
}

func TestEfFormatsMessage(t *testing.T) {
	err := Ef(BadFormat, "invalid integer %q", "abc")
	require.Equal(t, `bad_format: invalid integer "abc"`, err.Error())
}

func TestCodeStrings(t *testing.T) {
	for code, want := range map[Code]string{
		NotFound:            "not_found",
		BadFormat:           "bad_format",
		FailedPrecondition:  "failed_precondition",
		OutOfMemory:         "out_of_memory",
		Draining:            "draining",
		JobTooBig:           "job_too_big",
		Internal:            "internal",
		Unspecified:         "unspecified",
	} {
		require.Equal(t, want, code.String())
	}
}
