// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package errors defines the internal error type used to classify failures
// raised by the job-queue core so that the connection layer can map them to
// the correct wire response without string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code classifies an error into one of the categories the wire protocol
// distinguishes between.
type Code int

const (
	Unspecified Code = iota
	// NotFound indicates the referenced job or tube does not exist, or does
	// not satisfy a precondition required by the caller (wrong reserver,
	// wrong state, etc).
	NotFound
	// BadFormat indicates malformed input: an overlong line, an invalid tube
	// name, or an unparsable integer field.
	BadFormat
	// FailedPrecondition indicates a semantic rule was violated that isn't
	// quite NotFound (e.g. ignoring the last watched tube).
	FailedPrecondition
	// OutOfMemory indicates a heap or allocation failure during an insert
	// that must be reported to the caller instead of silently retried.
	OutOfMemory
	// Draining indicates the server is refusing new jobs during shutdown.
	Draining
	// JobTooBig indicates a put body exceeded max-job-size.
	JobTooBig
	// Internal indicates an invariant violation detected at runtime.
	Internal
)

func (c Code) String() string {
	switch c {
	case NotFound:
		return "not_found"
	case BadFormat:
		return "bad_format"
	case FailedPrecondition:
		return "failed_precondition"
	case OutOfMemory:
		return "out_of_memory"
	case Draining:
		return "draining"
	case JobTooBig:
		return "job_too_big"
	case Internal:
		return "internal"
	default:
		return "unspecified"
	}
}

// Error is the concrete error type produced by E.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// E constructs an *Error with the given code and message.
func E(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Ef is like E but formats the message with fmt.Sprintf.
func Ef(code Code, format string, args ...interface{}) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the Code of err if it is (or wraps) an *Error, otherwise
// Unspecified.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return Unspecified
}
