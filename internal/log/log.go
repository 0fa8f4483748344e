// Copyright 2024 Hemant. All rights reserved.
// Use of this source code is governed by a MIT license
// that can be found in the LICENSE file.

// Package log exports a leveled logger used throughout beanq. It wraps a
// user-supplied base logger (or the standard library logger by default) so
// that the rest of the codebase can log at a level without caring whether
// anyone configured one.
package log

import (
	"fmt"
	stdlog "log"
	"os"
	"sync"
)

// Level denotes a logging level.
type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// Base is the minimal logging surface a caller can provide to customize
// output destination. The standard library logger satisfies it via Printf.
type Base interface {
	Printf(format string, args ...interface{})
}

// Logger wraps a Base logger with a level filter.
type Logger struct {
	mu    sync.Mutex
	base  Base
	level Level
}

// NewLogger returns a *Logger writing through base. If base is nil, a
// logger writing to stderr is used.
func NewLogger(base Base) *Logger {
	if base == nil {
		base = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
	}
	return &Logger{base: base, level: InfoLevel}
}

// SetLevel changes the minimum level that will be logged.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) log(level Level, args ...interface{}) {
	l.mu.Lock()
	enabled := level >= l.level
	l.mu.Unlock()
	if !enabled {
		return
	}
	l.base.Printf("%s: %s", level, fmt.Sprint(args...))
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	enabled := level >= l.level
	l.mu.Unlock()
	if !enabled {
		return
	}
	l.base.Printf("%s: %s", level, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(args ...interface{}) { l.log(DebugLevel, args...) }
func (l *Logger) Info(args ...interface{})  { l.log(InfoLevel, args...) }
func (l *Logger) Warn(args ...interface{})  { l.log(WarnLevel, args...) }
func (l *Logger) Error(args ...interface{}) { l.log(ErrorLevel, args...) }
func (l *Logger) Fatal(args ...interface{}) {
	l.log(FatalLevel, args...)
	os.Exit(1)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.logf(DebugLevel, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.logf(InfoLevel, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.logf(WarnLevel, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.logf(ErrorLevel, format, args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logf(FatalLevel, format, args...)
	os.Exit(1)
}
