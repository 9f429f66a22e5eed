// Copyright 2024 The Mempack Authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package log provides simple level logging for mempack's build and
// query paths. Output is implemented by an Outputter, which defaults
// to Go's standard logging package; callers embedding the library can
// install their own (e.g. to route through a structured logger) via
// SetOutputter.
package log

import (
	"fmt"
	"os"
)

// An Outputter is a destination for leveled log output.
type Outputter interface {
	// Level returns the level at which the outputter accepts messages.
	Level() Level
	// Output writes s at the given level, dropping it if level is more
	// verbose than the outputter's configured level.
	Output(calldepth int, level Level, s string) error
}

var out Outputter = gologOutputter{}

// SetOutputter installs a new outputter and returns the previous one.
// Not safe to call concurrently with logging; call during init.
func SetOutputter(newOut Outputter) Outputter {
	old := out
	out = newOut
	return old
}

// GetOutputter returns the currently installed outputter.
func GetOutputter() Outputter { return out }

// At reports whether the current outputter is logging at level l.
func At(level Level) bool { return level <= out.Level() }

// A Level is a log verbosity level. Lower levels have higher priority:
// if the outputter logs at level L, every message at level M <= L is
// emitted.
type Level int

const (
	// Off never outputs messages.
	Off = Level(-3)
	// Error outputs only error-level messages.
	Error = Level(-2)
	// Info is the standard logging level.
	Info = Level(0)
	// Debug outputs messages intended for development.
	Debug = Level(1)
)

func (l Level) String() string {
	switch l {
	case Off:
		return "off"
	case Error:
		return "error"
	case Info:
		return "info"
	case Debug:
		return "debug"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Print formats v in the manner of fmt.Sprint and logs it at level l.
func (l Level) Print(v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprint(v...))
	}
}

// Printf formats in the manner of fmt.Sprintf and logs it at level l.
func (l Level) Printf(format string, v ...interface{}) {
	if At(l) {
		_ = out.Output(2, l, fmt.Sprintf(format, v...))
	}
}

// Print logs v at Info level.
func Print(v ...interface{}) {
	if At(Info) {
		_ = out.Output(2, Info, fmt.Sprint(v...))
	}
}

// Printf logs a formatted message at Info level.
func Printf(format string, v ...interface{}) {
	if At(Info) {
		_ = out.Output(2, Info, fmt.Sprintf(format, v...))
	}
}

// Fatal logs v at Error level and exits the process.
func Fatal(v ...interface{}) {
	_ = out.Output(2, Error, fmt.Sprint(v...))
	os.Exit(1)
}

// Fatalf logs a formatted message at Error level and exits.
func Fatalf(format string, v ...interface{}) {
	_ = out.Output(2, Error, fmt.Sprintf(format, v...))
	os.Exit(1)
}

// Panic logs v at Error level and panics with the same message.
func Panic(v ...interface{}) {
	s := fmt.Sprint(v...)
	_ = out.Output(2, Error, s)
	panic(s)
}

// Panicf logs a formatted message at Error level and panics.
func Panicf(format string, v ...interface{}) {
	s := fmt.Sprintf(format, v...)
	_ = out.Output(2, Error, s)
	panic(s)
}
