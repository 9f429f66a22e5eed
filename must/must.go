// Copyright 2024 The Mempack Authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package must provides fatal assertions used to enforce invariants
// that, if violated, indicate a bug in the caller rather than a
// recoverable runtime condition (e.g. a malformed offset computed by
// the pack writer itself, as opposed to a corrupt file read from
// disk, which is reported as an error instead).
package must

import (
	"fmt"

	"github.com/maurocanuto/mempack/log"
)

// Func is called to report a violated assertion and interrupt
// execution. Defaults to log.Panic; tests may override it.
var Func func(...interface{}) = log.Panic

// Nil asserts that v is nil; v is typically an error value.
func Nil(v interface{}, args ...interface{}) {
	if v == nil {
		return
	}
	if len(args) == 0 {
		Func(v)
		return
	}
	Func(fmt.Sprint(args...), ": ", v)
}

// True is a no-op if b is true; otherwise it calls Func.
func True(b bool, v ...interface{}) {
	if b {
		return
	}
	if len(v) == 0 {
		Func("must: assertion failed")
		return
	}
	Func(v...)
}

// Truef is like True but formats its message with fmt.Sprintf.
func Truef(b bool, format string, v ...interface{}) {
	if b {
		return
	}
	Func(fmt.Sprintf(format, v...))
}

// Never asserts that this call is unreachable.
func Never(v ...interface{}) {
	Func(v...)
}
