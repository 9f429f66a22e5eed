// Copyright 2024 The Mempack Authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package log

import (
	golog "log"
)

var golevel = Info

// SetLevel sets the log level used by the default (Go standard log
// package) outputter. Call once near the start of a program.
func SetLevel(level Level) {
	golevel = level
}

type gologOutputter struct{}

func (gologOutputter) Level() Level { return golevel }

func (gologOutputter) Output(calldepth int, level Level, s string) error {
	if golevel < level {
		return nil
	}
	return golog.Output(calldepth+1, s)
}
