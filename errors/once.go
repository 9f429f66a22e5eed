// Copyright 2024 The Mempack Authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors

import (
	"sync"
	"sync/atomic"
	"unsafe"
)

// Once captures at most one error, safely across goroutines. It is
// used by scanners and writers that accumulate a first failure while
// continuing to make forward progress (e.g. finishing a flush) and
// want to surface exactly one error at the end.
//
// A zero Once is ready to use.
type Once struct {
	// Ignored lists errors dropped by Set, typically io.EOF.
	Ignored []error
	mu      sync.Mutex
	err     unsafe.Pointer // *error
}

// Err returns the first non-nil error passed to Set, or nil.
func (o *Once) Err() error {
	p := atomic.LoadPointer(&o.err)
	if p == nil {
		return nil
	}
	return *(*error)(p)
}

// Set records err if it is the first non-nil, non-ignored error seen.
func (o *Once) Set(err error) {
	if err == nil {
		return
	}
	for _, ignored := range o.Ignored {
		if err == ignored {
			return
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err == nil {
		atomic.StorePointer(&o.err, unsafe.Pointer(&err))
	}
}
