// Copyright 2024 The Mempack Authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package ctxsync provides context-aware synchronization primitives.
// The block cache uses Cond to let a goroutine wait for an in-flight
// decompression while still honoring a caller's deadline (see §5 of
// the design: cancellation must abort a call without mutating the
// cache).
package ctxsync

import (
	"context"
	"sync"

	"github.com/maurocanuto/mempack/errors"
)

// Mutex is a context-aware mutex. The zero value is ready to use and
// must not be copied.
type Mutex struct {
	initOnce sync.Once
	lockCh   chan struct{}
}

// Lock acquires the mutex, blocking until it is free or ctx is done.
// If ctx is canceled first, Lock returns its error without taking the
// lock.
func (m *Mutex) Lock(ctx context.Context) error {
	m.init()
	select {
	case m.lockCh <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.E(errors.Timeout, ctx.Err(), "waiting for lock")
	}
}

// Unlock releases the mutex. It panics if m is not locked.
func (m *Mutex) Unlock() {
	m.init()
	select {
	case <-m.lockCh:
	default:
		panic("ctxsync: Unlock of unlocked Mutex")
	}
}

func (m *Mutex) init() {
	m.initOnce.Do(func() {
		m.lockCh = make(chan struct{}, 1)
	})
}
