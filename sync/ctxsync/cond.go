// Copyright 2024 The Mempack Authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package ctxsync

import (
	"context"
	"sync"
)

// Cond is a context-aware condition variable, analogous to sync.Cond
// but with a Wait that can be interrupted by a context deadline. A
// Cond must not be copied after first use.
type Cond struct {
	L sync.Locker

	mu   sync.Mutex
	ch   chan struct{}
	once sync.Once
}

// NewCond returns a new Cond with Locker l.
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l, ch: make(chan struct{})}
}

// Wait releases c.L, blocks until a Signal, Broadcast, or ctx is done,
// then reacquires c.L before returning. Callers must re-check their
// wait condition in a loop, as with sync.Cond.
func (c *Cond) Wait(ctx context.Context) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()

	c.L.Unlock()
	defer c.L.Lock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Signal wakes all goroutines waiting on c, exactly as Broadcast does;
// it does not single out one waiter. It is allowed but not required for
// the caller to hold c.L.
func (c *Cond) Signal() {
	c.Broadcast()
}

// Broadcast wakes all goroutines waiting on c.
func (c *Cond) Broadcast() {
	c.mu.Lock()
	defer c.mu.Unlock()
	close(c.ch)
	c.ch = make(chan struct{})
}
