// Copyright 2024 The Mempack Authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package errors

import (
	"context"
	"strings"
	"testing"
)

func TestEKind(t *testing.T) {
	err := E(BlockCorrupt, "block 3")
	e, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Kind != BlockCorrupt {
		t.Errorf("kind = %v, want %v", e.Kind, BlockCorrupt)
	}
	if !strings.Contains(e.Error(), "block 3") {
		t.Errorf("message missing annotation: %v", e.Error())
	}
}

func TestEInheritsKind(t *testing.T) {
	inner := E(EccUnrecoverable, "group 1")
	outer := E("repair failed", inner)
	if !Is(EccUnrecoverable, outer) {
		t.Errorf("expected outer to carry kind EccUnrecoverable")
	}
}

func TestTimeoutInterop(t *testing.T) {
	err := E(Timeout, context.DeadlineExceeded)
	if !Is(Timeout, err) {
		t.Errorf("expected Timeout kind")
	}
}

func TestChainRendersAllLevels(t *testing.T) {
	err := E(BlockCorrupt, "block 7", E(DecompressError, "zstd frame truncated"))
	s := err.Error()
	if !strings.Contains(s, "block 7") || !strings.Contains(s, "zstd frame truncated") {
		t.Errorf("chain not fully rendered: %v", s)
	}
}
