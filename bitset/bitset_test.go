// Copyright 2018 GRAIL, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package bitset_test

import (
	"math/rand"
	"testing"

	"github.com/maurocanuto/mempack/bitset"
)

func TestSetClearTest(t *testing.T) {
	data := make([]uintptr, 4)
	n := 4 * bitset.BitsPerWord
	for i := 0; i < n; i++ {
		if bitset.Test(data, i) {
			t.Fatalf("bit %d set before any Set call", i)
		}
	}
	bitset.Set(data, 3)
	bitset.Set(data, 65)
	bitset.Set(data, 200)
	for i := 0; i < n; i++ {
		want := i == 3 || i == 65 || i == 200
		if bitset.Test(data, i) != want {
			t.Fatalf("bit %d: got %v, want %v", i, bitset.Test(data, i), want)
		}
	}
	bitset.Clear(data, 65)
	if bitset.Test(data, 65) {
		t.Fatal("bit 65 still set after Clear")
	}
}

func TestSetIntervalClearInterval(t *testing.T) {
	n := 3 * bitset.BitsPerWord
	data := make([]uintptr, 3)
	bitset.SetInterval(data, 10, 150)
	for i := 0; i < n; i++ {
		want := i >= 10 && i < 150
		if bitset.Test(data, i) != want {
			t.Fatalf("bit %d: got %v, want %v", i, bitset.Test(data, i), want)
		}
	}
	bitset.ClearInterval(data, 50, 100)
	for i := 0; i < n; i++ {
		want := (i >= 10 && i < 50) || (i >= 100 && i < 150)
		if bitset.Test(data, i) != want {
			t.Fatalf("bit %d: got %v, want %v", i, bitset.Test(data, i), want)
		}
	}
}

func naiveBitScanSum(data []uintptr) int {
	tot := 0
	for i := range data {
		for bit := 0; bit < bitset.BitsPerWord; bit++ {
			if bitset.Test(data, i*bitset.BitsPerWord+bit) {
				tot += i*bitset.BitsPerWord + bit
			}
		}
	}
	return tot
}

// TestNonzeroWordScanner checks that the scanner visits the same set
// of bit indices as a naive scan, and that it clears every word it
// scans.
func TestNonzeroWordScanner(t *testing.T) {
	for iter := 0; iter < 50; iter++ {
		size := 1 + rand.Intn(64)
		data := make([]uintptr, size)
		nzwPop := 0
		for i := range data {
			if rand.Intn(3) == 0 {
				data[i] = uintptr(rand.Uint64())
			}
			if data[i] != 0 {
				nzwPop++
			}
		}
		want := naiveBitScanSum(data)

		scanData := make([]uintptr, size)
		copy(scanData, data)
		got := 0
		if nzwPop > 0 {
			for s, i := bitset.NewNonzeroWordScanner(scanData, nzwPop); i != -1; i = s.Next() {
				got += i
			}
		}
		if got != want {
			t.Fatalf("iter %d: got sum %d, want %d", iter, got, want)
		}
		for i, w := range scanData {
			if w != 0 {
				t.Fatalf("iter %d: word %d not cleared by scanner", iter, i)
			}
		}
	}
}
