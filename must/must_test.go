// Copyright 2024 The Mempack Authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package must_test

import (
	"errors"
	"fmt"

	"github.com/maurocanuto/mempack/must"
)

func Example() {
	must.Func = func(v ...interface{}) {
		fmt.Print(v...)
		fmt.Print("\n")
	}

	must.Nil(nil)
	must.Nil(errors.New("some error"))
	must.Nil(errors.New("i/o error"), "reading file")

	must.True(true, "something happened")
	must.True(false, "a condition failed")

	// Output:
	// some error
	// reading file: i/o error
	// a condition failed
}
