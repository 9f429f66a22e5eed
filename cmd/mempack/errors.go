package main

import (
	stderrors "errors"
	"fmt"

	"github.com/maurocanuto/mempack/errors"
)

// usageError marks a command-line argument problem, mapped to exit
// code 3 instead of the generic 1.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, args ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func isUsageError(err error) bool {
	var u *usageError
	return stderrors.As(err, &u)
}

// corruptError marks post-verify unrecovered corruption, mapped to
// exit code 2 even though mempack.Verify itself returns a nil error.
type corruptError struct{ msg string }

func (e *corruptError) Error() string { return e.msg }

func newCorruptError(format string, args ...interface{}) error {
	return &corruptError{msg: fmt.Sprintf(format, args...)}
}

// isCorruptError reports whether err represents unrecovered file
// corruption, mapped to exit code 2.
func isCorruptError(err error) bool {
	var c *corruptError
	if stderrors.As(err, &c) {
		return true
	}
	for _, k := range []errors.Kind{
		errors.BadMagic,
		errors.UnsupportedVersion,
		errors.HeaderCorrupt,
		errors.FooterCorrupt,
		errors.BlockCorrupt,
		errors.ChunkUnavailable,
		errors.EccUnrecoverable,
		errors.AnnCorrupt,
	} {
		if errors.Is(k, err) {
			return true
		}
	}
	return false
}
