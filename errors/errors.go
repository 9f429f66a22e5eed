// Copyright 2024 The Mempack Authors. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errors implements an error type that carries one of a fixed
// set of interpretable kinds, mirroring the fault taxonomy a pack
// reader needs to distinguish (corruption, missing data, timeouts) from
// ordinary I/O failures. Errors can be chained: each wraps the error
// that caused it, and the full chain is printed by Error().
package errors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Separator is inserted between chained errors in error messages.
var Separator = ":\n\t"

// Kind classifies the failure so callers can branch on it without
// string-matching messages.
type Kind int

const (
	// Other is an unclassified error.
	Other Kind = iota
	// IoError indicates a filesystem or I/O failure.
	IoError
	// BadMagic indicates a container's magic number didn't match.
	BadMagic
	// UnsupportedVersion indicates a container format version this
	// reader doesn't know how to open.
	UnsupportedVersion
	// HeaderCorrupt indicates the header section table failed validation.
	HeaderCorrupt
	// FooterCorrupt indicates the footer checksum failed validation.
	FooterCorrupt
	// BlockCorrupt indicates a block failed its checksum and could not
	// be repaired.
	BlockCorrupt
	// ChunkUnavailable indicates the chunk's containing block is
	// poisoned and the chunk's text cannot be produced.
	ChunkUnavailable
	// EccUnrecoverable indicates an ECC group has more corrupt members
	// than its parity can reconstruct.
	EccUnrecoverable
	// DecompressError indicates a block's codec failed to decode it.
	DecompressError
	// AnnCorrupt indicates the ANN index file failed validation.
	AnnCorrupt
	// DimensionMismatch indicates a query vector's dimensionality does
	// not match the index.
	DimensionMismatch
	// EmbedBackendError indicates the embedding backend returned an
	// error; it is propagated verbatim under this kind.
	EmbedBackendError
	// Timeout indicates a deadline expired before a call completed.
	Timeout
	// InvalidConfig indicates a configuration option was out of range
	// or contradictory.
	InvalidConfig

	maxKind
)

var kinds = map[Kind]string{
	Other:              "unknown error",
	IoError:            "i/o error",
	BadMagic:           "bad magic number",
	UnsupportedVersion: "unsupported version",
	HeaderCorrupt:      "header corrupt",
	FooterCorrupt:      "footer corrupt",
	BlockCorrupt:       "block corrupt",
	ChunkUnavailable:   "chunk unavailable",
	EccUnrecoverable:   "ecc unrecoverable",
	DecompressError:    "decompress error",
	AnnCorrupt:         "ann index corrupt",
	DimensionMismatch:  "dimension mismatch",
	EmbedBackendError:  "embed backend error",
	Timeout:            "timeout",
	InvalidConfig:      "invalid config",
}

// kindStdErrs maps some kinds to their standard-library equivalents, so
// that errors.Is interop works both ways. Timeout covers both a
// context deadline expiring and a context being canceled outright:
// callers of GetOrLoad and the block cache only need to distinguish
// "didn't finish in time" from the data-corruption kinds, not the two
// stdlib causes from each other.
var kindStdErrs = map[Kind][]error{
	Timeout: {context.DeadlineExceeded, context.Canceled},
	IoError: {os.ErrClosed},
}

// String returns a human-readable explanation of the kind k.
func (k Kind) String() string {
	if s, ok := kinds[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is the standard error type used throughout mempack. Construct
// instances with E, which interprets its arguments according to type.
type Error struct {
	// Kind classifies the error.
	Kind Kind
	// Message is an optional human-readable annotation.
	Message string
	// Err is the error that caused this one, if any. Chains are
	// rendered in full by Error().
	Err error
}

// E constructs an *Error from its arguments, interpreted by type:
//
//   - Kind sets the error's kind
//   - string appends to the message (space-joined)
//   - error (including *Error) sets the cause
//
// If no Kind is given but the cause is itself an *Error, the kind is
// inherited from the cause.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no arguments")
	}
	e := &Error{}
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteByte(' ')
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			return &Error{Kind: InvalidConfig, Message: fmt.Sprintf("errors.E: bad argument type %T", arg)}
		}
	}
	e.Message = msg.String()
	if e.Kind == Other {
		if inner, ok := e.Err.(*Error); ok {
			e.Kind = inner.Kind
		} else if e.Err != nil {
		findKind:
			for kind := Kind(0); kind < maxKind; kind++ {
				for _, std := range kindStdErrs[kind] {
					if errors.Is(e.Err, std) {
						e.Kind = kind
						break findKind
					}
				}
			}
		}
	}
	return e
}

// Error implements the error interface, rendering the full chain.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		b.WriteString(e.Message)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Err == nil {
		return
	}
	if inner, ok := e.Err.(*Error); ok {
		b.WriteString(Separator)
		inner.writeError(b)
	} else {
		b.WriteString(Separator)
		b.WriteString(e.Err.Error())
	}
}

// Unwrap lets errors.Unwrap/Is/As traverse through *Error.
func (e *Error) Unwrap() error { return e.Err }

// Timeout reports whether e's kind is Timeout.
func (e *Error) Timeout() bool { return e.Kind == Timeout }

// Is implements interoperability with the standard library's errors.Is
// for the small set of kinds with a direct stdlib equivalent.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	for _, std := range kindStdErrs[e.Kind] {
		if target == std {
			return true
		}
	}
	return false
}

// Recover wraps a plain error in *Error if it isn't one already.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Is reports whether err (or any error in its chain) has the given
// kind. Unlike the standard library's errors.Is, Is compares Kind
// rather than identity.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	e := Recover(err)
	for e != nil {
		if e.Kind == kind {
			return true
		}
		next, ok := e.Err.(*Error)
		if !ok {
			return false
		}
		e = next
	}
	return false
}

// New is synonymous with the standard library's errors.New, provided
// so callers need import only this package.
func New(msg string) error { return errors.New(msg) }
