// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package blockfserr defines the error kinds shared by the buffer cache and
// inode layer, so callers can dispatch with errors.Is/errors.As instead of
// string matching.
package blockfserr

import (
	"errors"
	"fmt"
)

// Kind identifies which of the failure modes in the design occurred.
type Kind int

const (
	// Unknown is the zero value and should never be returned deliberately.
	Unknown Kind = iota

	// NotFound means a read was attempted past the end of a file.
	NotFound

	// TooLarge means a requested logical size exceeds the index tree's
	// addressable range.
	TooLarge

	// OutOfSpace means the free map could not satisfy an allocation.
	OutOfSpace

	// IoError means a device read or write failed.
	IoError

	// OutOfMemory means a cache slot or transient indirect record could not
	// be allocated.
	OutOfMemory

	// Denied means a write was attempted while deny-write was in effect.
	// Callers surface this as "zero bytes written", not as a returned error.
	Denied
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case TooLarge:
		return "too large"
	case OutOfSpace:
		return "out of space"
	case IoError:
		return "i/o error"
	case OutOfMemory:
		return "out of memory"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the operation that failed and the
// Kind a caller should switch on.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error with no wrapped cause.
func New(op string, kind Kind) error {
	return &Error{Op: op, Kind: kind}
}

// Wrap builds an *Error around an existing cause.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
