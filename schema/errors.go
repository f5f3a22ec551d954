// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

import (
	"errors"
	"fmt"
)

// ErrInvalid is the sentinel every build-time schema failure unwraps to.
var ErrInvalid = errors.New("schema: invalid")

// Error reports a rejected schema element.
type Error struct {
	Element string
	Reason  string
}

func (e *Error) Error() string {
	if e.Element == "" {
		return "schema: " + e.Reason
	}
	return fmt.Sprintf("schema: %s: %s", e.Element, e.Reason)
}

func (e *Error) Unwrap() error { return ErrInvalid }

func errorf(element, format string, args ...any) *Error {
	return &Error{Element: element, Reason: fmt.Sprintf(format, args...)}
}
