// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errdefs defines the protocol failure taxonomy shared by the codec,
// the service resolver, the dispatcher and every transport.
//
// Each structured error unwraps to one sentinel so callers can classify with
// errors.Is regardless of where the failure was raised:
//
//	ErrShape          wire payload violates the message contract
//	ErrRouting        unknown scope, version or method at dispatch time
//	ErrNotImplemented function has no implementation in its inheritance chain
//	ErrRemote         peer failure that carries no protocol code
package errdefs

import (
	"errors"
	"fmt"
)

var (
	ErrShape          = errors.New("shape error")
	ErrRouting        = errors.New("routing error")
	ErrNotImplemented = errors.New("not implemented")
	ErrRemote         = errors.New("remote error")
)

// ShapeError reports a payload that does not satisfy a message layout.
type ShapeError struct {
	Message string
	FieldID int
	Field   string
	Reason  string
}

func (e *ShapeError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("shape: message=%s: %s", e.Message, e.Reason)
	}
	return fmt.Sprintf("shape: message=%s field=%d(%s): %s", e.Message, e.FieldID, e.Field, e.Reason)
}

func (e *ShapeError) Unwrap() error { return ErrShape }

// Shapef builds a message-level ShapeError.
func Shapef(message, format string, args ...any) *ShapeError {
	return &ShapeError{Message: message, Reason: fmt.Sprintf(format, args...)}
}

// RoutingError reports an inbound method name that resolves to nothing.
type RoutingError struct {
	Method string
	Scope  string
	Reason string
}

func (e *RoutingError) Error() string {
	if e.Scope == "" {
		return fmt.Sprintf("routing: method=%q: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("routing: method=%q scope=%q: %s", e.Method, e.Scope, e.Reason)
}

func (e *RoutingError) Unwrap() error { return ErrRouting }

// NotImplementedError is raised at call time for a function without a handler.
type NotImplementedError struct {
	Service  string
	Version  int
	Function string
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("not implemented: %s:%d.%s", e.Service, e.Version, e.Function)
}

func (e *NotImplementedError) Unwrap() error { return ErrNotImplemented }

func IsShape(err error) bool          { return errors.Is(err, ErrShape) }
func IsRouting(err error) bool        { return errors.Is(err, ErrRouting) }
func IsNotImplemented(err error) bool { return errors.Is(err, ErrNotImplemented) }
