// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package errdefs

import (
	"errors"
	"fmt"
)

// Code is the wire form of an error class.
type Code string

const (
	CodeShape          Code = "SHAPE"
	CodeRouting        Code = "ROUTING"
	CodeNotImplemented Code = "NOT_IMPLEMENTED"
	CodeRemote         Code = "REMOTE"
)

// CodeOf classifies err. Errors outside the taxonomy are CodeRemote.
func CodeOf(err error) Code {
	switch {
	case errors.Is(err, ErrShape):
		return CodeShape
	case errors.Is(err, ErrRouting):
		return CodeRouting
	case errors.Is(err, ErrNotImplemented):
		return CodeNotImplemented
	default:
		return CodeRemote
	}
}

// RemoteError is a failure reported by the peer.
type RemoteError struct {
	Code    Code
	Message string
}

// NewRemote rebuilds a peer failure from its wire code and message.
func NewRemote(code Code, message string) *RemoteError {
	switch code {
	case CodeShape, CodeRouting, CodeNotImplemented:
	default:
		code = CodeRemote
	}
	return &RemoteError{Code: code, Message: message}
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	switch e.Code {
	case CodeShape:
		return ErrShape
	case CodeRouting:
		return ErrRouting
	case CodeNotImplemented:
		return ErrNotImplemented
	default:
		return ErrRemote
	}
}
