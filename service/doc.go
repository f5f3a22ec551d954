// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package service binds handlers to the versions of a schema service and
// exposes the client side of the same contract.
//
// On the server, Resolve walks the version chain once and gives each
// function at each version one of three bindings:
//
//	Implemented    a handler was registered at this version
//	Delegated      the function is inherited, or extends the argument
//	               record of a super version, and forwards the record
//	               unchanged to the nearest earlier implementation
//	Unimplemented  no version in the chain implements it; calls fail
//	               with errdefs.ErrNotImplemented
//
// On the client, a Stub sends calls through a Caller with the method name
// suffixed by its scope and version, so the remote dispatcher can route
// them.
package service
