// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dispatch routes inbound method names to versioned endpoints.
//
// An Application registers, for every scope S at version N:
//
//	"S:1" ... "S:N"   each version of the scope's service
//	"S"               version N
//
// and for the default scope additionally "1" ... "N" and "". A method
// name is split at its first colon: "add:calc:3" calls add on key
// "calc:3", "add:2" calls add on key "2" and "add" calls add on "".
package dispatch
