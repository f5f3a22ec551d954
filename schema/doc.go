// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package schema is the immutable entity model consumed by the codec, the
// version resolver and the dispatcher.
//
// A Message is an ordered set of Fields keyed by a 1-based id. Ids need not
// be contiguous; MaxID and MaxRequiredID are derived once at construction.
// A Service is a contiguous chain of Versions 1..N. Functions not redefined
// at version V are inherited from V-1, so every Version carries the full,
// flat set of callable functions. Applications bind named Scopes to a
// service version and designate exactly one default scope.
//
// Everything is validated when built. After construction values are shared
// read-only between goroutines.
package schema
