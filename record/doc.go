// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package record implements the positional-array record codec.
//
// A Record is a dynamic instance of a schema.Message. Encode lays it out as
// a sequence of exactly MaxID wire values, slot i holding field i or a null
// placeholder for an id gap. Decode accepts any length of at least
// MaxRequiredID: a shorter payload leaves optional tail fields at their
// defaults, and slots past MaxID are ignored, so peers on different schema
// revisions interoperate.
//
// Wire values are the generic shapes a binary or text codec produces: nil,
// bool, integers, floats, strings, []byte, []any and maps. Inside a Record
// values are kept canonical:
//
//	bool                   bool
//	signed integer, enum   int64
//	unsigned integer       uint64
//	float, double          float64
//	raw                    []byte
//	string                 string
//	list<T>                []any
//	map<K,V>               map[any]any
//	message                *Record
//	null                   nil
package record
