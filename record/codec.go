// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package record

import (
	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/schema"
)

// Encode lays r out as exactly MaxID wire values. Slot i holds field i, or
// nil when no field has id i.
func Encode(r *Record) []any {
	maxID := r.msg.MaxID()
	out := make([]any, maxID)
	for i := 1; i <= maxID; i++ {
		f := r.msg.Field(i)
		if f == nil {
			continue
		}
		out[i-1] = EncodeValue(f.Type, r.values[i])
	}
	return out
}

// EncodeValue turns a canonical value of type t into its wire form.
func EncodeValue(t *schema.Type, v any) any {
	if v == nil {
		return nil
	}
	switch t.Kind {
	case schema.KindMessage:
		if r, ok := v.(*Record); ok {
			return Encode(r)
		}
	case schema.KindList:
		if items, ok := v.([]any); ok {
			out := make([]any, len(items))
			for i, item := range items {
				out[i] = EncodeValue(t.Elem, item)
			}
			return out
		}
	case schema.KindMap:
		if m, ok := v.(map[any]any); ok {
			out := make(map[any]any, len(m))
			for key, val := range m {
				out[key] = EncodeValue(t.Elem, val)
			}
			return out
		}
	case schema.KindRaw:
		if b, ok := v.([]byte); ok && b == nil {
			return []byte{}
		}
	}
	return v
}

// Wire converts an arbitrary Go value of type t, typically a handler
// result, to its wire form. Void types always produce nil.
func Wire(t *schema.Type, v any) (any, error) {
	if t.IsVoid() {
		return nil, nil
	}
	c, err := Convert(t, v)
	if err != nil {
		return nil, err
	}
	return EncodeValue(t, c), nil
}

// DecodeValue converts a wire value of type t to canonical form. Void
// types always produce nil.
func DecodeValue(t *schema.Type, wire any) (any, error) {
	if t.IsVoid() {
		return nil, nil
	}
	return Convert(t, wire)
}

// Decode builds a record of msg from a positional payload.
//
// The payload must hold at least MaxRequiredID slots. Optional fields past
// the end of a shorter payload keep their defaults, and slots past MaxID are
// ignored. A null in a required slot is accepted only for a nullable type.
// On error no record is returned.
func Decode(msg *schema.Message, wire any) (*Record, error) {
	values, ok := asSlice(wire)
	if !ok {
		return nil, errdefs.Shapef(msg.Name(), "target is not array (%T)", wire)
	}

	n := len(values)
	maxReq := msg.MaxRequiredID()
	if n < maxReq {
		return nil, errdefs.Shapef(msg.Name(), "requires at least %d elements, got %d", maxReq, n)
	}

	r := New(msg)
	for i := 1; i <= msg.MaxID(); i++ {
		f := msg.Field(i)
		if f == nil {
			if i > maxReq && n < i {
				break
			}
			continue
		}

		if f.Required {
			v := values[i-1]
			if v == nil {
				if !f.Type.Nullable {
					return nil, &errdefs.ShapeError{
						Message: msg.Name(),
						FieldID: f.ID,
						Field:   f.Name,
						Reason:  "is not nullable but got nil",
					}
				}
				r.values[i] = nil
				continue
			}
			c, err := Convert(f.Type, v)
			if err != nil {
				return nil, fieldError(msg, f, err)
			}
			r.values[i] = c
			continue
		}

		if i > maxReq && n < i {
			break
		}
		v := values[i-1]
		if v == nil {
			continue
		}
		c, err := Convert(f.Type, v)
		if err != nil {
			return nil, fieldError(msg, f, err)
		}
		r.values[i] = c
	}
	return r, nil
}
