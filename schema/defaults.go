// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

import (
	"fmt"
	"math"
)

// normalizeDefault checks that v can initialise a slot of type t and returns
// it in canonical form: int64 for signed and enum kinds, uint64 for unsigned,
// float64, bool or string.
func normalizeDefault(t *Type, v any) (any, error) {
	if t.Nullable {
		return nil, fmt.Errorf("non-null default for nullable type %s is not allowed", t)
	}
	switch {
	case t.Kind.Signed():
		n, ok := asInt64(v)
		if !ok {
			return nil, fmt.Errorf("integer default expected for %s, got %T", t, v)
		}
		lo, hi := t.Kind.IntRange()
		if n < lo || n > hi {
			return nil, fmt.Errorf("default %d overflows %s", n, t)
		}
		return n, nil
	case t.Kind.Unsigned():
		n, ok := asInt64(v)
		if u, isU := v.(uint64); isU {
			if u > t.Kind.UintMax() {
				return nil, fmt.Errorf("default %d overflows %s", u, t)
			}
			return u, nil
		}
		if !ok || n < 0 || uint64(n) > t.Kind.UintMax() {
			return nil, fmt.Errorf("unsigned default in range expected for %s, got %v", t, v)
		}
		return uint64(n), nil
	case t.Kind.Float():
		switch f := v.(type) {
		case float64:
			return f, nil
		case float32:
			return float64(f), nil
		}
		if n, ok := asInt64(v); ok {
			return float64(n), nil
		}
		return nil, fmt.Errorf("numeric default expected for %s, got %T", t, v)
	case t.Kind == KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("bool default expected for %s, got %T", t, v)
		}
		return b, nil
	case t.Kind == KindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("string default expected for %s, got %T", t, v)
		}
		return s, nil
	case t.Kind == KindEnum:
		if name, ok := v.(string); ok {
			f, found := t.Enum.ByName(name)
			if !found {
				return nil, fmt.Errorf("no such field at enum %s: %s", t.Enum.Name, name)
			}
			return int64(f.ID), nil
		}
		n, ok := asInt64(v)
		if !ok || n > math.MaxInt32 {
			return nil, fmt.Errorf("enum field expected for %s, got %v", t, v)
		}
		if _, found := t.Enum.ByID(int(n)); !found {
			return nil, fmt.Errorf("no such id at enum %s: %d", t.Enum.Name, n)
		}
		return n, nil
	}
	return nil, fmt.Errorf("explicit default is not supported for %s", t)
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), n <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float64:
		if n != math.Trunc(n) || n < math.MinInt64 || n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}
