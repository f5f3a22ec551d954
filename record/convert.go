// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package record

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/luxfi/msgrpc/schema"
)

// Convert checks v against t and returns it in canonical form. v may be a
// wire value or an ordinary Go value (int, float32, []string, a struct
// slice of wire values and so on).
func Convert(t *schema.Type, v any) (any, error) {
	if v == nil {
		if t.Nullable {
			return nil, nil
		}
		return nil, fmt.Errorf("null for non-nullable %s", t)
	}

	k := t.Kind
	switch {
	case k == schema.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(t, v)
		}
		return b, nil

	case k.Signed():
		n, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		lo, hi := k.IntRange()
		if n < lo || n > hi {
			return nil, fmt.Errorf("%d overflows %s", n, t)
		}
		return n, nil

	case k == schema.KindEnum:
		n, err := toInt64(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		if n < 0 || n > math.MaxInt32 {
			return nil, fmt.Errorf("unknown %s id %d", t.Enum.Name, n)
		}
		if _, ok := t.Enum.ByID(int(n)); !ok {
			return nil, fmt.Errorf("unknown %s id %d", t.Enum.Name, n)
		}
		return n, nil

	case k.Unsigned():
		n, err := toUint64(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		if n > k.UintMax() {
			return nil, fmt.Errorf("%d overflows %s", n, t)
		}
		return n, nil

	case k.Float():
		f, err := toFloat64(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		if k == schema.KindFloat32 {
			f = float64(float32(f))
		}
		return f, nil

	case k == schema.KindRaw:
		switch b := v.(type) {
		case []byte:
			if b == nil {
				return []byte{}, nil
			}
			return b, nil
		case string:
			// text codecs carry raw bytes as base64
			raw, err := base64.StdEncoding.DecodeString(b)
			if err != nil {
				return nil, fmt.Errorf("raw: %w", err)
			}
			return raw, nil
		}
		return nil, mismatch(t, v)

	case k == schema.KindString:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
		return nil, mismatch(t, v)

	case k == schema.KindList:
		items, ok := asSlice(v)
		if !ok {
			return nil, mismatch(t, v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			c, err := Convert(t.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = c
		}
		return out, nil

	case k == schema.KindMap:
		return convertMap(t, v)

	case k == schema.KindMessage:
		if r, ok := v.(*Record); ok {
			if r.msg != t.Message {
				if r.msg.Name() == t.Message.Name() {
					return nil, fmt.Errorf("record of %s was built from another schema than the expected %s", r.msg.Name(), t)
				}
				return nil, fmt.Errorf("record of %s for %s", r.msg.Name(), t)
			}
			return r, nil
		}
		return Decode(t.Message, v)
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

func mismatch(t *schema.Type, v any) error {
	return fmt.Errorf("%T is not assignable to %s", v, t)
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []byte, string:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func convertMap(t *schema.Type, v any) (any, error) {
	out := make(map[any]any)
	put := func(key, val any) error {
		ck, err := convertKey(t.Key, key)
		if err != nil {
			return fmt.Errorf("key %v: %w", key, err)
		}
		cv, err := Convert(t.Elem, val)
		if err != nil {
			return fmt.Errorf("[%v]: %w", key, err)
		}
		out[ck] = cv
		return nil
	}

	switch m := v.(type) {
	case map[any]any:
		for key, val := range m {
			if err := put(key, val); err != nil {
				return nil, err
			}
		}
		return out, nil
	case map[string]any:
		for key, val := range m {
			if err := put(key, val); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, mismatch(t, v)
	}
	iter := rv.MapRange()
	for iter.Next() {
		if err := put(iter.Key().Interface(), iter.Value().Interface()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// convertKey also accepts the string form of non-string keys, since text
// codecs can only carry string object keys.
func convertKey(t *schema.Type, key any) (any, error) {
	s, isString := key.(string)
	if !isString || t.Kind == schema.KindString {
		return Convert(t, key)
	}
	switch {
	case t.Kind == schema.KindBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		return b, nil
	case t.Kind.Unsigned():
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return Convert(t, n)
	default:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, err
		}
		return Convert(t, n)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint, uint8, uint16, uint32, uint64:
		u, _ := toUint64(n)
		if u > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int64", u)
		}
		return int64(u), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return floatToInt(f)
	}
	return 0, fmt.Errorf("%T is not an integer", v)
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	return int64(f), nil
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case json.Number:
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return u, nil
		}
	}
	i, err := toInt64(v)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("%d is negative", i)
	}
	return uint64(i), nil
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	}
	i, err := toInt64(v)
	if err != nil {
		if u, uerr := toUint64(v); uerr == nil {
			return float64(u), nil
		}
		return 0, err
	}
	return float64(i), nil
}
