// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package record

import "github.com/luxfi/msgrpc/schema"

// defaultValue is the explicit default when one is declared. Optional
// fields without one start unset (nil); required fields get Zero.
func defaultValue(f *schema.Field) any {
	if f.Default != nil {
		if v, err := Convert(f.Type, f.Default); err == nil {
			return v
		}
	}
	if !f.Required {
		return nil
	}
	return Zero(f.Type)
}

// Zero returns the implicit default of t. Message types yield a fresh
// record with its own defaults.
func Zero(t *schema.Type) any {
	if t.Nullable || t.IsVoid() {
		return nil
	}
	switch k := t.Kind; {
	case k == schema.KindBool:
		return false
	case k.Signed():
		return int64(0)
	case k.Unsigned():
		return uint64(0)
	case k.Float():
		return float64(0)
	case k == schema.KindRaw:
		return []byte{}
	case k == schema.KindString:
		return ""
	case k == schema.KindList:
		return []any{}
	case k == schema.KindMap:
		return map[any]any{}
	case k == schema.KindEnum:
		return int64(t.Enum.Fields[0].ID)
	case k == schema.KindMessage:
		return New(t.Message)
	}
	return nil
}
