// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

import (
	"fmt"
	"math"
	"strings"
)

// Kind enumerates the value shapes a Type can describe.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindInt8
	KindInt16
	KindInt32
	KindInt64
	KindUint8
	KindUint16
	KindUint32
	KindUint64
	KindFloat32
	KindFloat64
	KindRaw
	KindString
	KindList
	KindMap
	KindMessage
	KindEnum
)

var kindNames = map[Kind]string{
	KindVoid:    "void",
	KindBool:    "bool",
	KindInt8:    "byte",
	KindInt16:   "short",
	KindInt32:   "int",
	KindInt64:   "long",
	KindUint8:   "ubyte",
	KindUint16:  "ushort",
	KindUint32:  "uint",
	KindUint64:  "ulong",
	KindFloat32: "float",
	KindFloat64: "double",
	KindRaw:     "raw",
	KindString:  "string",
	KindList:    "list",
	KindMap:     "map",
	KindMessage: "message",
	KindEnum:    "enum",
}

var primitiveKinds = map[string]Kind{
	"bool":   KindBool,
	"byte":   KindInt8,
	"short":  KindInt16,
	"int":    KindInt32,
	"long":   KindInt64,
	"ubyte":  KindUint8,
	"ushort": KindUint16,
	"uint":   KindUint32,
	"ulong":  KindUint64,
	"float":  KindFloat32,
	"double": KindFloat64,
	"raw":    KindRaw,
	"string": KindString,
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Signed reports whether k is a signed integer kind.
func (k Kind) Signed() bool { return k >= KindInt8 && k <= KindInt64 }

// Unsigned reports whether k is an unsigned integer kind.
func (k Kind) Unsigned() bool { return k >= KindUint8 && k <= KindUint64 }

// Integer reports whether k is any integer kind.
func (k Kind) Integer() bool { return k.Signed() || k.Unsigned() }

// Float reports whether k is a floating point kind.
func (k Kind) Float() bool { return k == KindFloat32 || k == KindFloat64 }

// IntRange returns the inclusive bounds of a signed integer kind.
func (k Kind) IntRange() (int64, int64) {
	switch k {
	case KindInt8:
		return math.MinInt8, math.MaxInt8
	case KindInt16:
		return math.MinInt16, math.MaxInt16
	case KindInt32:
		return math.MinInt32, math.MaxInt32
	default:
		return math.MinInt64, math.MaxInt64
	}
}

// UintMax returns the upper bound of an unsigned integer kind.
func (k Kind) UintMax() uint64 {
	switch k {
	case KindUint8:
		return math.MaxUint8
	case KindUint16:
		return math.MaxUint16
	case KindUint32:
		return math.MaxUint32
	default:
		return math.MaxUint64
	}
}

// Type describes the value carried by a field, argument or return slot.
// Elem is the list element or map value type, Key the map key type.
type Type struct {
	Kind     Kind
	Nullable bool
	Elem     *Type
	Key      *Type
	Message  *Message
	Enum     *Enum
}

// Void is the distinguished "no value" return type.
func Void() *Type { return &Type{Kind: KindVoid} }

// Primitive returns a scalar type of kind k.
func Primitive(k Kind) *Type { return &Type{Kind: k} }

// ListOf returns list<elem>.
func ListOf(elem *Type) *Type { return &Type{Kind: KindList, Elem: elem} }

// MapOf returns map<key,value>.
func MapOf(key, value *Type) *Type { return &Type{Kind: KindMap, Key: key, Elem: value} }

// MessageOf references a message type.
func MessageOf(m *Message) *Type { return &Type{Kind: KindMessage, Message: m} }

// EnumOf references an enum type.
func EnumOf(e *Enum) *Type { return &Type{Kind: KindEnum, Enum: e} }

// NullableOf returns a copy of t that admits null.
func NullableOf(t *Type) *Type {
	c := *t
	c.Nullable = true
	return &c
}

// IsVoid reports whether t is the no-value type.
func (t *Type) IsVoid() bool { return t == nil || t.Kind == KindVoid }

// Equal compares two types structurally. Named types compare by identity.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t.IsVoid() && o.IsVoid()
	}
	if t.Kind != o.Kind || t.Nullable != o.Nullable {
		return false
	}
	switch t.Kind {
	case KindList:
		return t.Elem.Equal(o.Elem)
	case KindMap:
		return t.Key.Equal(o.Key) && t.Elem.Equal(o.Elem)
	case KindMessage:
		return t.Message == o.Message
	case KindEnum:
		return t.Enum == o.Enum
	}
	return true
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	var s string
	switch t.Kind {
	case KindList:
		s = "list<" + t.Elem.String() + ">"
	case KindMap:
		s = "map<" + t.Key.String() + "," + t.Elem.String() + ">"
	case KindMessage:
		s = t.Message.Name()
	case KindEnum:
		s = t.Enum.Name
	default:
		s = t.Kind.String()
	}
	if t.Nullable {
		s += "?"
	}
	return s
}

func (t *Type) validate(element string) error {
	switch t.Kind {
	case KindList:
		if t.Elem == nil || t.Elem.IsVoid() {
			return errorf(element, "list requires an element type")
		}
		return t.Elem.validate(element)
	case KindMap:
		if t.Key == nil || t.Elem == nil || t.Elem.IsVoid() {
			return errorf(element, "map requires key and value types")
		}
		switch {
		case t.Key.Kind == KindBool, t.Key.Kind == KindString, t.Key.Kind == KindEnum, t.Key.Kind.Integer():
		default:
			return errorf(element, "map key must be a bool, integer, string or enum type, got %s", t.Key)
		}
		if t.Key.Nullable {
			return errorf(element, "map key must not be nullable")
		}
		return t.Elem.validate(element)
	case KindMessage:
		if t.Message == nil {
			return errorf(element, "message type without a message")
		}
	case KindEnum:
		if t.Enum == nil {
			return errorf(element, "enum type without an enum")
		}
	}
	return nil
}

// TypeResolver looks up named message and enum types.
type TypeResolver interface {
	LookupType(name string) (*Type, bool)
}

// ParseType parses a type expression such as "int", "string?",
// "list<UserInfo>" or "map<string,list<int>>". Named types are resolved
// through r, which may be nil when only built-in types are used.
func ParseType(expr string, r TypeResolver) (*Type, error) {
	p := typeParser{src: strings.TrimSpace(expr), r: r}
	t, err := p.parse()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, errorf("type "+expr, "unexpected %q", p.src[p.pos:])
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
	r   TypeResolver
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c == '.' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return errorf("type "+p.src, "expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) parse() (*Type, error) {
	name := p.ident()
	if name == "" {
		return nil, errorf("type "+p.src, "missing type name at offset %d", p.pos)
	}

	var t *Type
	switch name {
	case "void":
		t = Void()
	case "list":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		t = ListOf(elem)
	case "map":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		key, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		value, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		t = MapOf(key, value)
	default:
		if k, ok := primitiveKinds[name]; ok {
			t = Primitive(k)
			break
		}
		if p.r == nil {
			return nil, errorf("type "+name, "type not found")
		}
		named, ok := p.r.LookupType(name)
		if !ok {
			return nil, errorf("type "+name, "type not found")
		}
		c := *named
		t = &c
	}

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '?' {
		p.pos++
		if t.IsVoid() {
			return nil, errorf("type "+p.src, "void cannot be nullable")
		}
		t.Nullable = true
	}
	if err := t.validate("type " + p.src); err != nil {
		return nil, err
	}
	return t, nil
}
