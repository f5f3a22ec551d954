// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package record

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/luxfi/msgrpc/errdefs"
	"github.com/luxfi/msgrpc/schema"
)

// Record holds one value per field of its message.
type Record struct {
	msg    *schema.Message
	values map[int]any
}

// New returns a record with every field at its default.
func New(msg *schema.Message) *Record {
	r := &Record{msg: msg, values: make(map[int]any, len(msg.Fields()))}
	for _, f := range msg.Fields() {
		r.values[f.ID] = defaultValue(f)
	}
	return r
}

func (r *Record) Message() *schema.Message { return r.msg }

// Lookup returns the value of the named field.
func (r *Record) Lookup(name string) (any, bool) {
	f := r.msg.FieldByName(name)
	if f == nil {
		return nil, false
	}
	return r.values[f.ID], true
}

// Get returns the value of the named field, or nil when there is none.
func (r *Record) Get(name string) any {
	v, _ := r.Lookup(name)
	return v
}

// ByID returns the value stored at a field id.
func (r *Record) ByID(id int) any { return r.values[id] }

// Set converts v to the field's canonical form and stores it.
func (r *Record) Set(name string, v any) error {
	f := r.msg.FieldByName(name)
	if f == nil {
		return fmt.Errorf("record: %s has no field %q", r.msg.Name(), name)
	}
	return r.set(f, v)
}

// SetID is Set addressed by field id.
func (r *Record) SetID(id int, v any) error {
	f := r.msg.Field(id)
	if f == nil {
		return fmt.Errorf("record: %s has no field %d", r.msg.Name(), id)
	}
	return r.set(f, v)
}

// set stores nil on an optional field as a reset to its default.
func (r *Record) set(f *schema.Field, v any) error {
	if v == nil && !f.Required {
		r.values[f.ID] = defaultValue(f)
		return nil
	}
	c, err := Convert(f.Type, v)
	if err != nil {
		return fieldError(r.msg, f, err)
	}
	r.values[f.ID] = c
	return nil
}

// IsNull reports whether the named field holds null.
func (r *Record) IsNull(name string) bool {
	v, ok := r.Lookup(name)
	return ok && v == nil
}

func (r *Record) Int(name string) int64 {
	n, _ := r.Get(name).(int64)
	return n
}

func (r *Record) Uint(name string) uint64 {
	n, _ := r.Get(name).(uint64)
	return n
}

func (r *Record) Float(name string) float64 {
	n, _ := r.Get(name).(float64)
	return n
}

func (r *Record) Bool(name string) bool {
	b, _ := r.Get(name).(bool)
	return b
}

func (r *Record) String(name string) string {
	s, _ := r.Get(name).(string)
	return s
}

func (r *Record) Bytes(name string) []byte {
	b, _ := r.Get(name).([]byte)
	return b
}

func (r *Record) List(name string) []any {
	l, _ := r.Get(name).([]any)
	return l
}

func (r *Record) Map(name string) map[any]any {
	m, _ := r.Get(name).(map[any]any)
	return m
}

func (r *Record) Record(name string) *Record {
	n, _ := r.Get(name).(*Record)
	return n
}

// Equal reports whether o is a record of the same message with equal values.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.msg == o.msg && reflect.DeepEqual(r.values, o.values)
}

// Dump renders the record for logs, fields ordered by id.
func (r *Record) Dump() string {
	ids := make([]int, 0, len(r.values))
	for id := range r.values {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var b strings.Builder
	b.WriteString(r.msg.Name())
	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(' ')
		}
		v := r.values[id]
		if nested, ok := v.(*Record); ok {
			fmt.Fprintf(&b, "%s:%s", r.msg.Field(id).Name, nested.Dump())
			continue
		}
		fmt.Fprintf(&b, "%s:%v", r.msg.Field(id).Name, v)
	}
	b.WriteByte('}')
	return b.String()
}

func fieldError(msg *schema.Message, f *schema.Field, err error) error {
	if _, ok := err.(*errdefs.ShapeError); ok {
		return err
	}
	return &errdefs.ShapeError{Message: msg.Name(), FieldID: f.ID, Field: f.Name, Reason: err.Error()}
}
