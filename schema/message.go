// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

import "sort"

// Field is one slot of a message or one argument of a function.
// Default holds an explicit initial value; nil selects the implicit default
// of the type.
type Field struct {
	ID       int
	Name     string
	Type     *Type
	Required bool
	Default  any
}

// RequiredField declares a field that must be present on the wire.
func RequiredField(id int, name string, t *Type) *Field {
	return &Field{ID: id, Name: name, Type: t, Required: true}
}

// OptionalField declares a field an older payload may omit.
func OptionalField(id int, name string, t *Type) *Field {
	return &Field{ID: id, Name: name, Type: t}
}

// WithDefault sets an explicit initial value and returns f.
func (f *Field) WithDefault(v any) *Field {
	f.Default = v
	return f
}

// Optional reports whether f may be absent from a shorter payload.
func (f *Field) Optional() bool { return !f.Required }

// Message is an ordered collection of fields keyed by id.
type Message struct {
	name          string
	super         *Message
	own           []*Field
	all           []*Field
	byID          map[int]*Field
	byName        map[string]*Field
	maxID         int
	maxRequiredID int
}

// NewMessage validates fields and derives the id watermarks. When super is
// non-nil the message extends it: all fields are the super fields plus the
// new ones, and neither ids nor names may collide.
func NewMessage(name string, super *Message, fields ...*Field) (*Message, error) {
	m := &Message{
		name:   name,
		super:  super,
		byID:   make(map[int]*Field),
		byName: make(map[string]*Field),
	}
	if super != nil {
		for _, f := range super.all {
			m.byID[f.ID] = f
			m.byName[f.Name] = f
		}
	}

	for _, in := range fields {
		element := "message " + name
		if in == nil {
			return nil, errorf(element, "nil field")
		}
		f := *in
		element += "." + f.Name
		switch {
		case f.ID == 0:
			return nil, errorf(element, "field id 0 is invalid")
		case f.ID < 0:
			return nil, errorf(element, "field id < 0 is invalid")
		case f.Name == "":
			return nil, errorf(element, "field %d has no name", f.ID)
		case f.Type == nil || f.Type.IsVoid():
			return nil, errorf(element, "field %d has no type", f.ID)
		}
		if prev, ok := m.byID[f.ID]; ok {
			if super != nil && super.byID[f.ID] != nil {
				return nil, errorf(element, "field id %d is duplicated with super message field %q", f.ID, prev.Name)
			}
			return nil, errorf(element, "field id %d is duplicated with field %q", f.ID, prev.Name)
		}
		if prev, ok := m.byName[f.Name]; ok {
			if super != nil && super.byName[f.Name] != nil {
				return nil, errorf(element, "field name is duplicated with super message id %d", prev.ID)
			}
			return nil, errorf(element, "field name is duplicated with id %d", prev.ID)
		}
		if err := f.Type.validate(element); err != nil {
			return nil, err
		}
		if f.Default != nil {
			v, err := normalizeDefault(f.Type, f.Default)
			if err != nil {
				return nil, errorf(element, "%v", err)
			}
			f.Default = v
		}

		m.byID[f.ID] = &f
		m.byName[f.Name] = &f
		m.own = append(m.own, &f)
	}

	sort.Slice(m.own, func(i, j int) bool { return m.own[i].ID < m.own[j].ID })
	m.all = make([]*Field, 0, len(m.byID))
	for _, f := range m.byID {
		m.all = append(m.all, f)
	}
	sort.Slice(m.all, func(i, j int) bool { return m.all[i].ID < m.all[j].ID })

	for _, f := range m.all {
		if f.ID > m.maxID {
			m.maxID = f.ID
		}
		if f.Required && f.ID > m.maxRequiredID {
			m.maxRequiredID = f.ID
		}
	}
	return m, nil
}

// MustMessage is NewMessage that panics on error. Intended for fixtures.
func MustMessage(name string, super *Message, fields ...*Field) *Message {
	m, err := NewMessage(name, super, fields...)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Message) Name() string { return m.name }

// Super returns the extended message, or nil.
func (m *Message) Super() *Message { return m.super }

// Fields returns every field, super fields included, ordered by id.
func (m *Message) Fields() []*Field { return m.all }

// NewFields returns only the fields declared on m itself.
func (m *Message) NewFields() []*Field { return m.own }

// Field returns the field with the given id, or nil for a gap.
func (m *Message) Field(id int) *Field { return m.byID[id] }

// FieldByName returns the named field, or nil.
func (m *Message) FieldByName(name string) *Field { return m.byName[name] }

// MaxID is the largest field id, or 0 for an empty message.
func (m *Message) MaxID() int { return m.maxID }

// MaxRequiredID is the largest id among required fields, or 0.
func (m *Message) MaxRequiredID() int { return m.maxRequiredID }

// EnumField is one named constant of an enum.
type EnumField struct {
	ID   int
	Name string
}

// Enum is a closed set of integer-coded constants.
type Enum struct {
	Name   string
	Fields []EnumField

	byID   map[int]EnumField
	byName map[string]EnumField
}

// NewEnum validates ids (>= 0, unique) and names, and orders fields by id.
func NewEnum(name string, fields ...EnumField) (*Enum, error) {
	e := &Enum{
		Name:   name,
		byID:   make(map[int]EnumField, len(fields)),
		byName: make(map[string]EnumField, len(fields)),
	}
	for _, f := range fields {
		element := "enum " + name + "." + f.Name
		if f.ID < 0 {
			return nil, errorf(element, "enum id < 0 is invalid")
		}
		if prev, ok := e.byID[f.ID]; ok {
			return nil, errorf(element, "enum field id %d is duplicated with %q", f.ID, prev.Name)
		}
		if prev, ok := e.byName[f.Name]; ok {
			return nil, errorf(element, "enum field name is duplicated with id %d", prev.ID)
		}
		e.byID[f.ID] = f
		e.byName[f.Name] = f
		e.Fields = append(e.Fields, f)
	}
	if len(e.Fields) == 0 {
		return nil, errorf("enum "+name, "empty enum is not allowed")
	}
	sort.Slice(e.Fields, func(i, j int) bool { return e.Fields[i].ID < e.Fields[j].ID })
	return e, nil
}

// ByID returns the constant with the given id.
func (e *Enum) ByID(id int) (EnumField, bool) {
	f, ok := e.byID[id]
	return f, ok
}

// ByName returns the constant with the given name.
func (e *Enum) ByName(name string) (EnumField, bool) {
	f, ok := e.byName[name]
	return f, ok
}
