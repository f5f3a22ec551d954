// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

import "sort"

var reservedNames = map[string]bool{"list": true, "map": true, "void": true, "nullable": true}

// Schema is a namespace of named types, services and applications. Names
// share one space: a message cannot have the same name as a service.
type Schema struct {
	Namespace string

	names        map[string]bool
	types        map[string]*Type
	messages     []*Message
	enums        []*Enum
	services     map[string]*Service
	applications map[string]*Application
}

// New returns an empty schema.
func New(namespace string) *Schema {
	return &Schema{
		Namespace:    namespace,
		names:        make(map[string]bool),
		types:        make(map[string]*Type),
		services:     make(map[string]*Service),
		applications: make(map[string]*Application),
	}
}

func (s *Schema) claim(kind, name string) error {
	if _, builtin := primitiveKinds[name]; builtin || reservedNames[name] {
		return errorf(kind+" "+name, "name is reserved")
	}
	if s.names[name] {
		return errorf(kind+" "+name, "duplicated name")
	}
	s.names[name] = true
	return nil
}

func (s *Schema) AddMessage(m *Message) error {
	if err := s.claim("message", m.Name()); err != nil {
		return err
	}
	s.types[m.Name()] = MessageOf(m)
	s.messages = append(s.messages, m)
	return nil
}

func (s *Schema) AddEnum(e *Enum) error {
	if err := s.claim("enum", e.Name); err != nil {
		return err
	}
	s.types[e.Name] = EnumOf(e)
	s.enums = append(s.enums, e)
	return nil
}

func (s *Schema) AddService(svc *Service) error {
	if err := s.claim("service", svc.Name()); err != nil {
		return err
	}
	s.services[svc.Name()] = svc
	return nil
}

func (s *Schema) AddApplication(a *Application) error {
	if err := s.claim("application", a.Name()); err != nil {
		return err
	}
	s.applications[a.Name()] = a
	return nil
}

// LookupType resolves a message or enum name.
func (s *Schema) LookupType(name string) (*Type, bool) {
	t, ok := s.types[name]
	return t, ok
}

func (s *Schema) Messages() []*Message { return s.messages }
func (s *Schema) Enums() []*Enum       { return s.enums }

// Message returns the named message, or nil.
func (s *Schema) Message(name string) *Message {
	if t, ok := s.types[name]; ok && t.Kind == KindMessage {
		return t.Message
	}
	return nil
}

// Service returns the named service, or nil.
func (s *Schema) Service(name string) *Service { return s.services[name] }

// Services returns all services ordered by name.
func (s *Schema) Services() []*Service {
	out := make([]*Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Application returns the named application. A service name resolves to
// that service's implicit single-scope application.
func (s *Schema) Application(name string) *Application {
	if a, ok := s.applications[name]; ok {
		return a
	}
	if svc, ok := s.services[name]; ok {
		return ServiceApplication(svc)
	}
	return nil
}

// Applications returns the declared applications ordered by name.
func (s *Schema) Applications() []*Application {
	out := make([]*Application, 0, len(s.applications))
	for _, a := range s.applications {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
