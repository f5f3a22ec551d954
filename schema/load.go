// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

type document struct {
	Namespace    string           `yaml:"namespace"`
	Enums        []enumDoc        `yaml:"enums"`
	Messages     []messageDoc     `yaml:"messages"`
	Services     []serviceDoc     `yaml:"services"`
	Applications []applicationDoc `yaml:"applications"`
}

type enumDoc struct {
	Name   string `yaml:"name"`
	Fields []struct {
		ID   int    `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"fields"`
}

type fieldDoc struct {
	ID       int    `yaml:"id"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional"`
	Default  any    `yaml:"default"`
}

type messageDoc struct {
	Name   string     `yaml:"name"`
	Super  string     `yaml:"super"`
	Fields []fieldDoc `yaml:"fields"`
}

type functionDoc struct {
	Name    string     `yaml:"name"`
	Returns string     `yaml:"returns"`
	Super   int        `yaml:"super"`
	Args    []fieldDoc `yaml:"args"`
}

type serviceDoc struct {
	Name     string `yaml:"name"`
	Versions []struct {
		Version   int           `yaml:"version"`
		Functions []functionDoc `yaml:"functions"`
	} `yaml:"versions"`
}

type applicationDoc struct {
	Name   string `yaml:"name"`
	Scopes []struct {
		Name    string `yaml:"name"`
		Service string `yaml:"service"`
		Version int    `yaml:"version"`
		Default bool   `yaml:"default"`
	} `yaml:"scopes"`
}

// LoadFile reads a YAML schema descriptor from path.
func LoadFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("schema load failed (%s): %w", path, err)
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("schema load failed (%s): %w", path, err)
	}
	return s, nil
}

// Load decodes a YAML schema descriptor. Messages may reference each other
// in any order as long as the references are acyclic.
func Load(r io.Reader) (*Schema, error) {
	var doc document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("schema parse failed: %w", err)
	}

	s := New(doc.Namespace)
	for _, ed := range doc.Enums {
		fields := make([]EnumField, 0, len(ed.Fields))
		for _, f := range ed.Fields {
			fields = append(fields, EnumField{ID: f.ID, Name: f.Name})
		}
		e, err := NewEnum(ed.Name, fields...)
		if err != nil {
			return nil, err
		}
		if err := s.AddEnum(e); err != nil {
			return nil, err
		}
	}

	if err := s.loadMessages(doc.Messages); err != nil {
		return nil, err
	}

	for _, sd := range doc.Services {
		defs := make([]VersionDef, 0, len(sd.Versions))
		for _, vd := range sd.Versions {
			def := VersionDef{Number: vd.Version}
			for _, fd := range vd.Functions {
				element := fmt.Sprintf("%s:%d.%s", sd.Name, vd.Version, fd.Name)
				ret := Void()
				if fd.Returns != "" {
					t, err := ParseType(fd.Returns, s)
					if err != nil {
						return nil, errorf(element, "return type: %v", err)
					}
					ret = t
				}
				args, err := s.fields(element, fd.Args)
				if err != nil {
					return nil, err
				}
				def.Functions = append(def.Functions, FunctionDef{Name: fd.Name, Return: ret, Args: args, Super: fd.Super})
			}
			defs = append(defs, def)
		}
		svc, err := NewService(sd.Name, defs...)
		if err != nil {
			return nil, err
		}
		if err := s.AddService(svc); err != nil {
			return nil, err
		}
	}

	for _, ad := range doc.Applications {
		scopes := make([]Scope, 0, len(ad.Scopes))
		for _, sc := range ad.Scopes {
			svc := s.Service(sc.Service)
			if svc == nil {
				return nil, errorf("application "+ad.Name+" scope "+sc.Name, "no such service: %s", sc.Service)
			}
			scopes = append(scopes, Scope{Name: sc.Name, Service: svc, Version: sc.Version, Default: sc.Default})
		}
		app, err := NewApplication(ad.Name, scopes...)
		if err != nil {
			return nil, err
		}
		if err := s.AddApplication(app); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// loadMessages resolves messages until no further progress is possible, so
// declaration order does not matter.
func (s *Schema) loadMessages(docs []messageDoc) error {
	pending := docs
	for len(pending) > 0 {
		var deferred []messageDoc
		var firstErr error
		for _, md := range pending {
			m, err := s.message(md)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				deferred = append(deferred, md)
				continue
			}
			if err := s.AddMessage(m); err != nil {
				return err
			}
		}
		if len(deferred) == len(pending) {
			return firstErr
		}
		pending = deferred
	}
	return nil
}

func (s *Schema) message(md messageDoc) (*Message, error) {
	var super *Message
	if md.Super != "" {
		super = s.Message(md.Super)
		if super == nil {
			return nil, errorf("message "+md.Name, "super message %q not found", md.Super)
		}
	}
	fields, err := s.fields("message "+md.Name, md.Fields)
	if err != nil {
		return nil, err
	}
	return NewMessage(md.Name, super, fields...)
}

func (s *Schema) fields(element string, docs []fieldDoc) ([]*Field, error) {
	out := make([]*Field, 0, len(docs))
	for _, fd := range docs {
		t, err := ParseType(fd.Type, s)
		if err != nil {
			return nil, errorf(element+"."+fd.Name, "%v", err)
		}
		out = append(out, &Field{
			ID:       fd.ID,
			Name:     fd.Name,
			Type:     t,
			Required: !fd.Optional,
			Default:  fd.Default,
		})
	}
	return out, nil
}
