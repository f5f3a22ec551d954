// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

// Scope binds a routing namespace to a service version.
type Scope struct {
	Name    string
	Service *Service
	Version int
	Default bool
}

// Application is the set of scopes exposed at one boundary. Exactly one
// scope is the default.
type Application struct {
	name   string
	scopes []*Scope
	def    *Scope
}

// NewApplication validates scopes. Scope names must be unique, every scope
// must reference an existing version, and at most one scope may be flagged
// default. With no flagged scope the first one becomes the default.
func NewApplication(name string, scopes ...Scope) (*Application, error) {
	element := "application " + name
	if len(scopes) == 0 {
		return nil, errorf(element, "application has no scopes")
	}

	var flagged []string
	for _, s := range scopes {
		if s.Default {
			flagged = append(flagged, s.Name)
		}
	}
	if len(flagged) > 1 {
		return nil, errorf(element, "multiple default scopes: %v", flagged)
	}
	defName := scopes[0].Name
	if len(flagged) == 1 {
		defName = flagged[0]
	}

	app := &Application{name: name}
	used := make(map[string]bool, len(scopes))
	for _, in := range scopes {
		s := in
		se := element + " scope " + s.Name
		if used[s.Name] {
			return nil, errorf(se, "duplicated scope name")
		}
		if s.Service == nil {
			return nil, errorf(se, "no such service")
		}
		if s.Service.Version(s.Version) == nil {
			return nil, errorf(se, "no such service version: %s:%d", s.Service.Name(), s.Version)
		}
		used[s.Name] = true
		s.Default = s.Name == defName
		app.scopes = append(app.scopes, &s)
		if s.Default {
			app.def = app.scopes[len(app.scopes)-1]
		}
	}
	return app, nil
}

// ServiceApplication exposes a single service under the unnamed default
// scope at its latest version.
func ServiceApplication(s *Service) *Application {
	sc := &Scope{Name: "", Service: s, Version: s.Latest().Number(), Default: true}
	return &Application{name: s.Name(), scopes: []*Scope{sc}, def: sc}
}

func (a *Application) Name() string { return a.name }

// Scopes returns the scopes in declaration order.
func (a *Application) Scopes() []*Scope { return a.scopes }

// DefaultScope returns the default scope.
func (a *Application) DefaultScope() *Scope { return a.def }

// Scope returns the named scope, or nil.
func (a *Application) Scope(name string) *Scope {
	for _, s := range a.scopes {
		if s.Name == name {
			return s
		}
	}
	return nil
}
