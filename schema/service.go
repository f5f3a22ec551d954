// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

import (
	"sort"
	"strconv"
)

// Function is a callable entry of a service version. Its arguments form a
// synthetic message named after the function, so every call has the same
// single-record wire shape.
//
// InheritVersion is non-zero when the function was not redefined at this
// version; it names the version that declared it. SuperVersion is non-zero
// when the argument record extends the record of that earlier version.
type Function struct {
	Name           string
	Return         *Type
	Args           *Message
	InheritVersion int
	SuperVersion   int

	definedAt int
}

// Inherited reports whether f is carried over from an earlier version.
func (f *Function) Inherited() bool { return f.InheritVersion > 0 }

// DefinedAt returns the version that declared f.
func (f *Function) DefinedAt() int { return f.definedAt }

func (f *Function) MaxID() int         { return f.Args.MaxID() }
func (f *Function) MaxRequiredID() int { return f.Args.MaxRequiredID() }

// FunctionDef declares a function at one version. Super, when set, makes
// the argument record extend the same function's record at that version.
type FunctionDef struct {
	Name   string
	Return *Type
	Args   []*Field
	Super  int
}

// VersionDef lists the functions introduced or redefined at a version.
type VersionDef struct {
	Number    int
	Functions []FunctionDef
}

// Version is the flat set of functions callable at one service version.
type Version struct {
	number    int
	functions []*Function
	byName    map[string]*Function
}

func (v *Version) Number() int { return v.number }

// Functions returns every callable function ordered by name.
func (v *Version) Functions() []*Function { return v.functions }

// Function returns the named function, or nil.
func (v *Version) Function(name string) *Function { return v.byName[name] }

// Own returns the functions declared at this version.
func (v *Version) Own() []*Function {
	var out []*Function
	for _, f := range v.functions {
		if !f.Inherited() {
			out = append(out, f)
		}
	}
	return out
}

// Service is a contiguous chain of versions 1..N.
type Service struct {
	name     string
	versions []*Version
}

// NewService resolves the version chain. Versions must be exactly 1..N.
// Functions of V-1 that V does not redeclare are inherited by V.
func NewService(name string, defs ...VersionDef) (*Service, error) {
	element := "service " + name
	if name == "" {
		return nil, errorf(element, "service has no name")
	}
	if len(defs) == 0 {
		return nil, errorf(element, "service has no versions")
	}
	sorted := append([]VersionDef(nil), defs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	for i, d := range sorted {
		if d.Number != i+1 {
			if i > 0 && sorted[i-1].Number == d.Number {
				return nil, errorf(element, "duplicated version %d", d.Number)
			}
			return nil, errorf(element, "versions must be contiguous from 1, got %d at position %d", d.Number, i+1)
		}
	}

	s := &Service{name: name}
	for _, d := range sorted {
		v, err := s.resolveVersion(d)
		if err != nil {
			return nil, err
		}
		s.versions = append(s.versions, v)
	}
	return s, nil
}

// MustService is NewService that panics on error. Intended for fixtures.
func MustService(name string, defs ...VersionDef) *Service {
	s, err := NewService(name, defs...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Service) resolveVersion(d VersionDef) (*Version, error) {
	v := &Version{number: d.Number, byName: make(map[string]*Function)}
	element := s.name + ":" + strconv.Itoa(d.Number)

	for _, fd := range d.Functions {
		fe := element + "." + fd.Name
		if fd.Name == "" {
			return nil, errorf(element, "function has no name")
		}
		if _, dup := v.byName[fd.Name]; dup {
			return nil, errorf(fe, "duplicated function name")
		}
		ret := fd.Return
		if ret == nil {
			ret = Void()
		}
		if !ret.IsVoid() {
			if err := ret.validate(fe); err != nil {
				return nil, err
			}
		}

		var super *Message
		if fd.Super != 0 {
			if fd.Super < 1 || fd.Super >= d.Number {
				return nil, errorf(fe, "super version %d must be an earlier version", fd.Super)
			}
			base := s.versions[fd.Super-1].Function(fd.Name)
			if base == nil {
				return nil, errorf(fe, "no such function at super version %d", fd.Super)
			}
			if !base.Return.Equal(ret) {
				return nil, errorf(fe, "return type %s does not match %s at super version %d", ret, base.Return, fd.Super)
			}
			super = base.Args
		}

		args, err := NewMessage(fd.Name, super, fd.Args...)
		if err != nil {
			return nil, errorf(fe, "arguments: %v", err)
		}
		f := &Function{
			Name:         fd.Name,
			Return:       ret,
			Args:         args,
			SuperVersion: fd.Super,
			definedAt:    d.Number,
		}
		v.byName[f.Name] = f
		v.functions = append(v.functions, f)
	}

	if d.Number > 1 {
		for _, prev := range s.versions[d.Number-2].functions {
			if _, redefined := v.byName[prev.Name]; redefined {
				continue
			}
			inherited := *prev
			inherited.InheritVersion = prev.definedAt
			inherited.SuperVersion = 0
			v.byName[inherited.Name] = &inherited
			v.functions = append(v.functions, &inherited)
		}
	}

	sort.Slice(v.functions, func(i, j int) bool { return v.functions[i].Name < v.functions[j].Name })
	return v, nil
}

func (s *Service) Name() string { return s.name }

// Versions returns the chain ordered from 1.
func (s *Service) Versions() []*Version { return s.versions }

// Version returns version n, or nil when out of range.
func (s *Service) Version(n int) *Version {
	if n < 1 || n > len(s.versions) {
		return nil
	}
	return s.versions[n-1]
}

// Latest returns the highest version.
func (s *Service) Latest() *Version { return s.versions[len(s.versions)-1] }

// UpTo returns versions 1..n.
func (s *Service) UpTo(n int) []*Version {
	if n > len(s.versions) {
		n = len(s.versions)
	}
	if n < 0 {
		n = 0
	}
	return s.versions[:n]
}
