// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageWatermarks(t *testing.T) {
	m, err := NewMessage("Sample", nil,
		RequiredField(1, "a", Primitive(KindInt32)),
		OptionalField(2, "b", Primitive(KindString)),
		OptionalField(5, "c", Primitive(KindInt32)),
	)
	require.NoError(t, err)

	assert.Equal(t, 5, m.MaxID())
	assert.Equal(t, 1, m.MaxRequiredID())
	assert.Nil(t, m.Field(3), "gap ids have no field")
	assert.Equal(t, "b", m.Field(2).Name)
	assert.Equal(t, 2, m.FieldByName("b").ID)

	empty, err := NewMessage("Empty", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.MaxID())
	assert.Equal(t, 0, empty.MaxRequiredID())
}

func TestMessageWithoutRequiredFields(t *testing.T) {
	m := MustMessage("Opt", nil, OptionalField(3, "x", Primitive(KindBool)))
	assert.Equal(t, 3, m.MaxID())
	assert.Equal(t, 0, m.MaxRequiredID())
}

func TestMessageRejectsBadFields(t *testing.T) {
	cases := map[string][]*Field{
		"field id 0 is invalid":   {RequiredField(0, "a", Primitive(KindInt32))},
		"field id < 0 is invalid": {RequiredField(-1, "a", Primitive(KindInt32))},
		"field id 1 is duplicated": {
			RequiredField(1, "a", Primitive(KindInt32)),
			RequiredField(1, "b", Primitive(KindInt32)),
		},
		"field name is duplicated": {
			RequiredField(1, "a", Primitive(KindInt32)),
			RequiredField(2, "a", Primitive(KindInt32)),
		},
		"overflows": {OptionalField(1, "a", Primitive(KindInt8)).WithDefault(300)},
		"non-null default for nullable": {
			OptionalField(1, "a", NullableOf(Primitive(KindInt32))).WithDefault(1),
		},
		"map key must be": {RequiredField(1, "m", MapOf(Primitive(KindRaw), Primitive(KindInt32)))},
	}
	for want, fields := range cases {
		_, err := NewMessage("Bad", nil, fields...)
		require.Error(t, err, want)
		assert.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), want)
	}
}

func TestMessageInheritance(t *testing.T) {
	base := MustMessage("Base", nil, RequiredField(1, "id", Primitive(KindInt64)))
	child, err := NewMessage("Child", base, OptionalField(3, "tag", Primitive(KindString)))
	require.NoError(t, err)

	require.Len(t, child.Fields(), 2)
	assert.Len(t, child.NewFields(), 1)
	assert.Equal(t, 3, child.MaxID())
	assert.Equal(t, 1, child.MaxRequiredID())

	_, err = NewMessage("Clash", base, RequiredField(1, "other", Primitive(KindInt64)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "super message")
}

func TestNormalizedDefaults(t *testing.T) {
	mode, err := NewEnum("Mode", EnumField{ID: 0, Name: "FAST"}, EnumField{ID: 1, Name: "EXACT"})
	require.NoError(t, err)

	m := MustMessage("D", nil,
		OptionalField(1, "n", Primitive(KindInt16)).WithDefault(7),
		OptionalField(2, "u", Primitive(KindUint32)).WithDefault(9),
		OptionalField(3, "f", Primitive(KindFloat64)).WithDefault(2),
		OptionalField(4, "e", EnumOf(mode)).WithDefault("EXACT"),
	)
	assert.Equal(t, int64(7), m.Field(1).Default)
	assert.Equal(t, uint64(9), m.Field(2).Default)
	assert.Equal(t, float64(2), m.Field(3).Default)
	assert.Equal(t, int64(1), m.Field(4).Default)
}

func TestEnumValidation(t *testing.T) {
	_, err := NewEnum("E", EnumField{ID: 0, Name: "A"}, EnumField{ID: 0, Name: "B"})
	assert.ErrorContains(t, err, "duplicated")

	_, err = NewEnum("E")
	assert.ErrorContains(t, err, "empty enum")

	e, err := NewEnum("E", EnumField{ID: 2, Name: "B"}, EnumField{ID: 1, Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, "A", e.Fields[0].Name)
}

func calcService(t *testing.T) *Service {
	t.Helper()
	long := Primitive(KindInt64)
	svc, err := NewService("Calc",
		VersionDef{Number: 1, Functions: []FunctionDef{
			{Name: "add", Return: long, Args: []*Field{RequiredField(1, "a", long), OptionalField(2, "b", long)}},
			{Name: "ping"},
		}},
		VersionDef{Number: 2, Functions: []FunctionDef{
			{Name: "mul", Return: long, Args: []*Field{RequiredField(1, "a", long), RequiredField(2, "b", long)}},
		}},
		VersionDef{Number: 3, Functions: []FunctionDef{
			{Name: "add", Return: long, Super: 1, Args: []*Field{OptionalField(3, "c", long)}},
		}},
	)
	require.NoError(t, err)
	return svc
}

func TestServiceImplicitInheritance(t *testing.T) {
	svc := calcService(t)
	require.Len(t, svc.Versions(), 3)

	v1 := svc.Version(1)
	v2 := svc.Version(2)
	v3 := svc.Version(3)

	ping3 := v3.Function("ping")
	require.NotNil(t, ping3)
	assert.True(t, ping3.Inherited())
	assert.Equal(t, 1, ping3.InheritVersion)
	assert.True(t, ping3.Return.IsVoid())
	assert.Same(t, v1.Function("ping").Args, ping3.Args, "inheritance shares the argument record")

	assert.Equal(t, 1, v2.Function("add").InheritVersion)
	assert.Equal(t, 2, v3.Function("mul").InheritVersion)

	add3 := v3.Function("add")
	assert.False(t, add3.Inherited())
	assert.Equal(t, 1, add3.SuperVersion)
	assert.Same(t, v1.Function("add").Args, add3.Args.Super())
	assert.Equal(t, 3, add3.MaxID())
	assert.Equal(t, 1, add3.MaxRequiredID())

	names := func(fs []*Function) []string {
		var out []string
		for _, f := range fs {
			out = append(out, f.Name)
		}
		return out
	}
	assert.Equal(t, []string{"add", "mul", "ping"}, names(v3.Functions()))
	assert.Equal(t, []string{"add"}, names(v3.Own()))
	assert.Len(t, svc.UpTo(2), 2)
	assert.Nil(t, svc.Version(4))
}

func TestServiceRejectsBrokenChains(t *testing.T) {
	_, err := NewService("S", VersionDef{Number: 2})
	assert.ErrorContains(t, err, "contiguous")

	_, err = NewService("S", VersionDef{Number: 1}, VersionDef{Number: 1})
	assert.ErrorContains(t, err, "duplicated version")

	_, err = NewService("S", VersionDef{Number: 1, Functions: []FunctionDef{{Name: "f", Super: 1}}})
	assert.ErrorContains(t, err, "must be an earlier version")

	_, err = NewService("S",
		VersionDef{Number: 1},
		VersionDef{Number: 2, Functions: []FunctionDef{{Name: "f", Super: 1}}},
	)
	assert.ErrorContains(t, err, "no such function at super version")

	_, err = NewService("S", VersionDef{Number: 1, Functions: []FunctionDef{{Name: "f"}, {Name: "f"}}})
	assert.ErrorContains(t, err, "duplicated function name")
}

func TestApplicationDefaults(t *testing.T) {
	svc := calcService(t)

	app, err := NewApplication("App",
		Scope{Name: "a", Service: svc, Version: 1},
		Scope{Name: "b", Service: svc, Version: 3},
	)
	require.NoError(t, err)
	assert.Equal(t, "a", app.DefaultScope().Name, "first scope is the default when none is flagged")

	app, err = NewApplication("App",
		Scope{Name: "a", Service: svc, Version: 1},
		Scope{Name: "b", Service: svc, Version: 3, Default: true},
	)
	require.NoError(t, err)
	assert.Equal(t, "b", app.DefaultScope().Name)
	assert.False(t, app.Scope("a").Default)

	_, err = NewApplication("App",
		Scope{Name: "a", Service: svc, Version: 1, Default: true},
		Scope{Name: "b", Service: svc, Version: 2, Default: true},
	)
	assert.ErrorContains(t, err, "multiple default scopes")

	_, err = NewApplication("App", Scope{Name: "a", Service: svc, Version: 9})
	assert.ErrorContains(t, err, "no such service version")

	_, err = NewApplication("App",
		Scope{Name: "a", Service: svc, Version: 1},
		Scope{Name: "a", Service: svc, Version: 2},
	)
	assert.ErrorContains(t, err, "duplicated scope name")

	single := ServiceApplication(svc)
	assert.Equal(t, "", single.DefaultScope().Name)
	assert.Equal(t, 3, single.DefaultScope().Version)
}

func TestParseType(t *testing.T) {
	s := New("test")
	require.NoError(t, s.AddMessage(MustMessage("Point", nil, RequiredField(1, "x", Primitive(KindInt32)))))

	cases := map[string]string{
		"int":                     "int",
		"string?":                 "string?",
		"list<Point>":             "list<Point>",
		"map<string, list<int>>":  "map<string,list<int>>",
		"map<long,Point?>?":       "map<long,Point?>?",
		"void":                    "void",
	}
	for in, want := range cases {
		typ, err := ParseType(in, s)
		require.NoError(t, err, in)
		assert.Equal(t, want, typ.String(), in)
	}

	for _, bad := range []string{"Nope", "list<int", "map<int>", "void?", "int int"} {
		_, err := ParseType(bad, s)
		assert.Error(t, err, bad)
	}
}

func TestSchemaNamesAreShared(t *testing.T) {
	s := New("test")
	require.NoError(t, s.AddMessage(MustMessage("Calc", nil)))
	err := s.AddService(calcService(t))
	assert.ErrorContains(t, err, "duplicated name")

	err = s.AddMessage(MustMessage("int", nil))
	assert.ErrorContains(t, err, "reserved")
}

func TestLoadFile(t *testing.T) {
	s, err := LoadFile("testdata/calc.yaml")
	require.NoError(t, err)

	assert.Equal(t, "com.example.calc", s.Namespace)
	result := s.Message("Result")
	require.NotNil(t, result)
	assert.Equal(t, 4, result.MaxID())
	assert.Equal(t, 2, result.MaxRequiredID())
	assert.True(t, result.Field(2).Type.Nullable)
	assert.Equal(t, int64(1), result.Field(4).Default)

	calc := s.Service("Calc")
	require.NotNil(t, calc)
	assert.Equal(t, "Result", calc.Version(2).Function("div").Return.String())
	assert.Equal(t, 1, calc.Version(3).Function("add").SuperVersion)

	app := s.Application("Gateway")
	require.NotNil(t, app)
	assert.Equal(t, "calc", app.DefaultScope().Name)
	assert.Len(t, app.Scopes(), 2)

	implicit := s.Application("Calc")
	require.NotNil(t, implicit)
	assert.Equal(t, 3, implicit.DefaultScope().Version)
}

func TestLoadResolvesForwardReferences(t *testing.T) {
	doc := `
messages:
  - name: Outer
    fields:
      - {id: 1, name: inner, type: Inner}
  - name: Inner
    fields:
      - {id: 1, name: x, type: int}
`
	s, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Same(t, s.Message("Inner"), s.Message("Outer").Field(1).Type.Message)
}

func TestLoadFlowStyleTypes(t *testing.T) {
	doc := `
messages:
  - name: Entry
    fields:
      - {id: 1, name: note, type: "string?"}
      - {id: 2, name: tags, type: "list<int?>"}
      - {id: 3, name: counts, type: "map<string,long>", optional: true}
`
	s, err := Load(strings.NewReader(doc))
	require.NoError(t, err)
	entry := s.Message("Entry")
	require.NotNil(t, entry)
	assert.Equal(t, "string?", entry.Field(1).Type.String())
	assert.Equal(t, "list<int?>", entry.Field(2).Type.String())
	assert.Equal(t, "map<string,long>", entry.Field(3).Type.String())

	// a bare "?" ends a flow mapping entry in YAML
	_, err = Load(strings.NewReader(`
messages:
  - name: Entry
    fields:
      - {id: 1, name: note, type: string?}
`))
	assert.ErrorContains(t, err, "schema parse failed")
}

func TestLoadReportsUnknownTypes(t *testing.T) {
	doc := `
messages:
  - name: Broken
    fields:
      - {id: 1, name: x, type: Missing}
`
	_, err := Load(strings.NewReader(doc))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type not found")
}
