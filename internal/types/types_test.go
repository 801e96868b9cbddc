package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSet(t *testing.T, elem *Type, mutable bool) *Type {
	t.Helper()
	s, err := NewSet(elem, mutable)
	require.NoError(t, err)
	return s
}

func mustMap(t *testing.T, key, value *Type, mutable bool) *Type {
	t.Helper()
	m, err := NewMap(key, value, mutable)
	require.NoError(t, err)
	return m
}

func mustOneof(t *testing.T, variants ...*Type) *Type {
	t.Helper()
	o, err := NewOneof(variants)
	require.NoError(t, err)
	return o
}

func TestCanonicalStrings(t *testing.T) {
	tests := []struct {
		name string
		typ  *Type
		want string
	}{
		{"int", Int(), "int"},
		{"mut list", NewList(Int(), true), "mut list<int>"},
		{"nested list", NewList(NewList(String(), false), false), "list<list<string>>"},
		{"map", mustMap(t, String(), Int(), false), "map<string, int>"},
		{"mut map", mustMap(t, String(), NewList(Int(), true), true), "mut map<string, mut list<int>>"},
		{"set", mustSet(t, Float(), false), "set<float>"},
		{"tuple", NewTuple([]*Type{Int(), String()}, false), "tuple<int, string>"},
		{"struct", NewStruct([]Field{{"a", Int()}, {"b", String()}}, false), "struct{a: int, b: string}"},
		{"mut struct", NewStruct([]Field{{"a", Int()}}, true), "mut struct{a: int}"},
		{"future", NewFuture(Int()), "future<int>"},
		{"user defined", NewUserDefined("Id"), "Id"},
		{"user defined generic", NewUserDefined("Box", Int(), String()), "Box<int, string>"},
		{"function", NewFunction(ProcSpec{Args: []*Type{Int(), Int()}, Return: Bool()}), "function<int, int -> boolean>"},
		{"provider", NewProvider(ProcSpec{Return: Int()}), "provider<int>"},
		{"consumer", NewConsumer(ProcSpec{Args: []*Type{String()}}), "consumer<string>"},
		{
			"blocking function",
			NewFunction(ProcSpec{Args: []*Type{Int()}, Return: Int(), Blocking: BlockingAlways}),
			"blocking function<int -> int>",
		},
		{
			"blocking generic",
			NewFunction(ProcSpec{Args: []*Type{Int(), Int(), Int()}, Return: Int(), Blocking: BlockingGeneric, BlockingArgs: []int{0, 2}}),
			"blocking:0|2 function<int, int, int -> int>",
		},
		{"generic param", NewGenericParam("T"), "T"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.typ.String())
		})
	}
}

func TestOneofCanonicalOrderIsSorted(t *testing.T) {
	a := mustOneof(t, Int(), Float())
	b := mustOneof(t, Float(), Int())
	assert.Equal(t, "oneof<float|int>", a.String())
	assert.Equal(t, a.String(), b.String())
	assert.True(t, a.Equals(b))
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestOneofRejectsDuplicateVariants(t *testing.T) {
	_, err := NewOneof([]*Type{Int(), String(), Int()})
	require.Error(t, err)
}

func TestSetAndMapRejectFutures(t *testing.T) {
	_, err := NewSet(NewFuture(Int()), false)
	require.Error(t, err)
	_, err = NewMap(NewFuture(Int()), Int(), false)
	require.Error(t, err)
	// Future values in a map are fine; only keys hash.
	_, err = NewMap(Int(), NewFuture(Int()), false)
	require.NoError(t, err)
}

func TestEqualsIsStructural(t *testing.T) {
	assert.True(t, NewList(Int(), false).Equals(NewList(Int(), false)))
	assert.False(t, NewList(Int(), false).Equals(NewList(Int(), true)), "mutability participates")
	assert.False(t, NewList(Int(), false).Equals(NewList(Float(), false)))
	assert.False(t, NewUserDefined("A").Equals(NewUserDefined("B")), "nominal types compare by name")

	// Procedure metadata (generic names, required contracts) is ignored.
	f1 := NewFunction(ProcSpec{Args: []*Type{NewGenericParam("T")}, Return: NewGenericParam("T"), Generics: []string{"T"}})
	f2 := NewFunction(ProcSpec{Args: []*Type{NewGenericParam("T")}, Return: NewGenericParam("T"),
		Requires: []ContractRef{{Name: "Eq", Args: []*Type{NewGenericParam("T")}}}})
	assert.True(t, f1.Equals(f2))

	// The blocking annotation is not metadata.
	b := NewFunction(ProcSpec{Args: []*Type{NewGenericParam("T")}, Return: NewGenericParam("T"), Blocking: BlockingAlways})
	assert.False(t, f1.Equals(b))
}

// Property 1: deep immutability implies no mutable flag anywhere in the
// transitive structure.
func TestIsDeeplyImmutable(t *testing.T) {
	reg := NewRegistries()

	tests := []struct {
		name string
		typ  *Type
		want bool
	}{
		{"primitive", Int(), true},
		{"immutable list", NewList(Int(), false), true},
		{"mutable list", NewList(Int(), true), false},
		{"nested mutable", NewList(NewList(Int(), true), false), false},
		{"struct with mutable field", NewStruct([]Field{{"a", NewList(Int(), true)}}, false), false},
		{"immutable struct", NewStruct([]Field{{"a", NewList(Int(), false)}}, false), true},
		{"future of immutable", NewFuture(Int()), true},
		{"future of mutable", NewFuture(NewList(Int(), true)), false},
		{"oneof clean", mustOneof(t, Int(), String()), true},
		{"oneof with mutable", mustOneof(t, Int(), NewList(Int(), true)), false},
		{"procedure", NewFunction(ProcSpec{Args: []*Type{Int()}, Return: Int()}), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.typ.IsDeeplyImmutable(reg))
		})
	}
}

func TestDeepImmutabilityThroughUserDefined(t *testing.T) {
	reg := NewRegistries()
	reg.Register("CleanId", nil, Int())
	reg.Register("DirtyBag", nil, NewList(Int(), true))
	reg.Register("Box", []string{"T"}, NewStruct([]Field{{"value", NewGenericParam("T")}}, false))

	assert.True(t, NewUserDefined("CleanId").IsDeeplyImmutable(reg))
	assert.False(t, NewUserDefined("DirtyBag").IsDeeplyImmutable(reg))
	assert.True(t, NewUserDefined("Box", Int()).IsDeeplyImmutable(reg))
	assert.False(t, NewUserDefined("Box", NewList(Int(), true)).IsDeeplyImmutable(reg))
}

func TestDeepImmutabilitySelfReferentialType(t *testing.T) {
	reg := NewRegistries()
	// newtype Node : struct{next: Node, label: string}
	reg.Register("Node", nil, NewStruct([]Field{
		{"next", NewUserDefined("Node")},
		{"label", String()},
	}, false))
	assert.True(t, NewUserDefined("Node").IsDeeplyImmutable(reg))

	reg.Register("MutNode", nil, NewStruct([]Field{
		{"next", NewUserDefined("MutNode")},
		{"labels", NewList(String(), true)},
	}, false))
	assert.False(t, NewUserDefined("MutNode").IsDeeplyImmutable(reg))
}

// Property 2: to_shallowly_mutable flips only the outermost flag.
func TestToShallowlyMutable(t *testing.T) {
	reg := NewRegistries()
	containers := []*Type{
		NewList(Int(), false),
		mustSet(t, Int(), false),
		mustMap(t, String(), Int(), false),
		NewTuple([]*Type{Int(), String()}, false),
		NewStruct([]Field{{"a", Int()}}, false),
	}
	for _, c := range containers {
		m, err := c.ToShallowlyMutable()
		require.NoError(t, err, c.String())
		assert.True(t, m.IsMutable())
		// Structure under the flag is untouched.
		imm, ok := m.ToDeeplyImmutable(reg)
		require.True(t, ok)
		assert.True(t, c.Equals(imm))
	}

	_, err := Int().ToShallowlyMutable()
	require.Error(t, err)
	_, err = NewFuture(Int()).ToShallowlyMutable()
	require.Error(t, err)
}

// Property 3: whenever a deeply-immutable variant exists, converting yields
// a deeply-immutable type.
func TestToDeeplyImmutable(t *testing.T) {
	reg := NewRegistries()
	reg.Register("DirtyBag", nil, NewList(Int(), true))

	convertible := []*Type{
		NewList(NewList(Int(), true), true),
		mustMap(t, String(), NewList(Int(), true), true),
		NewStruct([]Field{{"a", NewList(Int(), true)}}, true),
		NewTuple([]*Type{NewList(Int(), true)}, true),
		mustOneof(t, Int(), NewList(Int(), true)),
		NewFuture(Int()),
	}
	for _, c := range convertible {
		imm, ok := c.ToDeeplyImmutable(reg)
		require.True(t, ok, c.String())
		assert.True(t, imm.IsDeeplyImmutable(reg), imm.String())
	}

	_, ok := NewFuture(NewList(Int(), true)).ToDeeplyImmutable(reg)
	assert.False(t, ok, "future payloads cannot be coerced")
	_, ok = NewUserDefined("DirtyBag").ToDeeplyImmutable(reg)
	assert.False(t, ok, "nominal wrappers cannot be rebuilt")

	rec, ok := DeeplyImmutableRecommendation(NewList(Int(), true), reg)
	require.True(t, ok)
	assert.Equal(t, "list<int>", rec)
}

// Property 4: equal types produce identical canonical strings.
func TestEqualTypesFormatIdentically(t *testing.T) {
	pairs := [][2]*Type{
		{mustOneof(t, Int(), Float()), mustOneof(t, Float(), Int())},
		{NewStruct([]Field{{"a", Int()}}, true), NewStruct([]Field{{"a", Int()}}, true)},
		{NewFunction(ProcSpec{Args: []*Type{Int()}, Return: Int(), Generics: []string{"X"}}),
			NewFunction(ProcSpec{Args: []*Type{Int()}, Return: Int()})},
	}
	for _, p := range pairs {
		require.True(t, p[0].Equals(p[1]))
		assert.Equal(t, p[0].String(), p[1].String())
		assert.Equal(t, p[0].Hash(), p[1].Hash())
	}
}

func TestDiagnosticStringSubstitutesGenerics(t *testing.T) {
	f := NewFunction(ProcSpec{
		Args:     []*Type{NewGenericParam("T"), NewList(NewGenericParam("T"), false)},
		Return:   NewGenericParam("T"),
		Generics: []string{"T"},
	})
	assert.Equal(t, "function<T, list<T> -> T>", f.String())
	mapping := map[string]*Type{"T": Int()}
	assert.Equal(t, "function<int, list<int> -> int>", f.DiagnosticString(mapping))
}

func TestUnifyInfersGenericArgs(t *testing.T) {
	param := NewList(NewGenericParam("T"), false)
	subst := map[string]*Type{}
	require.NoError(t, Unify(param, NewList(Int(), false), subst))
	assert.True(t, Int().Equals(subst["T"]))

	// Conflicting bindings fail.
	f := NewFunction(ProcSpec{Args: []*Type{NewGenericParam("T"), NewGenericParam("T")}, Return: NewGenericParam("T")})
	subst = map[string]*Type{}
	require.NoError(t, Unify(f.Args[0], Int(), subst))
	require.Error(t, Unify(f.Args[1], String(), subst))

	// Structure mismatches fail.
	require.Error(t, Unify(NewList(NewGenericParam("T"), false), Int(), map[string]*Type{}))
}

func TestSubstitute(t *testing.T) {
	mapping := map[string]*Type{"T": Int()}
	got := Substitute(NewList(NewGenericParam("T"), true), mapping)
	assert.Equal(t, "mut list<int>", got.String())

	proc := NewFunction(ProcSpec{
		Args:     []*Type{NewGenericParam("T")},
		Return:   NewGenericParam("T"),
		Requires: []ContractRef{{Name: "Eq", Args: []*Type{NewGenericParam("T")}}},
	})
	inst := Substitute(proc, mapping)
	assert.Equal(t, "function<int -> int>", inst.String())
	require.Len(t, inst.Requires, 1)
	assert.True(t, Int().Equals(inst.Requires[0].Args[0]))

	// Substitution never mutates the original.
	assert.Equal(t, "function<T -> T>", proc.String())
}

func TestRegistriesReset(t *testing.T) {
	reg := NewRegistries()
	reg.Register("Id", nil, Int())
	_, ok := reg.WrappedBody("Id")
	require.True(t, ok)
	reg.Reset()
	_, ok = reg.WrappedBody("Id")
	assert.False(t, ok)
}

func TestTargetString(t *testing.T) {
	assert.Equal(t, "int64", Int().TargetString(nil))
	assert.Equal(t, "[]string", NewList(String(), false).TargetString(nil))
	assert.Equal(t, "map[int64]struct{}", mustSet(t, Int(), false).TargetString(nil))
	assert.Equal(t, "quillrt.Future[int64]", NewFuture(Int()).TargetString(nil))
	assert.Equal(t, "func(int64) bool", NewFunction(ProcSpec{Args: []*Type{Int()}, Return: Bool()}).TargetString(nil))
	assert.Equal(t, "[]int64", NewList(NewGenericParam("T"), false).TargetString(map[string]*Type{"T": Int()}))
}
