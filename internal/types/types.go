// Package types implements the quill type algebra: the set of type values the
// checker manipulates, structural equality, mutability projection, the
// deep-immutability predicate and canonical formatting.
//
// Type values are immutable once constructed. The struct fields are exported
// only so archive signatures can round-trip through JSON; code must go through
// the constructors, which canonicalize (oneof variant ordering, slot checks).
package types

import (
	"fmt"
	"hash/fnv"
)

// Kind is the base kind of a type value.
type Kind string

const (
	KindInt        Kind = "int"
	KindFloat      Kind = "float"
	KindString     Kind = "string"
	KindBool       Kind = "boolean"
	KindModule     Kind = "module"
	KindNothing    Kind = "nothing"
	KindUndecided  Kind = "undecided"  // resolution deferred to runtime
	KindUnknowable Kind = "unknowable" // error continuation after a diagnostic
	KindList       Kind = "list"
	KindSet        Kind = "set"
	KindMap        Kind = "map"
	KindTuple      Kind = "tuple"
	KindStruct     Kind = "struct"
	KindOneof      Kind = "oneof"
	KindFuture     Kind = "future"
	KindUserDef    Kind = "user_defined"
	KindFunction   Kind = "function"
	KindProvider   Kind = "provider"
	KindConsumer   Kind = "consumer"
	KindGeneric    Kind = "generic_param"
	KindContract   Kind = "contract"
	KindContrImpl  Kind = "contract_impl"
)

// Blocking is the declared blocking annotation on a procedure type.
type Blocking string

const (
	NonBlocking     Blocking = ""
	BlockingAlways  Blocking = "blocking"
	BlockingGeneric Blocking = "blocking?" // blocking iff a listed arg is a blocking procedure
)

// Field is a named struct field.
type Field struct {
	Name string `json:"name"`
	Type *Type  `json:"type"`
}

// ContractRef names a required contract together with its generic arguments.
type ContractRef struct {
	Name string  `json:"name"`
	Args []*Type `json:"args"`
}

// Type is the single tagged variant covering every base kind. Which fields
// are meaningful depends on Kind; see the constructors.
type Type struct {
	Kind    Kind  `json:"kind"`
	Mutable bool  `json:"mutable,omitempty"` // list, set, map, tuple, struct
	Elem    *Type `json:"elem,omitempty"`    // list/set values, future value
	Key     *Type `json:"key,omitempty"`     // map keys
	Value   *Type `json:"value,omitempty"`   // map values

	Fields  []Field `json:"fields,omitempty"`  // struct, ordered
	Members []*Type `json:"members,omitempty"` // tuple values (ordered), oneof variants (canonical order)

	TypeName string  `json:"type_name,omitempty"` // user-defined nominal name; generic param name; contract name
	Args     []*Type `json:"args,omitempty"`      // user-defined type args; function/consumer arg types
	Return   *Type   `json:"return,omitempty"`    // function/provider return type

	Blocking     Blocking `json:"blocking,omitempty"`
	BlockingArgs []int    `json:"blocking_args,omitempty"` // arg indices blocking? is generic over

	// Procedure metadata, excluded from structural equality.
	Generics []string      `json:"generics,omitempty"` // declared generic-arg names
	Requires []ContractRef `json:"requires,omitempty"` // required-contract table
}

func Int() *Type        { return &Type{Kind: KindInt} }
func Float() *Type      { return &Type{Kind: KindFloat} }
func String() *Type     { return &Type{Kind: KindString} }
func Bool() *Type       { return &Type{Kind: KindBool} }
func Module() *Type     { return &Type{Kind: KindModule} }
func Nothing() *Type    { return &Type{Kind: KindNothing} }
func Undecided() *Type  { return &Type{Kind: KindUndecided} }
func Unknowable() *Type { return &Type{Kind: KindUnknowable} }

// NewList builds list<elem>.
func NewList(elem *Type, mutable bool) *Type {
	return &Type{Kind: KindList, Elem: elem, Mutable: mutable}
}

// NewSet builds set<elem>. A future-kinded element is rejected: hashing a
// future is nonsensical.
func NewSet(elem *Type, mutable bool) (*Type, error) {
	if elem.Kind == KindFuture {
		return nil, fmt.Errorf("set elements cannot be futures: set<%s>", elem)
	}
	return &Type{Kind: KindSet, Elem: elem, Mutable: mutable}, nil
}

// NewMap builds map<key, value>. A future-kinded key is rejected.
func NewMap(key, value *Type, mutable bool) (*Type, error) {
	if key.Kind == KindFuture {
		return nil, fmt.Errorf("map keys cannot be futures: map<%s, %s>", key, value)
	}
	return &Type{Kind: KindMap, Key: key, Value: value, Mutable: mutable}, nil
}

// NewTuple builds tuple<members...>; slots are positional ($0..$n-1).
func NewTuple(members []*Type, mutable bool) *Type {
	return &Type{Kind: KindTuple, Members: members, Mutable: mutable}
}

// NewStruct builds struct{fields...} with field order preserved.
func NewStruct(fields []Field, mutable bool) *Type {
	return &Type{Kind: KindStruct, Fields: fields, Mutable: mutable}
}

// NewOneof builds a discriminated union. Construction fails if any variant
// repeats; variants are stored sorted by canonical string so that equal
// oneofs compare and format identically regardless of declaration order.
func NewOneof(variants []*Type) (*Type, error) {
	sorted := sortedByCanonical(variants)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Equals(sorted[i-1]) {
			return nil, fmt.Errorf("oneof with duplicated variant %s", sorted[i])
		}
	}
	return &Type{Kind: KindOneof, Members: sorted}, nil
}

// NewFuture builds future<value>.
func NewFuture(value *Type) *Type {
	return &Type{Kind: KindFuture, Elem: value}
}

// NewUserDefined builds a nominal type instance. The wrapped body lives in
// the Registries, never in the value itself, so self-referential types stay
// finite.
func NewUserDefined(name string, args ...*Type) *Type {
	return &Type{Kind: KindUserDef, TypeName: name, Args: args}
}

// NewGenericParam builds the named placeholder used while checking
// polymorphic procedures.
func NewGenericParam(name string) *Type {
	return &Type{Kind: KindGeneric, TypeName: name}
}

// NewContract and NewContractImpl build the meta-types the checker binds
// contract declarations and implementations under.
func NewContract(name string) *Type     { return &Type{Kind: KindContract, TypeName: name} }
func NewContractImpl(name string) *Type { return &Type{Kind: KindContrImpl, TypeName: name} }

// ProcSpec carries everything a procedure type constructor needs.
type ProcSpec struct {
	Args         []*Type
	Return       *Type
	Blocking     Blocking
	BlockingArgs []int
	Generics     []string
	Requires     []ContractRef
}

// NewFunction builds function<args -> return>.
func NewFunction(spec ProcSpec) *Type {
	return &Type{
		Kind: KindFunction, Args: spec.Args, Return: spec.Return,
		Blocking: spec.Blocking, BlockingArgs: spec.BlockingArgs,
		Generics: spec.Generics, Requires: spec.Requires,
	}
}

// NewProvider builds provider<return>; providers take no arguments.
func NewProvider(spec ProcSpec) *Type {
	return &Type{
		Kind: KindProvider, Return: spec.Return,
		Blocking: spec.Blocking, BlockingArgs: spec.BlockingArgs,
		Generics: spec.Generics, Requires: spec.Requires,
	}
}

// NewConsumer builds consumer<args>; consumers return nothing.
func NewConsumer(spec ProcSpec) *Type {
	return &Type{
		Kind: KindConsumer, Args: spec.Args,
		Blocking: spec.Blocking, BlockingArgs: spec.BlockingArgs,
		Generics: spec.Generics, Requires: spec.Requires,
	}
}

// IsProcedure reports whether t is function-, provider- or consumer-kinded.
func (t *Type) IsProcedure() bool {
	return t.Kind == KindFunction || t.Kind == KindProvider || t.Kind == KindConsumer
}

// IsNumeric reports whether t is int or float.
func (t *Type) IsNumeric() bool {
	return t.Kind == KindInt || t.Kind == KindFloat
}

// IsContainer reports whether t carries the inherent mutability flag.
func (t *Type) IsContainer() bool {
	switch t.Kind {
	case KindList, KindSet, KindMap, KindTuple, KindStruct:
		return true
	}
	return false
}

// IsMutable reports the inherent flag on container kinds; false elsewhere.
func (t *Type) IsMutable() bool {
	return t.IsContainer() && t.Mutable
}

// ToShallowlyMutable flips the outermost mutability flag, preserving slot
// contents. It is only defined on container kinds.
func (t *Type) ToShallowlyMutable() (*Type, error) {
	if !t.IsContainer() {
		return nil, fmt.Errorf("%s has no mutable variant", t)
	}
	clone := *t
	clone.Mutable = true
	return &clone, nil
}

// Equals is structural equality. Mutability and every parameter slot
// participate; procedure generic names and required-contract tables are
// metadata and do not.
func (t *Type) Equals(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || t.Mutable != o.Mutable || t.TypeName != o.TypeName {
		return false
	}
	if !t.Elem.Equals(o.Elem) || !t.Key.Equals(o.Key) || !t.Value.Equals(o.Value) || !t.Return.Equals(o.Return) {
		return false
	}
	if len(t.Fields) != len(o.Fields) || len(t.Members) != len(o.Members) || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Fields {
		if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equals(o.Fields[i].Type) {
			return false
		}
	}
	for i := range t.Members {
		if !t.Members[i].Equals(o.Members[i]) {
			return false
		}
	}
	for i := range t.Args {
		if !t.Args[i].Equals(o.Args[i]) {
			return false
		}
	}
	if t.IsProcedure() {
		if t.Blocking != o.Blocking || len(t.BlockingArgs) != len(o.BlockingArgs) {
			return false
		}
		for i := range t.BlockingArgs {
			if t.BlockingArgs[i] != o.BlockingArgs[i] {
				return false
			}
		}
	}
	return true
}

// Hash is consistent with Equals. The canonical string is deterministic, so
// hashing it is enough.
func (t *Type) Hash() uint64 {
	h := fnv.New64a()
	h.Write([]byte(t.String()))
	return h.Sum64()
}
