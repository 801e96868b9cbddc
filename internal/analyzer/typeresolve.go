package analyzer

import (
	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/types"
)

// resolveType turns a syntactic annotation into a type value. Unknown names
// and malformed slots produce a diagnostic and the unknowable placeholder.
func (a *walker) resolveType(te ast.TypeExpr) *types.Type {
	switch t := te.(type) {
	case *ast.NamedType:
		return a.resolveNamedType(t)
	case *ast.StructType:
		fields := make([]types.Field, len(t.Fields))
		for i, f := range t.Fields {
			fields[i] = types.Field{Name: f.Name, Type: a.resolveType(f.Type)}
		}
		return types.NewStruct(fields, t.Mut)
	case *ast.ProcType:
		return a.resolveProcType(t)
	}
	panic("analyzer: unhandled type expression")
}

func (a *walker) resolveNamedType(t *ast.NamedType) *types.Type {
	args := make([]*types.Type, len(t.Args))
	for i, arg := range t.Args {
		args[i] = a.resolveType(arg)
	}

	arity := func(want int) bool {
		if len(args) != want {
			a.errorf(core.ErrTypeMismatch, t.Loc, "%s takes %d type argument(s), found %d", t.Name, want, len(args))
			return false
		}
		return true
	}

	switch t.Name {
	case "int", "float", "string", "boolean", "nothing":
		if t.Mut {
			a.errorf(core.ErrTypeMismatch, t.Loc, "%s has no mut variant", t.Name)
		}
		switch t.Name {
		case "int":
			return types.Int()
		case "float":
			return types.Float()
		case "string":
			return types.String()
		case "boolean":
			return types.Bool()
		default:
			return types.Nothing()
		}
	case "list":
		if !arity(1) {
			return types.Unknowable()
		}
		return types.NewList(args[0], t.Mut)
	case "set":
		if !arity(1) {
			return types.Unknowable()
		}
		s, err := types.NewSet(args[0], t.Mut)
		if err != nil {
			a.errorf(core.ErrTypeMismatch, t.Loc, "%v", err)
			return types.Unknowable()
		}
		return s
	case "map":
		if !arity(2) {
			return types.Unknowable()
		}
		m, err := types.NewMap(args[0], args[1], t.Mut)
		if err != nil {
			a.errorf(core.ErrTypeMismatch, t.Loc, "%v", err)
			return types.Unknowable()
		}
		return m
	case "tuple":
		if len(args) == 0 {
			a.errorf(core.ErrTypeMismatch, t.Loc, "tuple needs at least one type argument")
			return types.Unknowable()
		}
		return types.NewTuple(args, t.Mut)
	case "oneof":
		if len(args) < 2 {
			a.errorf(core.ErrTypeMismatch, t.Loc, "oneof needs at least two variants")
			return types.Unknowable()
		}
		o, err := types.NewOneof(args)
		if err != nil {
			a.errorf(core.ErrDuplicateVariant, t.Loc, "%v", err)
			return types.Unknowable()
		}
		return o
	case "future":
		if !arity(1) {
			return types.Unknowable()
		}
		return types.NewFuture(args[0])
	}

	if t.Mut {
		a.errorf(core.ErrTypeMismatch, t.Loc, "%s has no mut variant", t.Name)
	}
	if a.generics[t.Name] {
		if len(args) > 0 {
			a.errorf(core.ErrTypeMismatch, t.Loc, "generic parameter %s takes no type arguments", t.Name)
		}
		return types.NewGenericParam(t.Name)
	}

	name := a.qualifyTypeName(t.Name, t.Loc)
	if name == "" {
		return types.Unknowable()
	}
	if params, _ := a.session.Registries.ParamNames(name); len(params) != len(args) {
		a.errorf(core.ErrTypeMismatch, t.Loc, "%s takes %d type argument(s), found %d", t.Name, len(params), len(args))
		return types.Unknowable()
	}
	return types.NewUserDefined(name, args...)
}

// qualifyTypeName maps a source-level type name to its registry key: a
// locally defined type keeps its plain name, a dependency export resolves
// through the dep's namespace. Unknown names diagnose and return "".
func (a *walker) qualifyTypeName(name string, loc core.Location) string {
	if _, ok := a.session.Registries.WrappedBody(name); ok {
		return name
	}
	for _, dep := range a.session.deps {
		qualified := dep.TypeKey(name)
		if _, ok := a.session.Registries.WrappedBody(qualified); ok {
			return qualified
		}
	}
	a.errorf(core.ErrUnknownIdent, loc, "no type in scope named %s", name)
	return ""
}

func (a *walker) resolveProcType(t *ast.ProcType) *types.Type {
	spec := types.ProcSpec{}
	for _, arg := range t.Args {
		spec.Args = append(spec.Args, a.resolveType(arg))
	}
	if t.Return != nil {
		spec.Return = a.resolveType(t.Return)
	}
	switch t.Blocking {
	case ast.BlockingDeclared:
		spec.Blocking = types.BlockingAlways
	case ast.BlockingGenericOverArgs:
		spec.Blocking = types.BlockingGeneric
		for i, arg := range spec.Args {
			if arg.IsProcedure() {
				spec.BlockingArgs = append(spec.BlockingArgs, i)
			}
		}
	}
	switch t.Arity {
	case ast.ArityProvider:
		return types.NewProvider(spec)
	case ast.ArityConsumer:
		return types.NewConsumer(spec)
	default:
		return types.NewFunction(spec)
	}
}
