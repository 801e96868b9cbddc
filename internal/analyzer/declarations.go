package analyzer

import (
	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/types"
)

// Type declarations register in two phases so definitions can mention each
// other and themselves regardless of source order: names first, bodies
// second. declareSignatures drives the phases.

func (a *walker) declareStructDef(d *ast.StructDef) {
	if a.checkRedeclaration(d.Name, d.Loc) {
		return
	}
	a.session.Registries.Register(d.Name, nil, types.Unknowable())
	a.tab.Observe(d.Name, types.Unknowable())
	a.tab.Declare(d.Name)
	a.tab.MarkTypeDefinition(d.Name)
}

func (a *walker) declareNewtypeDef(d *ast.NewtypeDef) {
	if a.checkRedeclaration(d.Name, d.Loc) {
		return
	}
	a.session.Registries.Register(d.Name, d.Generics, types.Unknowable())
	a.tab.Observe(d.Name, types.Unknowable())
	a.tab.Declare(d.Name)
	a.tab.MarkTypeDefinition(d.Name)
}

// resolveStructDef fills in the registered body.
func (a *walker) resolveStructDef(d *ast.StructDef) {
	fields := make([]types.Field, len(d.Fields))
	for i, f := range d.Fields {
		fields[i] = types.Field{Name: f.Name, Type: a.resolveType(f.Type)}
	}
	body := types.NewStruct(fields, false)
	a.session.Registries.Register(d.Name, nil, body)
	a.tab.Observe(d.Name, body)
	a.tab.MarkTypeDefinition(d.Name)
}

// verifyStructImmutability runs once every body is registered: a struct
// declared immutable must only carry deeply immutable field types. The
// diagnostic names the first offending field and suggests its deeply
// immutable variant when one exists.
func (a *walker) verifyStructImmutability(d *ast.StructDef) {
	if !d.Immutable {
		return
	}
	body, ok := a.session.Registries.WrappedBody(d.Name)
	if !ok {
		return
	}
	for i, f := range body.Fields {
		if f.Type.IsDeeplyImmutable(a.session.Registries) {
			continue
		}
		diag := core.Diagnostic{
			Code:     core.ErrImmutability,
			Message:  "mutable field " + f.Name + " in immutable struct " + d.Name,
			Location: d.Fields[i].Loc,
		}
		if rec, ok := types.DeeplyImmutableRecommendation(f.Type, a.session.Registries); ok {
			diag.Suggestion = "a deeply immutable variant exists: " + rec
		}
		a.session.Sink.AddType(diag)
		break
	}
}

func (a *walker) resolveNewtypeDef(d *ast.NewtypeDef) {
	saved := a.generics
	a.generics = genericSet(d.Generics)
	body := a.resolveType(d.Body)
	a.generics = saved

	a.session.Registries.Register(d.Name, d.Generics, body)
	a.tab.Observe(d.Name, types.NewUserDefined(d.Name, genericArgs(d.Generics)...))
	a.tab.MarkTypeDefinition(d.Name)
}

func (a *walker) checkStaticDecl(d *ast.StaticDecl) {
	if a.checkRedeclaration(d.Name, d.Loc) {
		return
	}
	declared := a.resolveType(d.Type)
	if !declared.IsDeeplyImmutable(a.session.Registries) {
		diag := core.Diagnostic{
			Code:     core.ErrMutableStatic,
			Message:  "static value " + d.Name + " must be deeply immutable, found " + declared.String(),
			Location: d.Loc,
		}
		if rec, ok := types.DeeplyImmutableRecommendation(declared, a.session.Registries); ok {
			diag.Suggestion = "a deeply immutable variant exists: " + rec
		}
		a.session.Sink.AddType(diag)
	}
	a.assertExpr(d.Init, declared)
	a.tab.Observe(d.Name, declared)
	a.tab.Declare(d.Name)
	// The module subsystem runs static initializers before main; the value
	// is initialized from the checker's point of view.
	a.tab.Initialize(d.Name)
}

// checkRedeclaration reports and returns true when name is already bound in
// a visible scope.
func (a *walker) checkRedeclaration(name string, loc core.Location) bool {
	if a.tab.IsDeclared(name) {
		a.errorf(core.ErrRedeclaration, loc, "unexpected redeclaration of %s", name)
		return true
	}
	return false
}

func genericSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func genericArgs(names []string) []*types.Type {
	out := make([]*types.Type, len(names))
	for i, n := range names {
		out[i] = types.NewGenericParam(n)
	}
	return out
}
