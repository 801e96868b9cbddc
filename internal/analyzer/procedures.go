package analyzer

import (
	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/symbols"
	"github.com/oxhq/quill/internal/types"
)

// procTypeFromDef builds the procedure type a definition declares. For
// blocking-generic procedures the generic-over indices are the procedure-
// typed parameters; the effective answer at a call site comes from the
// actual arguments bound there.
func (a *walker) procTypeFromDef(d *ast.ProcDef) *types.Type {
	saved := a.generics
	a.generics = genericSet(d.Generics)
	defer func() { a.generics = saved }()

	spec := types.ProcSpec{Generics: d.Generics}
	for _, p := range d.Params {
		spec.Args = append(spec.Args, a.resolveType(p.Type))
	}
	if d.ReturnType != nil {
		spec.Return = a.resolveType(d.ReturnType)
	}
	switch d.Blocking {
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
	for _, req := range d.Requires {
		args := make([]*types.Type, len(req.Args))
		for i, te := range req.Args {
			args[i] = a.resolveType(te)
		}
		a.checkContractRef(req.Name, args, req.Loc)
		spec.Requires = append(spec.Requires, types.ContractRef{Name: req.Name, Args: args})
	}

	switch d.Arity {
	case ast.ArityProvider:
		if len(d.Params) > 0 {
			a.errorf(core.ErrArity, d.Loc, "provider %s cannot declare parameters", d.Name)
		}
		return types.NewProvider(spec)
	case ast.ArityConsumer:
		return types.NewConsumer(spec)
	default:
		return types.NewFunction(spec)
	}
}

// declareProcSignature makes the procedure visible at the current scope
// before any body is checked, enabling forward references.
func (a *walker) declareProcSignature(d *ast.ProcDef) {
	if a.checkRedeclaration(d.Name, d.Loc) {
		return
	}
	t := a.procTypeFromDef(d)
	a.tab.Observe(d.Name, t)
	a.tab.Declare(d.Name)
	a.session.procTypes[d.Name] = t
	a.session.declared[d.Name] = t.Blocking
	a.session.procLocs[d.Name] = d.Loc
}

// checkProcBody checks a definition's body in a fresh procedure scope under
// the identity the signature was declared as.
func (a *walker) checkProcBody(d *ast.ProcDef) {
	a.checkProcBodyAs(d.Name, d)
}

func (a *walker) checkProcBodyAs(identity string, d *ast.ProcDef) {
	t, ok := a.session.procTypes[identity]
	if !ok {
		// The signature pass refused this identity and already diagnosed
		// why (redeclaration of the name).
		return
	}

	savedProc, savedRet, savedIn := a.currentProc, a.returnType, a.inProc
	savedGenerics, savedRequires := a.generics, a.currentRequires
	a.currentProc, a.returnType, a.inProc = identity, t.Return, true
	a.generics = genericSet(d.Generics)
	a.currentRequires = t.Requires

	a.tab.EnterScope(symbols.ProcedureScope)
	for i, p := range d.Params {
		a.tab.PutWithHiding(p.Name, t.Args[i], nil)
		a.tab.Initialize(p.Name)
		a.tab.MarkUsed(p.Name)
	}
	a.checkBlockStmts(d.Body)
	if t.Return != nil && !terminates(d.Body) {
		a.errorf(core.ErrTypeMismatch, d.Loc, "%s %s must end every path in a return of %s", d.Arity, d.Name, t.Return)
	}
	a.reportUnused(a.tab.ExitScope(true), d.Loc)

	a.currentProc, a.returnType, a.inProc = savedProc, savedRet, savedIn
	a.generics, a.currentRequires = savedGenerics, savedRequires
}

// inferCall resolves the callee, checks arity and argument types, handles
// generic instantiation by unification and feeds the blocking side tables.
func (a *walker) inferCall(x *ast.Call) *types.Type {
	if id, ok := x.Callee.(*ast.Ident); ok && id.Name == "unwrap" && !a.tab.IsDeclared("unwrap") {
		return a.inferUnwrap(x)
	}
	calleeType := a.inferExpr(x.Callee)
	if calleeType.Kind == types.KindUnknowable {
		for _, arg := range x.Args {
			a.inferExpr(arg)
		}
		return types.Unknowable()
	}
	if calleeType.Kind == types.KindUserDef {
		return a.inferConstructorCall(x, calleeType)
	}
	if !calleeType.IsProcedure() {
		a.errorf(core.ErrUnsupportedOp, x.Loc, "%s is not callable", calleeType)
		for _, arg := range x.Args {
			a.inferExpr(arg)
		}
		return types.Unknowable()
	}

	want := len(calleeType.Args)
	if len(x.Args) != want {
		a.errorf(core.ErrArity, x.Loc, "expected %d argument(s), found %d", want, len(x.Args))
		for _, arg := range x.Args {
			a.inferExpr(arg)
		}
		return a.callResult(calleeType, nil)
	}

	argTypes := make([]*types.Type, len(x.Args))
	var subst map[string]*types.Type
	if len(calleeType.Generics) > 0 {
		subst = make(map[string]*types.Type)
		sawUnknowable := false
		for i, arg := range x.Args {
			argTypes[i] = a.inferExpr(arg)
			if argTypes[i].Kind == types.KindUnknowable {
				// The argument already carries a diagnostic; don't let the
				// inference failure cascade.
				sawUnknowable = true
				continue
			}
			if err := types.Unify(calleeType.Args[i], argTypes[i], subst); err != nil {
				a.errorf(core.ErrGenericInference, arg.Pos(), "%v", err)
			}
		}
		for _, g := range calleeType.Generics {
			if _, ok := subst[g]; !ok {
				if !sawUnknowable {
					a.errorf(core.ErrGenericInference, x.Loc, "cannot infer generic arg %s from the call's arguments", g)
				}
				subst[g] = types.Unknowable()
			}
		}
		a.collectObligations(calleeType.Requires, subst, x.Loc)
	} else {
		for i, arg := range x.Args {
			a.assertExpr(arg, calleeType.Args[i])
			argTypes[i] = calleeType.Args[i]
		}
	}

	a.recordBlockingCall(x, calleeType, argTypes)
	return a.callResult(calleeType, subst)
}

// inferConstructorCall wraps a value into a user-defined type: calling the
// nominal name with the wrapped body's value. For parameterized types the
// type args are inferred by unifying the body against the argument.
func (a *walker) inferConstructorCall(x *ast.Call, calleeType *types.Type) *types.Type {
	name := calleeType.TypeName
	body, ok := a.session.Registries.WrappedBody(name)
	if !ok {
		a.errorf(core.ErrUnknownIdent, x.Loc, "no type in scope named %s", name)
		return types.Unknowable()
	}
	if len(x.Args) != 1 {
		a.errorf(core.ErrArity, x.Loc, "constructor %s expects 1 argument, found %d", name, len(x.Args))
		for _, arg := range x.Args {
			a.inferExpr(arg)
		}
		return types.Unknowable()
	}
	params, _ := a.session.Registries.ParamNames(name)
	if len(params) == 0 {
		a.assertExpr(x.Args[0], body)
		return types.NewUserDefined(name)
	}
	argType := a.inferExpr(x.Args[0])
	if argType.Kind == types.KindUnknowable {
		return types.Unknowable()
	}
	subst := make(map[string]*types.Type)
	if err := types.Unify(body, argType, subst); err != nil {
		a.errorf(core.ErrGenericInference, x.Loc, "%v", err)
		return types.Unknowable()
	}
	typeArgs := make([]*types.Type, len(params))
	for i, p := range params {
		concrete, ok := subst[p]
		if !ok {
			a.errorf(core.ErrGenericInference, x.Loc, "cannot infer type arg %s of %s", p, name)
			concrete = types.Unknowable()
		}
		typeArgs[i] = concrete
	}
	return types.NewUserDefined(name, typeArgs...)
}

// inferUnwrap projects a user-defined value back onto its wrapped body.
func (a *walker) inferUnwrap(x *ast.Call) *types.Type {
	if len(x.Args) != 1 {
		a.errorf(core.ErrArity, x.Loc, "unwrap expects 1 argument, found %d", len(x.Args))
		for _, arg := range x.Args {
			a.inferExpr(arg)
		}
		return types.Unknowable()
	}
	argType := a.inferExpr(x.Args[0])
	if argType.Kind == types.KindUnknowable {
		return argType
	}
	if argType.Kind != types.KindUserDef {
		a.errorf(core.ErrUnsupportedOp, x.Loc, "unwrap expects a user-defined value, found %s", argType)
		return types.Unknowable()
	}
	body, ok := a.session.Registries.ResolveBody(argType)
	if !ok {
		a.errorf(core.ErrUnknownIdent, x.Loc, "no type in scope named %s", argType.TypeName)
		return types.Unknowable()
	}
	return body
}

func (a *walker) callResult(calleeType *types.Type, subst map[string]*types.Type) *types.Type {
	if calleeType.Kind == types.KindConsumer {
		return types.Nothing()
	}
	if calleeType.Return == nil {
		return types.Unknowable()
	}
	if subst == nil {
		return calleeType.Return
	}
	return types.Substitute(calleeType.Return, subst)
}

// recordBlockingCall feeds the blocking side tables: a site that binds a
// blocking callee marks the enclosing procedure, and calls to named local
// procedures become call-graph edges for the transitive pass. The module
// level runs under the blocking main context, so "" never errors.
func (a *walker) recordBlockingCall(x *ast.Call, calleeType *types.Type, argTypes []*types.Type) {
	blocking := false
	switch calleeType.Blocking {
	case types.BlockingAlways:
		blocking = true
	case types.BlockingGeneric:
		for _, idx := range calleeType.BlockingArgs {
			if idx < len(argTypes) && argTypes[idx] != nil &&
				argTypes[idx].IsProcedure() && argTypes[idx].Blocking == types.BlockingAlways {
				blocking = true
			}
		}
	}
	if blocking && a.currentProc != "" {
		a.session.callsBlocking[a.currentProc] = true
	}
	if id, ok := x.Callee.(*ast.Ident); ok {
		if _, local := a.session.procTypes[id.Name]; local && a.currentProc != "" {
			a.session.addEdge(a.currentProc, id.Name)
		}
	}
}

func (s *Session) addEdge(caller, callee string) {
	edges, ok := s.callEdges[caller]
	if !ok {
		edges = make(map[string]struct{})
		s.callEdges[caller] = edges
	}
	edges[callee] = struct{}{}
}

// propagateBlocking runs the fixed-point pass over the call graph: a
// procedure is effectively blocking if it is declared blocking, binds a
// blocking callee anywhere in its body, or transitively calls a procedure
// whose effective flag is set. A procedure that ends up effectively
// blocking without declaring it is a hard error.
func (s *Session) propagateBlocking() {
	effective := make(map[string]bool, len(s.declared))
	for name, mode := range s.declared {
		effective[name] = mode == types.BlockingAlways || s.callsBlocking[name]
	}
	for changed := true; changed; {
		changed = false
		for caller, callees := range s.callEdges {
			if effective[caller] {
				continue
			}
			for callee := range callees {
				if effective[callee] {
					effective[caller] = true
					changed = true
					break
				}
			}
		}
	}
	names := sortedKeys(s.declared)
	for _, name := range names {
		if effective[name] && s.declared[name] == types.NonBlocking {
			s.Sink.TypeErrorf(core.ErrBlocking, s.procLocs[name],
				"%s is effectively blocking and must be declared blocking", name)
		}
	}
}
