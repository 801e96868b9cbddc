package analyzer

import (
	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/symbols"
	"github.com/oxhq/quill/internal/types"
)

// assertExpr checks e against an expected type, recording a mismatch
// diagnostic when the inferred type disagrees. Mutability is strict: a
// mut list is not a list.
func (a *walker) assertExpr(e ast.Expr, expected *types.Type) {
	actual := a.inferExpr(e)
	if actual.Kind == types.KindUnknowable || expected.Kind == types.KindUnknowable {
		return
	}
	// A oneof accepts any of its variants.
	if expected.Kind == types.KindOneof && actual.Kind != types.KindOneof {
		for _, v := range expected.Members {
			if v.Equals(actual) {
				return
			}
		}
	}
	if !expected.Equals(actual) {
		a.session.Sink.Mismatch(e.Pos(), expected.String(), actual.String())
	}
}

// inferExpr computes the type of e, recording diagnostics for anything
// ill-typed and continuing with unknowable.
func (a *walker) inferExpr(e ast.Expr) *types.Type {
	switch x := e.(type) {
	case *ast.IntLit:
		return types.Int()
	case *ast.FloatLit:
		return types.Float()
	case *ast.StringLit:
		return types.String()
	case *ast.BoolLit:
		return types.Bool()
	case *ast.Ident:
		return a.inferIdent(x)
	case *ast.Unary:
		return a.inferUnary(x)
	case *ast.Binary:
		return a.inferBinary(x)
	case *ast.Call:
		return a.inferCall(x)
	case *ast.Lambda:
		return a.inferLambda(x)
	case *ast.ListLit:
		return a.inferListLit(x)
	case *ast.TupleLit:
		return a.inferTupleLit(x)
	case *ast.StructLit:
		return a.inferStructLit(x)
	case *ast.FieldAccess:
		return a.inferFieldAccess(x)
	}
	panic("analyzer: unhandled expression")
}

func (a *walker) inferIdent(x *ast.Ident) *types.Type {
	if !a.tab.IsDeclared(x.Name) {
		a.errorf(core.ErrUnknownIdent, x.Loc, "no variable in scope named %s", x.Name)
		return types.Unknowable()
	}
	if !a.tab.IsInitialized(x.Name) {
		a.errorf(core.ErrUninitialized, x.Loc, "%s may be uninitialized", x.Name)
		return types.Unknowable()
	}
	typ, _ := a.tab.GetType(x.Name)
	a.tab.MarkUsed(x.Name)
	return typ
}

func (a *walker) inferUnary(x *ast.Unary) *types.Type {
	operand := a.inferExpr(x.X)
	if operand.Kind == types.KindUnknowable {
		return operand
	}
	switch x.Op {
	case "-":
		if !operand.IsNumeric() {
			a.errorf(core.ErrUnsupportedOp, x.Loc, "operator - expects int or float, found %s", operand)
			return types.Unknowable()
		}
		return operand
	case "not":
		if operand.Kind != types.KindBool {
			a.errorf(core.ErrUnsupportedOp, x.Loc, "operator not expects boolean, found %s", operand)
			return types.Unknowable()
		}
		return types.Bool()
	}
	panic("analyzer: unhandled unary operator " + x.Op)
}

func (a *walker) inferBinary(x *ast.Binary) *types.Type {
	left := a.inferExpr(x.L)
	right := a.inferExpr(x.R)
	if left.Kind == types.KindUnknowable || right.Kind == types.KindUnknowable {
		return types.Unknowable()
	}

	switch x.Op {
	case "+", "-", "*":
		if !left.IsNumeric() || !right.IsNumeric() {
			a.errorf(core.ErrUnsupportedOp, x.Loc, "operator %s expects int or float operands, found %s and %s", x.Op, left, right)
			return types.Unknowable()
		}
		if left.Kind == types.KindFloat || right.Kind == types.KindFloat {
			return types.Float()
		}
		return types.Int()
	case "/":
		// Division widens both operands to float.
		if !left.IsNumeric() || !right.IsNumeric() {
			a.errorf(core.ErrUnsupportedOp, x.Loc, "operator / expects int or float operands, found %s and %s", left, right)
			return types.Unknowable()
		}
		return types.Float()
	case "==", "!=":
		// Any pair of identically typed operands compares.
		if !left.Equals(right) {
			a.errorf(core.ErrUnsupportedOp, x.Loc, "operator %s expects operands of one type, found %s and %s", x.Op, left, right)
			return types.Unknowable()
		}
		return types.Bool()
	case "<", "<=", ">", ">=":
		if !left.IsNumeric() || !right.IsNumeric() {
			a.errorf(core.ErrUnsupportedOp, x.Loc, "operator %s expects int or float operands, found %s and %s", x.Op, left, right)
			return types.Unknowable()
		}
		return types.Bool()
	case "and", "or":
		if left.Kind != types.KindBool || right.Kind != types.KindBool {
			a.errorf(core.ErrUnsupportedOp, x.Loc, "operator %s expects boolean operands, found %s and %s", x.Op, left, right)
			return types.Unknowable()
		}
		return types.Bool()
	}
	panic("analyzer: unhandled binary operator " + x.Op)
}

func (a *walker) inferListLit(x *ast.ListLit) *types.Type {
	if len(x.Elems) == 0 {
		// The element type is only decidable at runtime.
		return types.NewList(types.Undecided(), x.Mutable)
	}
	elem := a.inferExpr(x.Elems[0])
	for _, e := range x.Elems[1:] {
		a.assertExpr(e, elem)
	}
	return types.NewList(elem, x.Mutable)
}

func (a *walker) inferTupleLit(x *ast.TupleLit) *types.Type {
	members := make([]*types.Type, len(x.Elems))
	for i, e := range x.Elems {
		members[i] = a.inferExpr(e)
	}
	return types.NewTuple(members, x.Mutable)
}

func (a *walker) inferStructLit(x *ast.StructLit) *types.Type {
	fields := make([]types.Field, len(x.Fields))
	for i, f := range x.Fields {
		fields[i] = types.Field{Name: f.Name, Type: a.inferExpr(f.Value)}
	}
	return types.NewStruct(fields, x.Mutable)
}

func (a *walker) inferFieldAccess(x *ast.FieldAccess) *types.Type {
	base := a.inferExpr(x.X)
	if base.Kind == types.KindUnknowable {
		return base
	}
	if base.Kind == types.KindModule {
		if id, ok := x.X.(*ast.Ident); ok {
			bound := DepProcName(id.Name, x.Name)
			if t, ok := a.tab.GetType(bound); ok {
				a.tab.MarkUsed(bound)
				return t
			}
		}
		a.errorf(core.ErrUnknownIdent, x.Loc, "module has no exported procedure named %s", x.Name)
		return types.Unknowable()
	}
	target := base
	if base.Kind == types.KindUserDef {
		if body, ok := a.session.Registries.ResolveBody(base); ok {
			target = body
		}
	}
	if target.Kind != types.KindStruct {
		a.errorf(core.ErrUnsupportedOp, x.Loc, "%s has no fields", base)
		return types.Unknowable()
	}
	for _, f := range target.Fields {
		if f.Name == x.Name {
			return f.Type
		}
	}
	a.errorf(core.ErrUnknownIdent, x.Loc, "%s has no field named %s", base, x.Name)
	return types.Unknowable()
}

// inferLambda opens a lambda scope, binds the parameters and checks the
// body. Every outer name the body resolves lands in the scope's captured
// set; those names become implicit fields of the emitted closure.
func (a *walker) inferLambda(x *ast.Lambda) *types.Type {
	spec := types.ProcSpec{}
	for _, p := range x.Params {
		spec.Args = append(spec.Args, a.resolveType(p.Type))
	}
	if x.ReturnType != nil {
		spec.Return = a.resolveType(x.ReturnType)
	}

	a.tab.EnterScope(symbols.LambdaScope)
	for i, p := range x.Params {
		a.tab.PutWithHiding(p.Name, spec.Args[i], nil)
		a.tab.Initialize(p.Name)
		a.tab.MarkUsed(p.Name)
	}

	savedRet, savedIn := a.returnType, a.inProc
	a.returnType, a.inProc = spec.Return, true
	a.checkBlockStmts(x.Body)
	if spec.Return != nil && !terminates(x.Body) {
		a.errorf(core.ErrTypeMismatch, x.Loc, "lambda body must end every path in a return of %s", spec.Return)
	}
	a.returnType, a.inProc = savedRet, savedIn
	a.session.Captures[x] = a.tab.CapturedNames()
	a.reportUnused(a.tab.ExitScope(true), x.Loc)

	switch {
	case spec.Return == nil:
		return types.NewConsumer(spec)
	case len(spec.Args) == 0:
		return types.NewProvider(spec)
	default:
		return types.NewFunction(spec)
	}
}
