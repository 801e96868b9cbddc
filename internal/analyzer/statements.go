package analyzer

import (
	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/symbols"
	"github.com/oxhq/quill/internal/types"
)

func (a *walker) checkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		a.checkVarDecl(s)
	case *ast.ShortDecl:
		a.checkShortDecl(s)
	case *ast.Assign:
		a.checkAssign(s)
	case *ast.StaticDecl:
		a.checkStaticDecl(s)
	case *ast.If:
		a.checkIf(s)
	case *ast.While:
		a.checkWhile(s)
	case *ast.Return:
		a.checkReturn(s)
	case *ast.Block:
		a.tab.EnterScope(symbols.BlockScope)
		a.checkBlockStmts(s)
		a.reportUnused(a.tab.ExitScope(true), s.Loc)
	case *ast.ProcDef:
		if a.checkModuleLevel(s.Loc, s.Arity.String()+" "+s.Name) {
			a.checkProcBody(s)
		}
	case *ast.StructDef:
		// The module-level case was fully handled by the signature pass.
		a.checkModuleLevel(s.Loc, "struct "+s.Name)
	case *ast.NewtypeDef:
		a.checkModuleLevel(s.Loc, "newtype "+s.Name)
	case *ast.ContractDef:
		a.checkModuleLevel(s.Loc, "contract "+s.Name)
	case *ast.ImplementDef:
		if a.checkModuleLevel(s.Loc, "implementation of "+s.Contract) {
			a.checkImplementBodies(s)
		}
	case *ast.ExprStmt:
		a.inferExpr(s.E)
	default:
		panic("analyzer: unhandled statement")
	}
}

func (a *walker) checkBlockStmts(b *ast.Block) {
	for _, stmt := range b.Stmts {
		a.checkStmt(stmt)
	}
}

// checkModuleLevel rejects type, contract and procedure definitions below
// the module level. The signature pass only sees module-level statements, so
// a nested definition must diagnose rather than silently skip its body. The
// parser already drops these; the guard covers trees built directly.
func (a *walker) checkModuleLevel(loc core.Location, what string) bool {
	if a.inProc || a.tab.Depth() > 2 {
		a.errorf(core.ErrNestedDecl, loc, "%s must be declared at the module level", what)
		return false
	}
	return true
}

func (a *walker) checkVarDecl(s *ast.VarDecl) {
	if a.checkRedeclaration(s.Name, s.Loc) {
		return
	}
	declared := a.resolveType(s.Type)
	a.tab.Observe(s.Name, declared)
	a.tab.Declare(s.Name)
	if s.Init != nil {
		a.assertExpr(s.Init, declared)
		a.tab.Initialize(s.Name)
	}
}

func (a *walker) checkShortDecl(s *ast.ShortDecl) {
	if a.checkRedeclaration(s.Name, s.Loc) {
		// Still walk the initializer so its own errors surface.
		a.inferExpr(s.Init)
		return
	}
	inferred := a.inferExpr(s.Init)
	a.tab.Observe(s.Name, inferred)
	a.tab.Declare(s.Name)
	a.tab.Initialize(s.Name)
}

func (a *walker) checkAssign(s *ast.Assign) {
	if !a.tab.IsDeclared(s.Name) {
		a.errorf(core.ErrUnknownIdent, s.Loc, "no variable in scope named %s", s.Name)
		a.inferExpr(s.Value)
		return
	}
	declared, _ := a.tab.GetType(s.Name)
	a.assertExpr(s.Value, declared)
	a.tab.Initialize(s.Name)
}

// checkIf walks a conditional chain. Only a chain that ends in an else
// covers every path, so only then does the parent scope run branch
// inspection and merge the arms' initialization sets.
func (a *walker) checkIf(s *ast.If) {
	complete := ifChainIsComplete(s)
	if complete {
		a.tab.BeginBranchInspection()
	}
	for cur := s; cur != nil; {
		a.assertExpr(cur.Cond, types.Bool())
		a.checkBranchArm(cur.Then)
		switch next := cur.Else.(type) {
		case *ast.If:
			cur = next
		case *ast.Block:
			a.checkBranchArm(next)
			cur = nil
		default:
			cur = nil
		}
	}
	if complete {
		a.tab.FinalizeBranches()
	}
}

func (a *walker) checkBranchArm(b *ast.Block) {
	a.tab.EnterScope(symbols.BlockScope)
	a.checkBlockStmts(b)
	a.reportUnused(a.tab.ExitScope(true), b.Loc)
}

func ifChainIsComplete(s *ast.If) bool {
	for cur := s; ; {
		switch next := cur.Else.(type) {
		case *ast.If:
			cur = next
		case *ast.Block:
			return true
		default:
			return false
		}
	}
}

// checkWhile never inspects branches: a loop body may run zero times, so
// its initializations cannot be merged upward.
func (a *walker) checkWhile(s *ast.While) {
	a.assertExpr(s.Cond, types.Bool())
	a.tab.EnterScope(symbols.BlockScope)
	a.checkBlockStmts(s.Body)
	a.reportUnused(a.tab.ExitScope(true), s.Body.Loc)
}

func (a *walker) checkReturn(s *ast.Return) {
	if !a.inProc {
		a.errorf(core.ErrTypeMismatch, s.Loc, "return outside of a procedure body")
		if s.Value != nil {
			a.inferExpr(s.Value)
		}
		return
	}
	if a.returnType == nil {
		if s.Value != nil {
			a.errorf(core.ErrTypeMismatch, s.Loc, "consumers cannot return a value")
			a.inferExpr(s.Value)
		}
		return
	}
	if s.Value == nil {
		a.errorf(core.ErrTypeMismatch, s.Loc, "missing return value of type %s", a.returnType)
		return
	}
	a.assertExpr(s.Value, a.returnType)
}

// terminates reports whether every path through the block ends in a return:
// either the last statement returns, or it is an if/else chain whose arms
// all terminate.
func terminates(b *ast.Block) bool {
	if b == nil || len(b.Stmts) == 0 {
		return false
	}
	switch last := b.Stmts[len(b.Stmts)-1].(type) {
	case *ast.Return:
		return true
	case *ast.If:
		for cur := last; ; {
			if !terminates(cur.Then) {
				return false
			}
			switch next := cur.Else.(type) {
			case *ast.If:
				cur = next
			case *ast.Block:
				return terminates(next)
			default:
				return false
			}
		}
	default:
		return false
	}
}
