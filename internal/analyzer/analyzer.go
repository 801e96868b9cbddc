// Package analyzer performs semantic analysis on the quill syntax tree: it
// assigns and validates types per node, tracks definite assignment across
// branches, resolves names through the capability-gated symbol table,
// propagates blocking annotations over the call graph and verifies contract
// obligations.
//
// Type errors are collected, never thrown; after recording one the checker
// continues with the unknowable placeholder so cascading errors stay rare.
// Internal invariant violations panic.
package analyzer

import (
	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/diag"
	"github.com/oxhq/quill/internal/symbols"
	"github.com/oxhq/quill/internal/types"
)

// Session owns every piece of process-wide state one compilation run needs:
// the nominal-type registries, the dependency modules, the blocking side
// tables, contract knowledge and the diagnostic sink. Reset restores a
// session for another run so repeated compilations stay deterministic.
type Session struct {
	Registries *types.Registries
	Sink       *diag.Sink

	deps       []ModuleAPI
	selfModule string // qualified identity of the module being compiled

	// Initializers and unwrappers exported by dependencies, keyed by the
	// identifier of the user-defined type they act on.
	Initializers map[string][]string
	Unwrappers   map[string][]string

	// Blocking state lives in side tables keyed by procedure identity, not
	// in the type values, so types keep structural equality.
	declared      map[string]types.Blocking
	callsBlocking map[string]bool
	callEdges     map[string]map[string]struct{}
	procLocs      map[string]core.Location
	procTypes     map[string]*types.Type

	// Captures records, per lambda, the outer names its body snapshot-
	// captured; codegen materializes them as implicit closure fields.
	Captures map[*ast.Lambda][]string

	contracts   map[string]*contractInfo
	impls       map[string]map[string]bool
	obligations []obligation
}

// NewSession returns a fresh session.
func NewSession() *Session {
	s := &Session{
		Registries: types.NewRegistries(),
		Sink:       diag.NewSink(),
	}
	s.reset()
	return s
}

// Reset clears all state accumulated by previous runs, keeping the
// dependency set.
func (s *Session) Reset() {
	s.Registries.Reset()
	s.Sink.Reset()
	s.reset()
}

func (s *Session) reset() {
	s.Initializers = make(map[string][]string)
	s.Unwrappers = make(map[string][]string)
	s.declared = make(map[string]types.Blocking)
	s.callsBlocking = make(map[string]bool)
	s.callEdges = make(map[string]map[string]struct{})
	s.procLocs = make(map[string]core.Location)
	s.procTypes = make(map[string]*types.Type)
	s.Captures = make(map[*ast.Lambda][]string)
	s.contracts = make(map[string]*contractInfo)
	s.impls = make(map[string]map[string]bool)
	s.obligations = nil
}

// Analyze checks the programs of one module in order, sharing a single
// module-level scope, then runs the whole-program passes: blocking
// propagation and contract-obligation verification. It returns the symbol
// table so the interpreter can reuse the checked bindings.
func (s *Session) Analyze(progs ...*ast.Program) *symbols.Table {
	tab := symbols.NewTable()
	a := &walker{session: s, tab: tab}
	a.bindDependencies()
	a.bindBuiltins()

	tab.EnterScope(symbols.BlockScope)
	for _, prog := range progs {
		a.declareSignatures(prog.Stmts)
	}
	for _, prog := range progs {
		for _, stmt := range prog.Stmts {
			a.checkStmt(stmt)
		}
	}
	a.markExportsUsed(progs)
	// The module-level scope stays open for the interpreter; the unused
	// check runs in place.
	a.reportUnused(tab.UnusedInCurrentScope(), core.Location{})

	s.propagateBlocking()
	s.verifyObligations()
	return tab
}

// walker carries the per-walk state: the table, the enclosing procedure's
// identity and return contract, and the generic names in scope.
type walker struct {
	session *Session
	tab     *symbols.Table

	currentProc     string      // identity of the enclosing procedure, "" at module level
	inProc          bool
	returnType      *types.Type // nil inside consumers and at module level
	currentRequires []types.ContractRef

	generics map[string]bool // generic names bound by the enclosing procedure
}

func (a *walker) errorf(code string, loc core.Location, format string, args ...any) {
	a.session.Sink.TypeErrorf(code, loc, format, args...)
}

// markExportsUsed flags module-level procedures, type definitions and
// statics as used before the unused-symbol check runs: they are the
// module's exported surface, reachable from outside.
func (a *walker) markExportsUsed(progs []*ast.Program) {
	for _, prog := range progs {
		for _, stmt := range prog.Stmts {
			switch d := stmt.(type) {
			case *ast.ProcDef:
				a.tab.MarkUsed(d.Name)
			case *ast.StructDef:
				a.tab.MarkUsed(d.Name)
			case *ast.NewtypeDef:
				a.tab.MarkUsed(d.Name)
			case *ast.ContractDef:
				a.tab.MarkUsed(d.Name)
			case *ast.StaticDecl:
				a.tab.MarkUsed(d.Name)
			}
		}
	}
}

func (a *walker) reportUnused(unused []symbols.UnusedSymbol, loc core.Location) {
	for _, u := range unused {
		if u.WarnOnly {
			a.session.Sink.Warnf(core.ErrUnusedSymbol, loc, "unused symbol %s", u.Name)
		} else {
			a.errorf(core.ErrUnusedSymbol, loc, "unused symbol %s", u.Name)
		}
	}
}

// declareSignatures is the forward-reference pass: procedure, type and
// contract declarations become visible to every statement of the module
// before any body is checked.
func (a *walker) declareSignatures(stmts []ast.Stmt) {
	// Phase 1: type names, so definitions can reference each other and
	// themselves regardless of source order.
	for _, stmt := range stmts {
		switch d := stmt.(type) {
		case *ast.StructDef:
			a.declareStructDef(d)
		case *ast.NewtypeDef:
			a.declareNewtypeDef(d)
		}
	}
	// Phase 2: type bodies, contracts, then procedure signatures.
	for _, stmt := range stmts {
		switch d := stmt.(type) {
		case *ast.StructDef:
			a.resolveStructDef(d)
		case *ast.NewtypeDef:
			a.resolveNewtypeDef(d)
		case *ast.ContractDef:
			a.declareContractDef(d)
		}
	}
	for _, stmt := range stmts {
		if d, ok := stmt.(*ast.StructDef); ok {
			a.verifyStructImmutability(d)
		}
	}
	for _, stmt := range stmts {
		switch d := stmt.(type) {
		case *ast.ProcDef:
			a.declareProcSignature(d)
		case *ast.ImplementDef:
			a.declareImplement(d)
		}
	}
}
