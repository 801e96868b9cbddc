// Package symbols implements the scoped symbol table the checker resolves
// names against: an ordered stack of scopes with capability-gated lookup,
// lambda snapshot capture and definite-assignment tracking across branches.
package symbols

import (
	"sort"
	"strings"

	"github.com/oxhq/quill/internal/types"
)

// ScopeKind determines the visibility rules across a scope's boundary.
type ScopeKind int

const (
	BlockScope ScopeKind = iota
	ProcedureScope
	LambdaScope
)

func (k ScopeKind) String() string {
	switch k {
	case ProcedureScope:
		return "procedure"
	case LambdaScope:
		return "lambda"
	default:
		return "block"
	}
}

// Binding is a name's record in some scope.
type Binding struct {
	Type             *types.Type
	Value            any // interpreter-mode value, nil while only checking
	Declared         bool
	Used             bool
	IsTypeDefinition bool
}

// Scope is one level of the table.
type Scope struct {
	Kind     ScopeKind
	bindings map[string]*Binding

	// Names initialized along the current control-flow path, tracked per
	// scope: the binding lives where it was introduced, initialization
	// where it happened.
	initialized map[string]struct{}

	inspecting    bool
	branchStarted bool
	intersection  map[string]struct{} // initialized-in-every-branch-so-far

	captured map[string]struct{} // names snapshot-captured by closure resolution
}

func newScope(kind ScopeKind) *Scope {
	return &Scope{
		Kind:        kind,
		bindings:    make(map[string]*Binding),
		initialized: make(map[string]struct{}),
		captured:    make(map[string]struct{}),
	}
}

// UnusedSymbol reports a binding that was never read when its scope exited.
type UnusedSymbol struct {
	Name     string
	WarnOnly bool // struct type definitions are warned about, not rejected
}

// Table is the ordered stack of scopes, innermost last.
type Table struct {
	scopes []*Scope
}

// NewTable returns a table holding the module-level block scope.
func NewTable() *Table {
	return &Table{scopes: []*Scope{newScope(BlockScope)}}
}

func (t *Table) current() *Scope {
	return t.scopes[len(t.scopes)-1]
}

// Depth returns the number of open scopes.
func (t *Table) Depth() int { return len(t.scopes) }

// EnterScope pushes a new innermost scope.
func (t *Table) EnterScope(kind ScopeKind) {
	t.scopes = append(t.scopes, newScope(kind))
}

// ExitScope pops the innermost scope. In check-unused mode it returns the
// bindings that were never read; underscore-prefixed names are exempt.
// If the parent scope is in branch-inspection mode, the exited scope's
// initialization set (minus locally declared names) is merged into the
// parent's running per-branch intersection.
func (t *Table) ExitScope(checkUnused bool) []UnusedSymbol {
	if len(t.scopes) == 1 {
		panic("symbols: exiting the module scope")
	}
	exited := t.current()
	t.scopes = t.scopes[:len(t.scopes)-1]

	parent := t.current()
	if parent.inspecting {
		contribution := make(map[string]struct{})
		for name := range exited.initialized {
			if _, local := exited.bindings[name]; !local {
				contribution[name] = struct{}{}
			}
		}
		if !parent.branchStarted {
			parent.branchStarted = true
			parent.intersection = contribution
		} else {
			for name := range parent.intersection {
				if _, ok := contribution[name]; !ok {
					delete(parent.intersection, name)
				}
			}
		}
	}

	if !checkUnused {
		return nil
	}
	return unusedIn(exited)
}

// UnusedInCurrentScope runs the unused-binding check on the current scope
// without exiting it. The driver uses this for the module-level scope, which
// stays open for the interpreter.
func (t *Table) UnusedInCurrentScope() []UnusedSymbol {
	return unusedIn(t.current())
}

func unusedIn(s *Scope) []UnusedSymbol {
	var unused []UnusedSymbol
	for name, b := range s.bindings {
		if b.Used || strings.HasPrefix(name, "_") {
			continue
		}
		warn := b.IsTypeDefinition && b.Type != nil && b.Type.Kind == types.KindStruct
		unused = append(unused, UnusedSymbol{Name: name, WarnOnly: warn})
	}
	sort.Slice(unused, func(i, j int) bool { return unused[i].Name < unused[j].Name })
	return unused
}

// BeginBranchInspection arms the current scope for a complete branch group.
// Callers must only do this when the branches jointly cover every path.
func (t *Table) BeginBranchInspection() {
	s := t.current()
	s.inspecting = true
	s.branchStarted = false
	s.intersection = nil
}

// FinalizeBranches commits the per-branch intersection into the scope's own
// initialized set and leaves inspection mode.
func (t *Table) FinalizeBranches() {
	s := t.current()
	if !s.inspecting {
		panic("symbols: finalize without branch inspection")
	}
	for name := range s.intersection {
		s.initialized[name] = struct{}{}
	}
	s.inspecting = false
	s.branchStarted = false
	s.intersection = nil
}

// declaringScope finds the scope already holding name, walking innermost
// outward. The procedure gate applies: a binding that would be invisible
// from here is not a declaration site, so writers fall back to the current
// scope. Lambda boundaries do not shadow-copy on this path.
func (t *Table) declaringScope(name string) (*Scope, *Binding) {
	crossedProcedure := false
	for i := len(t.scopes) - 1; i >= 0; i-- {
		if b, ok := t.scopes[i].bindings[name]; ok {
			if crossedProcedure && !visiblePastProcedure(b) {
				return nil, nil
			}
			return t.scopes[i], b
		}
		if t.scopes[i].Kind == ProcedureScope {
			crossedProcedure = true
		}
	}
	return nil, nil
}

// Observe records a type for name at the nearest enclosing scope where the
// name is declarable: the scope already holding it, else the current scope.
func (t *Table) Observe(name string, typ *types.Type) {
	if _, b := t.declaringScope(name); b != nil {
		b.Type = typ
		return
	}
	t.current().bindings[name] = &Binding{Type: typ}
}

// Declare flips the declared flag, guarding the first textual emission of
// the binding during codegen.
func (t *Table) Declare(name string) {
	if _, b := t.declaringScope(name); b != nil {
		b.Declared = true
	}
}

// Initialize records that name is initialized along the current path. The
// record goes to the current scope only, never the declaring scope.
func (t *Table) Initialize(name string) {
	t.current().initialized[name] = struct{}{}
}

// PutValue writes a type and interpreter value through to the declaring
// scope, creating the binding at the current scope if the name is new. A
// non-nil value also records initialization at the current scope.
func (t *Table) PutValue(name string, typ *types.Type, value any) {
	_, b := t.declaringScope(name)
	if b == nil {
		b = &Binding{}
		t.current().bindings[name] = b
	}
	b.Type = typ
	b.Value = value
	if value != nil {
		t.Initialize(name)
	}
}

// PutWithHiding always creates a fresh binding at the current scope,
// shadowing any outer homonym. Used for lambda capture shadowing.
func (t *Table) PutWithHiding(name string, typ *types.Type, value any) {
	b := &Binding{Type: typ, Value: value}
	t.current().bindings[name] = b
	if value != nil {
		t.Initialize(name)
	}
}

// MarkUsed flags the binding name resolves to.
func (t *Table) MarkUsed(name string) {
	if b := t.resolve(name, false); b != nil {
		b.Used = true
	}
}

// MarkTypeDefinition flags the binding as a type definition, making it
// visible across procedure boundaries.
func (t *Table) MarkTypeDefinition(name string) {
	if _, b := t.declaringScope(name); b != nil {
		b.IsTypeDefinition = true
	}
}

// GetType resolves name under the capability gates and returns its type.
func (t *Table) GetType(name string) (*types.Type, bool) {
	b := t.resolve(name, true)
	if b == nil {
		return nil, false
	}
	return b.Type, true
}

// GetValue resolves name under the capability gates and returns its
// interpreter value.
func (t *Table) GetValue(name string) (any, bool) {
	b := t.resolve(name, true)
	if b == nil {
		return nil, false
	}
	return b.Value, true
}

// IsDeclared reports whether name resolves at all (without capturing).
func (t *Table) IsDeclared(name string) bool {
	return t.resolve(name, false) != nil
}

// IsInitialized reports whether name is initialized along the current path.
func (t *Table) IsInitialized(name string) bool {
	crossedProcedure := false
	for i := len(t.scopes) - 1; i >= 0; i-- {
		s := t.scopes[i]
		if _, ok := s.initialized[name]; ok && !crossedProcedure {
			return true
		}
		if b, ok := s.bindings[name]; ok {
			if crossedProcedure {
				return visiblePastProcedure(b)
			}
			// Procedures, modules and type defs are initialized by their
			// declaration.
			return visiblePastProcedure(b)
		}
		if s.Kind == ProcedureScope {
			crossedProcedure = true
		}
	}
	return false
}

// CapturedNames returns the current scope's captured set, sorted.
func (t *Table) CapturedNames() []string {
	names := make([]string, 0, len(t.current().captured))
	for name := range t.current().captured {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CapturedInScope reports whether name was captured into the current scope.
func (t *Table) CapturedInScope(name string) bool {
	_, ok := t.current().captured[name]
	return ok
}

func visiblePastProcedure(b *Binding) bool {
	if b.IsTypeDefinition {
		return true
	}
	return b.Type != nil && (b.Type.IsProcedure() || b.Type.Kind == types.KindModule)
}

// resolve walks innermost outward applying the capability gates of the scope
// boundaries it crosses.
//
//   - Past a procedure boundary only procedures, modules and type
//     definitions remain visible.
//   - Past a lambda boundary everything stays visible, but a hit is
//     snapshot-copied into the first lambda scope crossed (capture) when
//     capture is true, and the original is marked used.
//   - Past a lambda and then a procedure boundary the procedure gate wins.
func (t *Table) resolve(name string, capture bool) *Binding {
	crossedProcedure := false
	var firstLambda *Scope
	for i := len(t.scopes) - 1; i >= 0; i-- {
		s := t.scopes[i]
		if b, ok := s.bindings[name]; ok {
			if crossedProcedure {
				if visiblePastProcedure(b) {
					return b
				}
				return nil
			}
			if firstLambda != nil {
				if !capture {
					return b
				}
				initialized := t.initializedOutside(name, i)
				shadow := &Binding{
					Type:             b.Type,
					Value:            b.Value,
					Declared:         b.Declared,
					IsTypeDefinition: b.IsTypeDefinition,
				}
				firstLambda.bindings[name] = shadow
				firstLambda.captured[name] = struct{}{}
				if initialized {
					firstLambda.initialized[name] = struct{}{}
				}
				b.Used = true
				return shadow
			}
			return b
		}
		switch s.Kind {
		case ProcedureScope:
			crossedProcedure = true
		case LambdaScope:
			if firstLambda == nil {
				firstLambda = s
			}
		}
	}
	return nil
}

// initializedOutside reports whether name is initialized on the path from
// its declaring scope (index declIdx) up to the top of the stack.
func (t *Table) initializedOutside(name string, declIdx int) bool {
	for i := len(t.scopes) - 1; i >= declIdx; i-- {
		if _, ok := t.scopes[i].initialized[name]; ok {
			return true
		}
	}
	return false
}
