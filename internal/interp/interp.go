// Package interp is the tree-walk interpreter behind `quillc run`. It reuses
// the checked symbol table's value slots, so scoping and lambda snapshot
// capture behave exactly as the checker decided they would.
package interp

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/oxhq/quill/internal/analyzer"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/symbols"
	"github.com/oxhq/quill/internal/types"
)

// Value kinds beyond the Go scalars (int64, float64, string, bool).
type (
	// ListValue is a list literal's runtime value.
	ListValue struct {
		Elems   []any
		Mutable bool
	}

	// TupleValue is a tuple's runtime value.
	TupleValue struct {
		Elems   []any
		Mutable bool
	}

	// StructValue keeps field order for deterministic printing.
	StructValue struct {
		Names   []string
		Values  map[string]any
		Mutable bool
	}

	// WrappedValue is a user-defined type's runtime value.
	WrappedValue struct {
		TypeName string
		Value    any
	}

	// ProcValue is a named procedure bound to its definition.
	ProcValue struct {
		Def *ast.ProcDef
	}

	// ClosureValue snapshots the captured names at creation time.
	ClosureValue struct {
		Def      *ast.Lambda
		Captured map[string]capturedSlot
	}
)

type capturedSlot struct {
	typ   *types.Type
	value any
}

// Interpreter executes one checked program.
type Interpreter struct {
	session *analyzer.Session
	tab     *symbols.Table
	out     io.Writer
}

// New wires an interpreter to a session and the table Analyze returned.
func New(session *analyzer.Session, tab *symbols.Table, out io.Writer) *Interpreter {
	return &Interpreter{session: session, tab: tab, out: out}
}

// Run executes the programs' top-level statements in order. The caller must
// have analyzed them with the same session first; running an erroneous
// program is an internal error.
func (in *Interpreter) Run(progs ...*ast.Program) error {
	// Named procedures bind up front so calls can precede definitions, the
	// same forward referencing the checker allows.
	for _, prog := range progs {
		for _, stmt := range prog.Stmts {
			if def, ok := stmt.(*ast.ProcDef); ok {
				typ, _ := in.tab.GetType(def.Name)
				in.tab.PutValue(def.Name, typ, &ProcValue{Def: def})
			}
		}
	}
	for _, prog := range progs {
		for _, stmt := range prog.Stmts {
			if _, returned, err := in.execStmt(stmt); err != nil {
				return err
			} else if returned {
				return nil
			}
		}
	}
	return nil
}

func (in *Interpreter) execStmt(stmt ast.Stmt) (any, bool, error) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		if s.Init == nil {
			return nil, false, nil
		}
		v, err := in.evalExpr(s.Init)
		if err != nil {
			return nil, false, err
		}
		in.putValue(s.Name, v)
		return nil, false, nil
	case *ast.ShortDecl:
		v, err := in.evalExpr(s.Init)
		if err != nil {
			return nil, false, err
		}
		in.putValue(s.Name, v)
		return nil, false, nil
	case *ast.Assign:
		v, err := in.evalExpr(s.Value)
		if err != nil {
			return nil, false, err
		}
		in.putValue(s.Name, v)
		return nil, false, nil
	case *ast.StaticDecl:
		v, err := in.evalExpr(s.Init)
		if err != nil {
			return nil, false, err
		}
		in.putValue(s.Name, v)
		return nil, false, nil
	case *ast.If:
		return in.execIf(s)
	case *ast.While:
		for {
			cond, err := in.evalExpr(s.Cond)
			if err != nil {
				return nil, false, err
			}
			if cond != true {
				return nil, false, nil
			}
			if v, returned, err := in.execBlock(s.Body); err != nil || returned {
				return v, returned, err
			}
		}
	case *ast.Return:
		if s.Value == nil {
			return nil, true, nil
		}
		v, err := in.evalExpr(s.Value)
		return v, err == nil, err
	case *ast.Block:
		return in.execBlock(s)
	case *ast.ProcDef:
		typ, _ := in.tab.GetType(s.Name)
		in.tab.PutValue(s.Name, typ, &ProcValue{Def: s})
		return nil, false, nil
	case *ast.StructDef, *ast.NewtypeDef, *ast.ContractDef, *ast.ImplementDef:
		return nil, false, nil
	case *ast.ExprStmt:
		_, err := in.evalExpr(s.E)
		return nil, false, err
	}
	panic("interp: unhandled statement")
}

func (in *Interpreter) putValue(name string, v any) {
	typ, _ := in.tab.GetType(name)
	in.tab.PutValue(name, typ, v)
}

func (in *Interpreter) execIf(s *ast.If) (any, bool, error) {
	cond, err := in.evalExpr(s.Cond)
	if err != nil {
		return nil, false, err
	}
	if cond == true {
		return in.execBlock(s.Then)
	}
	switch e := s.Else.(type) {
	case *ast.If:
		return in.execIf(e)
	case *ast.Block:
		return in.execBlock(e)
	}
	return nil, false, nil
}

func (in *Interpreter) execBlock(b *ast.Block) (any, bool, error) {
	in.tab.EnterScope(symbols.BlockScope)
	defer in.tab.ExitScope(false)
	for _, stmt := range b.Stmts {
		if v, returned, err := in.execStmt(stmt); err != nil || returned {
			return v, returned, err
		}
	}
	return nil, false, nil
}

func (in *Interpreter) evalExpr(e ast.Expr) (any, error) {
	switch x := e.(type) {
	case *ast.IntLit:
		return x.Value, nil
	case *ast.FloatLit:
		return x.Value, nil
	case *ast.StringLit:
		return x.Value, nil
	case *ast.BoolLit:
		return x.Value, nil
	case *ast.Ident:
		v, ok := in.tab.GetValue(x.Name)
		if !ok {
			return nil, fmt.Errorf("interp: %s has no value", x.Name)
		}
		return v, nil
	case *ast.Unary:
		return in.evalUnary(x)
	case *ast.Binary:
		return in.evalBinary(x)
	case *ast.Call:
		return in.evalCall(x)
	case *ast.Lambda:
		return in.evalLambda(x)
	case *ast.ListLit:
		elems, err := in.evalAll(x.Elems)
		if err != nil {
			return nil, err
		}
		return &ListValue{Elems: elems, Mutable: x.Mutable}, nil
	case *ast.TupleLit:
		elems, err := in.evalAll(x.Elems)
		if err != nil {
			return nil, err
		}
		return &TupleValue{Elems: elems, Mutable: x.Mutable}, nil
	case *ast.StructLit:
		sv := &StructValue{Values: make(map[string]any, len(x.Fields)), Mutable: x.Mutable}
		for _, f := range x.Fields {
			v, err := in.evalExpr(f.Value)
			if err != nil {
				return nil, err
			}
			sv.Names = append(sv.Names, f.Name)
			sv.Values[f.Name] = v
		}
		return sv, nil
	case *ast.FieldAccess:
		return in.evalFieldAccess(x)
	}
	panic("interp: unhandled expression")
}

func (in *Interpreter) evalAll(exprs []ast.Expr) ([]any, error) {
	out := make([]any, len(exprs))
	for i, e := range exprs {
		v, err := in.evalExpr(e)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (in *Interpreter) evalUnary(x *ast.Unary) (any, error) {
	v, err := in.evalExpr(x.X)
	if err != nil {
		return nil, err
	}
	switch x.Op {
	case "-":
		switch n := v.(type) {
		case int64:
			return -n, nil
		case float64:
			return -n, nil
		}
	case "not":
		if b, ok := v.(bool); ok {
			return !b, nil
		}
	}
	return nil, fmt.Errorf("interp: operator %s on %T", x.Op, v)
}

func (in *Interpreter) evalBinary(x *ast.Binary) (any, error) {
	// Short-circuit before evaluating the right side.
	if x.Op == "and" || x.Op == "or" {
		left, err := in.evalExpr(x.L)
		if err != nil {
			return nil, err
		}
		if x.Op == "and" && left == false {
			return false, nil
		}
		if x.Op == "or" && left == true {
			return true, nil
		}
		return in.evalExpr(x.R)
	}

	left, err := in.evalExpr(x.L)
	if err != nil {
		return nil, err
	}
	right, err := in.evalExpr(x.R)
	if err != nil {
		return nil, err
	}

	switch x.Op {
	case "==":
		return valueEquals(left, right), nil
	case "!=":
		return !valueEquals(left, right), nil
	case "/":
		return toFloat(left) / toFloat(right), nil
	case "+", "-", "*":
		if li, lok := left.(int64); lok {
			if ri, rok := right.(int64); rok {
				switch x.Op {
				case "+":
					return li + ri, nil
				case "-":
					return li - ri, nil
				default:
					return li * ri, nil
				}
			}
		}
		lf, rf := toFloat(left), toFloat(right)
		switch x.Op {
		case "+":
			return lf + rf, nil
		case "-":
			return lf - rf, nil
		default:
			return lf * rf, nil
		}
	case "<", "<=", ">", ">=":
		lf, rf := toFloat(left), toFloat(right)
		switch x.Op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		default:
			return lf >= rf, nil
		}
	}
	return nil, fmt.Errorf("interp: unhandled operator %s", x.Op)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	panic(fmt.Sprintf("interp: %T is not numeric", v))
}

func valueEquals(a, b any) bool {
	switch av := a.(type) {
	case *ListValue:
		bv, ok := b.(*ListValue)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !valueEquals(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	case *TupleValue:
		bv, ok := b.(*TupleValue)
		if !ok || len(av.Elems) != len(bv.Elems) {
			return false
		}
		for i := range av.Elems {
			if !valueEquals(av.Elems[i], bv.Elems[i]) {
				return false
			}
		}
		return true
	case *StructValue:
		bv, ok := b.(*StructValue)
		if !ok || len(av.Values) != len(bv.Values) {
			return false
		}
		for name, v := range av.Values {
			if !valueEquals(v, bv.Values[name]) {
				return false
			}
		}
		return true
	case *WrappedValue:
		bv, ok := b.(*WrappedValue)
		return ok && av.TypeName == bv.TypeName && valueEquals(av.Value, bv.Value)
	default:
		return a == b
	}
}

func (in *Interpreter) evalLambda(x *ast.Lambda) (any, error) {
	captured := make(map[string]capturedSlot)
	for _, name := range in.session.Captures[x] {
		typ, _ := in.tab.GetType(name)
		value, _ := in.tab.GetValue(name)
		captured[name] = capturedSlot{typ: typ, value: value}
	}
	return &ClosureValue{Def: x, Captured: captured}, nil
}

func (in *Interpreter) evalFieldAccess(x *ast.FieldAccess) (any, error) {
	if id, ok := x.X.(*ast.Ident); ok {
		if t, declared := in.tab.GetType(id.Name); declared && t.Kind == types.KindModule {
			return nil, fmt.Errorf("interp: dependency procedure %s.%s is not executable without its module implementation", id.Name, x.Name)
		}
	}
	base, err := in.evalExpr(x.X)
	if err != nil {
		return nil, err
	}
	if w, ok := base.(*WrappedValue); ok {
		base = w.Value
	}
	sv, ok := base.(*StructValue)
	if !ok {
		return nil, fmt.Errorf("interp: %T has no fields", base)
	}
	v, ok := sv.Values[x.Name]
	if !ok {
		return nil, fmt.Errorf("interp: no field %s", x.Name)
	}
	return v, nil
}

func (in *Interpreter) evalCall(x *ast.Call) (any, error) {
	if id, ok := x.Callee.(*ast.Ident); ok {
		switch id.Name {
		case "print":
			args, err := in.evalAll(x.Args)
			if err != nil {
				return nil, err
			}
			fmt.Fprintln(in.out, FormatValue(args[0]))
			return nil, nil
		case "len":
			args, err := in.evalAll(x.Args)
			if err != nil {
				return nil, err
			}
			return lengthOf(args[0])
		case "sleep":
			args, err := in.evalAll(x.Args)
			if err != nil {
				return nil, err
			}
			time.Sleep(time.Duration(args[0].(int64)) * time.Millisecond)
			return nil, nil
		case "unwrap":
			args, err := in.evalAll(x.Args)
			if err != nil {
				return nil, err
			}
			if w, ok := args[0].(*WrappedValue); ok {
				return w.Value, nil
			}
			return nil, fmt.Errorf("interp: unwrap of %T", args[0])
		}

		// A type-definition callee is a constructor.
		if t, ok := in.tab.GetType(id.Name); ok && t.Kind == types.KindUserDef {
			args, err := in.evalAll(x.Args)
			if err != nil {
				return nil, err
			}
			return &WrappedValue{TypeName: id.Name, Value: args[0]}, nil
		}
	}

	callee, err := in.evalExpr(x.Callee)
	if err != nil {
		return nil, err
	}
	args, err := in.evalAll(x.Args)
	if err != nil {
		return nil, err
	}

	switch fn := callee.(type) {
	case *ProcValue:
		in.tab.EnterScope(symbols.ProcedureScope)
		defer in.tab.ExitScope(false)
		for i, p := range fn.Def.Params {
			in.tab.PutWithHiding(p.Name, nil, args[i])
		}
		v, _, err := in.runBody(fn.Def.Body)
		return v, err
	case *ClosureValue:
		in.tab.EnterScope(symbols.LambdaScope)
		defer in.tab.ExitScope(false)
		for name, slot := range fn.Captured {
			in.tab.PutWithHiding(name, slot.typ, slot.value)
		}
		for i, p := range fn.Def.Params {
			in.tab.PutWithHiding(p.Name, nil, args[i])
		}
		v, _, err := in.runBody(fn.Def.Body)
		return v, err
	}
	return nil, fmt.Errorf("interp: %T is not callable", callee)
}

func (in *Interpreter) runBody(b *ast.Block) (any, bool, error) {
	for _, stmt := range b.Stmts {
		if v, returned, err := in.execStmt(stmt); err != nil || returned {
			return v, returned, err
		}
	}
	return nil, false, nil
}

func lengthOf(v any) (any, error) {
	switch c := v.(type) {
	case string:
		return int64(len(c)), nil
	case *ListValue:
		return int64(len(c.Elems)), nil
	case *TupleValue:
		return int64(len(c.Elems)), nil
	}
	return nil, fmt.Errorf("interp: len of %T", v)
}

// FormatValue renders a runtime value the way quillc prints it.
func FormatValue(v any) string {
	switch c := v.(type) {
	case nil:
		return "nothing"
	case string:
		return c
	case *ListValue:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = FormatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *TupleValue:
		parts := make([]string, len(c.Elems))
		for i, e := range c.Elems {
			parts[i] = FormatValue(e)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *StructValue:
		names := c.Names
		if names == nil {
			names = sortedNames(c.Values)
		}
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = name + " = " + FormatValue(c.Values[name])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *WrappedValue:
		return c.TypeName + "(" + FormatValue(c.Value) + ")"
	case *ProcValue:
		return "<procedure " + c.Def.Name + ">"
	case *ClosureValue:
		return "<lambda>"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func sortedNames(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
