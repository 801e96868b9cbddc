// Package ast contains the syntax tree the parser produces and the analyzer
// walks. Parse trees and abstract syntax trees share one set of node types;
// the analyzer hangs no state off the nodes, so they stay plain data.
package ast

import "github.com/oxhq/quill/core"

// Node is the base of all syntax tree types.
type Node interface {
	Pos() core.Location
}

// Program is a single parsed source file.
type Program struct {
	File  string
	Stmts []Stmt
}

func (p *Program) Pos() core.Location { return core.Location{File: p.File, Line: 1, Column: 1} }

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// TypeExpr is implemented by all syntactic type annotations.
type TypeExpr interface {
	Node
	typeExprNode()
}

// ---- statements ----

// VarDecl is `var name: type [= init];`.
type VarDecl struct {
	Loc  core.Location
	Name string
	Type TypeExpr
	Init Expr // nil when only declared
}

// ShortDecl is `name := init;`, type inferred from the initializer.
type ShortDecl struct {
	Loc  core.Location
	Name string
	Init Expr
}

// Assign is `name = value;` for an already-declared name.
type Assign struct {
	Loc   core.Location
	Name  string
	Value Expr
}

// StaticDecl is `static NAME: type = init;`; the value must be deeply
// immutable.
type StaticDecl struct {
	Loc  core.Location
	Name string
	Type TypeExpr
	Init Expr
}

// If is a conditional with an optional else arm. Else is either *Block or
// a chained *If.
type If struct {
	Loc  core.Location
	Cond Expr
	Then *Block
	Else Stmt // nil, *Block, or *If
}

// While is a loop; its body never participates in branch inspection.
type While struct {
	Loc  core.Location
	Cond Expr
	Body *Block
}

// Return is `return [expr];`.
type Return struct {
	Loc   core.Location
	Value Expr // nil for bare return
}

// Block is `{ stmts }`.
type Block struct {
	Loc   core.Location
	Stmts []Stmt
}

// ProcArity distinguishes the three procedure shapes.
type ProcArity int

const (
	ArityFunction ProcArity = iota // args and a return value
	ArityProvider                  // return value only
	ArityConsumer                  // args only
)

func (a ProcArity) String() string {
	switch a {
	case ArityProvider:
		return "provider"
	case ArityConsumer:
		return "consumer"
	default:
		return "function"
	}
}

// Param is a declared procedure or lambda parameter.
type Param struct {
	Loc  core.Location
	Name string
	Type TypeExpr
}

// ContractRefExpr names a required contract with its generic arguments, as
// written in a requires clause.
type ContractRefExpr struct {
	Loc  core.Location
	Name string
	Args []TypeExpr
}

// BlockingMode is the declared blocking annotation.
type BlockingMode int

const (
	BlockingNone BlockingMode = iota
	BlockingDeclared
	BlockingGenericOverArgs
)

// ProcDef declares a named procedure.
type ProcDef struct {
	Loc          core.Location
	Arity        ProcArity
	Name         string
	Generics     []string
	Params       []Param
	ReturnType   TypeExpr // nil for consumers
	Blocking     BlockingMode
	BlockingArgs []int // arg indices for BlockingGenericOverArgs
	Requires     []ContractRefExpr
	Body         *Block
}

// StructDef declares a named struct type; when Immutable every field type
// must be deeply immutable.
type StructDef struct {
	Loc       core.Location
	Name      string
	Fields    []StructFieldDef
	Immutable bool
}

// StructFieldDef is one field of a struct definition.
type StructFieldDef struct {
	Loc  core.Location
	Name string
	Type TypeExpr
}

// NewtypeDef declares a nominal wrapper: `newtype Name<T> : body;`.
type NewtypeDef struct {
	Loc      core.Location
	Name     string
	Generics []string
	Body     TypeExpr
}

// ContractDef declares a contract with its procedure signatures.
type ContractDef struct {
	Loc      core.Location
	Name     string
	Generics []string
	Sigs     []*ProcDef // bodies are nil
}

// ImplementDef provides a contract implementation for concrete type args.
type ImplementDef struct {
	Loc      core.Location
	Contract string
	Args     []TypeExpr
	Defs     []*ProcDef
}

// ExprStmt is an expression evaluated for its effects.
type ExprStmt struct {
	Loc core.Location
	E   Expr
}

func (s *VarDecl) Pos() core.Location      { return s.Loc }
func (s *ShortDecl) Pos() core.Location    { return s.Loc }
func (s *Assign) Pos() core.Location       { return s.Loc }
func (s *StaticDecl) Pos() core.Location   { return s.Loc }
func (s *If) Pos() core.Location           { return s.Loc }
func (s *While) Pos() core.Location        { return s.Loc }
func (s *Return) Pos() core.Location       { return s.Loc }
func (s *Block) Pos() core.Location        { return s.Loc }
func (s *ProcDef) Pos() core.Location      { return s.Loc }
func (s *StructDef) Pos() core.Location    { return s.Loc }
func (s *NewtypeDef) Pos() core.Location   { return s.Loc }
func (s *ContractDef) Pos() core.Location  { return s.Loc }
func (s *ImplementDef) Pos() core.Location { return s.Loc }
func (s *ExprStmt) Pos() core.Location     { return s.Loc }

func (*VarDecl) stmtNode()      {}
func (*ShortDecl) stmtNode()    {}
func (*Assign) stmtNode()       {}
func (*StaticDecl) stmtNode()   {}
func (*If) stmtNode()           {}
func (*While) stmtNode()        {}
func (*Return) stmtNode()       {}
func (*Block) stmtNode()        {}
func (*ProcDef) stmtNode()      {}
func (*StructDef) stmtNode()    {}
func (*NewtypeDef) stmtNode()   {}
func (*ContractDef) stmtNode()  {}
func (*ImplementDef) stmtNode() {}
func (*ExprStmt) stmtNode()     {}

// ---- expressions ----

type IntLit struct {
	Loc   core.Location
	Value int64
}

type FloatLit struct {
	Loc   core.Location
	Value float64
}

type StringLit struct {
	Loc   core.Location
	Value string
}

type BoolLit struct {
	Loc   core.Location
	Value bool
}

// Ident is a name reference.
type Ident struct {
	Loc  core.Location
	Name string
}

// Binary is `lhs op rhs` for arithmetic, comparison and logical operators.
type Binary struct {
	Loc  core.Location
	Op   string
	L, R Expr
}

// Unary is `-x` or `not x`.
type Unary struct {
	Loc core.Location
	Op  string
	X   Expr
}

// Call applies a procedure value to arguments.
type Call struct {
	Loc    core.Location
	Callee Expr
	Args   []Expr
}

// Lambda is an anonymous closure; names resolved outside it are captured by
// snapshot into its scope.
type Lambda struct {
	Loc        core.Location
	Params     []Param
	ReturnType TypeExpr // nil for consumer-shaped lambdas
	Body       *Block
}

// ListLit is `[e, ...]`, optionally `mut`.
type ListLit struct {
	Loc     core.Location
	Elems   []Expr
	Mutable bool
}

// TupleLit is `tuple(e, e, ...)`, optionally `mut`.
type TupleLit struct {
	Loc     core.Location
	Elems   []Expr
	Mutable bool
}

// StructLit is `[mut] struct{name = expr, ...}`.
type StructLit struct {
	Loc     core.Location
	Fields  []FieldInit
	Mutable bool
}

// FieldInit is one `name = expr` entry of a struct literal.
type FieldInit struct {
	Loc   core.Location
	Name  string
	Value Expr
}

// FieldAccess is `x.name`.
type FieldAccess struct {
	Loc  core.Location
	X    Expr
	Name string
}

func (e *IntLit) Pos() core.Location      { return e.Loc }
func (e *FloatLit) Pos() core.Location    { return e.Loc }
func (e *StringLit) Pos() core.Location   { return e.Loc }
func (e *BoolLit) Pos() core.Location     { return e.Loc }
func (e *Ident) Pos() core.Location       { return e.Loc }
func (e *Binary) Pos() core.Location      { return e.Loc }
func (e *Unary) Pos() core.Location       { return e.Loc }
func (e *Call) Pos() core.Location        { return e.Loc }
func (e *Lambda) Pos() core.Location      { return e.Loc }
func (e *ListLit) Pos() core.Location     { return e.Loc }
func (e *TupleLit) Pos() core.Location    { return e.Loc }
func (e *StructLit) Pos() core.Location   { return e.Loc }
func (e *FieldAccess) Pos() core.Location { return e.Loc }

func (*IntLit) exprNode()      {}
func (*FloatLit) exprNode()    {}
func (*StringLit) exprNode()   {}
func (*BoolLit) exprNode()     {}
func (*Ident) exprNode()       {}
func (*Binary) exprNode()      {}
func (*Unary) exprNode()       {}
func (*Call) exprNode()        {}
func (*Lambda) exprNode()      {}
func (*ListLit) exprNode()     {}
func (*TupleLit) exprNode()    {}
func (*StructLit) exprNode()   {}
func (*FieldAccess) exprNode() {}

// ---- type expressions ----

// NamedType covers primitives, parameterized containers, user-defined names
// and generic parameters: `mut list<int>`, `Box<T>`, `int`.
type NamedType struct {
	Loc  core.Location
	Name string
	Args []TypeExpr
	Mut  bool
}

// StructType is an inline `[mut] struct{name: type, ...}` annotation.
type StructType struct {
	Loc    core.Location
	Fields []StructFieldDef
	Mut    bool
}

// ProcType is a procedure type annotation: `function<int -> int>`,
// `provider<int>`, `consumer<string>`, with an optional blocking prefix.
type ProcType struct {
	Loc          core.Location
	Arity        ProcArity
	Args         []TypeExpr
	Return       TypeExpr
	Blocking     BlockingMode
	BlockingArgs []int
}

func (t *NamedType) Pos() core.Location  { return t.Loc }
func (t *StructType) Pos() core.Location { return t.Loc }
func (t *ProcType) Pos() core.Location   { return t.Loc }

func (*NamedType) typeExprNode()  {}
func (*StructType) typeExprNode() {}
func (*ProcType) typeExprNode()   {}
