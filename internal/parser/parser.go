// Package parser builds the syntax tree out of the lexer's token stream.
// It is a hand-written recursive-descent parser with Pratt-style expression
// parsing; every syntax error becomes a parse diagnostic and the parser
// resynchronizes at the next statement boundary.
package parser

import (
	"fmt"
	"strconv"

	"github.com/oxhq/quill/core"
	"github.com/oxhq/quill/internal/ast"
	"github.com/oxhq/quill/internal/lexer"
)

type bailout struct{}

// Parser consumes one token stream.
type Parser struct {
	file  string
	toks  []lexer.Token
	pos   int
	diags []core.Diagnostic
}

// Parse scans and parses one source file. The returned diagnostics are parse
// errors in source order; the program contains every statement that parsed.
func Parse(file, src string) (*ast.Program, []core.Diagnostic) {
	p := &Parser{file: file, toks: lexer.New(file, src).Tokens()}
	prog := &ast.Program{File: file}
	for !p.at(lexer.EOF) {
		before := p.pos
		stmt := p.statementRecovering()
		if stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		// Resynchronization may stop on the very token that failed; force
		// progress so recovery cannot loop.
		if p.pos == before {
			p.advance()
		}
	}
	return prog, p.diags
}

func (p *Parser) statementRecovering() (stmt ast.Stmt) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.synchronize()
			stmt = nil
		}
	}()
	return p.statement()
}

func (p *Parser) cur() lexer.Token { return p.toks[p.pos] }

func (p *Parser) peek() lexer.Token {
	if p.pos+1 < len(p.toks) {
		return p.toks[p.pos+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *Parser) at(t lexer.TokenType) bool { return p.cur().Type == t }

func (p *Parser) advance() lexer.Token {
	tok := p.cur()
	if tok.Type != lexer.EOF {
		p.pos++
	}
	if tok.Type == lexer.ILLEGAL {
		p.errorAt(tok.Loc, "%s", tok.Lexeme)
	}
	return tok
}

func (p *Parser) match(t lexer.TokenType) bool {
	if p.at(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(t lexer.TokenType) lexer.Token {
	if p.at(t) {
		return p.advance()
	}
	p.errorAt(p.cur().Loc, "expected %q, found %q", string(t), p.describe(p.cur()))
	panic(bailout{})
}

func (p *Parser) describe(tok lexer.Token) string {
	if tok.Type == lexer.EOF {
		return "end of file"
	}
	if tok.Lexeme != "" {
		return tok.Lexeme
	}
	return string(tok.Type)
}

func (p *Parser) errorAt(loc core.Location, format string, args ...any) {
	p.diags = append(p.diags, core.Diagnostic{
		Kind:     core.DiagParse,
		Code:     core.ErrParse,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	})
}

// synchronize skips to the next statement boundary after a syntax error.
func (p *Parser) synchronize() {
	for !p.at(lexer.EOF) {
		if p.match(lexer.SEMI) {
			return
		}
		switch p.cur().Type {
		case lexer.RBRACE, lexer.VAR, lexer.IF, lexer.WHILE, lexer.RETURN,
			lexer.FUNCTION, lexer.PROVIDER, lexer.CONSUMER, lexer.NEWTYPE,
			lexer.CONTRACT, lexer.IMPLEMENT, lexer.STATIC:
			return
		}
		p.advance()
	}
}

// ---- statements ----

func (p *Parser) statement() ast.Stmt {
	switch p.cur().Type {
	case lexer.VAR:
		return p.varDecl()
	case lexer.STATIC:
		return p.staticDecl()
	case lexer.IF:
		return p.ifStmt()
	case lexer.WHILE:
		return p.whileStmt()
	case lexer.RETURN:
		return p.returnStmt()
	case lexer.BLOCKING, lexer.FUNCTION, lexer.PROVIDER, lexer.CONSUMER:
		return p.procDef(true)
	case lexer.NEWTYPE:
		return p.newtypeDef()
	case lexer.CONTRACT:
		return p.contractDef()
	case lexer.IMPLEMENT:
		return p.implementDef()
	case lexer.IMMUTABLE:
		return p.structDef()
	case lexer.STRUCT:
		if p.peek().Type == lexer.IDENT {
			return p.structDef()
		}
	case lexer.IDENT:
		switch p.peek().Type {
		case lexer.DECLARE:
			return p.shortDecl()
		case lexer.ASSIGN:
			return p.assign()
		}
	}
	loc := p.cur().Loc
	e := p.expression()
	p.expect(lexer.SEMI)
	return &ast.ExprStmt{Loc: loc, E: e}
}

func (p *Parser) varDecl() ast.Stmt {
	loc := p.expect(lexer.VAR).Loc
	name := p.expect(lexer.IDENT).Lexeme
	p.expect(lexer.COLON)
	typ := p.typeExpr()
	var init ast.Expr
	if p.match(lexer.ASSIGN) {
		init = p.expression()
	}
	p.expect(lexer.SEMI)
	return &ast.VarDecl{Loc: loc, Name: name, Type: typ, Init: init}
}

func (p *Parser) staticDecl() ast.Stmt {
	loc := p.expect(lexer.STATIC).Loc
	name := p.expect(lexer.IDENT).Lexeme
	p.expect(lexer.COLON)
	typ := p.typeExpr()
	p.expect(lexer.ASSIGN)
	init := p.expression()
	p.expect(lexer.SEMI)
	return &ast.StaticDecl{Loc: loc, Name: name, Type: typ, Init: init}
}

func (p *Parser) shortDecl() ast.Stmt {
	name := p.expect(lexer.IDENT)
	p.expect(lexer.DECLARE)
	init := p.expression()
	p.expect(lexer.SEMI)
	return &ast.ShortDecl{Loc: name.Loc, Name: name.Lexeme, Init: init}
}

func (p *Parser) assign() ast.Stmt {
	name := p.expect(lexer.IDENT)
	p.expect(lexer.ASSIGN)
	value := p.expression()
	p.expect(lexer.SEMI)
	return &ast.Assign{Loc: name.Loc, Name: name.Lexeme, Value: value}
}

func (p *Parser) ifStmt() ast.Stmt {
	loc := p.expect(lexer.IF).Loc
	p.expect(lexer.LPAREN)
	cond := p.expression()
	p.expect(lexer.RPAREN)
	then := p.block()
	var elseArm ast.Stmt
	if p.match(lexer.ELSE) {
		if p.at(lexer.IF) {
			elseArm = p.ifStmt()
		} else {
			elseArm = p.block()
		}
	}
	return &ast.If{Loc: loc, Cond: cond, Then: then, Else: elseArm}
}

func (p *Parser) whileStmt() ast.Stmt {
	loc := p.expect(lexer.WHILE).Loc
	p.expect(lexer.LPAREN)
	cond := p.expression()
	p.expect(lexer.RPAREN)
	return &ast.While{Loc: loc, Cond: cond, Body: p.block()}
}

func (p *Parser) returnStmt() ast.Stmt {
	loc := p.expect(lexer.RETURN).Loc
	var value ast.Expr
	if !p.at(lexer.SEMI) {
		value = p.expression()
	}
	p.expect(lexer.SEMI)
	return &ast.Return{Loc: loc, Value: value}
}

func (p *Parser) block() *ast.Block {
	loc := p.expect(lexer.LBRACE).Loc
	b := &ast.Block{Loc: loc}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		before := p.pos
		if stmt := p.statementRecovering(); stmt != nil {
			// Type, contract and procedure definitions belong to the module,
			// not to a block; nesting them is a syntax error and the node is
			// dropped so the checker never sees an unhoisted definition.
			if name, topOnly := moduleLevelOnly(stmt); topOnly {
				p.errorAt(stmt.Pos(), "%s must be declared at the module level", name)
			} else {
				b.Stmts = append(b.Stmts, stmt)
			}
		}
		if p.pos == before {
			p.advance()
		}
	}
	p.expect(lexer.RBRACE)
	return b
}

// moduleLevelOnly reports whether stmt is a definition the grammar restricts
// to the module level, naming it for the diagnostic.
func moduleLevelOnly(stmt ast.Stmt) (string, bool) {
	switch d := stmt.(type) {
	case *ast.ProcDef:
		return d.Arity.String() + " " + d.Name, true
	case *ast.StructDef:
		return "struct " + d.Name, true
	case *ast.NewtypeDef:
		return "newtype " + d.Name, true
	case *ast.ContractDef:
		return "contract " + d.Name, true
	case *ast.ImplementDef:
		return "implementation of " + d.Contract, true
	}
	return "", false
}

// procDef parses `[blocking[?]] function|provider|consumer name<G>(params)
// [-> type] [requires(...)] { body }`. withBody=false parses a contract
// signature ending in a semicolon instead.
func (p *Parser) procDef(withBody bool) *ast.ProcDef {
	loc := p.cur().Loc
	blocking := ast.BlockingNone
	if p.match(lexer.BLOCKING) {
		blocking = ast.BlockingDeclared
		if p.match(lexer.QUESTION) {
			blocking = ast.BlockingGenericOverArgs
		}
	}

	var arity ast.ProcArity
	switch p.cur().Type {
	case lexer.FUNCTION:
		arity = ast.ArityFunction
	case lexer.PROVIDER:
		arity = ast.ArityProvider
	case lexer.CONSUMER:
		arity = ast.ArityConsumer
	default:
		p.errorAt(p.cur().Loc, "expected procedure kind, found %q", p.describe(p.cur()))
		panic(bailout{})
	}
	p.advance()

	name := p.expect(lexer.IDENT).Lexeme
	def := &ast.ProcDef{Loc: loc, Arity: arity, Name: name, Blocking: blocking}

	if p.match(lexer.LT) {
		for {
			def.Generics = append(def.Generics, p.expect(lexer.IDENT).Lexeme)
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.GT)
	}

	p.expect(lexer.LPAREN)
	for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
		pn := p.expect(lexer.IDENT)
		p.expect(lexer.COLON)
		def.Params = append(def.Params, ast.Param{Loc: pn.Loc, Name: pn.Lexeme, Type: p.typeExpr()})
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN)

	if arity != ast.ArityConsumer {
		p.expect(lexer.ARROW)
		def.ReturnType = p.typeExpr()
	}

	if p.match(lexer.REQUIRES) {
		p.expect(lexer.LPAREN)
		for {
			ref := p.expect(lexer.IDENT)
			cref := ast.ContractRefExpr{Loc: ref.Loc, Name: ref.Lexeme}
			p.expect(lexer.LT)
			for {
				cref.Args = append(cref.Args, p.typeExpr())
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.expect(lexer.GT)
			def.Requires = append(def.Requires, cref)
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RPAREN)
	}

	if withBody {
		def.Body = p.block()
	} else {
		p.expect(lexer.SEMI)
	}
	return def
}

func (p *Parser) structDef() ast.Stmt {
	loc := p.cur().Loc
	immutable := p.match(lexer.IMMUTABLE)
	p.expect(lexer.STRUCT)
	name := p.expect(lexer.IDENT).Lexeme
	p.expect(lexer.LBRACE)
	def := &ast.StructDef{Loc: loc, Name: name, Immutable: immutable}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		fn := p.expect(lexer.IDENT)
		p.expect(lexer.COLON)
		def.Fields = append(def.Fields, ast.StructFieldDef{Loc: fn.Loc, Name: fn.Lexeme, Type: p.typeExpr()})
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RBRACE)
	return def
}

func (p *Parser) newtypeDef() ast.Stmt {
	loc := p.expect(lexer.NEWTYPE).Loc
	name := p.expect(lexer.IDENT).Lexeme
	def := &ast.NewtypeDef{Loc: loc, Name: name}
	if p.match(lexer.LT) {
		for {
			def.Generics = append(def.Generics, p.expect(lexer.IDENT).Lexeme)
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.GT)
	}
	p.expect(lexer.COLON)
	def.Body = p.typeExpr()
	p.expect(lexer.SEMI)
	return def
}

func (p *Parser) contractDef() ast.Stmt {
	loc := p.expect(lexer.CONTRACT).Loc
	name := p.expect(lexer.IDENT).Lexeme
	def := &ast.ContractDef{Loc: loc, Name: name}
	p.expect(lexer.LT)
	for {
		def.Generics = append(def.Generics, p.expect(lexer.IDENT).Lexeme)
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.GT)
	p.expect(lexer.LBRACE)
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		def.Sigs = append(def.Sigs, p.procDef(false))
	}
	p.expect(lexer.RBRACE)
	return def
}

func (p *Parser) implementDef() ast.Stmt {
	loc := p.expect(lexer.IMPLEMENT).Loc
	name := p.expect(lexer.IDENT).Lexeme
	def := &ast.ImplementDef{Loc: loc, Contract: name}
	p.expect(lexer.LT)
	for {
		def.Args = append(def.Args, p.typeExpr())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.GT)
	p.expect(lexer.LBRACE)
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		def.Defs = append(def.Defs, p.procDef(true))
	}
	p.expect(lexer.RBRACE)
	return def
}

// ---- type expressions ----

func (p *Parser) typeExpr() ast.TypeExpr {
	loc := p.cur().Loc
	mut := p.match(lexer.MUT)

	switch p.cur().Type {
	case lexer.STRUCT:
		p.advance()
		p.expect(lexer.LBRACE)
		st := &ast.StructType{Loc: loc, Mut: mut}
		for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
			fn := p.expect(lexer.IDENT)
			p.expect(lexer.COLON)
			st.Fields = append(st.Fields, ast.StructFieldDef{Loc: fn.Loc, Name: fn.Lexeme, Type: p.typeExpr()})
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.RBRACE)
		return st

	case lexer.BLOCKING, lexer.FUNCTION, lexer.PROVIDER, lexer.CONSUMER:
		if mut {
			p.errorAt(loc, "procedure types have no mut variant")
		}
		return p.procType(loc)

	case lexer.TUPLE:
		p.advance()
		nt := &ast.NamedType{Loc: loc, Name: "tuple", Mut: mut}
		p.expect(lexer.LT)
		for {
			nt.Args = append(nt.Args, p.typeExpr())
			if !p.match(lexer.COMMA) {
				break
			}
		}
		p.expect(lexer.GT)
		return nt

	case lexer.IDENT:
		name := p.advance()
		nt := &ast.NamedType{Loc: loc, Name: name.Lexeme, Mut: mut}
		if p.match(lexer.LT) {
			for {
				nt.Args = append(nt.Args, p.typeExpr())
				if name.Lexeme == "oneof" && p.at(lexer.PIPE) {
					p.advance()
					continue
				}
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.expect(lexer.GT)
		}
		return nt
	}

	p.errorAt(loc, "expected type, found %q", p.describe(p.cur()))
	panic(bailout{})
}

func (p *Parser) procType(loc core.Location) ast.TypeExpr {
	blocking := ast.BlockingNone
	if p.match(lexer.BLOCKING) {
		blocking = ast.BlockingDeclared
		if p.match(lexer.QUESTION) {
			blocking = ast.BlockingGenericOverArgs
		}
	}
	pt := &ast.ProcType{Loc: loc, Blocking: blocking}
	switch p.cur().Type {
	case lexer.FUNCTION:
		pt.Arity = ast.ArityFunction
	case lexer.PROVIDER:
		pt.Arity = ast.ArityProvider
	case lexer.CONSUMER:
		pt.Arity = ast.ArityConsumer
	default:
		p.errorAt(p.cur().Loc, "expected procedure kind after blocking annotation")
		panic(bailout{})
	}
	p.advance()
	p.expect(lexer.LT)
	switch pt.Arity {
	case ast.ArityProvider:
		pt.Return = p.typeExpr()
	case ast.ArityConsumer:
		for {
			pt.Args = append(pt.Args, p.typeExpr())
			if !p.match(lexer.COMMA) {
				break
			}
		}
	default:
		if !p.at(lexer.ARROW) {
			for {
				pt.Args = append(pt.Args, p.typeExpr())
				if !p.match(lexer.COMMA) {
					break
				}
			}
		}
		p.expect(lexer.ARROW)
		pt.Return = p.typeExpr()
	}
	p.expect(lexer.GT)
	return pt
}

// ---- expressions ----

// Precedence levels, lowest first.
const (
	precLowest = iota
	precOr
	precAnd
	precEquality
	precCompare
	precAdd
	precMul
	precUnary
	precCall
)

func binaryPrec(t lexer.TokenType) int {
	switch t {
	case lexer.OR:
		return precOr
	case lexer.AND:
		return precAnd
	case lexer.EQ, lexer.NEQ:
		return precEquality
	case lexer.LT, lexer.LTE, lexer.GT, lexer.GTE:
		return precCompare
	case lexer.PLUS, lexer.MINUS:
		return precAdd
	case lexer.STAR, lexer.SLASH:
		return precMul
	}
	return precLowest
}

func (p *Parser) expression() ast.Expr {
	return p.binary(precLowest)
}

func (p *Parser) binary(minPrec int) ast.Expr {
	left := p.unary()
	for {
		prec := binaryPrec(p.cur().Type)
		if prec <= minPrec {
			return left
		}
		op := p.advance()
		right := p.binary(prec)
		left = &ast.Binary{Loc: op.Loc, Op: op.Lexeme, L: left, R: right}
	}
}

func (p *Parser) unary() ast.Expr {
	switch p.cur().Type {
	case lexer.MINUS, lexer.NOT:
		op := p.advance()
		return &ast.Unary{Loc: op.Loc, Op: op.Lexeme, X: p.unary()}
	}
	return p.postfix()
}

func (p *Parser) postfix() ast.Expr {
	e := p.primary()
	for {
		switch {
		case p.at(lexer.LPAREN):
			loc := p.advance().Loc
			call := &ast.Call{Loc: loc, Callee: e}
			for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
				call.Args = append(call.Args, p.expression())
				if !p.match(lexer.COMMA) {
					break
				}
			}
			p.expect(lexer.RPAREN)
			e = call
		case p.at(lexer.DOT):
			p.advance()
			name := p.expect(lexer.IDENT)
			e = &ast.FieldAccess{Loc: name.Loc, X: e, Name: name.Lexeme}
		default:
			return e
		}
	}
}

func (p *Parser) primary() ast.Expr {
	tok := p.cur()
	switch tok.Type {
	case lexer.INT:
		p.advance()
		v, err := strconv.ParseInt(tok.Lexeme, 10, 64)
		if err != nil {
			p.errorAt(tok.Loc, "invalid integer literal %q", tok.Lexeme)
			panic(bailout{})
		}
		return &ast.IntLit{Loc: tok.Loc, Value: v}
	case lexer.FLOAT:
		p.advance()
		v, err := strconv.ParseFloat(tok.Lexeme, 64)
		if err != nil {
			p.errorAt(tok.Loc, "invalid float literal %q", tok.Lexeme)
			panic(bailout{})
		}
		return &ast.FloatLit{Loc: tok.Loc, Value: v}
	case lexer.STRING:
		p.advance()
		return &ast.StringLit{Loc: tok.Loc, Value: tok.Lexeme}
	case lexer.TRUE, lexer.FALSE:
		p.advance()
		return &ast.BoolLit{Loc: tok.Loc, Value: tok.Type == lexer.TRUE}
	case lexer.IDENT:
		p.advance()
		return &ast.Ident{Loc: tok.Loc, Name: tok.Lexeme}
	case lexer.LPAREN:
		p.advance()
		e := p.expression()
		p.expect(lexer.RPAREN)
		return e
	case lexer.LBRACKET:
		return p.listLit(false)
	case lexer.MUT:
		p.advance()
		switch p.cur().Type {
		case lexer.LBRACKET:
			return p.listLit(true)
		case lexer.STRUCT:
			return p.structLit(tok.Loc, true)
		case lexer.TUPLE:
			return p.tupleLit(tok.Loc, true)
		}
		p.errorAt(p.cur().Loc, "expected container literal after mut")
		panic(bailout{})
	case lexer.STRUCT:
		return p.structLit(tok.Loc, false)
	case lexer.TUPLE:
		return p.tupleLit(tok.Loc, false)
	case lexer.LAMBDA:
		return p.lambda()
	}
	p.errorAt(tok.Loc, "expected expression, found %q", p.describe(tok))
	panic(bailout{})
}

func (p *Parser) listLit(mutable bool) ast.Expr {
	loc := p.expect(lexer.LBRACKET).Loc
	lit := &ast.ListLit{Loc: loc, Mutable: mutable}
	for !p.at(lexer.RBRACKET) && !p.at(lexer.EOF) {
		lit.Elems = append(lit.Elems, p.expression())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RBRACKET)
	return lit
}

func (p *Parser) structLit(loc core.Location, mutable bool) ast.Expr {
	p.expect(lexer.STRUCT)
	p.expect(lexer.LBRACE)
	lit := &ast.StructLit{Loc: loc, Mutable: mutable}
	for !p.at(lexer.RBRACE) && !p.at(lexer.EOF) {
		fn := p.expect(lexer.IDENT)
		p.expect(lexer.ASSIGN)
		lit.Fields = append(lit.Fields, ast.FieldInit{Loc: fn.Loc, Name: fn.Lexeme, Value: p.expression()})
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RBRACE)
	return lit
}

func (p *Parser) tupleLit(loc core.Location, mutable bool) ast.Expr {
	p.expect(lexer.TUPLE)
	p.expect(lexer.LPAREN)
	lit := &ast.TupleLit{Loc: loc, Mutable: mutable}
	for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
		lit.Elems = append(lit.Elems, p.expression())
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN)
	return lit
}

func (p *Parser) lambda() ast.Expr {
	loc := p.expect(lexer.LAMBDA).Loc
	l := &ast.Lambda{Loc: loc}
	p.expect(lexer.LPAREN)
	for !p.at(lexer.RPAREN) && !p.at(lexer.EOF) {
		pn := p.expect(lexer.IDENT)
		p.expect(lexer.COLON)
		l.Params = append(l.Params, ast.Param{Loc: pn.Loc, Name: pn.Lexeme, Type: p.typeExpr()})
		if !p.match(lexer.COMMA) {
			break
		}
	}
	p.expect(lexer.RPAREN)
	if p.match(lexer.ARROW) {
		l.ReturnType = p.typeExpr()
	}
	l.Body = p.block()
	return l
}
