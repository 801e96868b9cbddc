package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestScanStatement(t *testing.T) {
	toks := New("main.ql", "x := 1;\ny := x + 2;").Tokens()
	assert.Equal(t, []TokenType{
		IDENT, DECLARE, INT, SEMI,
		IDENT, DECLARE, IDENT, PLUS, INT, SEMI,
		EOF,
	}, kinds(toks))
	assert.Equal(t, 1, toks[0].Loc.Line)
	assert.Equal(t, 2, toks[4].Loc.Line)
	assert.Equal(t, "main.ql", toks[0].Loc.File)
}

func TestScanKeywordsAndOperators(t *testing.T) {
	src := `blocking? function foo<T>(a: T) -> T requires(Eq<T>) { return a; }`
	toks := New("", src).Tokens()
	assert.Equal(t, []TokenType{
		BLOCKING, QUESTION, FUNCTION, IDENT, LT, IDENT, GT, LPAREN, IDENT, COLON, IDENT, RPAREN,
		ARROW, IDENT, REQUIRES, LPAREN, IDENT, LT, IDENT, GT, RPAREN,
		LBRACE, RETURN, IDENT, SEMI, RBRACE, EOF,
	}, kinds(toks))
}

func TestScanLiterals(t *testing.T) {
	toks := New("", `1 2.5 "a\nb" true false`).Tokens()
	require.Equal(t, []TokenType{INT, FLOAT, STRING, TRUE, FALSE, EOF}, kinds(toks))
	assert.Equal(t, "1", toks[0].Lexeme)
	assert.Equal(t, "2.5", toks[1].Lexeme)
	assert.Equal(t, "a\nb", toks[2].Lexeme)
}

func TestScanComments(t *testing.T) {
	toks := New("", "x := 1; # trailing\n# full line\ny := 2;").Tokens()
	assert.Equal(t, []TokenType{IDENT, DECLARE, INT, SEMI, IDENT, DECLARE, INT, SEMI, EOF}, kinds(toks))
}

func TestScanErrors(t *testing.T) {
	toks := New("", `"open`).Tokens()
	require.Equal(t, ILLEGAL, toks[0].Type)
	assert.Contains(t, toks[0].Lexeme, "unterminated")

	toks = New("", "x @ y").Tokens()
	assert.Equal(t, []TokenType{IDENT, ILLEGAL, IDENT, EOF}, kinds(toks))
}

func TestCompositeOperators(t *testing.T) {
	toks := New("", "a == b != c <= d >= e -> f := g").Tokens()
	assert.Equal(t, []TokenType{
		IDENT, EQ, IDENT, NEQ, IDENT, LTE, IDENT, GTE, IDENT, ARROW, IDENT, DECLARE, IDENT, EOF,
	}, kinds(toks))
}
