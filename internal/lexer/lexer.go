package lexer

import (
	"fmt"
	"strings"

	"github.com/oxhq/quill/core"
)

// Lexer scans one source file. Errors (unterminated strings, stray bytes)
// surface as ILLEGAL tokens carrying a message; the parser forwards them to
// the diagnostic sink.
type Lexer struct {
	file   string
	src    string
	pos    int
	line   int
	column int
}

// New creates a lexer over src; file is used for token positions only.
func New(file, src string) *Lexer {
	return &Lexer{file: file, src: src, line: 1, column: 1}
}

// Tokens scans the whole input, ending with an EOF token.
func (l *Lexer) Tokens() []Token {
	var out []Token
	for {
		tok := l.next()
		out = append(out, tok)
		if tok.Type == EOF {
			return out
		}
	}
}

func (l *Lexer) loc() core.Location {
	return core.Location{File: l.file, Line: l.line, Column: l.column}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

func (l *Lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		switch c := l.peek(); {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '#':
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return
		}
	}
}

func (l *Lexer) next() Token {
	l.skipSpaceAndComments()
	loc := l.loc()
	if l.pos >= len(l.src) {
		return Token{Type: EOF, Loc: loc}
	}

	c := l.peek()
	switch {
	case isLetter(c):
		return l.ident(loc)
	case isDigit(c):
		return l.number(loc)
	case c == '"':
		return l.str(loc)
	}

	l.advance()
	two := string(c) + string(l.peek())
	switch two {
	case ":=", "->", "==", "!=", "<=", ">=":
		l.advance()
		return Token{Type: TokenType(two), Lexeme: two, Loc: loc}
	}

	switch c {
	case '=', '+', '-', '*', '/', '|', '<', '>', '?', '(', ')', '{', '}', '[', ']', ',', ';', ':', '.':
		return Token{Type: TokenType(string(c)), Lexeme: string(c), Loc: loc}
	}
	return Token{Type: ILLEGAL, Lexeme: fmt.Sprintf("unexpected character %q", c), Loc: loc}
}

func (l *Lexer) ident(loc core.Location) Token {
	start := l.pos
	for l.pos < len(l.src) && (isLetter(l.peek()) || isDigit(l.peek())) {
		l.advance()
	}
	word := l.src[start:l.pos]
	if kw, ok := keywords[word]; ok {
		return Token{Type: kw, Lexeme: word, Loc: loc}
	}
	return Token{Type: IDENT, Lexeme: word, Loc: loc}
}

func (l *Lexer) number(loc core.Location) Token {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	lex := l.src[start:l.pos]
	if isFloat {
		return Token{Type: FLOAT, Lexeme: lex, Loc: loc}
	}
	return Token{Type: INT, Lexeme: lex, Loc: loc}
}

func (l *Lexer) str(loc core.Location) Token {
	l.advance() // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.advance()
		switch c {
		case '"':
			return Token{Type: STRING, Lexeme: sb.String(), Loc: loc}
		case '\\':
			if l.pos < len(l.src) {
				esc := l.advance()
				switch esc {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				case '"':
					sb.WriteByte('"')
				case '\\':
					sb.WriteByte('\\')
				default:
					sb.WriteByte(esc)
				}
			}
		case '\n':
			return Token{Type: ILLEGAL, Lexeme: "unterminated string literal", Loc: loc}
		default:
			sb.WriteByte(c)
		}
	}
	return Token{Type: ILLEGAL, Lexeme: "unterminated string literal", Loc: loc}
}

func isLetter(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
