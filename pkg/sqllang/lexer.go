// Package sqllang implements NogDB's embedded SQL-like query language: a
// hand-rolled tokenizer and recursive-descent parser over pkg/txn,
// pkg/query and pkg/traverse. No ecosystem parser generator fits a
// bespoke grammar this small, so the lexer and parser are straightforward
// Go with no external dependency.
package sqllang

import (
	"strings"

	"github.com/nogdb/nogdb/pkg/nogdberr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokRecordID
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	src []rune
	pos int
}

func newLexer(s string) *lexer { return &lexer{src: []rune(s)} }

func (l *lexer) peekRune() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '@' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '.'
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r := l.src[l.pos]
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			l.pos++
			continue
		}
		break
	}
}

// next returns the next token, advancing the lexer.
func (l *lexer) next() (token, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}
	r := l.src[l.pos]

	switch {
	case r == '#':
		start := l.pos
		l.pos++
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == ':' || l.src[l.pos] == '-') {
			l.pos++
		}
		return token{kind: tokRecordID, text: string(l.src[start:l.pos])}, nil

	case r == '\'' || r == '"':
		quote := r
		l.pos++
		start := l.pos
		for l.pos < len(l.src) && l.src[l.pos] != quote {
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{}, nogdberr.New(nogdberr.SQLSyntaxError, "unterminated string literal")
		}
		text := string(l.src[start:l.pos])
		l.pos++
		return token{kind: tokString, text: text}, nil

	case isDigit(r) || (r == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		start := l.pos
		l.pos++
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
			l.pos++
		}
		return token{kind: tokNumber, text: string(l.src[start:l.pos])}, nil

	case isIdentStart(r):
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos])}, nil

	case strings.ContainsRune("(),.=<>!*", r):
		if (r == '<' || r == '>' || r == '!') && l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
			l.pos += 2
			return token{kind: tokSymbol, text: string(r) + "="}, nil
		}
		l.pos++
		return token{kind: tokSymbol, text: string(r)}, nil

	default:
		return token{}, nogdberr.New(nogdberr.SQLUnrecognizedToken, "unrecognized character %q", r)
	}
}

// tokenize drains the lexer into a slice, ending with a tokEOF.
func tokenize(s string) ([]token, error) {
	l := newLexer(s)
	var out []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		out = append(out, tok)
		if tok.kind == tokEOF {
			return out, nil
		}
	}
}
