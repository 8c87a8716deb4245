// Package expression implements the condition, update, projection and
// key-condition grammars: lexing, parsing to ASTs, and evaluation against
// items. Evaluation is pure; nothing in this package touches storage.
package expression

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenError

	// Identifiers and literals
	TokenIdentifier // attribute name or #placeholder
	TokenValue      // :placeholder
	TokenNumber     // bare integer, only valid as a list index

	// Operators
	TokenEq  // =
	TokenNE  // <>
	TokenLT  // <
	TokenLTE // <=
	TokenGT  // >
	TokenGTE // >=

	// Keywords
	TokenAND
	TokenOR
	TokenNOT
	TokenBETWEEN
	TokenIN
	TokenBeginsWith
	TokenAttributeExists
	TokenAttributeNotExists
	TokenAttributeType
	TokenContains
	TokenSize
	TokenListAppend
	TokenIfNotExists
	TokenSET
	TokenREMOVE
	TokenADD
	TokenDELETE

	// Delimiters
	TokenLParen   // (
	TokenRParen   // )
	TokenComma    // ,
	TokenDot      // .
	TokenLBracket // [
	TokenRBracket // ]
	TokenPlus     // +
	TokenMinus    // -
)

var keywords = map[string]TokenType{
	"AND":                  TokenAND,
	"OR":                   TokenOR,
	"NOT":                  TokenNOT,
	"BETWEEN":              TokenBETWEEN,
	"IN":                   TokenIN,
	"begins_with":          TokenBeginsWith,
	"attribute_exists":     TokenAttributeExists,
	"attribute_not_exists": TokenAttributeNotExists,
	"attribute_type":       TokenAttributeType,
	"contains":             TokenContains,
	"size":                 TokenSize,
	"list_append":          TokenListAppend,
	"if_not_exists":        TokenIfNotExists,
	"SET":                  TokenSET,
	"REMOVE":               TokenREMOVE,
	"ADD":                  TokenADD,
	"DELETE":               TokenDELETE,
}

type Token struct {
	Type    TokenType
	Literal string
	Pos     int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%d, %q)", t.Type, t.Literal)
}

type lexer struct {
	input  string
	start  int
	pos    int
	width  int
	tokens []Token
}

func lex(input string) []Token {
	l := &lexer{input: input}
	for state := lexText; state != nil; {
		state = state(l)
	}
	return l.tokens
}

func (l *lexer) next() rune {
	if l.pos >= len(l.input) {
		l.width = 0
		return 0
	}
	r, w := utf8.DecodeRuneInString(l.input[l.pos:])
	l.width = w
	l.pos += l.width
	return r
}

func (l *lexer) backup() {
	l.pos -= l.width
}

func (l *lexer) peek() rune {
	r := l.next()
	l.backup()
	return r
}

func (l *lexer) ignore() {
	l.start = l.pos
}

func (l *lexer) emit(t TokenType) {
	l.tokens = append(l.tokens, Token{Type: t, Literal: l.input[l.start:l.pos], Pos: l.start})
	l.start = l.pos
}

func (l *lexer) acceptRun(valid string) {
	for strings.ContainsRune(valid, l.next()) {
	}
	l.backup()
}

type stateFn func(*lexer) stateFn

func lexText(l *lexer) stateFn {
	for {
		switch r := l.next(); {
		case r == 0:
			l.emit(TokenEOF)
			return nil
		case isSpace(r):
			l.ignore()
		case r == '+':
			l.emit(TokenPlus)
		case r == '-':
			l.emit(TokenMinus)
		case r == '=':
			l.emit(TokenEq)
		case r == '<':
			if l.peek() == '>' {
				l.next()
				l.emit(TokenNE)
			} else if l.peek() == '=' {
				l.next()
				l.emit(TokenLTE)
			} else {
				l.emit(TokenLT)
			}
		case r == '>':
			if l.peek() == '=' {
				l.next()
				l.emit(TokenGTE)
			} else {
				l.emit(TokenGT)
			}
		case r == '(':
			l.emit(TokenLParen)
		case r == ')':
			l.emit(TokenRParen)
		case r == ',':
			l.emit(TokenComma)
		case r == '.':
			l.emit(TokenDot)
		case r == '[':
			l.emit(TokenLBracket)
		case r == ']':
			l.emit(TokenRBracket)
		case r == ':':
			return lexValue
		case r == '#':
			return lexIdentifier
		case isIdentifierStart(r):
			l.backup()
			return lexIdentifier
		case unicode.IsDigit(r):
			l.backup()
			return lexNumber
		default:
			l.emit(TokenError)
			l.emit(TokenEOF)
			return nil
		}
	}
}

func lexNumber(l *lexer) stateFn {
	l.acceptRun("0123456789")
	l.emit(TokenNumber)
	return lexText
}

func lexValue(l *lexer) stateFn {
	for {
		r := l.next()
		if !isAlphaNumeric(r) && r != '_' {
			l.backup()
			break
		}
	}
	l.emit(TokenValue)
	return lexText
}

func lexIdentifier(l *lexer) stateFn {
	for {
		r := l.next()
		if !isAlphaNumeric(r) && r != '_' {
			l.backup()
			break
		}
	}
	word := l.input[l.start:l.pos]
	if tok, ok := keywords[word]; ok {
		l.emit(tok)
	} else {
		l.emit(TokenIdentifier)
	}
	return lexText
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n'
}

func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isIdentifierStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}
