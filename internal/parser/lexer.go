package parser

import "strings"

type tokenType int

const (
	tokenEOF tokenType = iota
	tokenIllegal

	tokenWord   // bare or quoted word
	tokenSemi   // ;
	tokenLBrace // {
	tokenRBrace // }
)

func (t tokenType) String() string {
	switch t {
	case tokenEOF:
		return "end of file"
	case tokenWord:
		return "word"
	case tokenSemi:
		return `";"`
	case tokenLBrace:
		return `"{"`
	case tokenRBrace:
		return `"}"`
	default:
		return "illegal token"
	}
}

type token struct {
	typ     tokenType
	literal string
	line    int
	// quoted words are never treated as punctuation.
	quoted bool
}

// lexer splits nginx configuration text into words and punctuation.
type lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
}

func newLexer(input string) *lexer {
	l := &lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *lexer) readChar() {
	if l.ch == '\n' {
		l.line++
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *lexer) atEOF() bool {
	return l.position >= len(l.input)
}

func (l *lexer) next() token {
	l.skipWhitespaceAndComments()

	tok := token{line: l.line}
	if l.atEOF() {
		tok.typ = tokenEOF
		return tok
	}

	switch l.ch {
	case ';':
		tok.typ, tok.literal = tokenSemi, ";"
		l.readChar()
	case '{':
		tok.typ, tok.literal = tokenLBrace, "{"
		l.readChar()
	case '}':
		tok.typ, tok.literal = tokenRBrace, "}"
		l.readChar()
	case '"', '\'':
		s, ok := l.readQuoted(l.ch)
		if !ok {
			tok.typ = tokenIllegal
			tok.literal = "unterminated quoted string"
			return tok
		}
		tok.typ, tok.literal, tok.quoted = tokenWord, s, true
	default:
		tok.typ, tok.literal = tokenWord, l.readWord()
	}
	return tok
}

func (l *lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case isSpace(l.ch):
			l.readChar()
		case l.ch == '#':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readWord reads up to the next separator. "${name}" variable references
// are kept whole so their braces do not open a block.
func (l *lexer) readWord() string {
	var b strings.Builder
	for !l.atEOF() && !isSpace(l.ch) && l.ch != ';' && l.ch != '{' && l.ch != '}' {
		if l.ch == '$' && l.peekChar() == '{' {
			for !l.atEOF() && l.ch != '}' {
				b.WriteByte(l.ch)
				l.readChar()
			}
			if l.atEOF() {
				break
			}
		}
		if l.ch == '\\' && l.peekChar() != 0 {
			b.WriteByte(l.ch)
			l.readChar()
		}
		b.WriteByte(l.ch)
		l.readChar()
	}
	return b.String()
}

// readQuoted consumes a quoted string and returns its unescaped content.
// Only the quote character and backslash are unescaped; other escapes are
// left for the directive to interpret.
func (l *lexer) readQuoted(quote byte) (string, bool) {
	var b strings.Builder
	l.readChar() // opening quote
	for {
		if l.atEOF() {
			return "", false
		}
		switch l.ch {
		case quote:
			l.readChar()
			return b.String(), true
		case '\\':
			next := l.peekChar()
			if next == quote || next == '\\' {
				l.readChar()
			}
		}
		b.WriteByte(l.ch)
		l.readChar()
	}
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}
