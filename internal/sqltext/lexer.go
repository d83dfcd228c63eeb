// Package sqltext provides the small amount of SQL awareness polite needs:
// splitting scripts into statements and classifying a statement by its
// leading keyword. It does not parse SQL.
package sqltext

import "strings"

// TokenType represents the type of a lexical token.
type TokenType int

// TOKEN_EOF and friends enumerate the token types produced by the lexer.
const (
	TOKEN_EOF       TokenType = iota // end of input
	TOKEN_WORD                       // keyword or bare identifier
	TOKEN_IDENT                      // "quoted" or `quoted` identifier
	TOKEN_STRING                     // 'hello'
	TOKEN_NUMBER                     // 123, 45.67, 1e10
	TOKEN_SEMICOLON                  // ;
	TOKEN_LPAREN                     // (
	TOKEN_RPAREN                     // )
	TOKEN_OTHER                      // any other character
)

// Token is a lexical token. Pos and End are byte offsets into the input.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int
	End     int
}

// Upper returns the literal in upper case, for keyword comparisons.
func (t Token) Upper() string { return strings.ToUpper(t.Literal) }

// Lexer tokenizes SQL input. It understands string literals, quoted
// identifiers and both comment styles, which is what statement splitting
// needs.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	tok := Token{Pos: start}
	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		tok.Type = TOKEN_EOF
		tok.Pos = len(l.input)
		tok.End = len(l.input)
		return tok
	case l.ch == ';':
		tok.Type = TOKEN_SEMICOLON
		l.readChar()
	case l.ch == '(':
		tok.Type = TOKEN_LPAREN
		l.readChar()
	case l.ch == ')':
		tok.Type = TOKEN_RPAREN
		l.readChar()
	case l.ch == '\'':
		tok.Type = TOKEN_STRING
		l.readQuoted('\'')
	case l.ch == '"' || l.ch == '`':
		tok.Type = TOKEN_IDENT
		l.readQuoted(l.ch)
	case isWordStart(l.ch):
		tok.Type = TOKEN_WORD
		for isWordStart(l.ch) || isDigit(l.ch) || l.ch == '$' {
			l.readChar()
		}
	case isDigit(l.ch):
		tok.Type = TOKEN_NUMBER
		l.readNumber()
	default:
		tok.Type = TOKEN_OTHER
		l.readChar()
	}
	tok.End = l.pos
	tok.Literal = l.input[start:tok.End]
	return tok
}

// skipWhitespaceAndComments skips whitespace and SQL comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' {
			l.readChar()
		}
		// Line comment (-- ...)
		if l.ch == '-' && l.peekChar() == '-' {
			for l.ch != '\n' && l.pos < len(l.input) {
				l.readChar()
			}
			continue
		}
		// Block comment (/* ... */)
		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			for l.pos < len(l.input) {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
			continue
		}
		break
	}
}

// readQuoted consumes a quoted run closed by quote, where a doubled quote is
// an escaped one. An unterminated run extends to the end of input.
func (l *Lexer) readQuoted(quote byte) {
	l.readChar() // skip opening quote
	for l.pos < len(l.input) {
		if l.ch == quote {
			if l.peekChar() == quote {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing quote
			return
		}
		l.readChar()
	}
}

// readNumber consumes a numeric literal (integer, decimal, or scientific).
func (l *Lexer) readNumber() {
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
}

// isWordStart accepts ASCII letters, underscore and any non-ASCII byte, so
// multi-byte identifiers stay in one token.
func isWordStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
