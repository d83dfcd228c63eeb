package sqltext

import "strings"

// StatementType classifies a statement by its leading keyword.
type StatementType int

// Statement types.
const (
	StmtOther StatementType = iota
	StmtSelect
	StmtInsert
	StmtUpdate
	StmtDelete
	StmtDDL
)

func (t StatementType) String() string {
	switch t {
	case StmtSelect:
		return "SELECT"
	case StmtInsert:
		return "INSERT"
	case StmtUpdate:
		return "UPDATE"
	case StmtDelete:
		return "DELETE"
	case StmtDDL:
		return "DDL"
	default:
		return "OTHER"
	}
}

// IsDML reports whether statements of this type report affected rows.
func (t StatementType) IsDML() bool {
	return t == StmtInsert || t == StmtUpdate || t == StmtDelete
}

var keywordTypes = map[string]StatementType{
	"SELECT":  StmtSelect,
	"VALUES":  StmtSelect,
	"INSERT":  StmtInsert,
	"REPLACE": StmtInsert,
	"UPDATE":  StmtUpdate,
	"DELETE":  StmtDelete,
	"CREATE":  StmtDDL,
	"DROP":    StmtDDL,
	"ALTER":   StmtDDL,
}

// Split splits a script into statements on top-level semicolons. Semicolons
// inside strings, quoted identifiers, comments and CREATE TRIGGER bodies do
// not split. Returned statements are trimmed, carry no trailing semicolon,
// and segments holding only whitespace or comments are dropped.
func Split(script string) []string {
	var (
		out     []string
		l       = NewLexer(script)
		start   = 0
		tokens  = 0
		first   string
		trigger bool
		depth   int // BEGIN/CASE nesting inside a trigger body
	)
	flush := func(end int) {
		if tokens > 0 {
			out = append(out, strings.TrimSpace(script[start:end]))
		}
		tokens, first, trigger, depth = 0, "", false, 0
	}

	for {
		tok := l.NextToken()
		switch tok.Type {
		case TOKEN_EOF:
			flush(len(script))
			return out
		case TOKEN_SEMICOLON:
			if depth == 0 {
				flush(tok.Pos)
				start = tok.End
				continue
			}
		case TOKEN_WORD:
			word := tok.Upper()
			if tokens == 0 {
				first = word
			}
			switch {
			case first == "CREATE" && word == "TRIGGER":
				trigger = true
			case trigger && word == "BEGIN":
				depth++
			case depth > 0 && word == "CASE":
				depth++
			case depth > 0 && word == "END":
				depth--
			}
		}
		tokens++
	}
}

// Classify returns the type of stmt from its first keyword. A WITH clause is
// classified by the first top-level SELECT/INSERT/UPDATE/DELETE after it.
func Classify(stmt string) StatementType {
	l := NewLexer(stmt)
	tok := l.NextToken()
	for tok.Type == TOKEN_LPAREN {
		tok = l.NextToken()
	}
	if tok.Type != TOKEN_WORD {
		return StmtOther
	}
	word := tok.Upper()
	if word != "WITH" {
		return keywordTypes[word]
	}

	depth := 0
	for {
		tok = l.NextToken()
		switch tok.Type {
		case TOKEN_EOF, TOKEN_SEMICOLON:
			return StmtOther
		case TOKEN_LPAREN:
			depth++
		case TOKEN_RPAREN:
			depth--
		case TOKEN_WORD:
			if depth != 0 {
				continue
			}
			switch t := keywordTypes[tok.Upper()]; t {
			case StmtSelect, StmtInsert, StmtUpdate, StmtDelete:
				return t
			}
		}
	}
}

// IsSelect reports whether the first keyword of stmt is SELECT, ignoring
// case, leading whitespace and comments.
func IsSelect(stmt string) bool {
	tok := NewLexer(stmt).NextToken()
	return tok.Type == TOKEN_WORD && tok.Upper() == "SELECT"
}
