package nl2sql

import (
	"errors"
	"fmt"
	"strings"
)

// RejectionError reports why generated SQL was refused before execution.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "query rejected: " + e.Reason
}

// Guard keeps generated SQL to a single read-only statement over known tables.
type Guard struct {
	tables  map[string]struct{}
	columns map[string]struct{}
}

func NewGuard(tables []Table) *Guard {
	g := &Guard{tables: map[string]struct{}{}, columns: map[string]struct{}{}}
	for _, table := range tables {
		g.tables[strings.ToLower(table.Name)] = struct{}{}
		for _, column := range table.Columns {
			g.columns[strings.ToLower(column)] = struct{}{}
		}
	}
	return g
}

// DefaultGuard allows every transit table except the chat log itself.
func DefaultGuard() *Guard {
	allowed := make([]Table, 0, len(TransitTables))
	for _, table := range TransitTables {
		if table.Name == "chatlogs" {
			continue
		}
		allowed = append(allowed, table)
	}
	return NewGuard(allowed)
}

// Check tokenizes sqlText and inspects every relation named in a FROM
// clause, including comma-separated lists, joins and quoted identifiers.
func (g *Guard) Check(sqlText string) error {
	tokens, err := tokenize(sqlText)
	if err != nil {
		return &RejectionError{Reason: err.Error()}
	}
	for len(tokens) > 0 && tokens[len(tokens)-1].isPunct(";") {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return &RejectionError{Reason: "empty statement"}
	}
	for _, tok := range tokens {
		if tok.isPunct(";") {
			return &RejectionError{Reason: "multiple statements are not allowed"}
		}
	}
	if !tokens[0].is("select") && !tokens[0].is("with") {
		return &RejectionError{Reason: "only SELECT statements are allowed"}
	}

	ctes := cteNames(tokens)
	for i, tok := range tokens {
		// TABLE name is shorthand for SELECT * FROM name.
		if !tok.is("from") && !tok.is("table") {
			continue
		}
		if err := g.checkFromClause(tokens[i+1:], ctes); err != nil {
			return err
		}
	}
	return nil
}

// checkFromClause walks one FROM clause at its own nesting depth. A relation
// is expected at the start, after every top-level comma and after JOIN.
// Nested subqueries carry their own FROM keyword and are checked by Check.
func (g *Guard) checkFromClause(tokens []token, ctes map[string]struct{}) error {
	expectRelation := true
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case tok.isPunct("("):
			i = skipParens(tokens, i) - 1
			expectRelation = false
		case tok.isPunct(")"):
			return nil
		case tok.isPunct(","):
			expectRelation = true
		case tok.is("join") || tok.is("straight_join"):
			expectRelation = true
		case tok.kind == tokenWord && endsFromClause(tok.text):
			return nil
		case expectRelation && (tok.is("lateral") || tok.is("only")):
		case expectRelation && tok.kind == tokenLiteral:
			return &RejectionError{Reason: "reading files is not allowed"}
		case expectRelation && tok.isIdent():
			parts := []token{tok}
			for i+2 < len(tokens) && tokens[i+1].isPunct(".") && tokens[i+2].isIdent() {
				parts = append(parts, tokens[i+2])
				i += 2
			}
			if err := g.allowRelation(parts, ctes); err != nil {
				return err
			}
			expectRelation = false
		default:
			expectRelation = false
		}
	}
	return nil
}

func (g *Guard) allowRelation(parts []token, ctes map[string]struct{}) error {
	last := parts[len(parts)-1].text
	name := strings.ToLower(last)
	if _, ok := g.tables[name]; ok {
		return nil
	}
	if _, ok := ctes[name]; ok && len(parts) == 1 {
		return nil
	}
	// EXTRACT(x FROM column) and similar forms name a column, not a relation.
	if _, ok := g.columns[name]; ok {
		return nil
	}
	return &RejectionError{Reason: fmt.Sprintf("table %q is not allowed", last)}
}

var fromClauseTerminators = map[string]struct{}{
	"where": {}, "group": {}, "having": {}, "order": {}, "limit": {}, "offset": {},
	"fetch": {}, "window": {}, "qualify": {}, "union": {}, "intersect": {},
	"except": {}, "select": {}, "returning": {},
}

func endsFromClause(word string) bool {
	_, ok := fromClauseTerminators[strings.ToLower(word)]
	return ok
}

// cteNames collects names introduced by WITH name AS (...).
func cteNames(tokens []token) map[string]struct{} {
	names := map[string]struct{}{}
	if !tokens[0].is("with") {
		return names
	}
	for i := 1; i+2 < len(tokens); i++ {
		prev := tokens[i-1]
		if !prev.is("with") && !prev.is("recursive") && !prev.isPunct(",") {
			continue
		}
		if tokens[i].isIdent() && tokens[i+1].is("as") && tokens[i+2].isPunct("(") {
			names[strings.ToLower(tokens[i].text)] = struct{}{}
		}
	}
	return names
}

// skipParens returns the index just past the parenthesis matching tokens[open].
func skipParens(tokens []token, open int) int {
	depth := 0
	for i := open; i < len(tokens); i++ {
		switch {
		case tokens[i].isPunct("("):
			depth++
		case tokens[i].isPunct(")"):
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(tokens)
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenQuoted
	tokenLiteral
	tokenPunct
	tokenOther
)

type token struct {
	kind tokenKind
	text string
}

func (t token) is(word string) bool {
	return t.kind == tokenWord && strings.EqualFold(t.text, word)
}

func (t token) isIdent() bool {
	return t.kind == tokenWord || t.kind == tokenQuoted
}

func (t token) isPunct(p string) bool {
	return t.kind == tokenPunct && t.text == p
}

var (
	errBackslash          = errors.New("backslash escapes are not allowed")
	errExecutableComment  = errors.New("executable comments are not allowed")
	errDollarQuote        = errors.New("dollar quoting and positional parameters are not allowed")
	errUnterminatedQuote  = errors.New("unterminated quoted text")
	errUnterminatedRemark = errors.New("unterminated comment")
)

// tokenize splits SQL into words, quoted identifiers, string literals and
// punctuation, dropping comments. Anything a dialect could read differently
// from this scanner is refused: backslashes, dollar quotes, /*! and /*+ comments.
func tokenize(sqlText string) ([]token, error) {
	var tokens []token
	s := sqlText
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case isSpace(c):
			i++
		case c == '\\':
			return nil, errBackslash
		case c == '$':
			return nil, errDollarQuote
		case c == '-' && strings.HasPrefix(s[i:], "--") && (i+2 == len(s) || isSpace(s[i+2])):
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				return tokens, nil
			}
			i += end + 1
		case c == '/' && strings.HasPrefix(s[i:], "/*"):
			if strings.HasPrefix(s[i:], "/*!") || strings.HasPrefix(s[i:], "/*+") {
				return nil, errExecutableComment
			}
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return nil, errUnterminatedRemark
			}
			i += 2 + end + 2
		case c == '\'':
			text, next, err := scanQuoted(s, i, '\'')
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenLiteral, text: text})
			i = next
		case c == '"' || c == '`':
			text, next, err := scanQuoted(s, i, c)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenQuoted, text: text})
			i = next
		case c == '[':
			end := strings.IndexByte(s[i+1:], ']')
			if end < 0 {
				return nil, errUnterminatedQuote
			}
			tokens = append(tokens, token{kind: tokenQuoted, text: s[i+1 : i+1+end]})
			i += end + 2
		case isWordStart(c):
			start := i
			for i < len(s) && isWordPart(s[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenWord, text: s[start:i]})
		case c >= '0' && c <= '9':
			start := i
			for i < len(s) && (isWordPart(s[i]) || s[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokenOther, text: s[start:i]})
		case strings.IndexByte(",().;", c) >= 0:
			tokens = append(tokens, token{kind: tokenPunct, text: string(c)})
			i++
		default:
			tokens = append(tokens, token{kind: tokenOther, text: string(c)})
			i++
		}
	}
	return tokens, nil
}

// scanQuoted reads text enclosed by quote, where a doubled quote escapes
// itself, and returns the unescaped body and the index after the closing quote.
func scanQuoted(s string, open int, quote byte) (string, int, error) {
	var b strings.Builder
	for i := open + 1; i < len(s); i++ {
		if s[i] != quote {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == quote {
			b.WriteByte(quote)
			i++
			continue
		}
		return b.String(), i + 1, nil
	}
	return "", len(s), errUnterminatedQuote
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isWordStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isWordPart(c byte) bool {
	return isWordStart(c) || c == '$' || (c >= '0' && c <= '9')
}
