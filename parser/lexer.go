package parser

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokChar
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	line int
}

func (t token) is(s string) bool {
	return t.kind == tokPunct && t.text == s
}

func (t token) isIdent(s string) bool {
	return t.kind == tokIdent && t.text == s
}

var multiPuncts = []string{"...", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "->", "::"}

// tokenize splits preprocessed C text into tokens. firstLine is the line
// number of the first line of src.
func tokenize(src string, firstLine int) []token {
	var toks []token
	line := firstLine
	i := 0

	for i < len(src) {
		c := src[i]

		switch {
		case c == '\n':
			line++
			i++

		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			i++

		case c == '_' || isLetter(c):
			j := i + 1
			for j < len(src) && (src[j] == '_' || isLetter(src[j]) || isDigit(src[j])) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j], line: line})
			i = j

		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			j := i + 1
			for j < len(src) && (isDigit(src[j]) || isLetter(src[j]) || src[j] == '.' || src[j] == '_') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j], line: line})
			i = j

		case c == '"' || c == '\'':
			j := i + 1
			for j < len(src) && src[j] != c && src[j] != '\n' {
				if src[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(src) && src[j] == c {
				j++
			}
			kind := tokString
			if c == '\'' {
				kind = tokChar
			}
			toks = append(toks, token{kind: kind, text: src[i:min(j, len(src))], line: line})
			i = j

		default:
			matched := false
			for _, p := range multiPuncts {
				if strings.HasPrefix(src[i:], p) {
					toks = append(toks, token{kind: tokPunct, text: p, line: line})
					i += len(p)
					matched = true
					break
				}
			}
			if !matched {
				toks = append(toks, token{kind: tokPunct, text: string(c), line: line})
				i++
			}
		}
	}

	return toks
}

func isLetter(c byte) bool {
	return c < 0x80 && unicode.IsLetter(rune(c))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
