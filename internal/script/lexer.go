package script

import "fmt"

type tokenKind uint8

const (
	tokWord tokenKind = iota + 1
	tokName
	tokInt
	tokLParen
	tokRParen
	tokComma
)

// token is one lexeme of a script line. col is the 1-based byte column of
// the token's first character; for names that is the leading '#', which
// text excludes.
type token struct {
	kind tokenKind
	text string
	col  int
}

func (t token) width() int {
	if t.kind == tokName {
		return len(t.text) + 1
	}
	return len(t.text)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isNameChar(c byte) bool { return isAlpha(c) || isDigit(c) }

// lexLine tokenizes one line. A // comment runs to the end of the line.
func lexLine(file string, line int, src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			return toks, nil
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i + 1})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i + 1})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i + 1})
			i++
		case c == '#':
			start := i
			i++
			for i < len(src) && isNameChar(src[i]) {
				i++
			}
			if i == start+1 {
				return nil, lexErr(file, line, src, start+1, 1, "empty entity name")
			}
			toks = append(toks, token{tokName, src[start+1 : i], start + 1})
		case c == '-' || isDigit(c):
			start := i
			i++
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			if c == '-' && i == start+1 {
				return nil, lexErr(file, line, src, start+1, 1, "stray %q", "-")
			}
			toks = append(toks, token{tokInt, src[start:i], start + 1})
		case isAlpha(c):
			start := i
			for i < len(src) && isNameChar(src[i]) {
				i++
			}
			toks = append(toks, token{tokWord, src[start:i], start + 1})
		default:
			return nil, lexErr(file, line, src, i+1, 1, "unexpected character %q", string(c))
		}
	}
	return toks, nil
}

func lexErr(file string, line int, src string, col, width int, format string, args ...any) error {
	return &Error{
		File:  file,
		Line:  line,
		Col:   col,
		Width: width,
		Src:   src,
		Msg:   fmt.Sprintf(format, args...),
	}
}
