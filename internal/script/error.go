package script

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAssertion marks a scenario assertion failure: a PUSH outcome or an
// EXPECT placement that did not match the script.
var ErrAssertion = errors.New("scenario assertion failed")

// Error is a diagnostic tied to a script location. Error() is the compact
// one-line form; Render() adds the source line with a caret marker.
type Error struct {
	File  string
	Line  int
	Col   int
	Width int
	Src   string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:%d:%d: %s", e.File, e.Line, e.Col, e.Msg)
	if e.Src != "" {
		col := e.Col
		if col < 1 {
			col = 1
		}
		width := e.Width
		if width < 1 {
			width = 1
		}
		fmt.Fprintf(&b, "\n    %s", e.Src)
		fmt.Fprintf(&b, "\n    %s%s", strings.Repeat(" ", col-1), strings.Repeat("^", width))
	}
	return b.String()
}

// spanErr wraps an engine error with the statement's location.
func spanErr(sp Span, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		File:  sp.File,
		Line:  sp.Line,
		Col:   sp.Col,
		Width: sp.Width,
		Src:   sp.Src,
		Msg:   err.Error(),
		Err:   err,
	}
}

// spanErrf builds a located error with a formatted message and an optional
// underlying cause for errors.Is.
func spanErrf(sp Span, cause error, format string, args ...any) error {
	return &Error{
		File:  sp.File,
		Line:  sp.Line,
		Col:   sp.Col,
		Width: sp.Width,
		Src:   sp.Src,
		Msg:   fmt.Sprintf(format, args...),
		Err:   cause,
	}
}
