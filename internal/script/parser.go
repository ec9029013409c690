package script

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"nestbox.dev/internal/engine"
)

// Parse turns scenario source into its statement list. file is used in
// diagnostics only.
func Parse(file string, src []byte) ([]Command, error) {
	lines := strings.Split(string(src), "\n")
	var cmds []Command
	for n, raw := range lines {
		toks, err := lexLine(file, n+1, raw)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			continue
		}
		p := &lineParser{file: file, line: n + 1, src: raw, toks: toks}
		cmd, err := p.statement()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// ParseFile reads and parses one scenario file.
func ParseFile(path string) ([]Command, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, src)
}

type lineParser struct {
	file string
	line int
	src  string
	toks []token
	pos  int
}

func (p *lineParser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *lineParser) next() (token, error) {
	if p.atEnd() {
		last := p.toks[len(p.toks)-1]
		return token{}, p.errAt(last.col+last.width(), 1, "statement ends early")
	}
	t := p.toks[p.pos]
	p.pos++
	return t, nil
}

func (p *lineParser) errAt(col, width int, format string, args ...any) *Error {
	return &Error{
		File:  p.file,
		Line:  p.line,
		Col:   col,
		Width: width,
		Src:   p.src,
		Msg:   fmt.Sprintf(format, args...),
	}
}

func (p *lineParser) errTok(t token, format string, args ...any) *Error {
	return p.errAt(t.col, t.width(), format, args...)
}

// span covers the whole statement line from its first to its last token.
func (p *lineParser) span() Span {
	first := p.toks[0]
	last := p.toks[len(p.toks)-1]
	return Span{
		File:  p.file,
		Line:  p.line,
		Col:   first.col,
		Width: last.col + last.width() - first.col,
		Src:   p.src,
	}
}

func (p *lineParser) word(what string) (token, error) {
	t, err := p.next()
	if err != nil {
		return token{}, p.errAt(err.(*Error).Col, 1, "expected %s", what)
	}
	if t.kind != tokWord {
		return token{}, p.errTok(t, "expected %s, got %q", what, t.text)
	}
	return t, nil
}

func (p *lineParser) keyword(want string) error {
	t, err := p.word(want)
	if err != nil {
		return err
	}
	if !strings.EqualFold(t.text, want) {
		return p.errTok(t, "expected %s, got %q", want, t.text)
	}
	return nil
}

func (p *lineParser) name() (string, error) {
	t, err := p.next()
	if err != nil {
		return "", err
	}
	if t.kind != tokName {
		return "", p.errTok(t, "expected #name, got %q", t.text)
	}
	return t.text, nil
}

func (p *lineParser) integer() (int, error) {
	t, err := p.next()
	if err != nil {
		return 0, err
	}
	if t.kind != tokInt {
		return 0, p.errTok(t, "expected integer, got %q", t.text)
	}
	v, convErr := strconv.Atoi(t.text)
	if convErr != nil {
		return 0, p.errTok(t, "bad integer %q", t.text)
	}
	return v, nil
}

func (p *lineParser) punct(kind tokenKind, glyph string) error {
	t, err := p.next()
	if err != nil {
		return err
	}
	if t.kind != kind {
		return p.errTok(t, "expected %q, got %q", glyph, t.text)
	}
	return nil
}

// tuple parses "(x,y)".
func (p *lineParser) tuple() (engine.Point, error) {
	if err := p.punct(tokLParen, "("); err != nil {
		return engine.Point{}, err
	}
	x, err := p.integer()
	if err != nil {
		return engine.Point{}, err
	}
	if err := p.punct(tokComma, ","); err != nil {
		return engine.Point{}, err
	}
	y, err := p.integer()
	if err != nil {
		return engine.Point{}, err
	}
	if err := p.punct(tokRParen, ")"); err != nil {
		return engine.Point{}, err
	}
	return engine.Point{X: x, Y: y}, nil
}

func (p *lineParser) finish(cmd Command) (Command, error) {
	if !p.atEnd() {
		t := p.toks[p.pos]
		return nil, p.errTok(t, "unexpected %q after statement", t.text)
	}
	return cmd, nil
}

func (p *lineParser) statement() (Command, error) {
	t, err := p.word("statement")
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(t.text) {
	case "DEFINE":
		return p.define()
	case "PLACE":
		return p.place()
	case "PUSH":
		return p.push()
	case "EXPECT":
		return p.expect()
	default:
		return nil, p.errTok(t, "unknown statement %q", t.text)
	}
}

func (p *lineParser) define() (Command, error) {
	kind, err := p.word("BOX, WALL or ALIAS")
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(kind.text) {
	case "BOX":
		return p.defineBox()
	case "WALL":
		name, err := p.name()
		if err != nil {
			return nil, err
		}
		return p.finish(&DefineWall{Span: p.span(), Name: name})
	case "ALIAS":
		name, err := p.name()
		if err != nil {
			return nil, err
		}
		if err := p.keyword("REF"); err != nil {
			return nil, err
		}
		target, err := p.name()
		if err != nil {
			return nil, err
		}
		return p.finish(&DefineAlias{Span: p.span(), Name: name, Target: target})
	default:
		return nil, p.errTok(kind, "unknown DEFINE kind %q", kind.text)
	}
}

func (p *lineParser) defineBox() (Command, error) {
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	cmd := &DefineBox{Name: name}
	for !p.atEnd() {
		opt, err := p.word("SIZE or SOLID")
		if err != nil {
			return nil, err
		}
		switch strings.ToUpper(opt.text) {
		case "SIZE":
			if cmd.Size != nil {
				return nil, p.errTok(opt, "duplicate SIZE")
			}
			at, err := p.tuple()
			if err != nil {
				return nil, err
			}
			cmd.Size = &engine.Size{W: at.X, H: at.Y}
		case "SOLID":
			if cmd.Solid {
				return nil, p.errTok(opt, "duplicate SOLID")
			}
			cmd.Solid = true
		default:
			return nil, p.errTok(opt, "unexpected %q in DEFINE BOX", opt.text)
		}
	}
	cmd.Span = p.span()
	return cmd, nil
}

func (p *lineParser) place() (Command, error) {
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	if err := p.keyword("AT"); err != nil {
		return nil, err
	}
	at, err := p.tuple()
	if err != nil {
		return nil, err
	}
	if err := p.keyword("IN"); err != nil {
		return nil, err
	}
	container, err := p.name()
	if err != nil {
		return nil, err
	}
	return p.finish(&Place{Span: p.span(), Name: name, At: at, Container: container})
}

func (p *lineParser) push() (Command, error) {
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	dirTok, err := p.word("direction")
	if err != nil {
		return nil, err
	}
	dir, ok := engine.ParseDirection(dirTok.text)
	if !ok {
		return nil, p.errTok(dirTok, "unknown direction %q", dirTok.text)
	}
	cmd := &Push{Name: name, Dir: dir}
	if !p.atEnd() {
		outTok, err := p.word("MOVED or BLOCKED")
		if err != nil {
			return nil, err
		}
		switch strings.ToUpper(outTok.text) {
		case "MOVED":
			cmd.Expect = ExpectMoved
		case "BLOCKED":
			cmd.Expect = ExpectBlocked
		default:
			return nil, p.errTok(outTok, "expected MOVED or BLOCKED, got %q", outTok.text)
		}
	}
	cmd.Span = p.span()
	return p.finish(cmd)
}

func (p *lineParser) expect() (Command, error) {
	name, err := p.name()
	if err != nil {
		return nil, err
	}
	if err := p.keyword("AT"); err != nil {
		return nil, err
	}
	at, err := p.tuple()
	if err != nil {
		return nil, err
	}
	if err := p.keyword("IN"); err != nil {
		return nil, err
	}
	container, err := p.name()
	if err != nil {
		return nil, err
	}
	return p.finish(&Expect{Span: p.span(), Name: name, At: at, Container: container})
}
