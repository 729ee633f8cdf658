package sexp

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"unicode"

	csexp "github.com/chewxy/sexp"
	"github.com/pkg/errors"
)

// Parse reads every top-level list from r.
//
// The input is checked before it is handed to chewxy/sexp: parentheses
// must balance, every list needs a key and at least one more item, atoms
// may not appear outside a list and quoted atoms may not contain spaces or
// parentheses. Errors carry the line they were found on.
func Parse(r io.Reader) ([]Sexp, error) {
	src, lines, err := scan(r)
	if err != nil {
		return nil, err
	}
	if src == "" {
		return nil, nil
	}

	p := csexp.NewParser(strings.NewReader(src), false, readAtom)
	var trees []csexp.Sexp
	done := make(chan struct{})
	go func() {
		for tree := range p.Output {
			trees = append(trees, tree)
		}
		close(done)
	}()
	p.Run()
	<-done
	if err := p.Error(); err != nil {
		return nil, err
	}

	c := &converter{lines: lines}
	out := make([]Sexp, 0, len(trees))
	for _, tree := range trees {
		out = append(out, c.convert(tree))
	}
	return out, nil
}

func readAtom(s string) (csexp.Atom, error) {
	if !strings.HasPrefix(s, `"`) {
		return csexp.Symbol(s), nil
	}
	u, err := strconv.Unquote(s)
	if err != nil {
		return nil, errors.Errorf("sexp: bad quoted atom %s", s)
	}
	return csexp.Symbol(u), nil
}

// converter copies a chewxy tree into Lists and Symbols. Lists are visited
// in the order their '(' appeared, which is the order scan recorded lines.
type converter struct {
	lines []int
	next  int
}

func (c *converter) line() int {
	if c.next >= len(c.lines) {
		return 0
	}
	c.next++
	return c.lines[c.next-1]
}

func (c *converter) convert(s csexp.Sexp) Sexp {
	switch v := s.(type) {
	case csexp.Symbol:
		return Symbol(v)
	case csexp.List:
		l := &List{Line: c.line(), Items: make([]Sexp, 0, len(v))}
		for _, item := range v {
			l.Items = append(l.Items, c.convert(item))
		}
		return l
	}
	return &List{Line: c.line()}
}

type frame struct {
	line  int
	items int
	lists int
}

// scan strips comments and validates the structure of the input. It
// returns the cleaned text and the line of every '(' in order.
func scan(r io.Reader) (string, []int, error) {
	br := bufio.NewReader(r)
	var out strings.Builder
	var stack []*frame
	var lines []int

	line := 1
	stringLine := 0
	inAtom, inString, escaped, comment := false, false, false, false
	for {
		ch, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, errors.Wrap(err, "sexp: read")
		}

		switch {
		case comment:
			if ch == '\n' {
				comment = false
				line++
				out.WriteRune(ch)
			}
			continue
		case inString:
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			case ch == '(' || ch == ')' || unicode.IsSpace(ch):
				return "", nil, errors.Errorf("sexp: line %d: quoted atom may not contain spaces or parentheses", line)
			}
			out.WriteRune(ch)
			continue
		}

		switch {
		case ch == '#':
			comment, inAtom = true, false
			continue
		case ch == '(':
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.items++
				top.lists++
			}
			stack = append(stack, &frame{line: line})
			lines = append(lines, line)
			inAtom = false
		case ch == ')':
			if len(stack) == 0 {
				return "", nil, errors.Errorf("sexp: line %d: unexpected ')'", line)
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if f.items == 0 || (f.items == 1 && f.lists == 0) {
				return "", nil, errors.Errorf("sexp: line %d: list needs a key and a value", f.line)
			}
			inAtom = false
		case unicode.IsSpace(ch):
			if ch == '\n' {
				line++
			}
			inAtom = false
		default:
			if !inAtom {
				if len(stack) == 0 {
					return "", nil, errors.Errorf("sexp: line %d: atom outside a list", line)
				}
				stack[len(stack)-1].items++
				inAtom = true
			}
			if ch == '"' {
				inString, stringLine = true, line
			}
		}
		out.WriteRune(ch)
	}

	if inString {
		return "", nil, errors.Errorf("sexp: line %d: unterminated quoted atom", stringLine)
	}
	if len(stack) > 0 {
		return "", nil, errors.Errorf("sexp: line %d: list opened here is never closed", stack[len(stack)-1].line)
	}
	return strings.TrimLeftFunc(out.String(), unicode.IsSpace), lines, nil
}
