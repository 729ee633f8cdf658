// Package sexp reads the s-expression files that describe device
// libraries. Trees are built by github.com/chewxy/sexp; this package adds
// '#' comments, line numbers for error messages and small helpers for
// walking keyed lists such as (bel L6 (pins A1 A2)).
package sexp

import (
	"strings"
)

// Sexp is either an atom (Symbol) or a List.
type Sexp interface {
	IsLeaf() bool
	Len() int
	String() string
}

// Symbol is an atom. Quoted atoms and bare words both become Symbols.
type Symbol string

func (s Symbol) IsLeaf() bool   { return true }
func (s Symbol) Len() int       { return 1 }
func (s Symbol) String() string { return string(s) }

// List is a parenthesised sequence. Line is where it opened.
type List struct {
	Items []Sexp
	Line  int
}

func (l *List) IsLeaf() bool { return false }
func (l *List) Len() int     { return len(l.Items) }

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, item := range l.Items {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(quote(item))
	}
	b.WriteByte(')')
	return b.String()
}

// At returns the element at index, or nil.
func (l *List) At(index int) Sexp {
	if index < 0 || index >= len(l.Items) {
		return nil
	}
	return l.Items[index]
}

// Key returns the leading symbol of the list, or "".
func (l *List) Key() string {
	if len(l.Items) == 0 {
		return ""
	}
	if sym, ok := l.Items[0].(Symbol); ok {
		return string(sym)
	}
	return ""
}

func quote(s Sexp) string {
	sym, ok := s.(Symbol)
	if !ok {
		return s.String()
	}
	if sym == "" || strings.ContainsAny(string(sym), " \t\n()\"#") {
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`).Replace(string(sym)) + `"`
	}
	return string(sym)
}
