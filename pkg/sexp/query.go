package sexp

import (
	"strconv"

	"github.com/pkg/errors"
)

// FindNode returns the first child list of s whose key is key.
func FindNode(s Sexp, key string) (*List, bool) {
	l, ok := s.(*List)
	if !ok {
		return nil, false
	}
	for _, item := range l.Items {
		if child, ok := item.(*List); ok && child.Key() == key {
			return child, true
		}
	}
	return nil, false
}

// FindAllNodes returns every child list of s whose key is key, in order.
func FindAllNodes(s Sexp, key string) []*List {
	l, ok := s.(*List)
	if !ok {
		return nil
	}
	var out []*List
	for _, item := range l.Items {
		if child, ok := item.(*List); ok && child.Key() == key {
			out = append(out, child)
		}
	}
	return out
}

// Values returns the atoms following the key of l.
// (pins A1 A2 A3) yields [A1 A2 A3].
func Values(l *List) ([]string, error) {
	out := make([]string, 0, len(l.Items))
	for i := 1; i < len(l.Items); i++ {
		sym, ok := l.Items[i].(Symbol)
		if !ok {
			return nil, errors.Errorf("sexp: line %d: (%s ...) item %d is a list", l.Line, l.Key(), i)
		}
		out = append(out, string(sym))
	}
	return out, nil
}

// GetString returns the atom at index. Index 0 is the key.
func GetString(l *List, index int) (string, error) {
	item := l.At(index)
	if item == nil {
		return "", errors.Errorf("sexp: line %d: (%s ...) has no item %d", l.Line, l.Key(), index)
	}
	sym, ok := item.(Symbol)
	if !ok {
		return "", errors.Errorf("sexp: line %d: (%s ...) item %d is a list", l.Line, l.Key(), index)
	}
	return string(sym), nil
}

// GetInt returns the integer atom at index.
func GetInt(l *List, index int) (int, error) {
	str, err := GetString(l, index)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(str)
	if err != nil {
		return 0, errors.Wrapf(err, "sexp: line %d: (%s ...)", l.Line, l.Key())
	}
	return v, nil
}

// FindInt reads the single integer of the child (key N).
func FindInt(s Sexp, key string) (int, bool, error) {
	node, ok := FindNode(s, key)
	if !ok {
		return 0, false, nil
	}
	v, err := GetInt(node, 1)
	return v, true, err
}

// FindString reads the single atom of the child (key VALUE).
func FindString(s Sexp, key string) (string, bool, error) {
	node, ok := FindNode(s, key)
	if !ok {
		return "", false, nil
	}
	v, err := GetString(node, 1)
	return v, true, err
}
