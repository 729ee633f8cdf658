// Package device loads LUT site descriptions from a device library.
//
//	(library xc7
//	  (lut_element SLICEL_A (tie const)
//	    (bel A6LUT (pins A1 A2 A3 A4 A5 A6) (low_bit 0) (high_bit 63))
//	    (bel A5LUT (pins A1 A2 A3 A4 A5) (low_bit 0) (high_bit 31))))
package device

import (
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/lut"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/sexp"
)

// Library is a named set of LUT site descriptions.
type Library struct {
	Name     string
	Elements []*lut.Element

	byName map[string]*lut.Element
}

// Element returns the site description called name, or nil.
func (l *Library) Element(name string) *lut.Element {
	return l.byName[name]
}

// LoadFile reads a library from path.
func LoadFile(path string) (*Library, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "device: open library")
	}
	defer f.Close()

	lib, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "device: %s", path)
	}
	return lib, nil
}

// Load reads exactly one (library ...) expression from r. Every element's
// pin order is computed and validated before it is returned.
func Load(r io.Reader) (*Library, error) {
	exprs, err := sexp.Parse(r)
	if err != nil {
		return nil, err
	}
	if len(exprs) != 1 {
		return nil, errors.Errorf("device: expected one (library ...) expression, found %d", len(exprs))
	}
	root, ok := exprs[0].(*sexp.List)
	if !ok || root.Key() != "library" {
		return nil, errors.New("device: top level expression is not (library ...)")
	}

	name, err := sexp.GetString(root, 1)
	if err != nil {
		return nil, errors.Wrap(err, "device: library name")
	}
	lib := &Library{Name: name, byName: make(map[string]*lut.Element)}

	for _, node := range sexp.FindAllNodes(root, "lut_element") {
		elem, err := loadElement(node)
		if err != nil {
			return nil, err
		}
		if _, dup := lib.byName[elem.Name]; dup {
			return nil, errors.Errorf("device: line %d: duplicate element %s", node.Line, elem.Name)
		}
		lib.byName[elem.Name] = elem
		lib.Elements = append(lib.Elements, elem)
	}
	if len(lib.Elements) == 0 {
		return nil, errors.Errorf("device: library %s defines no lut_element", name)
	}
	return lib, nil
}

func loadElement(node *sexp.List) (*lut.Element, error) {
	name, err := sexp.GetString(node, 1)
	if err != nil {
		return nil, errors.Wrap(err, "device: element name")
	}
	elem := lut.NewElement(name)

	tie, found, err := sexp.FindString(node, "tie")
	if err != nil {
		return nil, errors.Wrapf(err, "device: element %s", name)
	}
	if found {
		if elem.Tie, err = parseTie(tie); err != nil {
			return nil, errors.Wrapf(err, "device: element %s", name)
		}
	}

	for _, b := range sexp.FindAllNodes(node, "bel") {
		if err := loadBel(elem, b); err != nil {
			return nil, errors.Wrapf(err, "device: element %s", name)
		}
	}
	if len(elem.Bels) == 0 {
		return nil, errors.Errorf("device: line %d: element %s has no bel", node.Line, name)
	}
	if err := elem.ComputePinOrder(); err != nil {
		return nil, errors.Wrapf(err, "device: line %d", node.Line)
	}
	return elem, nil
}

func loadBel(elem *lut.Element, node *sexp.List) error {
	name, err := sexp.GetString(node, 1)
	if err != nil {
		return errors.Wrap(err, "bel name")
	}
	pinsNode, ok := sexp.FindNode(node, "pins")
	if !ok {
		return errors.Errorf("line %d: bel %s has no (pins ...)", node.Line, name)
	}
	pins, err := sexp.Values(pinsNode)
	if err != nil {
		return errors.Wrapf(err, "bel %s", name)
	}

	lo, found, err := sexp.FindInt(node, "low_bit")
	if err != nil {
		return errors.Wrapf(err, "bel %s", name)
	}
	if !found {
		return errors.Errorf("line %d: bel %s has no (low_bit N)", node.Line, name)
	}
	hi, found, err := sexp.FindInt(node, "high_bit")
	if err != nil {
		return errors.Wrapf(err, "bel %s", name)
	}
	if !found {
		hi = lo + (1 << len(pins)) - 1
	}

	_, err = elem.AddBel(name, pins, lo, hi)
	return err
}

// parseTie accepts the spellings used for unused-pin ties.
func parseTie(s string) (lut.PinConnection, error) {
	c, err := lut.ParsePinConnection(s)
	if err != nil {
		return lut.PinUnconnected, err
	}
	switch c {
	case lut.PinConst, lut.PinGnd, lut.PinVcc:
		return c, nil
	}
	return lut.PinUnconnected, errors.Errorf("tie %s is not a constant", s)
}
