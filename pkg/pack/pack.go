// Package pack connects netlist LUT cells to the pin-rotation solver and
// writes accepted site mappings back into the netlist.
package pack

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/lut"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"
)

// InitParam holds a LUT cell's truth table.
const InitParam = "INIT"

// PinParamPrefix prefixes the per-pin classification written by Commit,
// e.g. LUT_PIN_A6 = "Const".
const PinParamPrefix = "LUT_PIN_"

// Placement binds a cell to a BEL of the site being packed.
type Placement struct {
	Cell string
	Bel  string
}

// Cluster turns placed netlist cells into solver input. Logical pins are
// the cell's input ports in declaration order.
func Cluster(nl *netlist.Netlist, placements []Placement) ([]*lut.CellSpec, error) {
	seenBel := make(map[string]string, len(placements))
	specs := make([]*lut.CellSpec, 0, len(placements))

	for _, p := range placements {
		cell, ok := nl.CellByName(p.Cell)
		if !ok {
			return nil, errors.Errorf("pack: unknown cell %s", p.Cell)
		}
		if other, dup := seenBel[p.Bel]; dup {
			return nil, errors.Errorf("pack: cells %s and %s both placed at %s", other, p.Cell, p.Bel)
		}
		seenBel[p.Bel] = p.Cell

		spec := &lut.CellSpec{Name: cell.Name, Bel: p.Bel}
		for _, port := range cell.Ports {
			if port.Dir != netlist.DirIn {
				continue
			}
			if port.Net == netlist.NoNet {
				return nil, errors.Errorf("pack: input %s.%s is not connected", cell.Name, port.Name)
			}
			spec.Pins = append(spec.Pins, port.Name)
			spec.Nets = append(spec.Nets, nl.Net(port.Net).Name)
		}

		init, ok := cell.Params[InitParam]
		if !ok {
			return nil, errors.Errorf("pack: cell %s has no %s", cell.Name, InitParam)
		}
		eq, err := lut.ParseEquation(init, len(spec.Pins))
		if err != nil {
			return nil, errors.Wrapf(err, "pack: cell %s", cell.Name)
		}
		spec.Equation = eq

		if cell.BelPins != nil {
			spec.BelPins = make(map[string]string, len(cell.BelPins))
			for k, v := range cell.BelPins {
				spec.BelPins[k] = v
			}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func checkBels(elem *lut.Element, placements []Placement) error {
	for _, p := range placements {
		if elem.Bel(p.Bel) == nil {
			return errors.Errorf("pack: %s is not a BEL of %s", p.Bel, elem.Name)
		}
	}
	return nil
}

// Site tries to pack the placed cells into elem. It does not modify nl.
// The bool is false when the cells cannot share the site; the error is
// reserved for malformed input.
func Site(nl *netlist.Netlist, elem *lut.Element, placements []Placement) (*lut.SiteLutMappingResult, bool, error) {
	if err := checkBels(elem, placements); err != nil {
		return nil, false, err
	}
	specs, err := Cluster(nl, placements)
	if err != nil {
		return nil, false, err
	}
	res, ok := lut.NewMapper(elem, specs).RemapLuts()
	return res, ok, nil
}

// Commit writes a successful mapping into nl: the BEL, the logical to
// physical pin map, one LUT_PIN_<pin> parameter per physical pin and the
// INIT parameter rewritten as a sized hex literal.
func Commit(nl *netlist.Netlist, res *lut.SiteLutMappingResult) error {
	// Resolve every cell before touching any of them.
	cells := make([]*netlist.Cell, len(res.Cells))
	inits := make([]string, len(res.Cells))
	for i, mc := range res.Cells {
		cell, ok := nl.CellByName(mc.Cell)
		if !ok {
			return errors.Errorf("pack: unknown cell %s", mc.Cell)
		}
		eq, err := lut.ParseEquation(cell.Params[InitParam], len(mc.BelPins))
		if err != nil {
			return errors.Wrapf(err, "pack: cell %s", cell.Name)
		}
		cells[i] = cell
		inits[i] = lut.FormatEquation(eq, len(mc.BelPins))
	}

	for i, mc := range res.Cells {
		cell := cells[i]
		cell.Bel = mc.Bel
		cell.BelPins = make(map[string]string, len(mc.BelPins))
		for k, v := range mc.BelPins {
			cell.BelPins[k] = v
		}
		for pin, conn := range mc.PinConnections {
			cell.Params[PinParamPrefix+pin] = conn.String()
		}
		cell.Params[InitParam] = inits[i]
	}
	return nil
}

// WireMask recomputes which idle pins of a committed site cannot be used
// as route-through wires.
func WireMask(nl *netlist.Netlist, elem *lut.Element, placements []Placement) (*bitset.BitSet, error) {
	if err := checkBels(elem, placements); err != nil {
		return nil, err
	}
	specs, err := Cluster(nl, placements)
	if err != nil {
		return nil, err
	}
	for _, s := range specs {
		if s.BelPins == nil {
			return nil, errors.Errorf("pack: cell %s has not been committed", s.Name)
		}
	}
	return lut.NewMapper(elem, specs).CheckWires(), nil
}
