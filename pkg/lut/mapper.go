package lut

import (
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// CellSpec is one LUT cell bound to a Bel of the element.
type CellSpec struct {
	Name string
	Bel  string

	// Pins are the logical inputs, address bit 0 first. Nets names the
	// net on each of them.
	Pins []string
	Nets []string

	Equation *bitset.BitSet

	// BelPins maps each logical pin to its physical pin. RemapLuts
	// computes it; CheckWires reads it.
	BelPins map[string]string
}

// MappedCell is the per-cell outcome of a successful mapping.
type MappedCell struct {
	Cell string
	Bel  string

	BelPins        map[string]string        // logical pin -> physical pin
	PinConnections map[string]PinConnection // physical pin -> classification
}

// SiteLutMappingResult is the outcome of RemapLuts.
type SiteLutMappingResult struct {
	Cells []MappedCell

	// PinMask holds the shared pin indices that may not be routed as
	// wires through an empty LUT.
	PinMask *bitset.BitSet

	// BlockedBels lists empty LUTs that no pin can route through.
	BlockedBels []string
}

// Mapper solves the input pin assignment of one element.
type Mapper struct {
	Element *Element
	Cells   []*CellSpec

	// CheckEquations re-verifies every cell's truth table against the
	// merged equation after a successful solve.
	CheckEquations bool
}

// NewMapper returns a mapper with equation checks enabled.
func NewMapper(elem *Element, cells []*CellSpec) *Mapper {
	return &Mapper{Element: elem, Cells: cells, CheckEquations: true}
}

type pinUser struct {
	cell int
	pin  int
}

// lutPin is one net entering the element together with the window of
// shared pin indices acceptable to every LUT it feeds.
type lutPin struct {
	net    string
	users  []pinUser
	minPin int
	maxPin int
}

func (p *lutPin) addUser(bel *Bel, cell, pin int) {
	if len(p.users) == 0 {
		p.minPin, p.maxPin = bel.MinPin, bel.MaxPin
	} else {
		if bel.MinPin > p.minPin {
			p.minPin = bel.MinPin
		}
		if bel.MaxPin < p.maxPin {
			p.maxPin = bel.MaxPin
		}
	}
	p.users = append(p.users, pinUser{cell: cell, pin: pin})
}

func (m *Mapper) bels() []*Bel {
	bels := make([]*Bel, len(m.Cells))
	for i, c := range m.Cells {
		bels[i] = m.Element.Bel(c.Bel)
		if bels[i] == nil {
			panic(internalf("cell %s bound to %s, not a BEL of %s", c.Name, c.Bel, m.Element.Name))
		}
	}
	return bels
}

// RemapLuts assigns every distinct input net a shared physical pin so that
// all cells' truth tables can be merged into one site equation. It reports
// false when the nets do not fit or the equations conflict; Cells are left
// untouched in that case. On success each CellSpec.BelPins is rewritten.
func (m *Mapper) RemapLuts() (*SiteLutMappingResult, bool) {
	elem := m.Element
	bels := m.bels()

	var pins []*lutPin
	byNet := make(map[string]*lutPin)
	for ci, cell := range m.Cells {
		for pi := range cell.Pins {
			net := cell.Nets[pi]
			lp, ok := byNet[net]
			if !ok {
				lp = &lutPin{net: net}
				byNet[net] = lp
				pins = append(pins, lp)
			}
			lp.addUser(bels[ci], ci, pi)
		}
	}

	if len(pins) > len(elem.Pins) {
		return nil, false
	}

	// Greedy: the most constrained upper bound is placed first. Ties keep
	// the order in which nets were first seen.
	sort.SliceStable(pins, func(i, j int) bool { return pins[i].maxPin < pins[j].maxPin })

	cellToBel := make([][]int, len(m.Cells))
	belToCell := make([][]int, len(m.Cells))
	for ci, cell := range m.Cells {
		cellToBel[ci] = make([]int, len(cell.Pins))
		belToCell[ci] = make([]int, len(bels[ci].Pins))
		for i := range belToCell[ci] {
			belToCell[ci][i] = -1
		}
	}

	used := bitset.New(uint(len(elem.Pins)))
	netPins := make([]string, len(pins))
	for netIdx, lp := range pins {
		if netIdx < lp.minPin || netIdx > lp.maxPin {
			return nil, false
		}
		used.Set(uint(netIdx))
		for _, u := range lp.users {
			belPin := bels[u.cell].Pins[netIdx]
			if netPins[netIdx] == "" {
				netPins[netIdx] = belPin
			} else if netPins[netIdx] != belPin {
				panic(internalf("net %s lands on both %s and %s", lp.net, netPins[netIdx], belPin))
			}
			cellToBel[u.cell][u.pin] = netIdx
			belToCell[u.cell][netIdx] = u.pin
		}
	}

	equation := make([]LogicLevel, elem.Width)
	for ci, cell := range m.Cells {
		if !rotateAndMerge(equation, bels[ci], cell.Equation, belToCell[ci], used) {
			return nil, false
		}
	}

	mapped := make([]map[string]string, len(m.Cells))
	for ci, cell := range m.Cells {
		mapped[ci] = make(map[string]string, len(cell.Pins))
		for pi, pin := range cell.Pins {
			mapped[ci][pin] = bels[ci].Pins[cellToBel[ci][pi]]
		}
	}

	if m.CheckEquations {
		for ci, cell := range m.Cells {
			CheckEquation(cell, mapped[ci], bels[ci], equation, used)
		}
	}

	allUsed := len(m.Cells) == len(elem.Bels)
	res := &SiteLutMappingResult{PinMask: bitset.New(uint(len(elem.Pins)))}
	if !allUsed {
		res.PinMask, res.BlockedBels = m.checkWires(bels, belToCell, used)
	}

	for ci, cell := range m.Cells {
		bel := bels[ci]
		mc := MappedCell{
			Cell:           cell.Name,
			Bel:            bel.Name,
			BelPins:        mapped[ci],
			PinConnections: make(map[string]PinConnection, len(bel.Pins)),
		}
		for bp, belPin := range bel.Pins {
			idle := !used.Test(uint(bp))
			if !allUsed {
				idle = res.PinMask.Test(uint(bp))
			}
			if !idle {
				mc.PinConnections[belPin] = PinSignal
				continue
			}
			if belToCell[ci][bp] >= 0 {
				panic(internalf("cell %s drives %s, which is classified as a constant", cell.Name, belPin))
			}
			mc.PinConnections[belPin] = elem.Tie
		}
		res.Cells = append(res.Cells, mc)
	}

	for ci, cell := range m.Cells {
		cell.BelPins = mapped[ci]
	}
	return res, true
}

// CheckWires recomputes the wire mask from the current CellSpec.BelPins.
func (m *Mapper) CheckWires() *bitset.BitSet {
	bels := m.bels()
	used := bitset.New(uint(len(m.Element.Pins)))
	belToCell := make([][]int, len(m.Cells))
	for ci, cell := range m.Cells {
		bel := bels[ci]
		belToCell[ci] = make([]int, len(bel.Pins))
		for i := range belToCell[ci] {
			belToCell[ci][i] = -1
		}
		for pi, pin := range cell.Pins {
			belPin, ok := cell.BelPins[pin]
			if !ok {
				panic(internalf("cell %s pin %s has no LUT pin", cell.Name, pin))
			}
			idx, ok := bel.PinIndex(belPin)
			if !ok {
				panic(internalf("cell %s pin %s mapped to %s, not a pin of %s", cell.Name, pin, belPin, bel.Name))
			}
			belToCell[ci][idx] = pi
			used.Set(uint(idx))
		}
	}
	mask, _ := m.checkWires(bels, belToCell, used)
	return mask
}

// checkWires finds which unused shared pins can be routed straight through
// an empty LUT without disturbing the equations already placed.
func (m *Mapper) checkWires(bels []*Bel, belToCell [][]int, used *bitset.BitSet) (*bitset.BitSet, []string) {
	elem := m.Element

	occupied := make(map[*Bel]bool, len(bels))
	for _, b := range bels {
		occupied[b] = true
	}
	var unused []*Bel
	blocked := make(map[*Bel]bool)
	for _, b := range elem.Bels {
		if !occupied[b] {
			unused = append(unused, b)
			blocked[b] = true
		}
	}

	wire := bitset.New(2).Set(1)
	mask := bitset.New(uint(len(elem.Pins)))
	for pinIdx, pin := range elem.Pins {
		if used.Test(uint(pinIdx)) {
			continue
		}

		valid, invalid := false, false
		for _, b := range unused {
			if pinIdx < b.MinPin || pinIdx > b.MaxPin {
				continue
			}
			wirePin, ok := b.PinIndex(pin)
			if !ok {
				continue
			}
			wireMap := make([]int, len(b.Pins))
			for i := range wireMap {
				wireMap[i] = -1
			}
			wireMap[wirePin] = 0

			withWire := used.Clone().Set(uint(pinIdx))
			equation := make([]LogicLevel, elem.Width)
			for ci, cell := range m.Cells {
				if !rotateAndMerge(equation, bels[ci], cell.Equation, belToCell[ci], withWire) {
					invalid = true
					break
				}
			}
			if invalid {
				break
			}
			if rotateAndMerge(equation, b, wire, wireMap, withWire) {
				valid = true
				delete(blocked, b)
			}
		}

		if !valid || invalid {
			mask.Set(uint(pinIdx))
		}
	}

	var blockedNames []string
	for _, b := range elem.Bels {
		if blocked[b] {
			blockedNames = append(blockedNames, b.Name)
		}
	}
	return mask, blockedNames
}
