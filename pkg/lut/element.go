package lut

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Bel is one physical lookup table inside a fracturable site.
type Bel struct {
	Name string
	Pins []string // physical input pins, address bit 0 first

	// LowBit and HighBit delimit the window of the site's shared output
	// address space that this LUT reads.
	LowBit  int
	HighBit int

	// MinPin and MaxPin are indices into Element.Pins, set by
	// Element.ComputePinOrder.
	MinPin int
	MaxPin int

	pinToIndex map[string]int
}

// PinIndex returns the position of a physical pin in this LUT.
func (b *Bel) PinIndex(pin string) (int, bool) {
	idx, ok := b.pinToIndex[pin]
	return idx, ok
}

// Element is a fracturable LUT site: several Bels sharing input wiring.
type Element struct {
	Name string
	Bels []*Bel

	// Pins is the shared physical pin order, computed once from the union
	// of the Bel pin lists.
	Pins []string

	// Width is the size of the shared output address space.
	Width int

	// Tie is how pins that carry no signal are reported (PinConst unless
	// the device ties them explicitly).
	Tie PinConnection

	belIndex   map[string]int
	pinToIndex map[string]int
}

// NewElement returns an empty element reporting idle pins as PinConst.
func NewElement(name string) *Element {
	return &Element{
		Name:       name,
		Tie:        PinConst,
		belIndex:   make(map[string]int),
		pinToIndex: make(map[string]int),
	}
}

// AddBel registers a LUT. Call ComputePinOrder once all Bels are added.
func (e *Element) AddBel(name string, pins []string, lowBit, highBit int) (*Bel, error) {
	if _, ok := e.belIndex[name]; ok {
		return nil, errors.Errorf("lut: element %s: duplicate BEL %s", e.Name, name)
	}
	if len(pins) == 0 {
		return nil, errors.Errorf("lut: element %s: BEL %s has no pins", e.Name, name)
	}
	b := &Bel{
		Name:    name,
		Pins:    append([]string(nil), pins...),
		LowBit:  lowBit,
		HighBit: highBit,
	}
	e.belIndex[name] = len(e.Bels)
	e.Bels = append(e.Bels, b)
	return b, nil
}

// Bel looks a LUT up by name.
func (e *Element) Bel(name string) *Bel {
	idx, ok := e.belIndex[name]
	if !ok {
		return nil
	}
	return e.Bels[idx]
}

// PinIndex returns the position of a physical pin in the shared order.
func (e *Element) PinIndex(pin string) (int, bool) {
	idx, ok := e.pinToIndex[pin]
	return idx, ok
}

// ComputePinOrder derives the shared pin order and each Bel's pin window.
// A pin must sit at the same position in every Bel that has it.
func (e *Element) ComputePinOrder() error {
	e.Pins = nil
	e.pinToIndex = make(map[string]int)

	for _, b := range e.Bels {
		b.pinToIndex = make(map[string]int, len(b.Pins))
		for i, pin := range b.Pins {
			if _, dup := b.pinToIndex[pin]; dup {
				return errors.Errorf("lut: BEL %s lists pin %s twice", b.Name, pin)
			}
			b.pinToIndex[pin] = i
			if idx, ok := e.pinToIndex[pin]; ok {
				if idx != i {
					return errors.Errorf("lut: pin %s is at index %d in BEL %s but %d elsewhere",
						pin, i, b.Name, idx)
				}
				continue
			}
			e.pinToIndex[pin] = i
		}
	}

	e.Pins = make([]string, len(e.pinToIndex))
	for pin, idx := range e.pinToIndex {
		if idx >= len(e.Pins) {
			return errors.Errorf("lut: element %s: pin order has a gap before %s", e.Name, pin)
		}
		if e.Pins[idx] != "" {
			return errors.Errorf("lut: element %s: pins %s and %s share index %d",
				e.Name, e.Pins[idx], pin, idx)
		}
		e.Pins[idx] = pin
	}

	width := 0
	for _, b := range e.Bels {
		b.MinPin = e.pinToIndex[b.Pins[0]]
		b.MaxPin = e.pinToIndex[b.Pins[len(b.Pins)-1]]
		if b.HighBit+1 > width {
			width = b.HighBit + 1
		}
	}
	if e.Width == 0 {
		e.Width = width
	}
	return e.Validate()
}

// Validate checks that every Bel's address window matches its input count
// and fits the shared address space.
func (e *Element) Validate() error {
	if len(e.Pins) > maxSitePins {
		return errors.Errorf("lut: element %s has %d pins, at most %d are supported",
			e.Name, len(e.Pins), maxSitePins)
	}
	for _, b := range e.Bels {
		if b.LowBit < 0 || b.LowBit+(1<<len(b.Pins)) != b.HighBit+1 {
			return errors.Errorf("lut: BEL %s: window [%d, %d] does not hold 2^%d entries",
				b.Name, b.LowBit, b.HighBit, len(b.Pins))
		}
		if b.HighBit >= e.Width {
			return errors.Errorf("lut: BEL %s: window [%d, %d] exceeds element width %d",
				b.Name, b.LowBit, b.HighBit, e.Width)
		}
	}
	return nil
}

// maxSitePins bounds the per-LUT address computation (1 << pins).
const maxSitePins = 24

// LogicLevel is one entry of a merged site equation.
type LogicLevel uint8

const (
	LevelDontCare LogicLevel = iota
	LevelZero
	LevelOne
)

// PinConnection classifies a physical LUT input after packing.
type PinConnection int

const (
	PinUnconnected PinConnection = iota
	PinGnd
	PinVcc
	PinConst
	PinSignal
)

func (c PinConnection) String() string {
	switch c {
	case PinUnconnected:
		return "unconnected"
	case PinGnd:
		return "Gnd"
	case PinVcc:
		return "Vcc"
	case PinConst:
		return "Const"
	case PinSignal:
		return "Signal"
	default:
		return fmt.Sprintf("PinConnection(%d)", int(c))
	}
}

// ParsePinConnection parses the names produced by String, ignoring case.
func ParsePinConnection(s string) (PinConnection, error) {
	switch strings.ToLower(s) {
	case "unconnected":
		return PinUnconnected, nil
	case "gnd":
		return PinGnd, nil
	case "vcc":
		return PinVcc, nil
	case "const":
		return PinConst, nil
	case "signal":
		return PinSignal, nil
	}
	return PinUnconnected, errors.Errorf("lut: unknown pin connection %q", s)
}
