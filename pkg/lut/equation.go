package lut

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// InternalError is the panic value raised when a solved mapping breaks one
// of its own invariants. It indicates a bug, never bad input.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "lut: internal error: " + e.Msg }

func internalf(format string, args ...interface{}) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}

// ParseEquation reads a LUT truth table for a cell with the given number of
// inputs. Accepted forms are Verilog literals ("16'h8000", "4'b1000",
// "8'd128"), C style prefixes ("0x8000", "0b1000") and bare hex digits.
func ParseEquation(init string, inputs int) (*bitset.BitSet, error) {
	if inputs < 0 || inputs > maxSitePins {
		return nil, errors.Errorf("lut: unsupported input count %d", inputs)
	}
	size := 1 << inputs

	s := strings.ReplaceAll(strings.TrimSpace(init), "_", "")
	base := 16
	width := -1
	if i := strings.IndexByte(s, '\''); i >= 0 {
		if i > 0 {
			v, ok := new(big.Int).SetString(s[:i], 10)
			if !ok || !v.IsInt64() {
				return nil, errors.Errorf("lut: bad width in %q", init)
			}
			width = int(v.Int64())
		}
		s = s[i+1:]
		if s == "" {
			return nil, errors.Errorf("lut: missing radix in %q", init)
		}
		switch s[0] {
		case 'h', 'H':
			base = 16
		case 'b', 'B':
			base = 2
		case 'd', 'D':
			base = 10
		case 'o', 'O':
			base = 8
		default:
			return nil, errors.Errorf("lut: unknown radix %q in %q", s[0], init)
		}
		s = s[1:]
	} else if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			s = s[2:]
		case 'b', 'B':
			base = 2
			s = s[2:]
		}
	}
	if s == "" {
		return nil, errors.Errorf("lut: empty equation %q", init)
	}

	v, ok := new(big.Int).SetString(s, base)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("lut: cannot parse equation %q", init)
	}
	if width >= 0 && v.BitLen() > width {
		return nil, errors.Errorf("lut: equation %q does not fit its declared width", init)
	}
	if v.BitLen() > size {
		return nil, errors.Errorf("lut: equation %q has more than %d entries", init, size)
	}

	eq := bitset.New(uint(size))
	for i := 0; i < v.BitLen(); i++ {
		if v.Bit(i) == 1 {
			eq.Set(uint(i))
		}
	}
	return eq, nil
}

// FormatEquation renders a truth table as a sized Verilog hex literal.
func FormatEquation(eq *bitset.BitSet, inputs int) string {
	size := 1 << inputs
	v := new(big.Int)
	for i, ok := eq.NextSet(0); ok && int(i) < size; i, ok = eq.NextSet(i + 1) {
		v.SetBit(v, int(i), 1)
	}
	return fmt.Sprintf("%d'h%s", size, v.Text(16))
}

// cellAddress maps a LUT address to the address of the cell equation
// wired onto it. An address that needs an unused pin driven low is
// unreachable, since unused pins are tied high.
func cellAddress(belAddr int, bel *Bel, pinMap []int, used *bitset.BitSet) (int, bool) {
	cellAddr := 0
	for bp := range bel.Pins {
		if belAddr&(1<<bp) == 0 {
			if !used.Test(uint(bp)) {
				return 0, false
			}
			continue
		}
		if cp := pinMap[bp]; cp >= 0 {
			cellAddr |= 1 << cp
		}
	}
	return cellAddr, true
}

// rotateAndMerge writes eq, permuted through pinMap, into the LUT's window
// of result. It reports false if an entry already holds the opposite value.
func rotateAndMerge(result []LogicLevel, bel *Bel, eq *bitset.BitSet, pinMap []int, used *bitset.BitSet) bool {
	width := 1 << len(bel.Pins)
	for belAddr := 0; belAddr < width; belAddr++ {
		cellAddr, ok := cellAddress(belAddr, bel, pinMap, used)
		if !ok {
			continue
		}
		addr := belAddr + bel.LowBit
		if eq.Test(uint(cellAddr)) {
			if result[addr] == LevelZero {
				return false
			}
			result[addr] = LevelOne
		} else {
			if result[addr] == LevelOne {
				return false
			}
			result[addr] = LevelZero
		}
	}
	return true
}

// CheckEquation verifies that the merged site equation reproduces cell's
// truth table under the cell-pin to LUT-pin assignment in cellToBel. It
// panics with an *InternalError on the first mismatch.
func CheckEquation(cell *CellSpec, cellToBel map[string]string, bel *Bel, equation []LogicLevel, used *bitset.BitSet) {
	pinMap := make([]int, len(bel.Pins))
	for i := range pinMap {
		pinMap[i] = -1
	}
	for ci, pin := range cell.Pins {
		belPin, ok := cellToBel[pin]
		if !ok {
			panic(internalf("cell %s pin %s has no LUT pin", cell.Name, pin))
		}
		bp, ok := bel.PinIndex(belPin)
		if !ok {
			panic(internalf("cell %s pin %s mapped to %s, not a pin of %s", cell.Name, pin, belPin, bel.Name))
		}
		pinMap[bp] = ci
	}

	width := 1 << len(bel.Pins)
	if bel.LowBit+width != bel.HighBit+1 {
		panic(internalf("BEL %s window does not hold %d entries", bel.Name, width))
	}

	for belAddr := 0; belAddr < width; belAddr++ {
		cellAddr, ok := cellAddress(belAddr, bel, pinMap, used)
		if !ok {
			continue
		}
		want := LevelZero
		if cell.Equation.Test(uint(cellAddr)) {
			want = LevelOne
		}
		if got := equation[belAddr+bel.LowBit]; got != want {
			panic(internalf("cell %s on %s: site address %d is %d, expected %d",
				cell.Name, bel.Name, belAddr+bel.LowBit, got, want))
		}
	}
}
