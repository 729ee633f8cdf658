// Package netlist holds the cell/port/net graph that the timing and packing
// passes read and annotate.
//
// Cells and nets live in arenas owned by the Netlist and are addressed by
// index handles (CellID, NetID). Ports refer back to their net by handle and
// nets refer to their driver and sinks with PortRef values, so every
// cross-reference is an O(1) lookup without pointer aliasing.
package netlist

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/pkg/errors"
)

// Delay is a signed time value in picoseconds.
type Delay int64

// CellID indexes a cell in its Netlist.
type CellID int

// NetID indexes a net in its Netlist.
type NetID int

// NoNet marks a port that is not connected.
const NoNet NetID = -1

// Direction of a cell port.
type Direction int

const (
	DirIn Direction = iota
	DirOut
	DirInout
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	case DirInout:
		return "inout"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Drives reports whether a port of this direction may drive a net.
func (d Direction) Drives() bool { return d == DirOut || d == DirInout }

// Sinks reports whether a port of this direction may be a net user.
func (d Direction) Sinks() bool { return d == DirIn || d == DirInout }

// Port is a named pin of a cell.
type Port struct {
	Name string    `json:"name"`
	Dir  Direction `json:"dir"`
	Net  NetID     `json:"net"`
}

// PortRef identifies a (cell, port) pair. It is comparable and is used as a
// map key by the budget recorder.
type PortRef struct {
	Cell CellID `json:"cell"`
	Port string `json:"port"`
}

// Cell is a logic element instance.
type Cell struct {
	ID      CellID            `json:"id"`
	Name    string            `json:"name"`
	Type    string            `json:"type"`
	Ports   []Port            `json:"ports"`
	Params  map[string]string `json:"params,omitempty"`
	Bel     string            `json:"bel,omitempty"`
	BelPins map[string]string `json:"bel_pins,omitempty"`

	portIndex map[string]int
}

// Port returns the named port, or nil.
func (c *Cell) Port(name string) *Port {
	idx, ok := c.portIndex[name]
	if !ok {
		return nil
	}
	return &c.Ports[idx]
}

// Sink is one user of a net together with its timing budget.
type Sink struct {
	Ref    PortRef `json:"ref"`
	Budget Delay   `json:"budget"`
}

// Net connects at most one driver to an ordered list of sinks.
type Net struct {
	ID        NetID   `json:"id"`
	Name      string  `json:"name"`
	Driver    PortRef `json:"driver"`
	HasDriver bool    `json:"has_driver"`
	Users     []Sink  `json:"users"`
}

// Netlist owns the cell and net arenas.
type Netlist struct {
	Name  string
	Cells []*Cell
	Nets  []*Net

	cellByName map[string]CellID
	netByName  map[string]NetID
}

// New creates an empty netlist.
func New(name string) *Netlist {
	return &Netlist{
		Name:       name,
		cellByName: make(map[string]CellID),
		netByName:  make(map[string]NetID),
	}
}

// AddCell creates a cell. Names must be unique.
func (nl *Netlist) AddCell(name, typ string) (CellID, error) {
	if _, ok := nl.cellByName[name]; ok {
		return 0, errors.Errorf("duplicate cell %q", name)
	}
	id := CellID(len(nl.Cells))
	nl.Cells = append(nl.Cells, &Cell{
		ID:        id,
		Name:      name,
		Type:      typ,
		Params:    make(map[string]string),
		portIndex: make(map[string]int),
	})
	nl.cellByName[name] = id
	return id, nil
}

// AddPort adds an unconnected port to a cell.
func (nl *Netlist) AddPort(cell CellID, name string, dir Direction) error {
	c := nl.Cell(cell)
	if c == nil {
		return errors.Errorf("no cell with id %d", cell)
	}
	if _, ok := c.portIndex[name]; ok {
		return errors.Errorf("duplicate port %s.%s", c.Name, name)
	}
	c.portIndex[name] = len(c.Ports)
	c.Ports = append(c.Ports, Port{Name: name, Dir: dir, Net: NoNet})
	return nil
}

// AddNet creates an empty net. Names must be unique.
func (nl *Netlist) AddNet(name string) (NetID, error) {
	if _, ok := nl.netByName[name]; ok {
		return 0, errors.Errorf("duplicate net %q", name)
	}
	id := NetID(len(nl.Nets))
	nl.Nets = append(nl.Nets, &Net{ID: id, Name: name})
	nl.netByName[name] = id
	return id, nil
}

// Cell returns the cell for id, or nil when out of range.
func (nl *Netlist) Cell(id CellID) *Cell {
	if id < 0 || int(id) >= len(nl.Cells) {
		return nil
	}
	return nl.Cells[id]
}

// Net returns the net for id, or nil when out of range or NoNet.
func (nl *Netlist) Net(id NetID) *Net {
	if id < 0 || int(id) >= len(nl.Nets) {
		return nil
	}
	return nl.Nets[id]
}

// CellByName looks a cell up by name.
func (nl *Netlist) CellByName(name string) (*Cell, bool) {
	id, ok := nl.cellByName[name]
	if !ok {
		return nil, false
	}
	return nl.Cells[id], true
}

// NetByName looks a net up by name.
func (nl *Netlist) NetByName(name string) (*Net, bool) {
	id, ok := nl.netByName[name]
	if !ok {
		return nil, false
	}
	return nl.Nets[id], true
}

// PortOf resolves a PortRef.
func (nl *Netlist) PortOf(ref PortRef) *Port {
	c := nl.Cell(ref.Cell)
	if c == nil {
		return nil
	}
	return c.Port(ref.Port)
}

// RefName formats a PortRef as cell.port.
func (nl *Netlist) RefName(ref PortRef) string {
	c := nl.Cell(ref.Cell)
	if c == nil {
		return fmt.Sprintf("<cell %d>.%s", ref.Cell, ref.Port)
	}
	return c.Name + "." + ref.Port
}

func (nl *Netlist) attach(net NetID, ref PortRef) (*Port, error) {
	n := nl.Net(net)
	if n == nil {
		return nil, errors.Errorf("no net with id %d", net)
	}
	p := nl.PortOf(ref)
	if p == nil {
		return nil, errors.Errorf("no port %s", nl.RefName(ref))
	}
	if p.Net != NoNet {
		return nil, errors.Errorf("port %s already connected to net %q",
			nl.RefName(ref), nl.Nets[p.Net].Name)
	}
	return p, nil
}

// ConnectDriver makes ref the driver of net.
func (nl *Netlist) ConnectDriver(net NetID, ref PortRef) error {
	p, err := nl.attach(net, ref)
	if err != nil {
		return errors.Wrap(err, "connect driver")
	}
	n := nl.Nets[net]
	if n.HasDriver {
		return errors.Errorf("net %q already driven by %s", n.Name, nl.RefName(n.Driver))
	}
	if !p.Dir.Drives() {
		return errors.Errorf("port %s is an input and cannot drive net %q", nl.RefName(ref), n.Name)
	}
	p.Net = net
	n.Driver = ref
	n.HasDriver = true
	return nil
}

// ConnectSink appends ref to the users of net and returns its user index.
func (nl *Netlist) ConnectSink(net NetID, ref PortRef) (int, error) {
	p, err := nl.attach(net, ref)
	if err != nil {
		return 0, errors.Wrap(err, "connect sink")
	}
	n := nl.Nets[net]
	if !p.Dir.Sinks() {
		return 0, errors.Errorf("port %s is an output and cannot sink net %q", nl.RefName(ref), n.Name)
	}
	p.Net = net
	n.Users = append(n.Users, Sink{Ref: ref})
	return len(n.Users) - 1, nil
}

// UserIndex returns the position of ref in the users of net, or -1.
func (nl *Netlist) UserIndex(net NetID, ref PortRef) int {
	n := nl.Net(net)
	if n == nil {
		return -1
	}
	for i, u := range n.Users {
		if u.Ref == ref {
			return i
		}
	}
	return -1
}

// Validate checks the port/net back references and the single-driver rule.
func (nl *Netlist) Validate() error {
	for _, n := range nl.Nets {
		if n.HasDriver {
			p := nl.PortOf(n.Driver)
			if p == nil || p.Net != n.ID {
				return errors.Errorf("net %q: driver %s does not point back at the net",
					n.Name, nl.RefName(n.Driver))
			}
		}
		for i, u := range n.Users {
			p := nl.PortOf(u.Ref)
			if p == nil || p.Net != n.ID {
				return errors.Errorf("net %q: user %d (%s) does not point back at the net",
					n.Name, i, nl.RefName(u.Ref))
			}
		}
	}
	for _, c := range nl.Cells {
		for _, p := range c.Ports {
			if p.Net == NoNet {
				continue
			}
			ref := PortRef{Cell: c.ID, Port: p.Name}
			n := nl.Net(p.Net)
			if n == nil {
				return errors.Errorf("port %s references missing net %d", nl.RefName(ref), p.Net)
			}
			if !(n.HasDriver && n.Driver == ref) && nl.UserIndex(n.ID, ref) < 0 {
				return errors.Errorf("port %s claims net %q but is neither its driver nor a user",
					nl.RefName(ref), n.Name)
			}
		}
	}
	return nil
}

// Checksum hashes the structure and the current sink budgets. It is logged
// after budget assignment so that runs can be compared.
func (nl *Netlist) Checksum() uint32 {
	h := fnv.New32a()
	for _, c := range nl.Cells {
		fmt.Fprintf(h, "c:%s:%s:%s;", c.Name, c.Type, c.Bel)
		keys := make([]string, 0, len(c.Params))
		for k := range c.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "p:%s=%s;", k, c.Params[k])
		}
	}
	for _, n := range nl.Nets {
		fmt.Fprintf(h, "n:%s;", n.Name)
		if n.HasDriver {
			fmt.Fprintf(h, "d:%d.%s;", n.Driver.Cell, n.Driver.Port)
		}
		for _, u := range n.Users {
			fmt.Fprintf(h, "u:%d.%s:%d;", u.Ref.Cell, u.Ref.Port, u.Budget)
		}
	}
	return h.Sum32()
}

// ExportJSON exports the netlist, including sink budgets, as JSON.
func (nl *Netlist) ExportJSON() ([]byte, error) {
	output := struct {
		Name      string  `json:"name"`
		CellCount int     `json:"cell_count"`
		NetCount  int     `json:"net_count"`
		Checksum  string  `json:"checksum"`
		Cells     []*Cell `json:"cells"`
		Nets      []*Net  `json:"nets"`
	}{
		Name:      nl.Name,
		CellCount: len(nl.Cells),
		NetCount:  len(nl.Nets),
		Checksum:  fmt.Sprintf("0x%08x", nl.Checksum()),
		Cells:     nl.Cells,
		Nets:      nl.Nets,
	}

	return json.MarshalIndent(output, "", "  ")
}
