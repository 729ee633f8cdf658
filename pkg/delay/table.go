// Package delay provides a table-driven timing oracle: clock domains per
// port, combinational arcs per cell, routed delays per net user and a budget
// floor per driving cell type.
package delay

import (
	"github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/timing"
)

var _ timing.Oracle = (*Table)(nil)

type arc struct {
	from, to string
}

type userKey struct {
	net  netlist.NetID
	user int
}

// Table answers timing queries from explicitly registered values. Anything
// not registered is "no clock", "no arc" or zero routed delay.
type Table struct {
	nl *netlist.Netlist

	clocks map[netlist.PortRef]string
	arcs   map[netlist.CellID]map[arc]netlist.Delay
	routes map[userKey]netlist.Delay
	floors map[string]netlist.Delay
}

// NewTable creates an empty table for nl.
func NewTable(nl *netlist.Netlist) *Table {
	return &Table{
		nl:     nl,
		clocks: make(map[netlist.PortRef]string),
		arcs:   make(map[netlist.CellID]map[arc]netlist.Delay),
		routes: make(map[userKey]netlist.Delay),
		floors: make(map[string]netlist.Delay),
	}
}

// SetClock marks ref as clocked by domain (the clock port name of the cell).
func (t *Table) SetClock(ref netlist.PortRef, domain string) {
	if domain == "" {
		delete(t.clocks, ref)
		return
	}
	t.clocks[ref] = domain
}

// SetCellDelay registers a combinational (or clock-to-output) arc.
func (t *Table) SetCellDelay(cell netlist.CellID, from, to string, d netlist.Delay) {
	m, ok := t.arcs[cell]
	if !ok {
		m = make(map[arc]netlist.Delay)
		t.arcs[cell] = m
	}
	m[arc{from: from, to: to}] = d
}

// SetRouteDelay registers the routed delay to user index user of net.
func (t *Table) SetRouteDelay(net netlist.NetID, user int, d netlist.Delay) {
	t.routes[userKey{net: net, user: user}] = d
}

// SetFloor clamps budgets of connections driven by cells of cellType to at
// least d.
func (t *Table) SetFloor(cellType string, d netlist.Delay) {
	t.floors[cellType] = d
}

// PortClock implements timing.Oracle.
func (t *Table) PortClock(cell *netlist.Cell, port string) string {
	return t.clocks[netlist.PortRef{Cell: cell.ID, Port: port}]
}

// CellDelay implements timing.Oracle.
func (t *Table) CellDelay(cell *netlist.Cell, from, to string) (netlist.Delay, bool) {
	d, ok := t.arcs[cell.ID][arc{from: from, to: to}]
	return d, ok
}

// RouteDelay implements timing.Oracle.
func (t *Table) RouteDelay(net *netlist.Net, user int) netlist.Delay {
	return t.routes[userKey{net: net.ID, user: user}]
}

// BudgetOverride implements timing.Oracle.
func (t *Table) BudgetOverride(net *netlist.Net, driver netlist.PortRef, budget netlist.Delay) netlist.Delay {
	if !net.HasDriver {
		return budget
	}
	c := t.nl.Cell(driver.Cell)
	if c == nil {
		return budget
	}
	if floor, ok := t.floors[c.Type]; ok && budget < floor {
		return floor
	}
	return budget
}
