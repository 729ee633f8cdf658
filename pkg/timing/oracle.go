package timing

import "github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"

// Oracle answers the device-specific delay questions the analysis needs.
type Oracle interface {
	// PortClock returns the clock domain (the clock port name) of a
	// registered port, or "" when the port is combinational.
	PortClock(cell *netlist.Cell, port string) string

	// CellDelay returns the delay of the arc from -> to through cell. The
	// clock port is used as from for clock-to-output delays.
	CellDelay(cell *netlist.Cell, from, to string) (netlist.Delay, bool)

	// RouteDelay returns the routed (or estimated) delay from the driver of
	// net to its user at index user.
	RouteDelay(net *netlist.Net, user int) netlist.Delay

	// BudgetOverride lets the device clamp a proposed budget for a
	// connection driven by driver.
	BudgetOverride(net *netlist.Net, driver netlist.PortRef, budget netlist.Delay) netlist.Delay
}
