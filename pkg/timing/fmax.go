package timing

import (
	"github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"
)

// PathHop is one connection of the reported critical path.
type PathHop struct {
	Driver    netlist.PortRef
	Sink      netlist.PortRef
	Net       netlist.NetID
	CombDelay netlist.Delay // arc into Driver, clock-to-output on the first hop
	NetDelay  netlist.Delay
	Total     netlist.Delay // running sum up to and including this hop
}

// FmaxReport is the result of ComputeFmax.
type FmaxReport struct {
	MinSlack netlist.Delay
	FmaxMHz  float64
	Path     []PathHop // nil unless the path was requested

	// Unbounded is set when no timed path constrains the clock. FmaxMHz
	// is zero then.
	Unbounded bool
}

// ComputeFmax estimates the achievable frequency from the current minimum
// slack. It never modifies the netlist or the configuration.
func (a *Analyzer) ComputeFmax(reportFmax, reportPath bool) FmaxReport {
	period := a.Config.Period()
	res := a.ComputeMinSlack(SlackOptions{RecordCriticalPath: reportPath})

	report := FmaxReport{MinSlack: res.MinSlack}
	if freq, ok := frequencyFor(float64(period - res.MinSlack)); ok {
		report.FmaxMHz = freq / 1e6
	} else {
		report.Unbounded = true
	}

	if reportPath {
		report.Path = a.pathHops(res.CriticalPath)
		a.Logger.Printf("info: critical path:")
		a.Logger.Printf("info: curr total")
		for _, hop := range report.Path {
			a.Logger.Printf("info: %4d %4d  Source %s", hop.CombDelay, hop.Total-hop.NetDelay,
				a.Netlist.RefName(hop.Driver))
			a.Logger.Printf("info: %4d %4d    Net %s", hop.NetDelay, hop.Total, a.Netlist.Nets[hop.Net].Name)
			a.Logger.Printf("info:                Sink %s", a.Netlist.RefName(hop.Sink))
		}
	}
	if reportFmax {
		if report.Unbounded {
			a.Logger.Printf("info: no timed path, Fmax is unbounded")
		} else {
			a.Logger.Printf("info: estimated Fmax = %.2f MHz", report.FmaxMHz)
		}
	}
	return report
}

// pathHops replays the critical path from the clock domain of its first
// driver, recomputing each hop's cell and net delay.
func (a *Analyzer) pathHops(path []SinkRef) []PathHop {
	if len(path) == 0 {
		return nil
	}

	nl := a.Netlist
	lastPort := ""
	if front := nl.Nets[path[0].Net]; front.HasDriver {
		lastPort = a.Oracle.PortClock(nl.Cell(front.Driver.Cell), front.Driver.Port)
	}

	hops := make([]PathHop, 0, len(path))
	var total netlist.Delay
	for _, s := range path {
		n := nl.Nets[s.Net]
		hop := PathHop{
			Driver: n.Driver,
			Sink:   n.Users[s.User].Ref,
			Net:    s.Net,
		}
		if n.HasDriver {
			if comb, ok := a.Oracle.CellDelay(nl.Cell(n.Driver.Cell), lastPort, n.Driver.Port); ok {
				hop.CombDelay = comb
			}
		}
		total += hop.CombDelay
		hop.NetDelay = a.Oracle.BudgetOverride(n, n.Driver, a.Oracle.RouteDelay(n, s.User))
		total += hop.NetDelay
		hop.Total = total

		hops = append(hops, hop)
		lastPort = hop.Sink.Port
	}
	return hops
}
