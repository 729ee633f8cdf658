package timing

import (
	"log"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"
)

// Analyzer runs slack propagation and budget assignment over one netlist.
// The netlist is owned by the caller and must not change during a pass.
type Analyzer struct {
	Netlist *netlist.Netlist
	Oracle  Oracle
	Config  *Config
	Logger  *log.Logger
}

// NewAnalyzer creates an analyzer logging to the standard logger. A nil cfg
// means DefaultConfig.
func NewAnalyzer(nl *netlist.Netlist, oracle Oracle, cfg *Config) *Analyzer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Analyzer{
		Netlist: nl,
		Oracle:  oracle,
		Config:  cfg,
		Logger:  log.Default(),
	}
}

// SinkRef addresses one user of a net.
type SinkRef struct {
	Net  netlist.NetID
	User int
}

// SlackOptions selects what ComputeMinSlack records besides the minimum.
type SlackOptions struct {
	RecordBudgets      bool
	RecordCriticalPath bool
}

// SlackResult is the outcome of one propagation pass.
type SlackResult struct {
	// MinSlack is the smallest endpoint slack found, or one period when no
	// register-to-register path exists.
	MinSlack netlist.Delay

	// Budgets holds, per sink port, the smallest budget seen over every
	// traversal reaching it. Nil unless requested.
	Budgets map[netlist.PortRef]netlist.Delay

	// CriticalPath lists the sinks of the worst path, driver side first.
	// Nil unless requested.
	CriticalPath []SinkRef
}

// ComputeMinSlack walks every path starting at a clocked output and
// returns the minimum slack. Each path's slack is spread evenly over its
// connections to derive per-sink budgets.
func (a *Analyzer) ComputeMinSlack(opts SlackOptions) SlackResult {
	period := a.Config.Period()
	w := &walker{
		nl:         a.Netlist,
		oracle:     a.Oracle,
		minSlack:   period,
		recordPath: opts.RecordCriticalPath,
	}
	if opts.RecordBudgets {
		w.budgets = make(map[netlist.PortRef]netlist.Delay)
	}

	for _, c := range a.Netlist.Cells {
		for _, p := range c.Ports {
			if p.Dir != netlist.DirOut {
				continue
			}
			domain := a.Oracle.PortClock(c, p.Name)
			if domain == "" {
				continue
			}
			slack := period
			if clkToQ, ok := a.Oracle.CellDelay(c, domain, p.Name); ok {
				slack -= clkToQ
			}
			if p.Net != netlist.NoNet {
				w.walk(p.Net, slack)
			}
		}
	}

	res := SlackResult{MinSlack: w.minSlack, Budgets: w.budgets}
	if opts.RecordCriticalPath {
		res.CriticalPath = append([]SinkRef{}, w.critical...)
	}
	return res
}

type frameKind uint8

const (
	netFrame frameKind = iota
	userFrame
)

// frame is one level of the depth-first walk. A net frame iterates the
// users of net; a user frame iterates the output ports of the user's cell.
type frame struct {
	kind    frameKind
	net     netlist.NetID
	user    int // user frames: index of the sink in net
	next    int // next user (net frames) or next port (user frames, -1 before entry)
	pathLen int
	slack   netlist.Delay
	value   netlist.Delay
}

// walker keeps the traversal on an explicit stack so that deep
// combinational chains do not translate into deep goroutine stacks.
type walker struct {
	nl     *netlist.Netlist
	oracle Oracle

	budgets  map[netlist.PortRef]netlist.Delay
	minSlack netlist.Delay

	recordPath bool
	current    []SinkRef
	critical   []SinkRef

	stack []frame
}

func newNetFrame(net netlist.NetID, pathLen int, slack netlist.Delay) frame {
	return frame{
		kind:    netFrame,
		net:     net,
		pathLen: pathLen,
		slack:   slack,
		value:   slack / netlist.Delay(pathLen+1),
	}
}

func (w *walker) walk(net netlist.NetID, slack netlist.Delay) {
	w.stack = append(w.stack[:0], newNetFrame(net, 0, slack))

	var ret netlist.Delay
	returned := false
	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]

		switch top.kind {
		case netFrame:
			n := w.nl.Nets[top.net]
			if returned {
				top.value = min(top.value, ret)
				returned = false
				if w.recordPath {
					w.current = w.current[:len(w.current)-1]
				}
				top.next++
			}
			if top.next < len(n.Users) {
				if w.recordPath {
					w.current = append(w.current, SinkRef{Net: top.net, User: top.next})
				}
				rd := w.oracle.RouteDelay(n, top.next)
				w.stack = append(w.stack, frame{
					kind:    userFrame,
					net:     top.net,
					user:    top.next,
					next:    -1,
					pathLen: top.pathLen + 1,
					slack:   top.slack - rd,
				})
				continue
			}

		case userFrame:
			sink := w.nl.Nets[top.net].Users[top.user].Ref
			cell := w.nl.Cells[sink.Cell]
			if top.next < 0 {
				top.value = top.slack / netlist.Delay(top.pathLen)
				if w.oracle.PortClock(cell, sink.Port) != "" {
					// Path endpoint.
					if top.slack < w.minSlack {
						w.minSlack = top.slack
						if w.recordPath {
							w.critical = append(w.critical[:0], w.current...)
						}
					}
					w.record(sink, top.value)
					break
				}
				top.next = 0
			} else if returned {
				top.value = min(top.value, ret)
				returned = false
				top.next++
			}
			if w.descend(top, cell, sink.Port) {
				continue
			}
			w.record(sink, top.value)
		}

		ret, returned = top.value, true
		w.stack = w.stack[:len(w.stack)-1]
	}
}

// descend pushes a net frame for the next output of cell reachable from
// port through a combinational arc. It reports false when none is left.
func (w *walker) descend(top *frame, cell *netlist.Cell, port string) bool {
	for ; top.next < len(cell.Ports); top.next++ {
		p := cell.Ports[top.next]
		if p.Dir != netlist.DirOut {
			continue
		}
		comb, ok := w.oracle.CellDelay(cell, port, p.Name)
		if !ok || p.Net == netlist.NoNet {
			continue
		}
		w.stack = append(w.stack, newNetFrame(p.Net, top.pathLen, top.slack-comb))
		return true
	}
	return false
}

func (w *walker) record(ref netlist.PortRef, value netlist.Delay) {
	if w.budgets == nil {
		return
	}
	if old, ok := w.budgets[ref]; !ok || value < old {
		w.budgets[ref] = value
	}
}
