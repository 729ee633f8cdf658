package timing_test

import (
	"fmt"
	"io"
	"log"
	"math"
	"testing"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/delay"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/timing"
)

// design is a small builder for hand-written timing graphs.
type design struct {
	t   *testing.T
	nl  *netlist.Netlist
	tab *delay.Table
}

func newDesign(t *testing.T) *design {
	t.Helper()
	nl := netlist.New(t.Name())
	return &design{t: t, nl: nl, tab: delay.NewTable(nl)}
}

func (d *design) cell(name, typ string, ins, outs []string) netlist.CellID {
	d.t.Helper()
	id, err := d.nl.AddCell(name, typ)
	if err != nil {
		d.t.Fatal(err)
	}
	for _, p := range ins {
		if err := d.nl.AddPort(id, p, netlist.DirIn); err != nil {
			d.t.Fatal(err)
		}
	}
	for _, p := range outs {
		if err := d.nl.AddPort(id, p, netlist.DirOut); err != nil {
			d.t.Fatal(err)
		}
	}
	return id
}

// ff adds a register clocked on C with the given clock-to-output delay.
func (d *design) ff(name string, clkToQ netlist.Delay) netlist.CellID {
	id := d.cell(name, "FDRE", []string{"C", "D"}, []string{"Q"})
	d.tab.SetClock(netlist.PortRef{Cell: id, Port: "Q"}, "C")
	d.tab.SetClock(netlist.PortRef{Cell: id, Port: "D"}, "C")
	if clkToQ != 0 {
		d.tab.SetCellDelay(id, "C", "Q", clkToQ)
	}
	return id
}

func (d *design) ref(cell, port string) netlist.PortRef {
	d.t.Helper()
	c, ok := d.nl.CellByName(cell)
	if !ok {
		d.t.Fatalf("no cell %s", cell)
	}
	return netlist.PortRef{Cell: c.ID, Port: port}
}

type sinkSpec struct {
	cell, port string
	route      netlist.Delay
}

func (d *design) net(name, drvCell, drvPort string, sinks ...sinkSpec) netlist.NetID {
	d.t.Helper()
	id, err := d.nl.AddNet(name)
	if err != nil {
		d.t.Fatal(err)
	}
	if err := d.nl.ConnectDriver(id, d.ref(drvCell, drvPort)); err != nil {
		d.t.Fatal(err)
	}
	for _, s := range sinks {
		idx, err := d.nl.ConnectSink(id, d.ref(s.cell, s.port))
		if err != nil {
			d.t.Fatal(err)
		}
		d.tab.SetRouteDelay(id, idx, s.route)
	}
	return id
}

func (d *design) analyzer(cfg *timing.Config) *timing.Analyzer {
	a := timing.NewAnalyzer(d.nl, d.tab, cfg)
	a.Logger = log.New(io.Discard, "", 0)
	return a
}

func pinned(mhz float64) *timing.Config {
	cfg := timing.DefaultConfig()
	cfg.SetFrequencyMHz(mhz)
	return cfg
}

// chain builds ff0 -> lut0 -> lut1 -> ff1 with a side branch lut0 -> ff2.
func chain(t *testing.T) *design {
	d := newDesign(t)
	d.ff("ff0", 100)
	d.ff("ff1", 0)
	d.ff("ff2", 0)
	lut0 := d.cell("lut0", "LUT1", []string{"I0"}, []string{"O"})
	lut1 := d.cell("lut1", "LUT1", []string{"I0"}, []string{"O"})
	d.tab.SetCellDelay(lut0, "I0", "O", 300)
	d.tab.SetCellDelay(lut1, "I0", "O", 500)

	d.net("n0", "ff0", "Q", sinkSpec{"lut0", "I0", 200})
	d.net("n1", "lut0", "O", sinkSpec{"lut1", "I0", 400}, sinkSpec{"ff2", "D", 50})
	d.net("n2", "lut1", "O", sinkSpec{"ff1", "D", 600})
	return d
}

func TestBudgetArithmetic(t *testing.T) {
	d := newDesign(t)
	d.ff("ff0", 2000)
	d.ff("ff1", 0)
	n := d.net("n0", "ff0", "Q", sinkSpec{"ff1", "D", 1000})

	a := d.analyzer(pinned(100))
	if a.Config.Period() != 10000 {
		t.Fatalf("period = %d, want 10000", a.Config.Period())
	}

	res := a.ComputeMinSlack(timing.SlackOptions{RecordBudgets: true})
	want := netlist.Delay((10000-2000)/1 - 1000)
	if got := res.Budgets[d.ref("ff1", "D")]; got != want {
		t.Errorf("recorded budget = %d, want %d", got, want)
	}
	if res.MinSlack != want {
		t.Errorf("min slack = %d, want %d", res.MinSlack, want)
	}

	report := a.AssignBudget()
	// The routed delay is added back: the budget covers the connection itself.
	if got := d.nl.Nets[n].Users[0].Budget; got != want+1000 {
		t.Errorf("sink budget = %d, want %d", got, want+1000)
	}
	if len(report.Violations) != 0 {
		t.Errorf("unexpected violations %v", report.Violations)
	}
	if a.Config.TargetFreq != 100e6 {
		t.Errorf("pinned frequency changed to %g", a.Config.TargetFreq)
	}

	d.tab.SetFloor("FDRE", 9500)
	a.AssignBudget()
	if got := d.nl.Nets[n].Users[0].Budget; got != 9500 {
		t.Errorf("override floor not applied: budget = %d", got)
	}
}

func TestChainBudgetsTakeMinimumShare(t *testing.T) {
	d := chain(t)
	a := d.analyzer(pinned(100))

	res := a.ComputeMinSlack(timing.SlackOptions{RecordBudgets: true})
	if res.MinSlack != 7900 {
		t.Fatalf("min slack = %d, want 7900", res.MinSlack)
	}

	tests := []struct {
		cell, port string
		want       netlist.Delay
	}{
		{"lut0", "I0", 2633},
		{"lut1", "I0", 2633},
		{"ff1", "D", 2633},
		{"ff2", "D", 4675},
	}
	for _, tt := range tests {
		if got := res.Budgets[d.ref(tt.cell, tt.port)]; got != tt.want {
			t.Errorf("budget %s.%s = %d, want %d", tt.cell, tt.port, got, tt.want)
		}
	}
}

func TestReconvergentPortKeepsTightestBudget(t *testing.T) {
	d := newDesign(t)
	d.ff("ffA", 0)
	d.ff("ffB", 0)
	d.ff("ffC", 0)
	lut := d.cell("lutA", "LUT2", []string{"I0", "I1"}, []string{"O"})
	d.tab.SetCellDelay(lut, "I0", "O", 0)
	d.tab.SetCellDelay(lut, "I1", "O", 0)

	d.net("a", "ffA", "Q", sinkSpec{"lutA", "I0", 0})
	d.net("b", "ffB", "Q", sinkSpec{"lutA", "I1", 3000})
	d.net("c", "lutA", "O", sinkSpec{"ffC", "D", 0})

	res := d.analyzer(pinned(100)).ComputeMinSlack(timing.SlackOptions{RecordBudgets: true})
	if res.MinSlack != 7000 {
		t.Errorf("min slack = %d, want 7000", res.MinSlack)
	}
	if got := res.Budgets[d.ref("ffC", "D")]; got != 3500 {
		t.Errorf("ffC.D budget = %d, want 3500 (tightest of 5000 and 3500)", got)
	}
}

func TestMinSlackMonotonicInCombinationalDelay(t *testing.T) {
	arcs := []struct {
		cell     string
		from, to string
	}{
		{"lut0", "I0", "O"},
		{"lut1", "I0", "O"},
		{"ff0", "C", "Q"},
	}

	for _, arc := range arcs {
		t.Run(arc.cell, func(t *testing.T) {
			d := chain(t)
			a := d.analyzer(pinned(100))
			c, _ := d.nl.CellByName(arc.cell)

			prev := a.ComputeMinSlack(timing.SlackOptions{}).MinSlack
			for _, delta := range []netlist.Delay{0, 10, 250, 1000, 4000} {
				base, _ := d.tab.CellDelay(c, arc.from, arc.to)
				d.tab.SetCellDelay(c.ID, arc.from, arc.to, base+delta)
				got := a.ComputeMinSlack(timing.SlackOptions{}).MinSlack
				if got > prev {
					t.Fatalf("min slack rose from %d to %d after +%d on %s", prev, got, delta, arc.cell)
				}
				prev = got
			}
		})
	}
}

func TestAssignBudgetIdempotentWhenPinned(t *testing.T) {
	d := chain(t)
	a := d.analyzer(pinned(250))

	snapshot := func() []netlist.Delay {
		var out []netlist.Delay
		for _, n := range d.nl.Nets {
			for _, u := range n.Users {
				out = append(out, u.Budget)
			}
		}
		return out
	}

	first := a.AssignBudget()
	b1 := snapshot()
	second := a.AssignBudget()
	b2 := snapshot()

	if fmt.Sprint(b1) != fmt.Sprint(b2) {
		t.Errorf("budgets changed between passes: %v vs %v", b1, b2)
	}
	if first.Checksum != second.Checksum {
		t.Errorf("checksum changed: 0x%08x vs 0x%08x", first.Checksum, second.Checksum)
	}
}

func TestAssignBudgetReportsViolationsWhenPinned(t *testing.T) {
	d := newDesign(t)
	d.ff("ff0", 3000)
	d.ff("ff1", 0)
	d.net("n0", "ff0", "Q", sinkSpec{"ff1", "D", 8000})

	a := d.analyzer(pinned(100))
	report := a.AssignBudget()
	if report.MinSlack != -1000 {
		t.Fatalf("min slack = %d, want -1000", report.MinSlack)
	}
	// Budget = route + share = 8000 + (-1000) = 7000, still positive.
	if len(report.Violations) != 0 {
		t.Errorf("unexpected violations: %v", report.Violations)
	}

	d.tab.SetRouteDelay(0, 0, 20000)
	report = a.AssignBudget()
	if len(report.Violations) != 0 {
		t.Errorf("route delay is added back so the budget cannot go negative alone: %v", report.Violations)
	}

	// A clock-to-output delay beyond the period leaves nothing to hand out.
	d.tab.SetRouteDelay(0, 0, 0)
	d.tab.SetCellDelay(d.ref("ff0", "Q").Cell, "C", "Q", 25000)
	report = a.AssignBudget()
	if len(report.Violations) != 1 {
		t.Fatalf("expected one violation, got %v", report.Violations)
	}
	if report.Violations[0].Budget != -15000 {
		t.Errorf("violation budget = %d, want -15000", report.Violations[0].Budget)
	}
}

func TestAssignBudgetRetargetsUnpinnedFrequency(t *testing.T) {
	d := chain(t)
	cfg := timing.DefaultConfig()
	cfg.TargetFreq = 100e6
	a := d.analyzer(cfg)

	report := a.AssignBudget()
	// Critical path delay is 2100ps.
	want := 1e12 / 2100.0
	if math.Abs(report.TargetFreq-want) > 1e-3 {
		t.Errorf("target frequency = %f, want %f", report.TargetFreq, want)
	}
}

func TestDampingBranchSelection(t *testing.T) {
	tests := []struct {
		name     string
		period   netlist.Delay
		minSlack netlist.Delay
		factor   float64
	}{
		{"violation", 10000, -1000, timing.ViolationDamping},
		{"headroom", 10000, 1000, timing.HeadroomDamping},
		{"zero slack uses headroom", 10000, 0, timing.HeadroomDamping},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := timing.DampedFrequency(tt.period, tt.minSlack)
			if !ok {
				t.Fatalf("DampedFrequency(%d, %d) reported no constraint", tt.period, tt.minSlack)
			}
			want := 1e12 / (float64(tt.period) - tt.factor*float64(tt.minSlack))
			if math.Abs(got-want) > 1e-6 {
				t.Errorf("DampedFrequency = %f, want %f", got, want)
			}
		})
	}

	violation, _ := timing.DampedFrequency(10000, -1000)
	if math.Abs(violation-1e12/10990.0) > 1e-3 {
		t.Errorf("negative slack must use the 0.99 factor, got %f", violation)
	}

	// All of the period left as slack, or headroom large enough that the
	// 1.05 factor overshoots it, leaves no path delay to target.
	for _, minSlack := range []netlist.Delay{10000, 9600} {
		if f, ok := timing.DampedFrequency(10000, minSlack); ok {
			t.Errorf("DampedFrequency(10000, %d) = %f, want no constraint", minSlack, f)
		}
	}
}

func TestUpdateBudgetDampsUnpinnedFrequency(t *testing.T) {
	d := newDesign(t)
	d.ff("ff0", 1000)
	d.ff("ff1", 0)
	d.net("n0", "ff0", "Q", sinkSpec{"ff1", "D", 2000})

	tests := []struct {
		name     string
		freq     float64
		minSlack netlist.Delay
		factor   float64
	}{
		{"violation", 500e6, -1000, 0.99}, // period 2000, path needs 3000
		{"headroom", 100e6, 7000, 1.05},   // period 10000
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := timing.DefaultConfig()
			cfg.TargetFreq = tt.freq
			period := cfg.Period()
			a := d.analyzer(cfg)

			report := a.UpdateBudget()
			if report.MinSlack != tt.minSlack {
				t.Fatalf("min slack = %d, want %d", report.MinSlack, tt.minSlack)
			}
			want := 1e12 / (float64(period) - tt.factor*float64(tt.minSlack))
			if math.Abs(cfg.TargetFreq-want) > 1e-3 {
				t.Errorf("target = %f, want %f", cfg.TargetFreq, want)
			}
			if report.TargetFreq != cfg.TargetFreq {
				t.Errorf("report target %f differs from config %f", report.TargetFreq, cfg.TargetFreq)
			}
		})
	}
}

func TestUpdateBudgetConvergesFromBelow(t *testing.T) {
	d := newDesign(t)
	d.ff("ff0", 1000)
	d.ff("ff1", 0)
	d.net("n0", "ff0", "Q", sinkSpec{"ff1", "D", 2000})

	cfg := timing.DefaultConfig()
	cfg.TargetFreq = 500e6
	a := d.analyzer(cfg)

	prev := a.UpdateBudget().MinSlack
	for i := 0; i < 5; i++ {
		got := a.UpdateBudget().MinSlack
		if got < prev {
			t.Fatalf("iteration %d: violation grew from %d to %d", i, prev, got)
		}
		prev = got
	}
	if prev < -20 {
		t.Errorf("target did not approach the critical path: min slack %d", prev)
	}
}

func TestComputeFmaxReportsCriticalPath(t *testing.T) {
	d := chain(t)
	a := d.analyzer(pinned(100))
	before := d.nl.Checksum()

	report := a.ComputeFmax(true, true)
	if report.MinSlack != 7900 {
		t.Fatalf("min slack = %d, want 7900", report.MinSlack)
	}
	if math.Abs(report.FmaxMHz-1e6/2100.0) > 1e-6 {
		t.Errorf("fmax = %f MHz", report.FmaxMHz)
	}

	want := []struct {
		driver, sink string
		comb, net    netlist.Delay
		total        netlist.Delay
	}{
		{"ff0.Q", "lut0.I0", 100, 200, 300},
		{"lut0.O", "lut1.I0", 300, 400, 1000},
		{"lut1.O", "ff1.D", 500, 600, 2100},
	}
	if len(report.Path) != len(want) {
		t.Fatalf("path has %d hops, want %d", len(report.Path), len(want))
	}
	for i, w := range want {
		hop := report.Path[i]
		if d.nl.RefName(hop.Driver) != w.driver || d.nl.RefName(hop.Sink) != w.sink {
			t.Errorf("hop %d: %s -> %s, want %s -> %s", i,
				d.nl.RefName(hop.Driver), d.nl.RefName(hop.Sink), w.driver, w.sink)
		}
		if hop.CombDelay != w.comb || hop.NetDelay != w.net || hop.Total != w.total {
			t.Errorf("hop %d: comb=%d net=%d total=%d, want %d/%d/%d", i,
				hop.CombDelay, hop.NetDelay, hop.Total, w.comb, w.net, w.total)
		}
	}

	if d.nl.Checksum() != before {
		t.Errorf("ComputeFmax mutated the netlist")
	}
	if a.Config.TargetFreq != 100e6 {
		t.Errorf("ComputeFmax changed the target frequency")
	}
}

func TestComputeFmaxWithoutPaths(t *testing.T) {
	d := newDesign(t)
	d.cell("lut0", "LUT1", []string{"I0"}, []string{"O"})

	report := d.analyzer(pinned(100)).ComputeFmax(true, true)
	if report.MinSlack != 10000 {
		t.Errorf("min slack without paths = %d, want one period", report.MinSlack)
	}
	if !report.Unbounded {
		t.Errorf("fmax without paths = %f MHz, want unbounded", report.FmaxMHz)
	}
	if report.Path != nil {
		t.Errorf("expected no path, got %v", report.Path)
	}
}

func TestUnpinnedFrequencyWithoutTimedPath(t *testing.T) {
	tests := []struct {
		name  string
		build func(d *design)
	}{
		{"zero delay path", func(d *design) {
			d.ff("ff0", 0)
			d.ff("ff1", 0)
			d.net("n0", "ff0", "Q", sinkSpec{"ff1", "D", 0})
		}},
		{"no register", func(d *design) {
			d.cell("lut0", "LUT1", []string{"I0"}, []string{"O"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDesign(t)
			tt.build(d)

			cfg := timing.DefaultConfig()
			cfg.TargetFreq = 100e6
			a := d.analyzer(cfg)

			if r := a.AssignBudget(); r.MinSlack != 10000 || r.TargetFreq != 100e6 {
				t.Errorf("assign: min slack %d, target %g", r.MinSlack, r.TargetFreq)
			}
			if r := a.UpdateBudget(); r.TargetFreq != 100e6 {
				t.Errorf("update: target %g", r.TargetFreq)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("config no longer valid: %v", err)
			}
			if cfg.Period() != 10000 {
				t.Errorf("period = %d, want 10000", cfg.Period())
			}

			report := a.ComputeFmax(true, true)
			if !report.Unbounded || report.FmaxMHz != 0 {
				t.Errorf("fmax = %f MHz, unbounded %v", report.FmaxMHz, report.Unbounded)
			}
		})
	}
}

func TestDeepChainUsesWorkStack(t *testing.T) {
	const depth = 20000

	d := newDesign(t)
	d.ff("ff0", 0)
	d.ff("ff1", 0)
	prev, prevPort := "ff0", "Q"
	for i := 0; i < depth; i++ {
		name := fmt.Sprintf("buf%d", i)
		id := d.cell(name, "BUF", []string{"I"}, []string{"O"})
		d.tab.SetCellDelay(id, "I", "O", 0)
		d.net(fmt.Sprintf("n%d", i), prev, prevPort, sinkSpec{name, "I", 1})
		prev, prevPort = name, "O"
	}
	d.net("last", prev, prevPort, sinkSpec{"ff1", "D", 1})

	cfg := timing.DefaultConfig()
	cfg.SetFrequencyMHz(1)
	res := d.analyzer(cfg).ComputeMinSlack(timing.SlackOptions{RecordBudgets: true, RecordCriticalPath: true})

	if want := cfg.Period() - (depth + 1); res.MinSlack != want {
		t.Errorf("min slack = %d, want %d", res.MinSlack, want)
	}
	if len(res.CriticalPath) != depth+1 {
		t.Errorf("critical path has %d hops, want %d", len(res.CriticalPath), depth+1)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := timing.DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	cfg.TargetFreq = 0
	if err := cfg.Validate(); err == nil {
		t.Errorf("zero frequency accepted")
	}
	cfg.TargetFreq = math.NaN()
	if err := cfg.Validate(); err == nil {
		t.Errorf("NaN frequency accepted")
	}
}
