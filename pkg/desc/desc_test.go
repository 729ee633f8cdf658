package desc

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/timing"
)

const chainDesign = `
# register -> lut -> lut -> register
design chain;
frequency 100 pinned;
floor CARRY4 250;

cell ff0 : FDRE { in C, D; out Q; clock Q C; clock D C; delay C -> Q 100; }
cell ff1 : FDRE { in C, D; out Q; clock Q C; clock D C; }
cell ff2 : FDRE { in C, D; out Q; clock Q C; clock D C; }
cell lut0 : LUT1 { in I0; out O; delay I0 -> O 300; param INIT = "2'h1"; }
cell lut1 : LUT1 { in I0; out O; delay I0 -> O 500; param INIT = "2'h2"; }

net n0 : ff0.Q -> lut0.I0 @ 200;
net n1 : lut0.O -> lut1.I0 @ 400, ff2.D @ 50;
net n2 : lut1.O -> ff1.D @ 600;
net clk : -> ff0.C, ff1.C, ff2.C;

site X0Y0 : SLICE { place lut0 at L4; place lut1 at L3; }
`

func load(t *testing.T, input string) *Design {
	t.Helper()
	d, err := Load("test.pnr", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return d
}

func TestLoadBuildsNetlistAndDelays(t *testing.T) {
	d := load(t, chainDesign)
	nl := d.Netlist

	if nl.Name != "chain" || len(nl.Cells) != 5 || len(nl.Nets) != 4 {
		t.Fatalf("netlist %s: %d cells, %d nets", nl.Name, len(nl.Cells), len(nl.Nets))
	}
	if d.FrequencyMHz != 100 || !d.Pinned {
		t.Errorf("frequency = %g pinned=%v", d.FrequencyMHz, d.Pinned)
	}

	n1, _ := nl.NetByName("n1")
	if len(n1.Users) != 2 || nl.RefName(n1.Users[1].Ref) != "ff2.D" {
		t.Errorf("n1 users = %+v", n1.Users)
	}
	if got := d.Delays.RouteDelay(n1, 1); got != 50 {
		t.Errorf("RouteDelay(n1, 1) = %d, want 50", got)
	}

	clk, _ := nl.NetByName("clk")
	if clk.HasDriver || len(clk.Users) != 3 {
		t.Errorf("clk: driver=%v users=%d", clk.HasDriver, len(clk.Users))
	}

	ff0, _ := nl.CellByName("ff0")
	if got := d.Delays.PortClock(ff0, "Q"); got != "C" {
		t.Errorf("PortClock(ff0.Q) = %q, want C", got)
	}
	if got, ok := d.Delays.CellDelay(ff0, "C", "Q"); !ok || got != 100 {
		t.Errorf("CellDelay(ff0, C, Q) = %d, %v", got, ok)
	}

	lut0, _ := nl.CellByName("lut0")
	if lut0.Params["INIT"] != "2'h1" {
		t.Errorf("lut0 INIT = %q", lut0.Params["INIT"])
	}

	if len(d.Sites) != 1 || d.Sites[0].Element != "SLICE" || len(d.Sites[0].Placements) != 2 {
		t.Fatalf("sites = %+v", d.Sites)
	}
	if p := d.Sites[0].Placements[1]; p.Cell != "lut1" || p.Bel != "L3" {
		t.Errorf("placement = %+v", p)
	}
}

func TestTimingConfig(t *testing.T) {
	d := load(t, chainDesign)
	cfg := d.TimingConfig()
	if cfg.TargetFreq != 100e6 || !cfg.UserFreq {
		t.Errorf("config = %+v", cfg)
	}

	d = load(t, "design empty;")
	cfg = d.TimingConfig()
	if *cfg != *timing.DefaultConfig() {
		t.Errorf("config without frequency = %+v, want defaults", cfg)
	}
}

func TestLoadedDesignDrivesAnalyzer(t *testing.T) {
	d := load(t, chainDesign)
	a := timing.NewAnalyzer(d.Netlist, d.Delays, d.TimingConfig())
	a.Logger = log.New(io.Discard, "", 0)

	report := a.AssignBudget()
	if report.MinSlack != 7900 {
		t.Errorf("MinSlack = %d, want 7900", report.MinSlack)
	}
	n2, _ := d.Netlist.NetByName("n2")
	if got := n2.Users[0].Budget; got != 600+7900/3 {
		t.Errorf("ff1.D budget = %d, want %d", got, 600+7900/3)
	}
}

func TestFloorApplies(t *testing.T) {
	d := load(t, `
cell c : CARRY4 { out CO; }
cell r : FDRE { in D; }
net n : c.CO -> r.D;
floor CARRY4 250;
`)
	n, _ := d.Netlist.NetByName("n")
	if got := d.Delays.BudgetOverride(n, n.Driver, 10); got != 250 {
		t.Errorf("BudgetOverride = %d, want 250", got)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"syntax", "cell a : LUT1 { in I0 }", "parse"},
		{"unknown cell", "net n : x.O -> y.I;", "unknown cell x"},
		{"unknown port", "cell a : T { in I; } cell b : T { in I; } net n : a.O -> b.I;", "no port a.O"},
		{"two drivers", "cell a : T { out O; } cell b : T { out O; } net n : a.O -> b.O;", "output"},
		{"reused port", "cell a : T { out O; } cell b : T { in I; } net n : a.O -> b.I; net m : -> b.I;", "already connected"},
		{"duplicate cell", "cell a : T { } cell a : T { }", "duplicate cell"},
		{"duplicate param", `cell a : T { param X = "1"; param X = "2"; }`, "twice"},
		{"arc on missing port", "cell a : T { in I; delay I -> O 5; }", "no port O"},
		{"clock on missing port", "cell a : T { out Q; clock Q C; }", "no port C"},
		{"two frequencies", "frequency 10; frequency 20;", "more than one frequency"},
		{"zero frequency", "frequency 0;", "positive"},
		{"two designs", "design a; design b;", "more than one design"},
		{"site with unknown cell", "site s : E { place x at L; }", "unknown cell x"},
		{"duplicate site", "cell a : T { } site s : E { } site s : E { }", "duplicate site"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("test.pnr", strings.NewReader(tt.input))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.pnr")
	if err := os.WriteFile(path, []byte(chainDesign), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if d.Netlist.Checksum() != load(t, chainDesign).Netlist.Checksum() {
		t.Error("file and string loads differ")
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.pnr")); err == nil {
		t.Error("LoadFile on a missing file succeeded")
	}
}

func TestPortRefsResolveToIDs(t *testing.T) {
	d := load(t, chainDesign)
	n0, _ := d.Netlist.NetByName("n0")
	ff0, _ := d.Netlist.CellByName("ff0")
	if n0.Driver != (netlist.PortRef{Cell: ff0.ID, Port: "Q"}) {
		t.Errorf("n0 driver = %+v", n0.Driver)
	}
}
