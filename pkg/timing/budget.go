package timing

import (
	"github.com/OpenTraceLab/OpenTracePnR/pkg/netlist"
)

// Damping factors applied by UpdateBudget when the frequency is not pinned.
const (
	ViolationDamping = 0.99 // min slack < 0: close 99% of the violation
	HeadroomDamping  = 1.05 // min slack >= 0: consume 105% of the headroom
)

// Violation is a connection left with a negative budget while the user
// pinned the frequency.
type Violation struct {
	Net    netlist.NetID
	User   int
	Budget netlist.Delay
}

// BudgetReport summarises one budget pass.
type BudgetReport struct {
	MinSlack   netlist.Delay
	TargetFreq float64 // Hz, after any adjustment made by the pass
	Checksum   uint32
	Violations []Violation
}

// AssignBudget resets every sink budget to one period, propagates slack and
// writes the derived per-connection budgets. When the frequency is not
// pinned the target is moved onto the critical path's achievable rate.
func (a *Analyzer) AssignBudget() BudgetReport {
	a.Logger.Printf("info: annotating ports with timing budgets")

	period := a.Config.Period()
	for _, n := range a.Netlist.Nets {
		for i := range n.Users {
			n.Users[i].Budget = period
		}
	}

	res := a.ComputeMinSlack(SlackOptions{RecordBudgets: true})

	if !a.Config.UserFreq {
		if freq, ok := frequencyFor(float64(period - res.MinSlack)); ok {
			a.Config.TargetFreq = freq
			if a.Config.Verbose {
				a.Logger.Printf("info: minimum slack for this assign = %d, target Fmax for next update = %.2f MHz",
					res.MinSlack, a.Config.TargetFreq/1e6)
			}
		} else {
			a.unconstrained()
		}
	}

	report := BudgetReport{MinSlack: res.MinSlack}
	a.applyBudgets(res.Budgets, &report, true)
	report.TargetFreq = a.Config.TargetFreq
	report.Checksum = a.Netlist.Checksum()

	a.Logger.Printf("info: checksum: 0x%08x", report.Checksum)
	return report
}

// UpdateBudget repeats the budget computation during iterative
// optimisation. An unpinned target frequency is damped asymmetrically so
// successive iterations tighten it without oscillating.
func (a *Analyzer) UpdateBudget() BudgetReport {
	period := a.Config.Period()
	res := a.ComputeMinSlack(SlackOptions{RecordBudgets: true})

	if !a.Config.UserFreq {
		if freq, ok := DampedFrequency(period, res.MinSlack); ok {
			a.Config.TargetFreq = freq
			if a.Config.Verbose {
				a.Logger.Printf("info: minimum slack for this update = %d, target Fmax for next update = %.2f MHz",
					res.MinSlack, a.Config.TargetFreq/1e6)
			}
		} else if a.Config.Verbose {
			a.unconstrained()
		}
	}

	report := BudgetReport{MinSlack: res.MinSlack}
	a.applyBudgets(res.Budgets, &report, false)
	report.TargetFreq = a.Config.TargetFreq
	report.Checksum = a.Netlist.Checksum()
	return report
}

// DampedFrequency returns the next target frequency in Hz for a pass that
// ran at period and found minSlack. It reports false when the damped path
// delay is below one picosecond, in which case the target should be kept.
func DampedFrequency(period, minSlack netlist.Delay) (float64, bool) {
	factor := HeadroomDamping
	if minSlack < 0 {
		factor = ViolationDamping
	}
	return frequencyFor(float64(period) - factor*float64(minSlack))
}

// frequencyFor converts a path delay in picoseconds into Hz. Delays below
// one picosecond mean no timed path constrains the clock.
func frequencyFor(delay float64) (float64, bool) {
	if delay < 1 {
		return 0, false
	}
	return 1e12 / delay, true
}

func (a *Analyzer) unconstrained() {
	a.Logger.Printf("warning: no timed path constrains the clock, keeping target %.2f MHz", a.Config.TargetFreq/1e6)
}

// applyBudgets writes routed delay plus recorded slack share into every sink
// that was reached. Unreached sinks keep their current budget.
func (a *Analyzer) applyBudgets(budgets map[netlist.PortRef]netlist.Delay, report *BudgetReport, alwaysWarn bool) {
	for _, n := range a.Netlist.Nets {
		for i := range n.Users {
			user := &n.Users[i]
			share, ok := budgets[user.Ref]
			if !ok {
				continue
			}
			budget := a.Oracle.RouteDelay(n, i) + share
			user.Budget = a.Oracle.BudgetOverride(n, n.Driver, budget)

			negative := a.Config.UserFreq && user.Budget < 0
			if negative {
				report.Violations = append(report.Violations, Violation{Net: n.ID, User: i, Budget: user.Budget})
			}
			if negative && (alwaysWarn || a.Config.Verbose) {
				a.Logger.Printf("warning: port %s, connected to net '%s', has negative timing budget of %.3fns",
					a.Netlist.RefName(user.Ref), n.Name, ns(user.Budget))
			} else if a.Config.Verbose {
				a.Logger.Printf("info: port %s, connected to net '%s', has timing budget of %.3fns",
					a.Netlist.RefName(user.Ref), n.Name, ns(user.Budget))
			}
		}
	}
}

func ns(d netlist.Delay) float64 { return float64(d) / 1000 }
