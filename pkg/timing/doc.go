// Package timing propagates slack through a netlist and turns it into
// per-connection delay budgets for the placer and router.
//
// # Slack propagation
//
// Every output port with a clock domain starts a walk with one clock period
// of slack, minus its clock-to-output delay. Each net divides the remaining
// slack by the number of connections seen so far; each combinational cell
// subtracts its arc delay and continues into its outputs; a clocked input
// ends the path. The smallest endpoint slack is the design's minimum slack,
// and each sink port keeps the smallest share it received on any path.
//
// There is no memoisation across reconvergent paths, so the walk is
// exponential in the worst case. Real designs keep logic depth small.
//
// # Budget passes
//
//	a := timing.NewAnalyzer(nl, oracle, cfg)
//	a.AssignBudget()          // once, before placement
//	for i := 0; i < n; i++ {
//		// ... placement iteration ...
//		a.UpdateBudget()  // damped target frequency update
//	}
//	a.ComputeFmax(true, true) // read-only report
package timing
