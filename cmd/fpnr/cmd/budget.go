package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/timing"
)

var (
	iterations int
	jsonOut    string
)

var budgetCmd = &cobra.Command{
	Use:   "budget <design.pnr>",
	Short: "Assign per-connection timing budgets",
	Long: `Run the initial budget assignment and optionally a number of damped
update passes, then report minimum slack, target frequency and any
connection left with a negative budget.

Examples:
  fpnr budget design.pnr
  fpnr budget design.pnr --freq 150 --pinned
  fpnr budget design.pnr --iterations 10 --json budgets.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBudget,
}

func init() {
	rootCmd.AddCommand(budgetCmd)
	addFrequencyFlags(budgetCmd)

	budgetCmd.Flags().IntVarP(&iterations, "iterations", "n", 0,
		"number of update passes after the initial assignment")
	budgetCmd.Flags().StringVar(&jsonOut, "json", "",
		"write the annotated netlist as JSON to this file")
}

func runBudget(cmd *cobra.Command, args []string) error {
	if iterations < 0 {
		return fmt.Errorf("--iterations must not be negative")
	}
	d, err := loadDesign(args[0])
	if err != nil {
		return err
	}
	a, err := newAnalyzer(cmd, d)
	if err != nil {
		return err
	}

	report := a.AssignBudget()
	fmt.Printf("Design: %s\n", d.Netlist.Name)
	fmt.Printf("%-8s %10s %12s %10s\n", "Pass", "MinSlack", "Target MHz", "Checksum")
	printPass("assign", report)
	for i := 0; i < iterations; i++ {
		report = a.UpdateBudget()
		printPass(fmt.Sprintf("update%d", i+1), report)
	}

	if len(report.Violations) > 0 {
		fmt.Printf("\n%d connection(s) with negative budget:\n", len(report.Violations))
		for _, v := range report.Violations {
			n := d.Netlist.Nets[v.Net]
			fmt.Printf("  %-24s -> %-24s %8d ps\n", n.Name, d.Netlist.RefName(n.Users[v.User].Ref), v.Budget)
		}
	}

	if jsonOut != "" {
		data, err := d.Netlist.ExportJSON()
		if err != nil {
			return fmt.Errorf("failed to export netlist: %w", err)
		}
		if err := os.WriteFile(jsonOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", jsonOut, err)
		}
		fmt.Printf("\nWrote %s\n", jsonOut)
	}
	return nil
}

func printPass(name string, r timing.BudgetReport) {
	fmt.Printf("%-8s %10d %12.2f 0x%08x\n", name, r.MinSlack, r.TargetFreq/1e6, r.Checksum)
}
