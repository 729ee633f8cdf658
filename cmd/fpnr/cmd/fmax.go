package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showPath bool

var fmaxCmd = &cobra.Command{
	Use:   "fmax <design.pnr>",
	Short: "Estimate the maximum clock frequency",
	Long: `Compute the minimum slack at the target frequency and the frequency it
implies. The netlist and its budgets are not modified.

Examples:
  fpnr fmax design.pnr
  fpnr fmax design.pnr --freq 200 --path`,
	Args: cobra.ExactArgs(1),
	RunE: runFmax,
}

func init() {
	rootCmd.AddCommand(fmaxCmd)
	addFrequencyFlags(fmaxCmd)

	fmaxCmd.Flags().BoolVarP(&showPath, "path", "p", false, "show the critical path")
}

func runFmax(cmd *cobra.Command, args []string) error {
	d, err := loadDesign(args[0])
	if err != nil {
		return err
	}
	a, err := newAnalyzer(cmd, d)
	if err != nil {
		return err
	}

	report := a.ComputeFmax(verbose, showPath)
	fmt.Printf("Design: %s\n", d.Netlist.Name)
	fmt.Printf("Target: %.2f MHz\n", a.Config.TargetFreq/1e6)
	fmt.Printf("Min slack: %d ps\n", report.MinSlack)
	if report.Unbounded {
		fmt.Printf("Estimated Fmax: unbounded (no timed path)\n")
	} else {
		fmt.Printf("Estimated Fmax: %.2f MHz\n", report.FmaxMHz)
	}

	if showPath && len(report.Path) > 0 {
		fmt.Printf("\nCritical path:\n")
		fmt.Printf("  %6s %6s %8s  %s\n", "Cell", "Net", "Total", "Connection")
		for _, hop := range report.Path {
			fmt.Printf("  %6d %6d %8d  %s -> %s\n", hop.CombDelay, hop.NetDelay, hop.Total,
				d.Netlist.RefName(hop.Driver), d.Netlist.RefName(hop.Sink))
		}
	}
	return nil
}
