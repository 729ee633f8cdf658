package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/desc"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/timing"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fpnr",
	Short: "FPGA place-and-route timing and LUT packing tools",
	Long: `fpnr runs the timing budget passes and the LUT pin-rotation packer
over a .pnr design description.

Examples:
  fpnr budget design.pnr --iterations 5     # Assign and refine budgets
  fpnr fmax design.pnr --path               # Estimate Fmax, show critical path
  fpnr pack design.pnr --lib xc7.sexp       # Pack every site in the design`,
	Version:      "0.3.0",
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// frequency flags shared by the timing commands
var (
	freqMHz float64
	pinned  bool
)

func addFrequencyFlags(c *cobra.Command) {
	c.Flags().Float64VarP(&freqMHz, "freq", "f", 0, "target frequency in MHz (overrides the design)")
	c.Flags().BoolVar(&pinned, "pinned", false, "pin the target frequency")
}

func loadDesign(path string) (*desc.Design, error) {
	if verbose {
		fmt.Printf("Loading design: %s\n", path)
	}
	d, err := desc.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load design: %w", err)
	}
	return d, nil
}

func timingConfig(d *desc.Design) (*timing.Config, error) {
	cfg := d.TimingConfig()
	if freqMHz != 0 {
		cfg.TargetFreq = freqMHz * 1e6
	}
	if pinned {
		cfg.UserFreq = true
	}
	cfg.Verbose = verbose
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newAnalyzer(c *cobra.Command, d *desc.Design) (*timing.Analyzer, error) {
	cfg, err := timingConfig(d)
	if err != nil {
		return nil, err
	}
	a := timing.NewAnalyzer(d.Netlist, d.Delays, cfg)
	a.Logger = log.New(c.ErrOrStderr(), "", 0)
	return a, nil
}
