package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/desc"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/device"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/lut"
	"github.com/OpenTraceLab/OpenTracePnR/pkg/pack"
)

var (
	libPath  string
	siteName string
)

var packCmd = &cobra.Command{
	Use:   "pack <design.pnr>",
	Short: "Pack placed LUT cells into their sites",
	Long: `Solve the input pin assignment of every site in the design against a
device library and commit the sites that fit. Sites that do not fit are
reported and left unpacked.

Examples:
  fpnr pack design.pnr --lib xc7.sexp
  fpnr pack design.pnr --lib xc7.sexp --site X0Y0`,
	Args: cobra.ExactArgs(1),
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)

	packCmd.Flags().StringVarP(&libPath, "lib", "l", "", "device library (s-expression)")
	packCmd.Flags().StringVarP(&siteName, "site", "s", "", "pack only this site")
	packCmd.MarkFlagRequired("lib")
}

func runPack(cmd *cobra.Command, args []string) error {
	d, err := loadDesign(args[0])
	if err != nil {
		return err
	}
	lib, err := device.LoadFile(libPath)
	if err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}

	var sites []desc.Site
	for _, s := range d.Sites {
		if siteName == "" || s.Name == siteName {
			sites = append(sites, s)
		}
	}
	if len(sites) == 0 {
		if siteName != "" {
			return fmt.Errorf("design has no site %s", siteName)
		}
		fmt.Println("Design has no sites")
		return nil
	}

	packed, failed := 0, 0
	for _, s := range sites {
		elem := lib.Element(s.Element)
		if elem == nil {
			return fmt.Errorf("site %s: library %s has no element %s", s.Name, lib.Name, s.Element)
		}

		res, ok, err := pack.Site(d.Netlist, elem, s.Placements)
		if err != nil {
			return fmt.Errorf("site %s: %w", s.Name, err)
		}
		if !ok {
			fmt.Printf("Site %s (%s): does not fit\n", s.Name, s.Element)
			failed++
			continue
		}
		if err := pack.Commit(d.Netlist, res); err != nil {
			return fmt.Errorf("site %s: %w", s.Name, err)
		}
		packed++

		fmt.Printf("Site %s (%s): packed %d cell(s)\n", s.Name, s.Element, len(res.Cells))
		for _, mc := range res.Cells {
			fmt.Printf("  %s @ %s\n", mc.Cell, mc.Bel)
			printPins(mc)
		}
		if len(res.BlockedBels) > 0 {
			fmt.Printf("  Blocked BELs: %s\n", strings.Join(res.BlockedBels, ", "))
		}
		if verbose {
			mask, err := pack.WireMask(d.Netlist, elem, s.Placements)
			if err != nil {
				return fmt.Errorf("site %s: %w", s.Name, err)
			}
			fmt.Printf("  Wire mask: %s\n", maskPins(elem, mask.Test))
		}
	}

	fmt.Printf("\n%d site(s) packed, %d rejected\n", packed, failed)
	return nil
}

func printPins(mc lut.MappedCell) {
	logical := make([]string, 0, len(mc.BelPins))
	for pin := range mc.BelPins {
		logical = append(logical, pin)
	}
	sort.Strings(logical)
	for _, pin := range logical {
		fmt.Printf("    %-6s -> %s\n", pin, mc.BelPins[pin])
	}

	physical := make([]string, 0, len(mc.PinConnections))
	for pin := range mc.PinConnections {
		physical = append(physical, pin)
	}
	sort.Strings(physical)
	var parts []string
	for _, pin := range physical {
		parts = append(parts, pin+"="+mc.PinConnections[pin].String())
	}
	fmt.Printf("    pins: %s\n", strings.Join(parts, " "))
}

func maskPins(elem *lut.Element, test func(uint) bool) string {
	var pins []string
	for i, pin := range elem.Pins {
		if test(uint(i)) {
			pins = append(pins, pin)
		}
	}
	if len(pins) == 0 {
		return "none"
	}
	return strings.Join(pins, ", ")
}
