package main

import (
	"fmt"
	"os"

	"github.com/chewxy/sexp"

	"github.com/OpenTraceLab/OpenTracePnR/pkg/device"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: lutlib-probe <library.sexp>")
		os.Exit(1)
	}

	filename := os.Args[1]
	file, err := os.Open(filename)
	if err != nil {
		fmt.Printf("Error opening file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	info, _ := file.Stat()
	fmt.Printf("File size: %d bytes\n", info.Size())

	// Generic s-expression reader first, so syntax problems are reported
	// independently of the library schema.
	fmt.Println("\nStep 1: generic s-expression parse...")
	sexps, err := sexp.Parse(file)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Parsed %d top-level s-expression(s)\n", len(sexps))
	for i, s := range sexps {
		if s.IsLeaf() {
			fmt.Printf("  #%d is an atom: %v\n", i, s)
			continue
		}
		fmt.Printf("  #%d is a list with %d leaves\n", i, s.LeafCount())
	}

	fmt.Println("\nStep 2: library schema...")
	lib, err := device.LoadFile(filename)
	if err != nil {
		fmt.Printf("  Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  Library %s: %d element(s)\n", lib.Name, len(lib.Elements))
	for _, e := range lib.Elements {
		fmt.Printf("  %-16s pins=%d width=%d tie=%s\n", e.Name, len(e.Pins), e.Width, e.Tie)
		for _, b := range e.Bels {
			fmt.Printf("    %-12s %v bits [%d, %d] pin window [%d, %d]\n",
				b.Name, b.Pins, b.LowBit, b.HighBit, b.MinPin, b.MaxPin)
		}
	}
}
