package main

import "github.com/OpenTraceLab/OpenTracePnR/cmd/fpnr/cmd"

func main() {
	cmd.Execute()
}
