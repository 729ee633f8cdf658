// Package lut assigns the logical inputs of LUT cells to the physical input
// pins of a fracturable LUT site.
//
// A site (Element) holds several LUTs (Bels) that share input wiring and
// read overlapping windows of one output address space. Cells packed into
// the same site must agree on which net drives each shared pin, and their
// truth tables, rotated onto the chosen pins, must not disagree on any
// entry of the shared equation.
//
// The solver is greedy. Each distinct net gets the window of shared pin
// indices valid for every LUT it feeds; nets are sorted by the window's
// upper bound and assigned consecutive indices. Unused pins are tied high,
// so addresses needing them low are never read and are free for other
// cells.
//
// When a site is only partly occupied, RemapLuts also reports which idle
// pins can still be routed straight through an empty LUT (a "wire") and
// which empty LUTs cannot host any such wire.
package lut
