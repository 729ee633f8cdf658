package desc

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// File is a parsed .pnr description.
type File struct {
	Decls []*Decl `@@*`
}

// Decl is one top-level statement.
type Decl struct {
	Design    *string    `  "design" @Ident ";"`
	Frequency *Frequency `| @@`
	Floor     *Floor     `| @@`
	Cell      *CellDecl  `| @@`
	Net       *NetDecl   `| @@`
	Site      *SiteDecl  `| @@`
}

// Frequency is the clock constraint in MHz.
// Example: frequency 100 pinned;
type Frequency struct {
	MHz    float64 `"frequency" @(Float | Int)`
	Pinned bool    `@"pinned"? ";"`
}

// Floor is a minimum budget for connections driven by a cell type.
// Example: floor CARRY4 250;
type Floor struct {
	CellType string `"floor" @Ident`
	Delay    int64  `@Int ";"`
}

// CellDecl declares a cell and its ports.
// Example: cell ff0 : FDRE { in C, D; out Q; clock Q C; delay C -> Q 100; }
type CellDecl struct {
	Pos lexer.Position

	Name  string      `"cell" @Ident ":"`
	Type  string      `@Ident "{"`
	Items []*CellItem `@@* "}"`
}

// CellItem is one statement inside a cell body.
type CellItem struct {
	In    []string   `  "in" @Ident ( "," @Ident )* ";"`
	Out   []string   `| "out" @Ident ( "," @Ident )* ";"`
	Inout []string   `| "inout" @Ident ( "," @Ident )* ";"`
	Clock *ClockDecl `| @@`
	Arc   *ArcDecl   `| @@`
	Param *ParamDecl `| @@`
}

// ClockDecl makes a port sequential, clocked by the named clock port.
type ClockDecl struct {
	Port   string `"clock" @Ident`
	Domain string `@Ident ";"`
}

// ArcDecl is a timing arc through the cell.
type ArcDecl struct {
	From  string `"delay" @Ident`
	To    string `"->" @Ident`
	Delay int64  `@Int ";"`
}

// ParamDecl sets a cell parameter.
type ParamDecl struct {
	Key   string `"param" @Ident "="`
	Value string `@String ";"`
}

// NetDecl connects an optional driver to its sinks.
// Example: net n1 : lut0.O -> lut1.I0 @ 400, ff1.D;
type NetDecl struct {
	Pos lexer.Position

	Name   string      `"net" @Ident ":"`
	Driver *PortPath   `@@? "->"`
	Sinks  []*SinkDecl `( @@ ( "," @@ )* )? ";"`
}

// PortPath names cell.port.
type PortPath struct {
	Pos lexer.Position

	Cell string `@Ident "."`
	Port string `@Ident`
}

// SinkDecl is one net user with its optional routed delay.
type SinkDecl struct {
	Port  *PortPath `@@`
	Delay *int64    `( "@" @Int )?`
}

// SiteDecl places LUT cells onto the BELs of one site.
// Example: site X0Y0 : SLICE_A { place lut0 at A6LUT; }
type SiteDecl struct {
	Pos lexer.Position

	Name    string       `"site" @Ident ":"`
	Element string       `@Ident "{"`
	Places  []*PlaceDecl `@@* "}"`
}

// PlaceDecl binds a cell to a BEL.
type PlaceDecl struct {
	Cell string `"place" @Ident "at"`
	Bel  string `@Ident ";"`
}
