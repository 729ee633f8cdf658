package desc

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// DescLexer tokenizes .pnr design descriptions. Keywords are matched as
// literal identifiers by the grammar.
var DescLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments run from # to end of line
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[\s]+`},

	{Name: "String", Pattern: `"(?:[^"\\]|\\.)*"`},
	{Name: "Float", Pattern: `[0-9]+\.[0-9]+`},
	{Name: "Arrow", Pattern: `->`},
	{Name: "Int", Pattern: `-?[0-9]+`},

	// Netlist names may carry bus indices and yosys-style '$'
	{Name: "Ident", Pattern: `[a-zA-Z_$\\][a-zA-Z0-9_$\[\]/]*`},

	{Name: "Punct", Pattern: `[;:{}.,@=]`},
})
