package desc

import (
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
	"github.com/pkg/errors"
)

// Parser parses .pnr design descriptions.
type Parser struct {
	parser *participle.Parser[File]
}

// NewParser builds the grammar.
func NewParser() (*Parser, error) {
	parser, err := participle.Build[File](
		participle.Lexer(DescLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.Unquote("String"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, errors.Wrap(err, "desc: build parser")
	}
	return &Parser{parser: parser}, nil
}

// Parse reads a description from r. name is used in error positions.
func (p *Parser) Parse(name string, r io.Reader) (*File, error) {
	f, err := p.parser.Parse(name, r)
	if err != nil {
		return nil, errors.Wrap(err, "desc: parse")
	}
	return f, nil
}

// ParseFile parses the description at path.
func (p *Parser) ParseFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "desc: open")
	}
	defer file.Close()

	return p.Parse(path, file)
}
