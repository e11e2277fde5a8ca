package bitwise

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

// Parser represents a schema text parser
type Parser struct {
	parser *participle.Parser[SchemaFile]
}

// NewParser creates a new schema parser instance
func NewParser() (*Parser, error) {
	parser, err := participle.Build[SchemaFile](
		participle.Lexer(SchemaLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.UseLookahead(2),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build parser: %w", err)
	}

	return &Parser{parser: parser}, nil
}

// Parse parses a schema from a reader
func (p *Parser) Parse(r io.Reader) (*SchemaFile, error) {
	file, err := p.parser.Parse("", r)
	if err != nil {
		return nil, syntaxError(err)
	}
	return file, nil
}

// ParseString parses a schema from a string
func (p *Parser) ParseString(input string) (*SchemaFile, error) {
	file, err := p.parser.ParseString("", input)
	if err != nil {
		return nil, syntaxError(err)
	}
	return file, nil
}

// ParseFile parses a schema from a file path
func (p *Parser) ParseFile(filename string) (*SchemaFile, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// syntaxError converts a participle error into a *SchemaError carrying the
// source line.
func syntaxError(err error) error {
	line := 0
	if perr, ok := err.(participle.Error); ok {
		line = perr.Position().Line
		return &SchemaError{Line: line, Msg: "syntax error: " + perr.Message()}
	}
	return &SchemaError{Line: line, Msg: "syntax error: " + err.Error()}
}
