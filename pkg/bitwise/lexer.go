package bitwise

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// SchemaLexer defines the lexical structure of memory layout schemas.
// The syntax is C-like: type declarations end in semicolons, structs use
// braces and directives start with '#'.
var SchemaLexer = lexer.MustSimple([]lexer.SimpleRule{
	// Comments - C++ line comments and C block comments
	{Name: "Comment", Pattern: `//[^\n]*|/\*(?s:.*?)\*/`},

	// Whitespace
	{Name: "Whitespace", Pattern: `[\s\t\n\r]+`},

	// Literals
	{Name: "String", Pattern: `"[^"]*"`},
	{Name: "Number", Pattern: `0[xX][0-9a-fA-F]+|[0-9]+`},

	// Identifiers cover type names, field names and the struct/union keywords
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},

	// Punctuation
	{Name: "Punct", Pattern: `[#{}\[\];:,]`},
})
