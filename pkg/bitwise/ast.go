package bitwise

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// SchemaFile represents a complete schema text: a sequence of items laid out
// from address zero.
type SchemaFile struct {
	Items []*Item `@@*`
}

// Item is one top-level or block-level statement.
type Item struct {
	Directive *Directive  `  @@`
	Struct    *StructItem `| @@`
	Union     *UnionItem  `| @@`
	Def       *Definition `| @@`
}

// Directive represents a '#' statement.
// Example: #seekto 0x0100;
type Directive struct {
	Pos    lexer.Position
	Name   string  `"#" @Ident`
	Number *string `( @Number`
	String *string `| @String`
	Word   *string `| @Ident )? ";"`
}

// Definition represents a primitive declaration.
// Examples: u8 foo; ul16 bar[4]; u8 a:4, b:4;
type Definition struct {
	Pos   lexer.Position
	Type  string    `@Ident`
	Bits  []*BitDef `( @@ ( "," @@ )*`
	Name  string    `| @Ident`
	Count *string   `  ( "[" @Number "]" )? ) ";"`
}

// BitDef is one member of a bitfield list.
type BitDef struct {
	Pos   lexer.Position
	Name  string `@Ident ":"`
	Width string `@Number`
}

// StructItem covers the three struct forms:
//
//	struct name { ... };        (type definition)
//	struct { ... } var[count];  (anonymous declaration)
//	struct name var[count];     (declaration of a defined type)
type StructItem struct {
	Pos      lexer.Position
	TypeName string `"struct" @Ident?`
	Body     *Block `@@?`
	Var      *Var   `@@? ";"`
}

// UnionItem declares members that all start at the same address.
// Example: union { u16 word; struct { u8 hi; u8 lo; } bytes; } w;
type UnionItem struct {
	Pos  lexer.Position
	Body *Block `"union" @@`
	Var  *Var   `@@ ";"`
}

// Block is a brace-delimited item list.
type Block struct {
	Items []*Item `"{" @@* "}"`
}

// Var names a struct or union instance, optionally as an array.
type Var struct {
	Name  string  `@Ident`
	Count *string `( "[" @Number "]" )?`
}
