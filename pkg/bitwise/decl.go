package bitwise

import "github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"

// Decl is one schema declaration. Text schemas and YAML schemas are both
// lowered to a []Decl before compilation, so alternative front ends only need
// to produce declarations.
type Decl interface {
	line() int
}

// SeekDecl moves the layout cursor. Absolute seeks may move backwards; the
// following fields then overlap earlier ones, which is legal.
type SeekDecl struct {
	Addr     int
	Relative bool
	Line     int
}

// PrintOffsetDecl logs the cursor position while compiling.
type PrintOffsetDecl struct {
	Label string
	Line  int
}

// OptionDecl changes codec options for the fields that follow it.
type OptionDecl struct {
	CharPad *byte
	BCDMode *codec.BCDMode
	Line    int
}

// DefDecl declares a primitive. Count is -1 for a scalar; otherwise it is
// the bracketed count, which for char and bcd types is the byte length of a
// single leaf.
type DefDecl struct {
	Name  string
	Type  string
	Count int
	Line  int
}

// BitDecl is one member of a bitfield.
type BitDecl struct {
	Name  string
	Width int
	Line  int
}

// BitfieldDecl packs several narrow values into one storage unit of Type,
// most significant bits first.
type BitfieldDecl struct {
	Type string
	Bits []BitDecl
	Line int
}

// StructDecl declares a struct or union instance. Count is -1 for a single
// instance, otherwise the number of array elements.
type StructDecl struct {
	Name   string
	Union  bool
	Fields []Decl
	Count  int
	Line   int
}

func (d *SeekDecl) line() int        { return d.Line }
func (d *PrintOffsetDecl) line() int { return d.Line }
func (d *OptionDecl) line() int      { return d.Line }
func (d *DefDecl) line() int         { return d.Line }
func (d *BitfieldDecl) line() int    { return d.Line }
func (d *StructDecl) line() int      { return d.Line }

// Seek returns a declaration that moves the cursor to an absolute address.
func Seek(addr int) Decl {
	return &SeekDecl{Addr: addr}
}

// Skip returns a declaration that advances the cursor by n bytes.
func Skip(n int) Decl {
	return &SeekDecl{Addr: n, Relative: true}
}

// PrintOffset returns a declaration that logs the cursor at debug level.
func PrintOffset(label string) Decl {
	return &PrintOffsetDecl{Label: label}
}

// CharPad sets the pad byte of subsequent char fields.
func CharPad(b byte) Decl {
	return &OptionDecl{CharPad: &b}
}

// BCD sets the malformed-input policy of subsequent bcd fields.
func BCD(mode codec.BCDMode) Decl {
	return &OptionDecl{BCDMode: &mode}
}

// Def declares a scalar primitive field.
func Def(name, typ string) Decl {
	return &DefDecl{Name: name, Type: typ, Count: -1}
}

// Bitfield declares narrow fields sharing one storage unit.
func Bitfield(typ string, bits ...BitDecl) Decl {
	return &BitfieldDecl{Type: typ, Bits: bits}
}

// Bits is shorthand for a BitDecl.
func Bits(name string, width int) BitDecl {
	return BitDecl{Name: name, Width: width}
}

// Struct declares a single struct instance.
func Struct(name string, fields ...Decl) Decl {
	return &StructDecl{Name: name, Fields: fields, Count: -1}
}

// Union declares members that share one start address.
func Union(name string, fields ...Decl) Decl {
	return &StructDecl{Name: name, Union: true, Fields: fields, Count: -1}
}

// Array repeats elem count times under name. elem must be a DefDecl or a
// StructDecl; its own name is ignored. A nil elem yields an empty element,
// which CompileDecls rejects.
func Array(name string, elem Decl, count int) Decl {
	if elem == nil {
		return &StructDecl{Name: name, Count: count}
	}
	switch e := elem.(type) {
	case *DefDecl:
		c := *e
		c.Name, c.Count = name, count
		return &c
	case *StructDecl:
		c := *e
		c.Name, c.Count = name, count
		return &c
	}
	// Other declarations become the only member of an anonymous element.
	return &StructDecl{Name: name, Count: count, Fields: []Decl{elem}, Line: elem.line()}
}
