package bitwise

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

// Kind classifies a compiled field.
type Kind uint8

const (
	KindInt Kind = iota
	KindBit
	KindBCD
	KindChar
	KindStruct
	KindUnion
	KindArray
)

var kindNames = map[Kind]string{
	KindInt:    "int",
	KindBit:    "bit",
	KindBCD:    "bcd",
	KindChar:   "char",
	KindStruct: "struct",
	KindUnion:  "union",
	KindArray:  "array",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Field is one node of a compiled layout. All positions are absolute and
// resolved at compile time; a Field is never mutated after compilation.
type Field struct {
	Name string
	Kind Kind
	Type string // schema type keyword, e.g. "ul16", "bbcd", "struct"
	Line int

	// Offset is the absolute address of the first storage byte and Size the
	// number of storage bytes. Leaves narrower than their storage unit
	// (bitfields, bits) additionally use Shift and Width.
	Offset int
	Size   int
	Shift  int // bits above the least significant bit of the storage unit
	Width  int // value width in bits
	Order  codec.Order
	Signed bool

	Pad     byte          // char pad byte
	BCDMode codec.BCDMode // malformed BCD handling

	// Arrays: Elem is element zero. Byte-aligned elements repeat every
	// Stride bytes; bit arrays (Elem.Kind == KindBit) pack eight elements
	// per byte in LSBFirst or MSB-first order.
	Count    int
	Elem     *Field
	Stride   int
	LSBFirst bool

	// Structs and unions
	Fields []*Field
	index  map[string]int
}

// Lookup returns the named member of a struct or union.
func (f *Field) Lookup(name string) (*Field, bool) {
	if f.index == nil {
		return nil, false
	}
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.Fields[i], true
}

// Names returns member names in declaration order.
func (f *Field) Names() []string {
	names := make([]string, len(f.Fields))
	for i, m := range f.Fields {
		names[i] = m.Name
	}
	return names
}

// End returns the first address after the field.
func (f *Field) End() int {
	return f.Offset + f.Size
}

// MSB returns the address of the byte holding the value's most significant
// bit and that bit's MSB-first position (0-7) within the byte. Byte-aligned
// values report their own offset and bit 0.
func (f *Field) MSB() (addr, bit int) {
	if f.Width == 0 || f.Width == f.Size*8 {
		return f.Offset, 0
	}
	k := f.Shift + f.Width - 1
	if f.Order == codec.LittleEndian {
		return f.Offset + k/8, 7 - k%8
	}
	return f.Offset + f.Size - 1 - k/8, 7 - k%8
}

// BitOffset returns the bit half of MSB.
func (f *Field) BitOffset() int {
	_, bit := f.MSB()
	return bit
}

// IsLeaf reports whether the field holds a value rather than children.
func (f *Field) IsLeaf() bool {
	return f.Kind != KindStruct && f.Kind != KindUnion && f.Kind != KindArray
}

// BitElement returns element i of a bit array as a standalone one-bit field.
func (f *Field) BitElement(i int) *Field {
	e := *f.Elem
	e.Offset = f.Offset + i/8
	if f.LSBFirst {
		e.Shift = i % 8
	} else {
		e.Shift = 7 - i%8
	}
	return &e
}

func (f *Field) String() string {
	switch f.Kind {
	case KindArray:
		return fmt.Sprintf("%s %s[%d] @0x%04X (%d bytes)", f.Elem.Type, f.Name, f.Count, f.Offset, f.Size)
	case KindStruct, KindUnion:
		return fmt.Sprintf("%s %s @0x%04X (%d bytes)", f.Kind, f.Name, f.Offset, f.Size)
	}
	if f.Width != f.Size*8 {
		addr, bit := f.MSB()
		return fmt.Sprintf("%s %s:%d @0x%04X.%d", f.Type, f.Name, f.Width, addr, bit)
	}
	return fmt.Sprintf("%s %s @0x%04X (%d bytes)", f.Type, f.Name, f.Offset, f.Size)
}

// Layout is the compiled, immutable description of one schema. It is safe to
// share between goroutines and between any number of bound buffers.
type Layout struct {
	root *Field
	size int
}

// Root returns the top-level struct.
func (l *Layout) Root() *Field {
	return l.root
}

// Size returns the number of buffer bytes the layout requires: the highest
// end address of any field, including regions reached by seeks.
func (l *Layout) Size() int {
	return l.size
}

// Walk visits every field depth first. Array elements are visited once, as
// element zero. Returning false from fn skips the field's children.
func (l *Layout) Walk(fn func(path string, f *Field) bool) {
	for _, m := range l.root.Fields {
		walk(m.Name, m, fn)
	}
}

func walk(path string, f *Field, fn func(string, *Field) bool) {
	if !fn(path, f) {
		return
	}
	switch f.Kind {
	case KindStruct, KindUnion:
		for _, m := range f.Fields {
			walk(path+"."+m.Name, m, fn)
		}
	case KindArray:
		walk(path+"[0]", f.Elem, fn)
	}
}

// Describe returns a multi-line, indented listing of the layout.
func (l *Layout) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "layout: %d bytes\n", l.size)
	l.Walk(func(path string, f *Field) bool {
		depth := strings.Count(path, ".") + strings.Count(path, "[")
		fmt.Fprintf(&sb, "%s%s\n", strings.Repeat("  ", depth+1), f)
		return true
	})
	return sb.String()
}
