// Package memobj binds compiled layouts onto radio memory buffers and
// provides typed, path-addressable accessors for their fields.
package memobj

import (
	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

// Node is a live view of one field over a bound buffer. Nodes hold no value
// of their own: every read decodes the current bytes and every write goes
// straight to the buffer.
type Node interface {
	// Def returns the compiled layout entry behind the node.
	Def() *bitwise.Field
	// Name returns the node's path from the root, e.g. "memory[1].freq".
	Name() string
	// Offset returns the absolute address of the first backing byte.
	Offset() int
	// Size returns the number of backing bytes.
	Size() int
	// Raw returns a copy of the backing bytes.
	Raw() []byte
	// SetRaw overwrites the node's bits from raw, which must be Size bytes.
	SetRaw(raw []byte) error
	// Fill writes b into every backing byte the node owns.
	Fill(b byte)
	// Value decodes the node into a plain Go value.
	Value() (any, error)
	// SetValue validates v and then writes it.
	SetValue(v any) error

	prepare(v any) (func(), error)
}

// node is the shared state of every accessor: the layout entry, the
// displacement of the enclosing array element and the bound buffer.
type node struct {
	f     *bitwise.Field
	delta int
	buf   []byte
	path  string
}

func (n *node) Def() *bitwise.Field { return n.f }
func (n *node) Name() string { return n.path }
func (n *node) Offset() int { return n.f.Offset + n.delta }
func (n *node) Size() int { return n.f.Size }

// bytes returns the backing slice itself, not a copy.
func (n *node) bytes() []byte {
	off := n.Offset()
	return n.buf[off : off+n.f.Size : off+n.f.Size]
}

func (n *node) Raw() []byte {
	out := make([]byte, n.f.Size)
	copy(out, n.bytes())
	return out
}

func (n *node) narrow() bool {
	return n.f.IsLeaf() && n.f.Width != n.f.Size*8
}

func (n *node) SetRaw(raw []byte) error {
	if len(raw) != n.f.Size {
		return &LengthMismatchError{Path: n.path, Have: len(raw), Want: n.f.Size}
	}
	if n.narrow() {
		// Only the node's own bits are taken from raw.
		v := codec.Extract(raw, n.f.Order, n.f.Shift, n.f.Width)
		codec.Insert(n.bytes(), n.f.Order, n.f.Shift, n.f.Width, v)
		return nil
	}
	copy(n.bytes(), raw)
	return nil
}

func (n *node) Fill(b byte) {
	pattern := make([]byte, n.f.Size)
	for i := range pattern {
		pattern[i] = b
	}
	_ = n.SetRaw(pattern)
}

// child builds the accessor for member f of this node.
func (n *node) child(f *bitwise.Field, path string) Node {
	return wrap(f, n.delta, n.buf, path)
}

func wrap(f *bitwise.Field, delta int, buf []byte, path string) Node {
	base := node{f: f, delta: delta, buf: buf, path: path}
	switch f.Kind {
	case bitwise.KindStruct, bitwise.KindUnion:
		return &Struct{node: base}
	case bitwise.KindArray:
		return &Array{node: base}
	case bitwise.KindBCD:
		return &BCD{node: base}
	case bitwise.KindChar:
		return &Char{node: base}
	case bitwise.KindBit:
		return &Bit{node: base}
	default:
		return &Int{node: base}
	}
}

func join(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

// typed converts n to the concrete accessor T or reports a kind mismatch.
func typed[T Node](n Node, err error, want bitwise.Kind) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := n.(T)
	if !ok {
		return zero, &KindMismatchError{Path: n.Name(), Want: want, Got: n.Def().Kind}
	}
	return t, nil
}
