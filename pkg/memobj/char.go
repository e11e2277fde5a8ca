package memobj

import (
	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

// Char accesses a fixed-length text field.
type Char struct {
	node
}

// Len returns the field length in bytes.
func (n *Char) Len() int {
	return n.f.Size
}

// String returns the text with trailing pad bytes removed.
func (n *Char) String() string {
	return codec.DecodeString(n.bytes(), n.f.Pad)
}

// Set writes s left-justified and padded. Nothing is written if s is too
// long or holds runes above U+00FF.
func (n *Char) Set(s string) error {
	return codec.EncodeString(s, n.bytes(), n.f.Pad)
}

// Byte returns byte i of the field.
func (n *Char) Byte(i int) (byte, error) {
	if i < 0 || i >= n.f.Size {
		return 0, &IndexOutOfRangeError{Path: n.path, Index: i, Len: n.f.Size}
	}
	return n.bytes()[i], nil
}

// SetByte writes byte i of the field.
func (n *Char) SetByte(i int, b byte) error {
	if i < 0 || i >= n.f.Size {
		return &IndexOutOfRangeError{Path: n.path, Index: i, Len: n.f.Size}
	}
	n.bytes()[i] = b
	return nil
}

func (n *Char) Value() (any, error) {
	return n.String(), nil
}

func (n *Char) SetValue(v any) error {
	write, err := n.prepare(v)
	if err != nil {
		return err
	}
	write()
	return nil
}

func (n *Char) prepare(v any) (func(), error) {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return nil, valueTypeError(n.path, v)
	}
	if err := codec.CheckString(s, n.f.Size); err != nil {
		return nil, err
	}
	return func() { _ = codec.EncodeString(s, n.bytes(), n.f.Pad) }, nil
}
