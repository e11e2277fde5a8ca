package memobj

import (
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

// BCD accesses a packed binary-coded decimal field such as a frequency.
type BCD struct {
	node
}

// Get decodes the field. In blank mode invalid digits yield codec.Blank; in
// strict mode they return *codec.MalformedBCDError.
func (n *BCD) Get() (uint64, error) {
	v, err := codec.DecodeBCD(n.bytes(), n.f.Order, n.f.BCDMode)
	if err != nil {
		return 0, &FieldError{Path: n.path, Err: err}
	}
	return v, nil
}

// Set encodes v, failing before any write if it needs more digits than the
// field holds.
func (n *BCD) Set(v uint64) error {
	return codec.EncodeBCD(v, n.bytes(), n.f.Order)
}

// IsBlank reports whether the field holds bytes that are not valid BCD, as
// erased memory does.
func (n *BCD) IsBlank() bool {
	return !codec.ValidBCD(n.bytes())
}

// Digits returns the two digits stored in byte i of the field.
func (n *BCD) Digits(i int) (tens, ones uint8, err error) {
	if err := n.check(i); err != nil {
		return 0, 0, err
	}
	tens, ones = codec.Digits(n.bytes()[i])
	return tens, ones, nil
}

// GetBits returns byte i masked with mask. Drivers use the spare high nibble
// of some BCD bytes as flags.
func (n *BCD) GetBits(i int, mask byte) (byte, error) {
	if err := n.check(i); err != nil {
		return 0, err
	}
	return n.bytes()[i] & mask, nil
}

// SetBits sets the mask bits of byte i.
func (n *BCD) SetBits(i int, mask byte) error {
	if err := n.check(i); err != nil {
		return err
	}
	n.bytes()[i] |= mask
	return nil
}

// ClearBits clears the mask bits of byte i.
func (n *BCD) ClearBits(i int, mask byte) error {
	if err := n.check(i); err != nil {
		return err
	}
	n.bytes()[i] &^= mask
	return nil
}

func (n *BCD) check(i int) error {
	if i < 0 || i >= n.f.Size {
		return &IndexOutOfRangeError{Path: n.path, Index: i, Len: n.f.Size}
	}
	return nil
}

func (n *BCD) Value() (any, error) {
	v, err := n.Get()
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (n *BCD) SetValue(v any) error {
	write, err := n.prepare(v)
	if err != nil {
		return err
	}
	write()
	return nil
}

func (n *BCD) prepare(v any) (func(), error) {
	var u uint64
	switch x := v.(type) {
	case uint64:
		u = x
	case uint32:
		u = uint64(x)
	case uint:
		u = uint64(x)
	case int:
		if x < 0 {
			return nil, &codec.ValueOutOfRangeError{Kind: "bcd", Width: n.f.Size, Value: strconv.Itoa(x)}
		}
		u = uint64(x)
	case int64:
		if x < 0 {
			return nil, &codec.ValueOutOfRangeError{Kind: "bcd", Width: n.f.Size, Value: strconv.FormatInt(x, 10)}
		}
		u = uint64(x)
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return nil, valueTypeError(n.path, x)
		}
		u = parsed
	default:
		return nil, valueTypeError(n.path, v)
	}
	if err := codec.CheckBCD(u, n.f.Size); err != nil {
		return nil, err
	}
	return func() { _ = codec.EncodeBCD(u, n.bytes(), n.f.Order) }, nil
}
