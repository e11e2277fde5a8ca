package memobj

import (
	"math"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

// Int accesses an integer field or bitfield.
type Int struct {
	node
}

// Get returns the raw unsigned bits of the field.
func (n *Int) Get() uint64 {
	return codec.Extract(n.bytes(), n.f.Order, n.f.Shift, n.f.Width)
}

// GetInt returns the value sign-extended for signed types.
func (n *Int) GetInt() int64 {
	if n.f.Signed {
		return codec.SignExtend(n.Get(), n.f.Width)
	}
	return int64(n.Get())
}

// Bool reports whether the field is non-zero.
func (n *Int) Bool() bool {
	return n.Get() != 0
}

// Set writes an unsigned value. Bits of neighbouring fields that share the
// storage unit are preserved.
func (n *Int) Set(v uint64) error {
	raw, err := n.fromUnsigned(v)
	if err != nil {
		return err
	}
	n.put(raw)
	return nil
}

// SetInt writes a signed value.
func (n *Int) SetInt(v int64) error {
	raw, err := n.fromSigned(v)
	if err != nil {
		return err
	}
	n.put(raw)
	return nil
}

// SetBool writes 1 or 0.
func (n *Int) SetBool(v bool) error {
	if v {
		return n.Set(1)
	}
	return n.Set(0)
}

func (n *Int) Value() (any, error) {
	if n.f.Signed {
		return n.GetInt(), nil
	}
	return n.Get(), nil
}

func (n *Int) SetValue(v any) error {
	write, err := n.prepare(v)
	if err != nil {
		return err
	}
	write()
	return nil
}

func (n *Int) put(raw uint64) {
	codec.Insert(n.bytes(), n.f.Order, n.f.Shift, n.f.Width, raw)
}

func (n *Int) fromUnsigned(v uint64) (uint64, error) {
	if n.f.Signed {
		if v > math.MaxInt64 {
			return 0, &codec.ValueOutOfRangeError{Kind: "signed", Width: n.f.Width, Value: strconv.FormatUint(v, 10)}
		}
		return n.fromSigned(int64(v))
	}
	if err := codec.CheckUnsigned(v, n.f.Width); err != nil {
		return 0, err
	}
	return v, nil
}

func (n *Int) fromSigned(v int64) (uint64, error) {
	if !n.f.Signed {
		if v < 0 {
			return 0, &codec.ValueOutOfRangeError{Kind: "unsigned", Width: n.f.Width, Value: strconv.FormatInt(v, 10)}
		}
		return n.fromUnsigned(uint64(v))
	}
	if err := codec.CheckSigned(v, n.f.Width); err != nil {
		return 0, err
	}
	return codec.Truncate(v, n.f.Width), nil
}

func (n *Int) prepare(v any) (func(), error) {
	var (
		raw uint64
		err error
	)
	switch x := v.(type) {
	case bool:
		if x {
			raw, err = n.fromUnsigned(1)
		} else {
			raw, err = n.fromUnsigned(0)
		}
	case int:
		raw, err = n.fromSigned(int64(x))
	case int8:
		raw, err = n.fromSigned(int64(x))
	case int16:
		raw, err = n.fromSigned(int64(x))
	case int32:
		raw, err = n.fromSigned(int64(x))
	case int64:
		raw, err = n.fromSigned(x)
	case uint:
		raw, err = n.fromUnsigned(uint64(x))
	case uint8:
		raw, err = n.fromUnsigned(uint64(x))
	case uint16:
		raw, err = n.fromUnsigned(uint64(x))
	case uint32:
		raw, err = n.fromUnsigned(uint64(x))
	case uint64:
		raw, err = n.fromUnsigned(x)
	case string:
		raw, err = n.parse(x)
	default:
		return nil, valueTypeError(n.path, v)
	}
	if err != nil {
		return nil, err
	}
	return func() { n.put(raw) }, nil
}

// parse accepts decimal, 0x hex and negative numbers, as typed at a prompt.
func (n *Int) parse(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, valueTypeError(n.path, s)
		}
		return n.fromSigned(v)
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, valueTypeError(n.path, s)
	}
	return n.fromUnsigned(v)
}

// Bit accesses one element of a bit or lbit array.
type Bit struct {
	node
}

// Get reports whether the bit is set.
func (n *Bit) Get() bool {
	return codec.Extract(n.bytes(), n.f.Order, n.f.Shift, 1) == 1
}

// Set writes the bit without touching the other seven bits of its byte.
func (n *Bit) Set(v bool) {
	var raw uint64
	if v {
		raw = 1
	}
	codec.Insert(n.bytes(), n.f.Order, n.f.Shift, 1, raw)
}

func (n *Bit) Value() (any, error) {
	return n.Get(), nil
}

func (n *Bit) SetValue(v any) error {
	write, err := n.prepare(v)
	if err != nil {
		return err
	}
	write()
	return nil
}

func (n *Bit) prepare(v any) (func(), error) {
	var b bool
	switch x := v.(type) {
	case bool:
		b = x
	case int:
		if x != 0 && x != 1 {
			return nil, &codec.ValueOutOfRangeError{Kind: "unsigned", Width: 1, Value: strconv.Itoa(x)}
		}
		b = x == 1
	case uint64:
		if x > 1 {
			return nil, &codec.ValueOutOfRangeError{Kind: "unsigned", Width: 1, Value: strconv.FormatUint(x, 10)}
		}
		b = x == 1
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil, valueTypeError(n.path, x)
		}
		b = parsed
	default:
		return nil, valueTypeError(n.path, v)
	}
	return func() { n.Set(b) }, nil
}
