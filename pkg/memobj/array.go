package memobj

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
)

// Array accesses a fixed-count array. Byte-aligned elements sit Stride bytes
// apart; bit arrays pack eight elements per byte.
type Array struct {
	node
}

// Len returns the element count.
func (a *Array) Len() int {
	return a.f.Count
}

// Index returns element i.
func (a *Array) Index(i int) (Node, error) {
	if i < 0 || i >= a.f.Count {
		return nil, &IndexOutOfRangeError{Path: a.path, Index: i, Len: a.f.Count}
	}
	path := fmt.Sprintf("%s[%d]", a.path, i)
	if a.f.Elem.Kind == bitwise.KindBit {
		return wrap(a.f.BitElement(i), a.delta, a.buf, path), nil
	}
	return wrap(a.f.Elem, a.delta+i*a.f.Stride, a.buf, path), nil
}

// Elements returns accessors for every element.
func (a *Array) Elements() []Node {
	out := make([]Node, a.f.Count)
	for i := range out {
		out[i], _ = a.Index(i)
	}
	return out
}

func (a *Array) Int(i int) (*Int, error) {
	n, err := a.Index(i)
	return typed[*Int](n, err, bitwise.KindInt)
}

func (a *Array) Bit(i int) (*Bit, error) {
	n, err := a.Index(i)
	return typed[*Bit](n, err, bitwise.KindBit)
}

func (a *Array) BCD(i int) (*BCD, error) {
	n, err := a.Index(i)
	return typed[*BCD](n, err, bitwise.KindBCD)
}

func (a *Array) Char(i int) (*Char, error) {
	n, err := a.Index(i)
	return typed[*Char](n, err, bitwise.KindChar)
}

func (a *Array) Struct(i int) (*Struct, error) {
	n, err := a.Index(i)
	return typed[*Struct](n, err, bitwise.KindStruct)
}

// Values returns the raw integers of an integer or bit array.
func (a *Array) Values() ([]uint64, error) {
	out := make([]uint64, a.f.Count)
	for i, e := range a.Elements() {
		switch e := e.(type) {
		case *Int:
			out[i] = e.Get()
		case *Bit:
			if e.Get() {
				out[i] = 1
			}
		default:
			return nil, &KindMismatchError{Path: a.path, Want: bitwise.KindInt, Got: a.f.Elem.Kind}
		}
	}
	return out, nil
}

// Set writes every element of an integer or bit array. The slice length must
// equal Len and all values are validated before the first write.
func (a *Array) Set(values []uint64) error {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return a.SetValue(vs)
}

// Value returns the decoded elements.
func (a *Array) Value() (any, error) {
	out := make([]any, a.f.Count)
	for i, e := range a.Elements() {
		v, err := e.Value()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// SetValue assigns every element from a slice of the same length.
func (a *Array) SetValue(v any) error {
	write, err := a.prepare(v)
	if err != nil {
		return err
	}
	write()
	return nil
}

func (a *Array) prepare(v any) (func(), error) {
	var values []any
	switch x := v.(type) {
	case []any:
		values = x
	case []uint64:
		values = make([]any, len(x))
		for i := range x {
			values[i] = x[i]
		}
	case []int:
		values = make([]any, len(x))
		for i := range x {
			values[i] = x[i]
		}
	case []bool:
		values = make([]any, len(x))
		for i := range x {
			values[i] = x[i]
		}
	default:
		return nil, valueTypeError(a.path, v)
	}
	if len(values) != a.f.Count {
		return nil, &LengthMismatchError{Path: a.path, Have: len(values), Want: a.f.Count}
	}

	writes := make([]func(), len(values))
	for i, e := range a.Elements() {
		w, err := e.prepare(values[i])
		if err != nil {
			return nil, err
		}
		writes[i] = w
	}
	return func() {
		for _, w := range writes {
			w()
		}
	}, nil
}
