package codec

import (
	"math/bits"
	"strconv"
)

// Order is the byte order of a multi-byte storage unit.
type Order uint8

const (
	BigEndian Order = iota
	LittleEndian
)

func (o Order) String() string {
	if o == LittleEndian {
		return "little"
	}
	return "big"
}

// Uint reads len(b) bytes (at most 8) as an unsigned integer.
func Uint(b []byte, order Order) uint64 {
	var v uint64
	if order == LittleEndian {
		for i := len(b) - 1; i >= 0; i-- {
			v = v<<8 | uint64(b[i])
		}
		return v
	}
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// PutUint writes the low len(b)*8 bits of v into b.
func PutUint(b []byte, order Order, v uint64) {
	n := len(b)
	for i := 0; i < n; i++ {
		c := byte(v >> (8 * uint(i)))
		if order == LittleEndian {
			b[i] = c
		} else {
			b[n-1-i] = c
		}
	}
}

// Mask returns a mask with the low width bits set.
func Mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// Extract decodes a bit-packed unsigned value. The storage unit b is read as
// an integer in the given order; the value occupies width bits starting shift
// bits above the least significant bit of that integer.
func Extract(b []byte, order Order, shift, width int) uint64 {
	return (Uint(b, order) >> uint(shift)) & Mask(width)
}

// Insert encodes v into the bit range described by shift and width, keeping
// every other bit of the storage unit unchanged. The caller validates v first.
func Insert(b []byte, order Order, shift, width int, v uint64) {
	m := Mask(width) << uint(shift)
	cur := Uint(b, order)
	cur = (cur &^ m) | ((v << uint(shift)) & m)
	PutUint(b, order, cur)
}

// CheckUnsigned verifies that v fits in width bits.
func CheckUnsigned(v uint64, width int) error {
	if width < 64 && bits.Len64(v) > width {
		return &ValueOutOfRangeError{Kind: "unsigned", Width: width, Value: strconv.FormatUint(v, 10)}
	}
	return nil
}

// CheckSigned verifies that v fits in a two's complement field of width bits.
func CheckSigned(v int64, width int) error {
	if width >= 64 {
		return nil
	}
	lo := -(int64(1) << uint(width-1))
	hi := (int64(1) << uint(width-1)) - 1
	if v < lo || v > hi {
		return &ValueOutOfRangeError{Kind: "signed", Width: width, Value: strconv.FormatInt(v, 10)}
	}
	return nil
}

// SignExtend interprets the low width bits of v as two's complement.
func SignExtend(v uint64, width int) int64 {
	if width >= 64 {
		return int64(v)
	}
	s := uint(64 - width)
	return int64(v<<s) >> s
}

// Truncate returns the two's complement bit pattern of v in width bits.
func Truncate(v int64, width int) uint64 {
	return uint64(v) & Mask(width)
}
