package codec

import "strconv"

// BCDMode selects how a BCD decode treats nibbles above 9.
type BCDMode uint8

const (
	// BCDBlank decodes malformed input to Blank. Erased memory (all 0xFF)
	// therefore reads as "no value" instead of failing.
	BCDBlank BCDMode = iota
	// BCDStrict fails with *MalformedBCDError.
	BCDStrict
)

func (m BCDMode) String() string {
	if m == BCDStrict {
		return "strict"
	}
	return "blank"
}

// Blank is the value DecodeBCD returns in BCDBlank mode for bytes that are
// not valid BCD.
const Blank = ^uint64(0)

// Digits splits one BCD byte into its tens and ones nibbles.
func Digits(b byte) (tens, ones uint8) {
	return b >> 4, b & 0x0F
}

// ValidBCD reports whether every nibble of b is a decimal digit.
func ValidBCD(b []byte) bool {
	for _, c := range b {
		if c>>4 > 9 || c&0x0F > 9 {
			return false
		}
	}
	return true
}

// DecodeBCD converts packed BCD bytes to an integer. With BigEndian the first
// byte holds the most significant digit pair; with LittleEndian it holds the
// least significant pair.
func DecodeBCD(b []byte, order Order, mode BCDMode) (uint64, error) {
	var v uint64
	for i := range b {
		idx := i
		if order == LittleEndian {
			idx = len(b) - 1 - i
		}
		tens, ones := Digits(b[idx])
		if tens > 9 || ones > 9 {
			if mode == BCDStrict {
				return 0, &MalformedBCDError{Index: idx, Byte: b[idx]}
			}
			return Blank, nil
		}
		v = v*100 + uint64(tens)*10 + uint64(ones)
	}
	return v, nil
}

// MaxBCD returns the largest value representable in n BCD bytes, saturating
// at the uint64 limit.
func MaxBCD(n int) uint64 {
	max := uint64(1)
	for i := 0; i < n; i++ {
		if max > (^uint64(0))/100 {
			return ^uint64(0)
		}
		max *= 100
	}
	return max - 1
}

// CheckBCD verifies that v fits in n BCD bytes.
func CheckBCD(v uint64, n int) error {
	if v > MaxBCD(n) {
		return &ValueOutOfRangeError{Kind: "bcd", Width: n, Value: strconv.FormatUint(v, 10)}
	}
	return nil
}

// EncodeBCD writes v into b as packed BCD in the given order.
func EncodeBCD(v uint64, b []byte, order Order) error {
	if err := CheckBCD(v, len(b)); err != nil {
		return err
	}
	for i := len(b) - 1; i >= 0; i-- {
		pair := v % 100
		v /= 100
		idx := i
		if order == LittleEndian {
			idx = len(b) - 1 - i
		}
		b[idx] = byte(pair/10)<<4 | byte(pair%10)
	}
	return nil
}
