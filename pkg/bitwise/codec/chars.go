package codec

import (
	"fmt"
	"strings"
)

// DecodeString returns the text view of a char field: each byte maps to the
// rune of the same value and trailing pad bytes are removed.
func DecodeString(b []byte, pad byte) string {
	end := len(b)
	for end > 0 && b[end-1] == pad {
		end--
	}
	var sb strings.Builder
	sb.Grow(end)
	for _, c := range b[:end] {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

// CheckString verifies s fits a char field of n bytes and contains only runes
// that have a single-byte encoding.
func CheckString(s string, n int) error {
	count := 0
	for _, r := range s {
		if r > 0xFF {
			return &ValueOutOfRangeError{Kind: "char", Width: n, Value: fmt.Sprintf("%q", r)}
		}
		count++
	}
	if count > n {
		return &StringTooLongError{Length: count, Max: n}
	}
	return nil
}

// EncodeString writes s left-justified into b and fills the rest with pad.
func EncodeString(s string, b []byte, pad byte) error {
	if err := CheckString(s, len(b)); err != nil {
		return err
	}
	i := 0
	for _, r := range s {
		b[i] = byte(r)
		i++
	}
	for ; i < len(b); i++ {
		b[i] = pad
	}
	return nil
}
