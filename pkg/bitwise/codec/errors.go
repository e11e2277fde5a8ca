package codec

import "fmt"

// ValueOutOfRangeError reports a value that cannot be represented by a field
// of the given kind and width. It is raised before any byte is written.
type ValueOutOfRangeError struct {
	Kind  string // "unsigned", "signed", "bcd", "char"
	Width int    // bits for integers, bytes for bcd/char
	Value string
}

func (e *ValueOutOfRangeError) Error() string {
	unit := "bits"
	if e.Kind == "bcd" || e.Kind == "char" {
		unit = "bytes"
	}
	return fmt.Sprintf("codec: value %s out of range for %s field of %d %s", e.Value, e.Kind, e.Width, unit)
}

// StringTooLongError reports a string that does not fit a char field.
type StringTooLongError struct {
	Length int
	Max    int
}

func (e *StringTooLongError) Error() string {
	return fmt.Sprintf("codec: string of %d bytes exceeds field length %d", e.Length, e.Max)
}

// MalformedBCDError is returned by strict BCD decoding when a nibble is not a
// decimal digit.
type MalformedBCDError struct {
	Index int  // byte index within the field
	Byte  byte // offending raw byte
}

func (e *MalformedBCDError) Error() string {
	return fmt.Sprintf("codec: byte %d (0x%02X) is not valid BCD", e.Index, e.Byte)
}
