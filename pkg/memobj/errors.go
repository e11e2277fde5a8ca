package memobj

import (
	"errors"
	"fmt"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
)

// ErrValueType is wrapped by errors for values of a Go type a field cannot
// hold, such as a string assigned to an integer array.
var ErrValueType = errors.New("memobj: unsupported value type")

// BufferTooSmallError is returned by Bind when the buffer is shorter than the
// layout. It usually means a truncated download or the wrong model.
type BufferTooSmallError struct {
	Need int
	Have int
}

func (e *BufferTooSmallError) Error() string {
	return fmt.Sprintf("memobj: buffer of %d bytes is smaller than the %d byte layout", e.Have, e.Need)
}

// UnknownFieldError reports a member name that the struct does not declare.
type UnknownFieldError struct {
	Path string // path of the struct searched
	Name string
}

func (e *UnknownFieldError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("memobj: unknown field %q", e.Name)
	}
	return fmt.Sprintf("memobj: %s: unknown field %q", e.Path, e.Name)
}

// IndexOutOfRangeError reports an array or byte index outside [0, Len).
type IndexOutOfRangeError struct {
	Path  string
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("memobj: %s: index %d out of range [0:%d]", e.Path, e.Index, e.Len)
}

// KindMismatchError is returned by typed accessors such as Struct.Int when
// the field has a different kind.
type KindMismatchError struct {
	Path string
	Want bitwise.Kind
	Got  bitwise.Kind
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("memobj: %s: field is %s, not %s", e.Path, e.Got, e.Want)
}

// LengthMismatchError is returned when raw bytes or an array value do not
// match the field length.
type LengthMismatchError struct {
	Path string
	Have int
	Want int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("memobj: %s: got %d items, field holds %d", e.Path, e.Have, e.Want)
}

func valueTypeError(path string, v any) error {
	return fmt.Errorf("%w: %s cannot hold %T", ErrValueType, path, v)
}

// FieldError attaches the field path to a codec error raised while decoding.
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("memobj: %s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
