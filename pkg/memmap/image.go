// Package memmap holds radio memory images: the raw EEPROM bytes read from
// or written to a radio, plus the metadata stored alongside them in .img
// files.
package memmap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/memobj"
)

// ErrOutOfRange is wrapped by errors for accesses past the end of an image.
var ErrOutOfRange = errors.New("memmap: access out of range")

// Image is an owned memory buffer guarded by a single mutex. Bound memory
// objects alias the buffer, so writers should go through Edit.
type Image struct {
	mu   sync.Mutex
	data []byte
	meta *Metadata
}

// New returns an image holding a copy of data.
func New(data []byte) *Image {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Image{data: buf}
}

// Blank returns an image of size bytes set to fill.
func Blank(size int, fill byte) *Image {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = fill
	}
	return &Image{data: buf}
}

// Len returns the image size in bytes.
func (m *Image) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// Get returns a copy of n bytes starting at start. n < 0 reads to the end.
func (m *Image) Get(start, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 0 {
		n = len(m.data) - start
	}
	if err := m.check(start, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.data[start:start+n])
	return out, nil
}

// Set overwrites len(b) bytes at pos.
func (m *Image) Set(pos int, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(pos, len(b)); err != nil {
		return err
	}
	copy(m.data[pos:], b)
	return nil
}

func (m *Image) check(start, n int) error {
	if start < 0 || n < 0 || start+n > len(m.data) {
		return fmt.Errorf("%w: %d bytes at %d, image is %d bytes", ErrOutOfRange, n, start, len(m.data))
	}
	return nil
}

// Bytes returns a copy of the whole image.
func (m *Image) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}

// Truncate shortens the image to size bytes. Larger sizes are ignored.
func (m *Image) Truncate(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if size >= 0 && size < len(m.data) {
		m.data = m.data[:size]
	}
}

// Printable returns a hexdump of [start, end). end <= 0 means the end of the
// image.
func (m *Image) Printable(start, end int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if end <= 0 || end > len(m.data) {
		end = len(m.data)
	}
	if start < 0 || start > end {
		start = 0
	}
	return Hexdump(m.data[start:end], start)
}

// Metadata returns the metadata loaded with the image, or nil.
func (m *Image) Metadata() *Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.meta
}

// SetMetadata attaches metadata to be written by Save.
func (m *Image) SetMetadata(meta *Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = meta
}

// Bind attaches layout to the image buffer. The returned object aliases the
// buffer and is not guarded by the image lock; it stays valid until Truncate.
func (m *Image) Bind(layout *bitwise.Layout) (*memobj.Struct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memobj.Bind(layout, m.data)
}

// Edit binds layout and runs fn with the image locked.
func (m *Image) Edit(layout *bitwise.Layout, fn func(mem *memobj.Struct) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mem, err := memobj.Bind(layout, m.data)
	if err != nil {
		return err
	}
	return fn(mem)
}
