package memmap

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// Magic separates the raw image from its metadata trailer in .img files.
// The trailer is Magic, a '-' and base64-encoded JSON.
var Magic = []byte("\x00\xffchirp\xeeimg\x00\x01")

// Metadata identifies the radio an image belongs to.
type Metadata struct {
	Vendor  string         `json:"vendor"`
	Model   string         `json:"model"`
	Variant string         `json:"variant,omitempty"`
	Version string         `json:"radiomem_version,omitempty"`
	Extra   map[string]any `json:"mem_extra,omitempty"`
}

// Decode splits file contents into image bytes and optional metadata.
// Contents without the magic are a bare image.
func Decode(contents []byte) (*Image, error) {
	idx := bytes.Index(contents, Magic)
	if idx < 0 {
		return New(contents), nil
	}

	img := New(contents[:idx])
	trailer := contents[idx+len(Magic):]
	trailer = bytes.TrimPrefix(trailer, []byte("-"))
	raw, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(trailer)))
	if err != nil {
		return nil, fmt.Errorf("memmap: decode metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("memmap: parse metadata: %w", err)
	}
	img.meta = &meta
	return img, nil
}

// Encode returns the file representation of m: the image bytes followed by
// the metadata trailer when metadata is set.
func (m *Image) Encode() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var buf bytes.Buffer
	buf.Write(m.data)
	if m.meta == nil {
		return buf.Bytes(), nil
	}
	raw, err := json.Marshal(m.meta)
	if err != nil {
		return nil, fmt.Errorf("memmap: encode metadata: %w", err)
	}
	buf.Write(Magic)
	buf.WriteByte('-')
	buf.WriteString(base64.StdEncoding.EncodeToString(raw))
	return buf.Bytes(), nil
}

// LoadFile reads an image file.
func LoadFile(path string) (*Image, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memmap: read %s: %w", path, err)
	}
	img, err := Decode(contents)
	if err != nil {
		return nil, fmt.Errorf("memmap: %s: %w", path, err)
	}
	return img, nil
}

// SaveFile writes the image and its metadata to path.
func (m *Image) SaveFile(path string) error {
	contents, err := m.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		return fmt.Errorf("memmap: write %s: %w", path, err)
	}
	return nil
}
