package registry

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/clone"
)

// Model describes one radio model: how large its clone image is, how it is
// transferred and the schema that lays out its memory.
type Model struct {
	Vendor    string `mapstructure:"vendor"`
	Model     string `mapstructure:"model"`
	Variant   string `mapstructure:"variant"`
	MemSize   int    `mapstructure:"memsize"`
	BlockSize int    `mapstructure:"block_size"`
	Baud      int    `mapstructure:"baud"`
	// Ident is the handshake reply the radio sends, if known.
	Ident string `mapstructure:"ident"`
	// UploadRanges limits which regions are written back to the radio.
	UploadRanges []clone.Range `mapstructure:"upload_ranges"`

	// Schema holds inline schema text. SchemaFile names a schema file
	// relative to the manifest; files ending in .yaml or .yml are parsed
	// as YAML declarations.
	Schema     string `mapstructure:"schema"`
	SchemaFile string `mapstructure:"schema_file"`

	fsys   fs.FS
	dir    string
	once   sync.Once
	layout *bitwise.Layout
	err    error
}

// ID returns "Vendor Model", plus the variant when set.
func (m *Model) ID() string {
	id := strings.TrimSpace(m.Vendor + " " + m.Model)
	if m.Variant != "" {
		id += " (" + m.Variant + ")"
	}
	return id
}

// CloneConfig returns the clone protocol settings for the model.
func (m *Model) CloneConfig() clone.BlockConfig {
	return clone.BlockConfig{
		BlockSize: m.BlockSize,
		Ident:     m.Ident,
		Settle:    100 * time.Millisecond,
		Ranges:    append([]clone.Range(nil), m.UploadRanges...),
	}
}

// Layout compiles the model's schema on first use and returns the cached
// result afterwards. Options only take effect on the first call.
func (m *Model) Layout(opts ...bitwise.Option) (*bitwise.Layout, error) {
	m.once.Do(func() {
		m.layout, m.err = m.compile(opts...)
	})
	return m.layout, m.err
}

func (m *Model) compile(opts ...bitwise.Option) (*bitwise.Layout, error) {
	src, name, err := m.schemaSource()
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", m.ID(), err)
	}
	var layout *bitwise.Layout
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		layout, err = bitwise.CompileYAML(bytes.NewReader(src), opts...)
	default:
		layout, err = bitwise.Compile(string(src), opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: %s: %w", m.ID(), err)
	}
	return m.checkSize(layout)
}

// schemaSource returns the schema text and the name it was read from.
func (m *Model) schemaSource() ([]byte, string, error) {
	if m.Schema != "" {
		return []byte(m.Schema), "", nil
	}
	if m.SchemaFile == "" {
		return nil, "", fmt.Errorf("no schema")
	}
	if filepath.IsAbs(m.SchemaFile) {
		data, err := os.ReadFile(m.SchemaFile)
		return data, m.SchemaFile, err
	}
	if m.fsys == nil {
		data, err := os.ReadFile(filepath.Join(m.dir, m.SchemaFile))
		return data, m.SchemaFile, err
	}
	name := path.Join(m.dir, filepath.ToSlash(m.SchemaFile))
	data, err := fs.ReadFile(m.fsys, name)
	return data, name, err
}

func (m *Model) checkSize(layout *bitwise.Layout) (*bitwise.Layout, error) {
	if m.MemSize > 0 && layout.Size() > m.MemSize {
		return nil, fmt.Errorf("registry: %s: schema needs %d bytes but memsize is %d",
			m.ID(), layout.Size(), m.MemSize)
	}
	return layout, nil
}
