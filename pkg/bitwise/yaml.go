package bitwise

import (
	"fmt"
	"io"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

// yamlDecl is one entry of a YAML schema. The decl key selects which of the
// remaining keys apply:
//
//	- {decl: seekto, addr: 0x100}
//	- {decl: seek, addr: 4}
//	- {decl: printoffset, label: channels}
//	- {decl: charpad, pad: 0x20}
//	- {decl: bcd, mode: strict}
//	- {decl: def, name: freq, type: lbcd, count: 4}
//	- {decl: bits, type: u8, bits: [{name: a, width: 4}, {name: b, width: 4}]}
//	- {decl: struct, name: memory, count: 128, fields: [...]}
//	- {decl: union, name: word, fields: [...]}
type yamlDecl struct {
	Decl   string    `mapstructure:"decl"`
	Name   string    `mapstructure:"name"`
	Type   string    `mapstructure:"type"`
	Count  *int      `mapstructure:"count"`
	Addr   *int      `mapstructure:"addr"`
	Label  string    `mapstructure:"label"`
	Pad    *int      `mapstructure:"pad"`
	Mode   string    `mapstructure:"mode"`
	Bits   []yamlBit `mapstructure:"bits"`
	Fields []any     `mapstructure:"fields"`
}

type yamlBit struct {
	Name  string `mapstructure:"name"`
	Width int    `mapstructure:"width"`
}

// ParseYAML reads a schema expressed as a YAML sequence of declarations.
// The result compiles with CompileDecls exactly like a lowered text schema.
func ParseYAML(r io.Reader) ([]Decl, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, &SchemaError{Msg: "yaml: " + err.Error()}
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	return yamlSequence(root)
}

// ParseYAMLString is ParseYAML over a string.
func ParseYAMLString(src string) ([]Decl, error) {
	return ParseYAML(strings.NewReader(src))
}

func yamlSequence(node *yaml.Node) ([]Decl, error) {
	if node.Kind != yaml.SequenceNode {
		return nil, schemaErrorf(node.Line, "", "yaml schema must be a sequence of declarations")
	}
	decls := make([]Decl, 0, len(node.Content))
	for _, item := range node.Content {
		d, err := yamlEntry(item)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func yamlEntry(node *yaml.Node) (Decl, error) {
	line := node.Line
	if node.Kind != yaml.MappingNode {
		return nil, schemaErrorf(line, "", "declaration must be a mapping")
	}

	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return nil, schemaErrorf(line, "", "yaml: %v", err)
	}
	var y yamlDecl
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &y,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("bitwise: yaml decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, schemaErrorf(line, y.Name, "%v", err)
	}

	count := -1
	if y.Count != nil {
		count = *y.Count
	}

	kind := strings.ToLower(y.Decl)
	switch kind {
	case "seekto", "seek":
		if y.Addr == nil {
			return nil, schemaErrorf(line, y.Decl, "missing addr")
		}
		return &SeekDecl{Addr: *y.Addr, Relative: kind == "seek", Line: line}, nil

	case "printoffset":
		return &PrintOffsetDecl{Label: y.Label, Line: line}, nil

	case "charpad":
		if y.Pad == nil || *y.Pad < 0 || *y.Pad > 0xFF {
			return nil, schemaErrorf(line, "charpad", "pad must be a byte value")
		}
		pad := byte(*y.Pad)
		return &OptionDecl{CharPad: &pad, Line: line}, nil

	case "bcd":
		var mode codec.BCDMode
		switch strings.ToLower(y.Mode) {
		case "strict":
			mode = codec.BCDStrict
		case "blank", "":
			mode = codec.BCDBlank
		default:
			return nil, schemaErrorf(line, "bcd", "unknown mode %q", y.Mode)
		}
		return &OptionDecl{BCDMode: &mode, Line: line}, nil

	case "def":
		return &DefDecl{Name: y.Name, Type: y.Type, Count: count, Line: line}, nil

	case "bits":
		bf := &BitfieldDecl{Type: y.Type, Line: line}
		for _, b := range y.Bits {
			bf.Bits = append(bf.Bits, BitDecl{Name: b.Name, Width: b.Width, Line: line})
		}
		return bf, nil

	case "struct", "union":
		var fields []Decl
		if child := mappingValue(node, "fields"); child != nil {
			fields, err = yamlSequence(child)
			if err != nil {
				return nil, err
			}
		}
		return &StructDecl{
			Name:   y.Name,
			Union:  kind == "union",
			Fields: fields,
			Count:  count,
			Line:   line,
		}, nil
	}
	return nil, schemaErrorf(line, y.Name, "unknown declaration %q", y.Decl)
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// CompileYAML parses and compiles a YAML schema.
func CompileYAML(r io.Reader, opts ...Option) (*Layout, error) {
	decls, err := ParseYAML(r)
	if err != nil {
		return nil, err
	}
	return CompileDecls(decls, opts...)
}
