package memobj

import (
	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
)

// Struct accesses a struct or union. Members are resolved by name against the
// compiled layout; nothing is materialised until asked for.
type Struct struct {
	node
}

// Bind attaches layout to buf. The buffer is not copied: every accessor reads
// and writes buf directly, so the caller keeps ownership and must serialize
// concurrent writers.
func Bind(layout *bitwise.Layout, buf []byte) (*Struct, error) {
	if len(buf) < layout.Size() {
		return nil, &BufferTooSmallError{Need: layout.Size(), Have: len(buf)}
	}
	return &Struct{node: node{f: layout.Root(), buf: buf}}, nil
}

// Field returns the named member.
func (s *Struct) Field(name string) (Node, error) {
	f, ok := s.f.Lookup(name)
	if !ok {
		return nil, &UnknownFieldError{Path: s.path, Name: name}
	}
	return s.child(f, join(s.path, name)), nil
}

// Names returns member names in declaration order.
func (s *Struct) Names() []string {
	return s.f.Names()
}

// Members returns accessors for every member in declaration order.
func (s *Struct) Members() []Node {
	out := make([]Node, len(s.f.Fields))
	for i, f := range s.f.Fields {
		out[i] = s.child(f, join(s.path, f.Name))
	}
	return out
}

func (s *Struct) Int(name string) (*Int, error) {
	n, err := s.Field(name)
	return typed[*Int](n, err, bitwise.KindInt)
}

func (s *Struct) BCD(name string) (*BCD, error) {
	n, err := s.Field(name)
	return typed[*BCD](n, err, bitwise.KindBCD)
}

func (s *Struct) Char(name string) (*Char, error) {
	n, err := s.Field(name)
	return typed[*Char](n, err, bitwise.KindChar)
}

func (s *Struct) Struct(name string) (*Struct, error) {
	n, err := s.Field(name)
	return typed[*Struct](n, err, bitwise.KindStruct)
}

func (s *Struct) Array(name string) (*Array, error) {
	n, err := s.Field(name)
	return typed[*Array](n, err, bitwise.KindArray)
}

// Bit returns element i of the named bit array.
func (s *Struct) Bit(name string, i int) (*Bit, error) {
	arr, err := s.Array(name)
	if err != nil {
		return nil, err
	}
	return arr.Bit(i)
}

// Value returns the decoded members keyed by name.
func (s *Struct) Value() (any, error) {
	out := make(map[string]any, len(s.f.Fields))
	for _, m := range s.Members() {
		v, err := m.Value()
		if err != nil {
			return nil, err
		}
		out[m.Def().Name] = v
	}
	return out, nil
}

// SetValue assigns members from a map keyed by name. Every value is
// validated before the first write.
func (s *Struct) SetValue(v any) error {
	write, err := s.prepare(v)
	if err != nil {
		return err
	}
	write()
	return nil
}

func (s *Struct) prepare(v any) (func(), error) {
	values, ok := v.(map[string]any)
	if !ok {
		return nil, valueTypeError(s.path, v)
	}
	writes := make([]func(), 0, len(values))
	for _, name := range s.Names() {
		mv, ok := values[name]
		if !ok {
			continue
		}
		m, err := s.Field(name)
		if err != nil {
			return nil, err
		}
		w, err := m.prepare(mv)
		if err != nil {
			return nil, err
		}
		writes = append(writes, w)
	}
	for name := range values {
		if _, ok := s.f.Lookup(name); !ok {
			return nil, &UnknownFieldError{Path: s.path, Name: name}
		}
	}
	return func() {
		for _, w := range writes {
			w()
		}
	}, nil
}
