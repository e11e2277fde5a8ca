package bitwise

import (
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

// Lower converts a parsed schema into declarations. Named struct types are
// expanded at every use, so the result is self-contained.
func Lower(file *SchemaFile) ([]Decl, error) {
	l := &lowerer{types: make(map[string]*typeDef), expanding: make(map[string]bool)}
	return l.items(file.Items)
}

type typeDef struct {
	body *Block
	line int
}

type lowerer struct {
	types map[string]*typeDef
	// Named types whose body is being lowered, to catch self-containment.
	expanding map[string]bool
}

func (l *lowerer) items(items []*Item) ([]Decl, error) {
	var decls []Decl
	for _, item := range items {
		var (
			d   Decl
			err error
		)
		switch {
		case item.Directive != nil:
			d, err = l.directive(item.Directive)
		case item.Def != nil:
			d, err = l.definition(item.Def)
		case item.Struct != nil:
			d, err = l.structItem(item.Struct)
		case item.Union != nil:
			d, err = l.unionItem(item.Union)
		}
		if err != nil {
			return nil, err
		}
		if d != nil {
			decls = append(decls, d)
		}
	}
	return decls, nil
}

func (l *lowerer) directive(dir *Directive) (Decl, error) {
	line := dir.Pos.Line
	name := strings.ToLower(dir.Name)

	number := func() (int, error) {
		if dir.Number == nil {
			return 0, schemaErrorf(line, "#"+name, "expected a number")
		}
		return parseNumber(*dir.Number, line)
	}

	switch name {
	case "seekto", "seek":
		n, err := number()
		if err != nil {
			return nil, err
		}
		return &SeekDecl{Addr: n, Relative: name == "seek", Line: line}, nil

	case "printoffset":
		if dir.String == nil {
			return nil, schemaErrorf(line, "#printoffset", "expected a quoted label")
		}
		return &PrintOffsetDecl{Label: strings.Trim(*dir.String, `"`), Line: line}, nil

	case "charpad":
		n, err := number()
		if err != nil {
			return nil, err
		}
		if n > 0xFF {
			return nil, schemaErrorf(line, "#charpad", "pad byte 0x%X does not fit in a byte", n)
		}
		pad := byte(n)
		return &OptionDecl{CharPad: &pad, Line: line}, nil

	case "bcd":
		if dir.Word == nil {
			return nil, schemaErrorf(line, "#bcd", "expected strict or blank")
		}
		var mode codec.BCDMode
		switch strings.ToLower(*dir.Word) {
		case "strict":
			mode = codec.BCDStrict
		case "blank":
			mode = codec.BCDBlank
		default:
			return nil, schemaErrorf(line, "#bcd", "unknown mode %q", *dir.Word)
		}
		return &OptionDecl{BCDMode: &mode, Line: line}, nil
	}
	return nil, schemaErrorf(line, "#"+dir.Name, "unknown directive")
}

func (l *lowerer) definition(def *Definition) (Decl, error) {
	line := def.Pos.Line
	if len(def.Bits) > 0 {
		bf := &BitfieldDecl{Type: def.Type, Line: line}
		for _, b := range def.Bits {
			w, err := parseNumber(b.Width, b.Pos.Line)
			if err != nil {
				return nil, err
			}
			bf.Bits = append(bf.Bits, BitDecl{Name: b.Name, Width: w, Line: b.Pos.Line})
		}
		return bf, nil
	}

	count, err := parseCount(def.Count, line)
	if err != nil {
		return nil, err
	}
	return &DefDecl{Name: def.Name, Type: def.Type, Count: count, Line: line}, nil
}

func (l *lowerer) structItem(s *StructItem) (Decl, error) {
	line := s.Pos.Line
	body := s.Body

	if s.TypeName != "" && body != nil {
		// A nested definition is seen again each time its enclosing type expands.
		if prev, ok := l.types[s.TypeName]; ok && prev.body != body {
			return nil, schemaErrorf(line, s.TypeName,
				"struct type redefined (previous definition on line %d)", prev.line)
		}
		l.types[s.TypeName] = &typeDef{body: body, line: line}
	}

	if s.Var == nil {
		if body == nil || s.TypeName == "" {
			return nil, schemaErrorf(line, s.TypeName, "struct declaration needs a body or a variable name")
		}
		// Type definition only. Check it now so errors in unused types surface.
		fields, err := l.expand(s.TypeName, body, line)
		if err != nil {
			return nil, err
		}
		check := &StructDecl{Name: s.TypeName, Fields: fields, Count: -1, Line: line}
		if _, err := CompileDecls([]Decl{check}); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if body == nil {
		if s.TypeName == "" {
			return nil, schemaErrorf(line, s.Var.Name, "struct declaration needs a type name or a body")
		}
		def, ok := l.types[s.TypeName]
		if !ok {
			return nil, schemaErrorf(line, s.Var.Name, "undefined struct type %q", s.TypeName)
		}
		body = def.body
	}

	fields, err := l.expand(s.TypeName, body, line)
	if err != nil {
		return nil, err
	}
	return l.instance(fields, s.Var, false, line)
}

// expand lowers the body of a struct, refusing a named type that contains
// itself.
func (l *lowerer) expand(typeName string, body *Block, line int) ([]Decl, error) {
	if typeName != "" {
		if l.expanding[typeName] {
			return nil, schemaErrorf(line, typeName, "struct type %q contains itself", typeName)
		}
		l.expanding[typeName] = true
		defer delete(l.expanding, typeName)
	}
	return l.items(body.Items)
}

func (l *lowerer) unionItem(u *UnionItem) (Decl, error) {
	fields, err := l.expand("", u.Body, u.Pos.Line)
	if err != nil {
		return nil, err
	}
	return l.instance(fields, u.Var, true, u.Pos.Line)
}

func (l *lowerer) instance(fields []Decl, v *Var, union bool, line int) (Decl, error) {
	count, err := parseCount(v.Count, line)
	if err != nil {
		return nil, err
	}
	return &StructDecl{Name: v.Name, Union: union, Fields: fields, Count: count, Line: line}, nil
}

func parseCount(s *string, line int) (int, error) {
	if s == nil {
		return -1, nil
	}
	return parseNumber(*s, line)
}

// parseNumber accepts decimal or 0x-prefixed hexadecimal.
func parseNumber(s string, line int) (int, error) {
	base, digits := 10, s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, digits = 16, s[2:]
	}
	n, err := strconv.ParseUint(digits, base, 31)
	if err != nil {
		return 0, schemaErrorf(line, "", "invalid number %q", s)
	}
	return int(n), nil
}
