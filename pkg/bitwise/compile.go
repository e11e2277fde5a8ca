package bitwise

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

// DefaultCharPad is the pad byte of char fields unless a schema sets one with
// #charpad. It matches the erased state of radio EEPROM.
const DefaultCharPad byte = 0xFF

type primitive struct {
	kind   Kind
	size   int
	order  codec.Order
	signed bool
}

var primitives = map[string]primitive{
	"bit":  {kind: KindBit, size: 1},
	"lbit": {kind: KindBit, size: 1, order: codec.LittleEndian},
	"u8":   {kind: KindInt, size: 1},
	"u16":  {kind: KindInt, size: 2},
	"ul16": {kind: KindInt, size: 2, order: codec.LittleEndian},
	"u24":  {kind: KindInt, size: 3},
	"ul24": {kind: KindInt, size: 3, order: codec.LittleEndian},
	"u32":  {kind: KindInt, size: 4},
	"ul32": {kind: KindInt, size: 4, order: codec.LittleEndian},
	"u64":  {kind: KindInt, size: 8},
	"ul64": {kind: KindInt, size: 8, order: codec.LittleEndian},
	"i8":   {kind: KindInt, size: 1, signed: true},
	"i16":  {kind: KindInt, size: 2, signed: true},
	"il16": {kind: KindInt, size: 2, order: codec.LittleEndian, signed: true},
	"i24":  {kind: KindInt, size: 3, signed: true},
	"il24": {kind: KindInt, size: 3, order: codec.LittleEndian, signed: true},
	"i32":  {kind: KindInt, size: 4, signed: true},
	"il32": {kind: KindInt, size: 4, order: codec.LittleEndian, signed: true},
	"i64":  {kind: KindInt, size: 8, signed: true},
	"il64": {kind: KindInt, size: 8, order: codec.LittleEndian, signed: true},
	"char": {kind: KindChar, size: 1},
	"lbcd": {kind: KindBCD, size: 1, order: codec.LittleEndian},
	"bbcd": {kind: KindBCD, size: 1},
}

// IsType reports whether name is a primitive type keyword.
func IsType(name string) bool {
	_, ok := primitives[name]
	return ok
}

// Option configures compilation.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	bcdMode codec.BCDMode
	charPad byte
	base    int
}

// WithLogger routes #printoffset output and layout warnings to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStrictBCD makes bcd fields fail on malformed input instead of decoding
// to codec.Blank. A #bcd directive in the schema still takes precedence for
// the fields after it.
func WithStrictBCD() Option {
	return func(o *options) { o.bcdMode = codec.BCDStrict }
}

// WithCharPad sets the initial pad byte for char fields.
func WithCharPad(b byte) Option {
	return func(o *options) { o.charPad = b }
}

// WithBaseOffset starts the layout cursor at addr instead of zero.
func WithBaseOffset(addr int) Option {
	return func(o *options) { o.base = addr }
}

var defaultParser = sync.OnceValues(NewParser)

// Compile parses schema text and compiles it into a Layout.
func Compile(src string, opts ...Option) (*Layout, error) {
	p, err := defaultParser()
	if err != nil {
		return nil, err
	}
	file, err := p.ParseString(src)
	if err != nil {
		return nil, err
	}
	decls, err := Lower(file)
	if err != nil {
		return nil, err
	}
	return CompileDecls(decls, opts...)
}

// CompileFile reads and compiles a schema file.
func CompileFile(path string, opts ...Option) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bitwise: read %s: %w", path, err)
	}
	return Compile(string(data), opts...)
}

// CompileDecls lays out a declaration sequence. It is a pure function of its
// input apart from debug logging.
func CompileDecls(decls []Decl, opts ...Option) (*Layout, error) {
	o := options{
		logger:  zap.NewNop(),
		bcdMode: codec.BCDBlank,
		charPad: DefaultCharPad,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.base < 0 {
		return nil, schemaErrorf(0, "", "negative base offset %d", o.base)
	}

	c := &compiler{
		log:    o.logger,
		cursor: o.base,
		high:   o.base,
		pad:    o.charPad,
		bcd:    o.bcdMode,
	}
	root := newContainer("", KindStruct, o.base, 0)
	if err := c.block(root, decls); err != nil {
		return nil, err
	}
	root.Size = c.high - root.Offset
	return &Layout{root: root, size: c.high}, nil
}

type compiler struct {
	log    *zap.Logger
	cursor int
	high   int // highest end address placed so far
	pad    byte
	bcd    codec.BCDMode
}

func newContainer(name string, kind Kind, offset, line int) *Field {
	return &Field{
		Name:   name,
		Kind:   kind,
		Type:   kind.String(),
		Line:   line,
		Offset: offset,
		index:  make(map[string]int),
	}
}

func (c *compiler) touch(end int) {
	if end > c.high {
		c.high = end
	}
}

func (c *compiler) add(parent *Field, f *Field) error {
	if _, dup := parent.index[f.Name]; dup {
		prev := parent.Fields[parent.index[f.Name]]
		return schemaErrorf(f.Line, f.Name, "duplicate field (previous definition on line %d)", prev.Line)
	}
	parent.index[f.Name] = len(parent.Fields)
	parent.Fields = append(parent.Fields, f)
	return nil
}

func (c *compiler) block(parent *Field, decls []Decl) error {
	if parent.Kind == KindUnion {
		return c.unionBlock(parent, decls)
	}
	for _, d := range decls {
		if err := c.decl(parent, d); err != nil {
			return err
		}
	}
	return nil
}

// unionBlock places every member at the union's start address. All members
// must occupy the same number of bytes.
func (c *compiler) unionBlock(parent *Field, decls []Decl) error {
	start := c.cursor
	size := -1
	for _, d := range decls {
		c.cursor = start
		before := len(parent.Fields)
		if err := c.decl(parent, d); err != nil {
			return err
		}
		if len(parent.Fields) == before {
			continue
		}
		used := c.cursor - start
		if size >= 0 && used != size {
			return schemaErrorf(d.line(), parent.Fields[before].Name,
				"union member is %d bytes, expected %d", used, size)
		}
		size = used
	}
	if size < 0 {
		size = 0
	}
	c.cursor = start + size
	return nil
}

func (c *compiler) decl(parent *Field, d Decl) error {
	switch d := d.(type) {
	case *SeekDecl:
		return c.seek(d)
	case *PrintOffsetDecl:
		c.log.Debug("printoffset",
			zap.String("label", d.Label),
			zap.Int("offset", c.cursor),
			zap.String("hex", fmt.Sprintf("0x%08X", c.cursor)))
		return nil
	case *OptionDecl:
		if d.CharPad != nil {
			c.pad = *d.CharPad
		}
		if d.BCDMode != nil {
			c.bcd = *d.BCDMode
		}
		return nil
	case *DefDecl:
		return c.def(parent, d)
	case *BitfieldDecl:
		return c.bitfield(parent, d)
	case *StructDecl:
		return c.structure(parent, d)
	case nil:
		return schemaErrorf(0, parent.Name, "nil declaration")
	default:
		return schemaErrorf(d.line(), parent.Name, "unsupported declaration %T", d)
	}
}

func (c *compiler) seek(d *SeekDecl) error {
	if d.Relative {
		if c.cursor+d.Addr < 0 {
			return schemaErrorf(d.Line, "", "seek %d moves before address zero", d.Addr)
		}
		c.cursor += d.Addr
		return nil
	}
	if d.Addr < 0 {
		return schemaErrorf(d.Line, "", "negative seek target %d", d.Addr)
	}
	switch {
	case d.Addr == c.cursor:
		c.log.Debug("unnecessary seekto", zap.Int("line", d.Line), zap.Int("addr", d.Addr))
	case d.Addr < c.cursor:
		// Overlapping regions are legal; some models parse a prefix of
		// the image before the full layout is known.
		c.log.Debug("backward seekto",
			zap.Int("line", d.Line),
			zap.String("from", fmt.Sprintf("0x%04X", c.cursor)),
			zap.String("to", fmt.Sprintf("0x%04X", d.Addr)))
	}
	c.cursor = d.Addr
	return nil
}

func (c *compiler) def(parent *Field, d *DefDecl) error {
	prim, ok := primitives[d.Type]
	if !ok {
		return schemaErrorf(d.Line, d.Name, "unknown type %q", d.Type)
	}
	if d.Count < -1 {
		return schemaErrorf(d.Line, d.Name, "invalid count %d", d.Count)
	}

	switch prim.kind {
	case KindBit:
		if d.Count < 0 || d.Count%8 != 0 {
			return schemaErrorf(d.Line, d.Name, "%s array length must be a multiple of 8", d.Type)
		}
		lsb := prim.order == codec.LittleEndian
		elem := &Field{
			Name:   d.Name,
			Kind:   KindBit,
			Type:   d.Type,
			Line:   d.Line,
			Offset: c.cursor,
			Size:   1,
			Width:  1,
			Shift:  7,
		}
		if lsb {
			elem.Shift = 0
		}
		arr := &Field{
			Name:     d.Name,
			Kind:     KindArray,
			Type:     d.Type,
			Line:     d.Line,
			Offset:   c.cursor,
			Size:     d.Count / 8,
			Count:    d.Count,
			Elem:     elem,
			LSBFirst: lsb,
		}
		return c.place(parent, arr)

	case KindChar, KindBCD:
		n := 1
		if d.Count >= 0 {
			n = d.Count
		}
		if n == 0 {
			return schemaErrorf(d.Line, d.Name, "%s field of zero length", d.Type)
		}
		f := &Field{
			Name:    d.Name,
			Kind:    prim.kind,
			Type:    d.Type,
			Line:    d.Line,
			Offset:  c.cursor,
			Size:    n,
			Width:   n * 8,
			Order:   prim.order,
			Pad:     c.pad,
			BCDMode: c.bcd,
		}
		return c.place(parent, f)
	}

	elem := &Field{
		Name:   d.Name,
		Kind:   KindInt,
		Type:   d.Type,
		Line:   d.Line,
		Offset: c.cursor,
		Size:   prim.size,
		Width:  prim.size * 8,
		Order:  prim.order,
		Signed: prim.signed,
	}
	if d.Count < 0 {
		return c.place(parent, elem)
	}
	arr := &Field{
		Name:   d.Name,
		Kind:   KindArray,
		Type:   d.Type,
		Line:   d.Line,
		Offset: c.cursor,
		Size:   prim.size * d.Count,
		Count:  d.Count,
		Elem:   elem,
		Stride: prim.size,
	}
	return c.place(parent, arr)
}

// place adds a sized field at the cursor and advances past it.
func (c *compiler) place(parent *Field, f *Field) error {
	if err := c.add(parent, f); err != nil {
		return err
	}
	c.cursor += f.Size
	c.touch(f.End())
	return nil
}

func (c *compiler) bitfield(parent *Field, d *BitfieldDecl) error {
	prim, ok := primitives[d.Type]
	if !ok {
		return schemaErrorf(d.Line, "", "unknown type %q", d.Type)
	}
	if prim.kind != KindInt {
		return schemaErrorf(d.Line, "", "bitfield storage must be an integer type, not %q", d.Type)
	}
	if len(d.Bits) == 0 {
		return schemaErrorf(d.Line, "", "empty bitfield")
	}

	left := prim.size * 8
	last := ""
	for _, b := range d.Bits {
		line := b.Line
		if line == 0 {
			line = d.Line
		}
		if b.Width < 1 {
			return schemaErrorf(line, b.Name, "bitfield width must be positive")
		}
		if b.Width > left {
			return schemaErrorf(line, b.Name, "bitfield overflows %s: %d bits requested, %d left",
				d.Type, b.Width, left)
		}
		left -= b.Width
		f := &Field{
			Name:   b.Name,
			Kind:   KindInt,
			Type:   d.Type,
			Line:   line,
			Offset: c.cursor,
			Size:   prim.size,
			Shift:  left,
			Width:  b.Width,
			Order:  prim.order,
		}
		if err := c.add(parent, f); err != nil {
			return err
		}
		last = b.Name
	}
	if left > 0 {
		c.log.Warn("trailing bits unaccounted for",
			zap.Int("bits", left), zap.String("field", last), zap.Int("line", d.Line))
	}
	c.cursor += prim.size
	c.touch(c.cursor)
	return nil
}

func (c *compiler) structure(parent *Field, d *StructDecl) error {
	kind := KindStruct
	if d.Union {
		kind = KindUnion
	}
	if len(d.Fields) == 0 {
		if d.Count >= 0 {
			return schemaErrorf(d.Line, d.Name, "array element schema is empty")
		}
		return schemaErrorf(d.Line, d.Name, "empty %s", kind)
	}

	start := c.cursor
	high := c.high
	elem := newContainer(d.Name, kind, start, d.Line)
	if err := c.block(elem, d.Fields); err != nil {
		return err
	}
	if len(elem.Fields) == 0 {
		return schemaErrorf(d.Line, d.Name, "%s declares no fields", kind)
	}
	end := start
	for _, m := range elem.Fields {
		if m.End() > end {
			end = m.End()
		}
	}
	elem.Size = end - start

	if d.Count < 0 {
		return c.add(parent, elem)
	}

	stride := c.cursor - start
	if stride <= 0 {
		return schemaErrorf(d.Line, d.Name, "array element has no size")
	}
	arr := &Field{
		Name:   d.Name,
		Kind:   KindArray,
		Type:   kind.String(),
		Line:   d.Line,
		Offset: start,
		Size:   stride * d.Count,
		Count:  d.Count,
		Elem:   elem,
		Stride: stride,
	}
	if err := c.add(parent, arr); err != nil {
		return err
	}
	c.cursor = start + arr.Size
	if d.Count == 0 {
		c.high = high
		return nil
	}
	c.touch(arr.End())
	return nil
}
