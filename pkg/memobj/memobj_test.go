package memobj

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

func bind(t *testing.T, schema string, buf []byte) *Struct {
	t.Helper()
	layout, err := bitwise.Compile(schema)
	if err != nil {
		t.Fatalf("Failed to compile: %v", err)
	}
	mem, err := Bind(layout, buf)
	if err != nil {
		t.Fatalf("Failed to bind: %v", err)
	}
	return mem
}

func mustInt(t *testing.T, s *Struct, path string) *Int {
	t.Helper()
	n, err := s.Path(path)
	if err != nil {
		t.Fatalf("Failed to resolve %s: %v", path, err)
	}
	i, ok := n.(*Int)
	if !ok {
		t.Fatalf("Expected %s to be an Int, got %T", path, n)
	}
	return i
}

func TestNibbleBitfield(t *testing.T) {
	buf := []byte{0x00}
	mem := bind(t, `struct { u8 a:4, b:4; } s;`, buf)

	a := mustInt(t, mem, "s.a")
	b := mustInt(t, mem, "s.b")
	if err := a.Set(0xF); err != nil {
		t.Fatalf("Failed to set a: %v", err)
	}

	if buf[0] != 0xF0 {
		t.Errorf("Expected buffer [0xF0], got [0x%02X]", buf[0])
	}
	if b.Get() != 0 {
		t.Errorf("Expected b to stay 0, got %d", b.Get())
	}

	if err := b.Set(0x3); err != nil {
		t.Fatalf("Failed to set b: %v", err)
	}
	if buf[0] != 0xF3 || a.Get() != 0xF {
		t.Errorf("Expected [0xF3] with a=0xF, got [0x%02X] a=0x%X", buf[0], a.Get())
	}

	var oor *codec.ValueOutOfRangeError
	if err := a.Set(0x10); !errors.As(err, &oor) {
		t.Errorf("Expected ValueOutOfRangeError, got %v", err)
	}
	if buf[0] != 0xF3 {
		t.Errorf("Failed set must not write, buffer is [0x%02X]", buf[0])
	}
}

func TestBigEndianBCDFrequency(t *testing.T) {
	buf := make([]byte, 4)
	mem := bind(t, `bbcd freq[4];`, buf)

	freq, err := mem.BCD("freq")
	if err != nil {
		t.Fatalf("Failed to get freq: %v", err)
	}
	if err := freq.Set(14439000); err != nil {
		t.Fatalf("Failed to set freq: %v", err)
	}
	if !bytes.Equal(buf, []byte{0x14, 0x43, 0x90, 0x00}) {
		t.Errorf("Unexpected BCD bytes % X", buf)
	}
	got, err := freq.Get()
	if err != nil || got != 14439000 {
		t.Errorf("Expected 14439000, got %d (%v)", got, err)
	}

	// Nine digits need five bytes.
	var oor *codec.ValueOutOfRangeError
	if err := freq.Set(144390000); !errors.As(err, &oor) {
		t.Errorf("Expected ValueOutOfRangeError for 144390000, got %v", err)
	}

	wide := bind(t, `bbcd freq[5];`, make([]byte, 5))
	wideFreq, _ := wide.BCD("freq")
	if err := wideFreq.Set(144390000); err != nil {
		t.Fatalf("Failed to set 5-byte freq: %v", err)
	}
	if got, _ := wideFreq.Get(); got != 144390000 {
		t.Errorf("Expected 144390000, got %d", got)
	}
}

func TestBCDBlankAndStrict(t *testing.T) {
	buf := bytes.Repeat([]byte{0xFF}, 8)
	mem := bind(t, `
	lbcd rx[4];
	#bcd strict;
	lbcd tx[4];
	`, buf)

	rx, _ := mem.BCD("rx")
	v, err := rx.Get()
	if err != nil {
		t.Fatalf("Expected no error decoding erased memory, got %v", err)
	}
	if v != codec.Blank || !rx.IsBlank() {
		t.Errorf("Expected blank sentinel, got %d", v)
	}

	tx, _ := mem.BCD("tx")
	var malformed *codec.MalformedBCDError
	if _, err := tx.Get(); !errors.As(err, &malformed) {
		t.Errorf("Expected MalformedBCDError in strict mode, got %v", err)
	}
}

func TestBCDByteFlags(t *testing.T) {
	buf := []byte{0x00, 0x90, 0x43, 0x14}
	mem := bind(t, `lbcd freq[4];`, buf)
	freq, _ := mem.BCD("freq")

	if got, _ := freq.Get(); got != 14439000 {
		t.Fatalf("Expected 14439000, got %d", got)
	}
	tens, ones, err := freq.Digits(3)
	if err != nil || tens != 1 || ones != 4 {
		t.Errorf("Expected digits 1,4, got %d,%d (%v)", tens, ones, err)
	}

	if err := freq.SetBits(3, 0x80); err != nil {
		t.Fatalf("Failed to set bits: %v", err)
	}
	if got, _ := freq.GetBits(3, 0xF0); got != 0x90 {
		t.Errorf("Expected high nibble 0x90, got 0x%02X", got)
	}
	if err := freq.ClearBits(3, 0x80); err != nil {
		t.Fatalf("Failed to clear bits: %v", err)
	}
	if buf[3] != 0x14 {
		t.Errorf("Expected byte restored to 0x14, got 0x%02X", buf[3])
	}

	var idx *IndexOutOfRangeError
	if err := freq.SetBits(4, 0x01); !errors.As(err, &idx) {
		t.Errorf("Expected IndexOutOfRangeError, got %v", err)
	}
}

func TestCharPadding(t *testing.T) {
	buf := make([]byte, 7)
	mem := bind(t, `char name[7];`, buf)
	name, _ := mem.Char("name")

	if err := name.Set("ABC"); err != nil {
		t.Fatalf("Failed to set name: %v", err)
	}
	if !bytes.Equal(buf, []byte("ABC\xFF\xFF\xFF\xFF")) {
		t.Errorf("Unexpected bytes %q", buf)
	}
	if name.String() != "ABC" {
		t.Errorf("Expected ABC, got %q", name.String())
	}

	var tooLong *codec.StringTooLongError
	if err := name.Set("ABCDEFGH"); !errors.As(err, &tooLong) {
		t.Errorf("Expected StringTooLongError, got %v", err)
	}
	if name.String() != "ABC" {
		t.Errorf("Failed set must not write, got %q", name.String())
	}
}

func TestStructArrayAtSeek(t *testing.T) {
	buf := make([]byte, 0x30)
	mem := bind(t, `
	#seekto 0x20;
	struct memory {
		u8 x;
	} memory[3];
	`, buf)

	x := mustInt(t, mem, "memory[1].x")
	if err := x.Set(5); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	for i, b := range buf {
		want := byte(0)
		if i == 0x21 {
			want = 5
		}
		if b != want {
			t.Errorf("Byte 0x%02X: expected %d, got %d", i, want, b)
		}
	}
	if x.Offset() != 0x21 || x.Name() != "memory[1].x" {
		t.Errorf("Unexpected node %s at 0x%X", x.Name(), x.Offset())
	}
}

func TestBindBufferTooSmall(t *testing.T) {
	layout, err := bitwise.Compile(`u8 data[100];`)
	if err != nil {
		t.Fatalf("Failed to compile: %v", err)
	}
	_, err = Bind(layout, make([]byte, 50))
	var small *BufferTooSmallError
	if !errors.As(err, &small) {
		t.Fatalf("Expected BufferTooSmallError, got %v", err)
	}
	if small.Need != 100 || small.Have != 50 {
		t.Errorf("Expected need 100 have 50, got %+v", small)
	}
}

func TestLittleEndianInt(t *testing.T) {
	buf := make([]byte, 2)
	mem := bind(t, `ul16 value;`, buf)
	v, _ := mem.Int("value")

	if err := v.Set(0x1234); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if v.Get() != 0x1234 {
		t.Errorf("Expected 0x1234, got 0x%X", v.Get())
	}
	if !bytes.Equal(buf, []byte{0x34, 0x12}) {
		t.Errorf("Expected [34 12], got % X", buf)
	}
}

func TestNonInterference(t *testing.T) {
	buf := make([]byte, 4)
	mem := bind(t, `
	ul16 lo:3, mid:9, hi:4;
	u8 a:1, b:7;
	u8 tail;
	`, buf)

	fields := []string{"lo", "mid", "hi", "a", "b", "tail"}
	for _, target := range fields {
		for _, fill := range []byte{0x00, 0xFF, 0xA5} {
			for i := range buf {
				buf[i] = fill
			}
			before := map[string]uint64{}
			for _, name := range fields {
				before[name] = mustInt(t, mem, name).Get()
			}

			field := mustInt(t, mem, target)
			flipped := before[target] ^ codec.Mask(field.Def().Width)
			if err := field.Set(flipped); err != nil {
				t.Fatalf("Failed to set %s: %v", target, err)
			}

			for _, name := range fields {
				got := mustInt(t, mem, name).Get()
				want := before[name]
				if name == target {
					want = flipped
				}
				if got != want {
					t.Errorf("fill 0x%02X, set %s: %s = 0x%X, want 0x%X", fill, target, name, got, want)
				}
			}
		}
	}
}

func TestIdempotentSet(t *testing.T) {
	buf := make([]byte, 8)
	mem := bind(t, `
	u8 x:5, y:3;
	lbcd f[3];
	char c[4];
	`, buf)

	apply := func() {
		mustInt(t, mem, "y").Set(5)
		f, _ := mem.BCD("f")
		f.Set(123456)
		c, _ := mem.Char("c")
		c.Set("ab")
	}
	apply()
	once := append([]byte(nil), buf...)
	apply()
	if !bytes.Equal(once, buf) {
		t.Errorf("Second set changed bytes: % X -> % X", once, buf)
	}
}

func TestOverlappingSeekFields(t *testing.T) {
	buf := []byte{0x34, 0x12}
	mem := bind(t, `
	ul16 word;
	#seekto 0;
	u8 lo;
	u8 hi;
	`, buf)

	if mustInt(t, mem, "word").Get() != 0x1234 {
		t.Error("Expected word 0x1234")
	}
	if mustInt(t, mem, "lo").Get() != 0x34 || mustInt(t, mem, "hi").Get() != 0x12 {
		t.Error("Expected lo/hi to decode the shared bytes")
	}
	mustInt(t, mem, "hi").Set(0xAB)
	if mustInt(t, mem, "word").Get() != 0xAB34 {
		t.Errorf("Expected word 0xAB34, got 0x%X", mustInt(t, mem, "word").Get())
	}
}

func TestUnionAliasing(t *testing.T) {
	buf := make([]byte, 2)
	mem := bind(t, `
	union {
		u16 word;
		struct {
			u8 hi;
			u8 lo;
		} bytes;
	} w;
	`, buf)

	if err := mustInt(t, mem, "w.word").Set(0xBEEF); err != nil {
		t.Fatalf("Failed to set word: %v", err)
	}
	if mustInt(t, mem, "w.bytes.hi").Get() != 0xBE || mustInt(t, mem, "w.bytes.lo").Get() != 0xEF {
		t.Errorf("Expected union members to alias, buffer % X", buf)
	}
}

func TestSignedRoundTrip(t *testing.T) {
	buf := make([]byte, 6)
	mem := bind(t, `
	i8 trim;
	il16 offset;
	i24 big;
	`, buf)

	cases := []struct {
		name string
		min  int64
		max  int64
	}{
		{"trim", -128, 127},
		{"offset", -32768, 32767},
		{"big", -8388608, 8388607},
	}
	for _, c := range cases {
		f := mustInt(t, mem, c.name)
		for _, v := range []int64{c.min, -1, 0, 1, c.max} {
			if err := f.SetInt(v); err != nil {
				t.Fatalf("Failed to set %s=%d: %v", c.name, v, err)
			}
			if got := f.GetInt(); got != v {
				t.Errorf("%s: expected %d, got %d", c.name, v, got)
			}
		}
		if err := f.SetInt(c.max + 1); err == nil {
			t.Errorf("%s: expected range error for %d", c.name, c.max+1)
		}
	}

	mustInt(t, mem, "offset").SetInt(-2)
	if buf[1] != 0xFE || buf[2] != 0xFF {
		t.Errorf("Expected il16 -2 as FE FF, got % X", buf[1:3])
	}
}

func TestUnsignedRoundTripAllWidths(t *testing.T) {
	buf := make([]byte, 2)
	mem := bind(t, `u16 a:3, b:13;`, buf)
	a := mustInt(t, mem, "a")
	b := mustInt(t, mem, "b")

	for v := uint64(0); v < 8; v++ {
		a.Set(v)
		if a.Get() != v {
			t.Fatalf("a: expected %d, got %d", v, a.Get())
		}
	}
	for v := uint64(0); v < 1<<13; v++ {
		b.Set(v)
		if b.Get() != v {
			t.Fatalf("b: expected %d, got %d", v, b.Get())
		}
	}
	if a.Get() != 7 {
		t.Errorf("Expected a to survive writes to b, got %d", a.Get())
	}
}

func TestBitArrays(t *testing.T) {
	buf := make([]byte, 3)
	mem := bind(t, `
	bit msb[16];
	lbit lsb[8];
	`, buf)

	b, err := mem.Bit("msb", 0)
	if err != nil {
		t.Fatalf("Failed to get msb[0]: %v", err)
	}
	b.Set(true)
	b9, _ := mem.Bit("msb", 9)
	b9.Set(true)
	l, _ := mem.Bit("lsb", 0)
	l.Set(true)

	if !bytes.Equal(buf, []byte{0x80, 0x40, 0x01}) {
		t.Errorf("Expected [80 40 01], got % X", buf)
	}

	arr, _ := mem.Array("lsb")
	values, err := arr.Values()
	if err != nil {
		t.Fatalf("Failed to read values: %v", err)
	}
	if values[0] != 1 || values[1] != 0 || len(values) != 8 {
		t.Errorf("Unexpected values %v", values)
	}

	var idx *IndexOutOfRangeError
	if _, err := mem.Bit("msb", 16); !errors.As(err, &idx) {
		t.Errorf("Expected IndexOutOfRangeError, got %v", err)
	}
}

func TestArraySetValidatesFirst(t *testing.T) {
	buf := make([]byte, 3)
	mem := bind(t, `u8 levels[3];`, buf)
	levels, _ := mem.Array("levels")

	if err := levels.Set([]uint64{1, 2, 3}); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := levels.Set([]uint64{9, 9, 300}); err == nil {
		t.Fatal("Expected range error")
	}
	if !bytes.Equal(buf, []byte{1, 2, 3}) {
		t.Errorf("Failed set must not write, got % X", buf)
	}

	var lm *LengthMismatchError
	if err := levels.Set([]uint64{1}); !errors.As(err, &lm) {
		t.Errorf("Expected LengthMismatchError, got %v", err)
	}
}

func TestZeroLengthArray(t *testing.T) {
	mem := bind(t, `u8 foo[0x0];`, nil)
	arr, err := mem.Array("foo")
	if err != nil {
		t.Fatalf("Failed to get array: %v", err)
	}
	if arr.Len() != 0 {
		t.Errorf("Expected empty array, got %d", arr.Len())
	}
	var idx *IndexOutOfRangeError
	if _, err := arr.Index(0); !errors.As(err, &idx) {
		t.Errorf("Expected IndexOutOfRangeError, got %v", err)
	}
}

func TestPathErrors(t *testing.T) {
	mem := bind(t, `
	struct { u8 x; } memory[2];
	u8 flat;
	`, make([]byte, 3))

	var unknown *UnknownFieldError
	if _, err := mem.Path("memory[0].y"); !errors.As(err, &unknown) {
		t.Errorf("Expected UnknownFieldError, got %v", err)
	}
	if unknown != nil && (unknown.Path != "memory[0]" || unknown.Name != "y") {
		t.Errorf("Unexpected error fields %+v", unknown)
	}

	var idx *IndexOutOfRangeError
	if _, err := mem.Path("memory[2].x"); !errors.As(err, &idx) {
		t.Errorf("Expected IndexOutOfRangeError, got %v", err)
	}
	if _, err := mem.Path("flat.x"); err == nil {
		t.Error("Expected error descending into a leaf")
	}
	if _, err := mem.Path("memory[x]"); err == nil {
		t.Error("Expected error for malformed index")
	}

	var kind *KindMismatchError
	if _, err := mem.Char("flat"); !errors.As(err, &kind) {
		t.Errorf("Expected KindMismatchError, got %v", err)
	}
}

func TestRawAndFill(t *testing.T) {
	buf := []byte{0xAA, 0x00, 0x00}
	mem := bind(t, `
	u8 hi:4, lo:4;
	struct { u8 a; u8 b; } pair;
	`, buf)

	lo := mustInt(t, mem, "lo")
	lo.Fill(0xFF)
	if buf[0] != 0xAF {
		t.Errorf("Expected fill to touch only lo, got 0x%02X", buf[0])
	}
	if err := lo.SetRaw([]byte{0x03}); err != nil {
		t.Fatalf("Failed to set raw: %v", err)
	}
	if buf[0] != 0xA3 {
		t.Errorf("Expected 0xA3, got 0x%02X", buf[0])
	}

	pair, _ := mem.Struct("pair")
	pair.Fill(0x11)
	if !bytes.Equal(pair.Raw(), []byte{0x11, 0x11}) {
		t.Errorf("Unexpected pair bytes % X", pair.Raw())
	}
	raw := pair.Raw()
	raw[0] = 0x99
	if buf[1] != 0x11 {
		t.Error("Raw must return a copy")
	}

	var lm *LengthMismatchError
	if err := pair.SetRaw([]byte{1}); !errors.As(err, &lm) {
		t.Errorf("Expected LengthMismatchError, got %v", err)
	}
	if pair.Size() != 2 || pair.Offset() != 1 {
		t.Errorf("Expected size 2 at 1, got %d at %d", pair.Size(), pair.Offset())
	}
}

func TestValueRoundTrip(t *testing.T) {
	buf := make([]byte, 22)
	mem := bind(t, `
	struct {
		lbcd freq[4];
		u8 power:2, mode:6;
		char name[6];
	} ch[2];
	`, buf)

	first, err := mem.Path("ch[0]")
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	err = first.SetValue(map[string]any{
		"freq":  uint64(14652000),
		"power": 2,
		"mode":  "0x11",
		"name":  "CALL",
	})
	if err != nil {
		t.Fatalf("Failed to set value: %v", err)
	}

	v, err := first.Value()
	if err != nil {
		t.Fatalf("Failed to get value: %v", err)
	}
	m := v.(map[string]any)
	if m["freq"] != uint64(14652000) || m["power"] != uint64(2) || m["mode"] != uint64(0x11) || m["name"] != "CALL" {
		t.Errorf("Unexpected value %v", m)
	}

	second, _ := mem.Path("ch[1]")
	before := second.Raw()
	err = second.SetValue(map[string]any{"power": 1, "name": "TOO LONG"})
	if err == nil {
		t.Fatal("Expected error for long name")
	}
	if !bytes.Equal(second.Raw(), before) {
		t.Error("Failed struct set must not write any member")
	}

	if err := second.SetValue(map[string]any{"nope": 1}); err == nil {
		t.Error("Expected unknown member error")
	}
	if err := mustInt(t, mem, "ch[1].power").SetValue(3.5); !errors.Is(err, ErrValueType) {
		t.Errorf("Expected ErrValueType, got %v", err)
	}
}

func TestDumpReflectsLiveBytes(t *testing.T) {
	buf := make([]byte, 6)
	mem := bind(t, `
	lbcd freq[4];
	u8 skip:1, pad:7;
	char c[1];
	`, buf)

	freq, _ := mem.BCD("freq")
	freq.Set(14439000)
	mustInt(t, mem, "skip").Set(1)

	out := Dump(mem)
	for _, want := range []string{
		"freq", "[00 90 43 14]", "14439000",
		"skip", "u8:1", "0x0004.0", "[80]",
		`"\x00"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected dump to contain %q:\n%s", want, out)
		}
	}

	buf[0] = 0x01
	if !strings.Contains(Dump(mem), "14439001") {
		t.Errorf("Expected dump to reflect new bytes:\n%s", Dump(mem))
	}
}

func TestDumpLittleEndianBitAddress(t *testing.T) {
	buf := make([]byte, 4)
	mem := bind(t, `
	struct {
		ul16 lo:4, hi:12;
	} w[2];
	`, buf)

	out := Dump(mem)
	for _, want := range []string{"0x0001.0", "0x0001.4", "0x0003.0", "0x0003.4"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected dump to contain %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "0x0000.0") {
		t.Errorf("Expected no bitfield at byte 0:\n%s", out)
	}
}
