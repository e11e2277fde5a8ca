// Package bitwise compiles memory layout schemas for radio clone images.
//
// A schema describes how a flat EEPROM image is divided into integers,
// bitfields, BCD numbers, text and nested structs. Compiling a schema produces
// an immutable Layout: every field's absolute offset, storage size and bit
// position is resolved once, so bound accessors (package memobj) never parse
// anything at runtime.
//
// # Schema text
//
//	#seekto 0x0010;
//	struct memory {
//	  lbcd rxfreq[4];
//	  lbcd txfreq[4];
//	  ul16 rxtone;
//	  u8 unknown:4,
//	     highpower:1,
//	     narrow:1,
//	     skip:2;
//	};
//	struct memory channels[16];
//
//	#seekto 0x0300;
//	#charpad 0x20;
//	char poweron_msg[7];
//	bit skipflags[16];
//
// Types are bit lbit u8 u16 ul16 u24 ul24 u32 ul32 u64 ul64 i8 i16 il16 i24
// il24 i32 il32 i64 il64 char lbcd bbcd. The "l" prefix selects little endian.
// Bitfield lists share one storage unit of the declared type, allocated from
// the most significant bit. char, lbcd and bbcd with a count are single
// multi-byte values; bit and lbit with a count are arrays of single bits.
//
// Directives: #seekto addr (absolute, may move backwards), #seek n (relative),
// #printoffset "label" (debug log of the cursor), #charpad byte and
// #bcd strict|blank.
//
// # Usage
//
//	layout, err := bitwise.Compile(src, bitwise.WithLogger(logger))
//	if err != nil {
//		return err // *bitwise.SchemaError
//	}
//	mem, err := memobj.Bind(layout, image)
//
// The same declarations can be built in Go with Seek, Struct, Array, Def and
// Bitfield, or loaded from YAML with ParseYAML.
package bitwise
