// Package codec holds the primitive encoders and decoders used by bound memory
// objects. Every function works on a caller supplied byte slice and never
// allocates a copy of it.
//
// Integer fields, including bitfields, are described by a storage unit (the
// bytes of the declared type, read in its byte order) plus a shift and width
// inside that unit. A u8 bitfield "a:4" therefore has shift 4 and width 4, and
// writing it rewrites the byte with the low nibble preserved.
//
// BCD fields pack two decimal digits per byte. Decoding bytes that are not
// valid BCD either yields Blank or fails, depending on BCDMode.
//
// Char fields are byte-per-rune text padded with a configurable pad byte.
package codec
