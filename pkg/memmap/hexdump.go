package memmap

import (
	"fmt"
	"strings"
)

const hexdumpWidth = 8

// Hexdump renders data eight bytes per line: a decimal address, the hex
// bytes and their printable ASCII. Addresses start at base.
//
//	016: 43 41 4c 4c ff ff ff ff   CALL....
func Hexdump(data []byte, base int) string {
	var sb strings.Builder
	for off := 0; off < len(data); off += hexdumpWidth {
		fmt.Fprintf(&sb, "%03d: ", base+off)
		for j := 0; j < hexdumpWidth; j++ {
			if off+j < len(data) {
				fmt.Fprintf(&sb, "%02x ", data[off+j])
			} else {
				sb.WriteString("   ")
			}
		}
		sb.WriteString("  ")
		for j := 0; j < hexdumpWidth; j++ {
			c := byte('.')
			if off+j < len(data) {
				c = data[off+j]
			}
			if c > 0x20 && c < 0x7E {
				sb.WriteByte(c)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
