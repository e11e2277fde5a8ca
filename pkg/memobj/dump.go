package memobj

import (
	"fmt"
	"io"
	"strings"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise/codec"
)

// Dump renders n and everything below it, one leaf per line, with the live
// backing bytes next to the decoded value:
//
//	memory[1].freq  lbcd   0x0024     [00 90 43 14]  14439000
//	memory[1].skip  u8:1   0x0028.6   [02]           1
func Dump(n Node) string {
	var sb strings.Builder
	WriteDump(&sb, n)
	return sb.String()
}

// WriteDump writes the Dump rendering of n to w.
func WriteDump(w io.Writer, n Node) {
	var rows [][5]string
	collect(n, &rows)

	widths := [4]int{}
	for _, r := range rows {
		for i := range widths {
			widths[i] = max(widths[i], len(r[i]))
		}
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%-*s  %-*s  %-*s  %-*s  %s\n",
			widths[0], r[0], widths[1], r[1], widths[2], r[2], widths[3], r[3], r[4])
	}
}

func collect(n Node, rows *[][5]string) {
	switch n := n.(type) {
	case *Struct:
		for _, m := range n.Members() {
			collect(m, rows)
		}
		return
	case *Array:
		for _, e := range n.Elements() {
			collect(e, rows)
		}
		return
	}

	f := n.Def()
	typ := f.Type
	addr := fmt.Sprintf("0x%04X", n.Offset())
	if f.Width != f.Size*8 {
		typ = fmt.Sprintf("%s:%d", f.Type, f.Width)
		msb, bit := f.MSB()
		addr = fmt.Sprintf("0x%04X.%d", msb+n.Offset()-f.Offset, bit)
	}
	*rows = append(*rows, [5]string{n.Name(), typ, addr, hexBytes(n.Raw()), describe(n)})
}

func describe(n Node) string {
	switch n := n.(type) {
	case *Char:
		return fmt.Sprintf("%q", n.String())
	case *BCD:
		v, err := n.Get()
		if err != nil {
			return "<" + err.Error() + ">"
		}
		if v == codec.Blank {
			return "<blank>"
		}
		return fmt.Sprintf("%d", v)
	case *Int:
		if n.Def().Signed {
			return fmt.Sprintf("%d", n.GetInt())
		}
		v := n.Get()
		if n.Def().Width > 8 {
			return fmt.Sprintf("%d (0x%X)", v, v)
		}
		return fmt.Sprintf("%d", v)
	case *Bit:
		return fmt.Sprintf("%t", n.Get())
	}
	return ""
}

func hexBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02X", c)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
