package clone

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/gousb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern(n int) []byte {
	mem := make([]byte, n)
	for i := range mem {
		mem[i] = byte(i * 7)
	}
	return mem
}

func h777Config() BlockConfig {
	return BlockConfig{
		BlockSize: 8,
		Ident:     "P3107",
		Ranges:    []Range{{0x0000, 0x0110}, {0x02B0, 0x02C0}, {0x0380, 0x03E0}},
	}
}

func TestDownload(t *testing.T) {
	mem := pattern(0x03E0)
	sim := NewSimAdapter(mem, h777Config())

	var last Status
	calls := 0
	data, err := sim.Download(context.Background(), len(mem), func(s Status) {
		calls++
		last = s
	})
	require.NoError(t, err)
	assert.Equal(t, mem, data)
	assert.Equal(t, 0x03E0/8, calls)
	assert.Equal(t, len(mem), last.Cur)
	assert.InDelta(t, 100, last.Percent(), 0.001)

	reads, writes, exits := sim.Radio.Counts()
	assert.Equal(t, 0x03E0/8, reads)
	assert.Zero(t, writes)
	assert.Equal(t, 1, exits)

	info, err := sim.Info()
	require.NoError(t, err)
	assert.Equal(t, "P3107", info.Ident)
	assert.Equal(t, "Simulator", info.Name)
}

func TestDownloadPartialBlock(t *testing.T) {
	mem := pattern(20)
	sim := NewSimAdapter(mem, BlockConfig{BlockSize: 16, Ident: "DEMO8"})
	data, err := sim.Download(context.Background(), 20, nil)
	require.NoError(t, err)
	assert.Equal(t, mem, data)
}

func TestUploadRanges(t *testing.T) {
	sim := NewSimAdapter(make([]byte, 0x03E0), h777Config())
	image := bytes.Repeat([]byte{0xAA}, 0x03E0)

	require.NoError(t, sim.Upload(context.Background(), image, nil))

	got := sim.Radio.Memory()
	assert.Equal(t, image[:0x0110], got[:0x0110])
	assert.Equal(t, image[0x02B0:0x02C0], got[0x02B0:0x02C0])
	assert.Equal(t, image[0x0380:], got[0x0380:])
	assert.Equal(t, make([]byte, 0x02B0-0x0110), got[0x0110:0x02B0], "gaps between ranges are not written")

	_, writes, _ := sim.Radio.Counts()
	assert.Equal(t, (0x0110+0x10+0x60)/8, writes)
}

func TestUploadRangeOutsideImage(t *testing.T) {
	sim := NewSimAdapter(make([]byte, 64), BlockConfig{Ident: "X", Ranges: []Range{{0, 128}}})
	err := sim.Upload(context.Background(), make([]byte, 64), nil)
	assert.ErrorContains(t, err, "outside")
}

func TestBlockRejected(t *testing.T) {
	sim := NewSimAdapter(pattern(64), BlockConfig{Ident: "X"})
	sim.Radio.OnBlock = func(op BlockOp, addr int, _ []byte) error {
		if op == BlockRead && addr == 0x20 {
			return errors.New("bad block")
		}
		return nil
	}

	_, err := sim.Download(context.Background(), 64, nil)
	var blockErr *BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, 0x20, blockErr.Addr)
	assert.Equal(t, "read", blockErr.Op)
	assert.ErrorIs(t, err, ErrNAK)

	_, _, exits := sim.Radio.Counts()
	assert.Equal(t, 1, exits, "programming mode is left after a failure")
}

func TestWriteRejected(t *testing.T) {
	sim := NewSimAdapter(make([]byte, 32), BlockConfig{Ident: "X"})
	sim.Radio.OnBlock = func(op BlockOp, addr int, data []byte) error {
		if op == BlockWrite && data[0] == 0xEE {
			return errors.New("locked")
		}
		return nil
	}
	image := make([]byte, 32)
	image[16] = 0xEE

	err := sim.Upload(context.Background(), image, nil)
	var blockErr *BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, "write", blockErr.Op)
	assert.Equal(t, 16, blockErr.Addr)
}

func TestHandshakeErrors(t *testing.T) {
	sim := NewSimAdapter(pattern(16), BlockConfig{Ident: "P3107"})
	sim.Radio.Ident = "UV5R"
	_, err := sim.Download(context.Background(), 16, nil)
	assert.ErrorIs(t, err, ErrBadIdent)

	sim = NewSimAdapter(pattern(16), BlockConfig{Ident: "P3107"})
	sim.Radio.Magic = []byte("PASSWORD")
	_, err = sim.Download(context.Background(), 16, nil)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestSilentRadio(t *testing.T) {
	line := struct {
		io.Reader
		io.Writer
	}{strings.NewReader(""), io.Discard}
	a := NewBlockAdapter(line, BlockConfig{})
	_, err := a.Download(context.Background(), 8, nil)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestDownloadCancelled(t *testing.T) {
	sim := NewSimAdapter(pattern(64), BlockConfig{Ident: "X"})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := sim.Download(ctx, 64, func(s Status) {
		if s.Cur == 16 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	reads, _, exits := sim.Radio.Counts()
	assert.Equal(t, 2, reads)
	assert.Equal(t, 1, exits)
}

func TestDownloadInvalidSize(t *testing.T) {
	sim := NewSimAdapter(pattern(8), BlockConfig{Ident: "X"})
	_, err := sim.Download(context.Background(), 0, nil)
	assert.Error(t, err)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	sim := NewSimAdapter(pattern(32), BlockConfig{Ident: "X"}, WithMetrics(m))
	_, err = sim.Download(context.Background(), 32, nil)
	require.NoError(t, err)
	require.NoError(t, sim.Upload(context.Background(), pattern(32)[:16], nil))

	expected := `
# HELP radiomem_clone_bytes_total Bytes transferred, by operation.
# TYPE radiomem_clone_bytes_total counter
radiomem_clone_bytes_total{op="read"} 32
radiomem_clone_bytes_total{op="write"} 16
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected), "radiomem_clone_bytes_total")
	assert.NoError(t, err)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.blocks.WithLabelValues("read")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.blocks.WithLabelValues("write")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}

func TestClassifyCable(t *testing.T) {
	info, ok := classifyCable(&gousb.DeviceDesc{Vendor: 0x067b, Product: 0x2303})
	require.True(t, ok)
	assert.Equal(t, PortKindProlific, info.Kind)
	assert.Contains(t, info.Label(), "PL2303")

	_, ok = classifyCable(&gousb.DeviceDesc{Vendor: 0x1234, Product: 0x5678})
	assert.False(t, ok)

	assert.Equal(t, "/dev/ttyUSB0", PortInfo{Path: "/dev/ttyUSB0"}.Label())
	assert.Equal(t, "USB 0403:6001", PortInfo{VendorID: 0x0403, ProductID: 0x6001}.Label())
}
