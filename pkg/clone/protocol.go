package clone

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// Control bytes used by the clone protocol.
const (
	STX = 0x02
	ACK = 0x06
	NAK = 0x15

	cmdRead  = 'R'
	cmdWrite = 'W'
	cmdExit  = 'E'

	identLen = 8
)

// Range is a half-open address range [Start, End) of the image.
type Range struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// BlockConfig parameterises the clone handshake and block transfers.
type BlockConfig struct {
	BlockSize int
	// Ident is the expected prefix of the radio's identification reply.
	Ident string
	// Magic is sent after STX to enter programming mode.
	Magic []byte
	// Settle is the pause between STX and Magic.
	Settle time.Duration
	// Ranges lists the regions written on upload. Empty means the whole image.
	Ranges []Range
}

// DefaultMagic is the programming-mode password for H-777 family radios.
var DefaultMagic = []byte("PROGRAM")

func (c BlockConfig) withDefaults() BlockConfig {
	if c.BlockSize <= 0 {
		c.BlockSize = 8
	}
	// The length field of a block header is one byte.
	if c.BlockSize > 0xFF {
		c.BlockSize = 0xFF
	}
	if len(c.Magic) == 0 {
		c.Magic = DefaultMagic
	}
	return c
}

// BlockAdapter speaks the block clone protocol over any byte stream.
type BlockAdapter struct {
	rw      io.ReadWriter
	cfg     BlockConfig
	port    string
	baud    int
	log     *zap.Logger
	metrics *Metrics
	ident   []byte
}

// Option configures a BlockAdapter.
type Option func(*BlockAdapter)

// WithLogger sets the adapter logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *BlockAdapter) {
		if logger != nil {
			a.log = logger
		}
	}
}

// WithMetrics records transfer counters in m.
func WithMetrics(m *Metrics) Option {
	return func(a *BlockAdapter) { a.metrics = m }
}

// WithPort records the port name and baud rate reported by Info.
func WithPort(name string, baud int) Option {
	return func(a *BlockAdapter) {
		a.port = name
		a.baud = baud
	}
}

// NewBlockAdapter wraps rw. If rw implements io.Closer, Close closes it.
func NewBlockAdapter(rw io.ReadWriter, cfg BlockConfig, opts ...Option) *BlockAdapter {
	a := &BlockAdapter{
		rw:  rw,
		cfg: cfg.withDefaults(),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Info implements the Adapter interface. Ident is only known after a
// transfer has entered programming mode.
func (a *BlockAdapter) Info() (AdapterInfo, error) {
	return AdapterInfo{
		Name:      "Block clone",
		Port:      a.port,
		Ident:     string(bytes.TrimRight(a.ident, "\x00 ")),
		BlockSize: a.cfg.BlockSize,
		Baud:      a.baud,
	}, nil
}

// Close implements the Adapter interface.
func (a *BlockAdapter) Close() error {
	if c, ok := a.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Download reads size bytes from the radio starting at address zero.
func (a *BlockAdapter) Download(ctx context.Context, size int, progress Progress) ([]byte, error) {
	if size <= 0 || size > 0xFFFF+1 {
		return nil, fmt.Errorf("clone: invalid image size %d", size)
	}
	if err := a.enter(ctx); err != nil {
		return nil, err
	}
	start := time.Now()
	data := make([]byte, 0, size)
	status := Status{Msg: "Cloning from radio", Max: size}
	for addr := 0; addr < size; addr += a.cfg.BlockSize {
		if err := ctx.Err(); err != nil {
			a.exit()
			return nil, err
		}
		n := min(a.cfg.BlockSize, size-addr)
		block, err := a.readBlock(addr, n)
		if err != nil {
			a.metrics.failed("read")
			a.exit()
			return nil, &BlockError{Op: "read", Addr: addr, Err: err}
		}
		a.metrics.transferred("read", n)
		data = append(data, block...)
		status.Cur = addr + n
		if progress != nil {
			progress(status)
		}
	}
	a.exit()
	a.metrics.observe("read", time.Since(start))
	a.log.Info("download complete", zap.Int("bytes", len(data)), zap.Duration("elapsed", time.Since(start)))
	return data, nil
}

// Upload writes data to the radio, limited to the configured ranges.
func (a *BlockAdapter) Upload(ctx context.Context, data []byte, progress Progress) error {
	ranges := a.cfg.Ranges
	if len(ranges) == 0 {
		ranges = []Range{{Start: 0, End: len(data)}}
	}
	total := 0
	for _, r := range ranges {
		if r.Start < 0 || r.End > len(data) || r.Start >= r.End {
			return fmt.Errorf("clone: upload range 0x%04X-0x%04X outside %d byte image", r.Start, r.End, len(data))
		}
		total += r.End - r.Start
	}
	if err := a.enter(ctx); err != nil {
		return err
	}
	start := time.Now()
	status := Status{Msg: "Cloning to radio", Max: total}
	for _, r := range ranges {
		for addr := r.Start; addr < r.End; addr += a.cfg.BlockSize {
			if err := ctx.Err(); err != nil {
				a.exit()
				return err
			}
			end := min(addr+a.cfg.BlockSize, r.End)
			if err := a.writeBlock(addr, data[addr:end]); err != nil {
				a.metrics.failed("write")
				a.exit()
				return &BlockError{Op: "write", Addr: addr, Err: err}
			}
			a.metrics.transferred("write", end-addr)
			status.Cur += end - addr
			if progress != nil {
				progress(status)
			}
		}
	}
	a.exit()
	a.metrics.observe("write", time.Since(start))
	a.log.Info("upload complete", zap.Int("bytes", total), zap.Duration("elapsed", time.Since(start)))
	return nil
}

// enter performs the programming-mode handshake.
func (a *BlockAdapter) enter(ctx context.Context) error {
	if _, err := a.rw.Write([]byte{STX}); err != nil {
		return fmt.Errorf("clone: write: %w", err)
	}
	if a.cfg.Settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(a.cfg.Settle):
		}
	}
	if _, err := a.rw.Write(a.cfg.Magic); err != nil {
		return fmt.Errorf("clone: write: %w", err)
	}
	if err := a.expectACK(); err != nil {
		if errors.Is(err, ErrNoResponse) {
			return err
		}
		return ErrRefused
	}

	if _, err := a.rw.Write([]byte{STX}); err != nil {
		return fmt.Errorf("clone: write: %w", err)
	}
	ident := make([]byte, identLen)
	if err := a.read(ident); err != nil {
		return err
	}
	if !bytes.HasPrefix(ident, []byte(a.cfg.Ident)) {
		a.log.Warn("unexpected ident", zap.Binary("ident", ident), zap.String("want", a.cfg.Ident))
		return fmt.Errorf("%w: %q", ErrBadIdent, ident)
	}
	a.ident = ident
	a.log.Debug("radio identified", zap.ByteString("ident", bytes.TrimRight(ident, "\x00 ")))

	if _, err := a.rw.Write([]byte{ACK}); err != nil {
		return fmt.Errorf("clone: write: %w", err)
	}
	if err := a.expectACK(); err != nil {
		if errors.Is(err, ErrNoResponse) {
			return err
		}
		return ErrRefused
	}
	return nil
}

func (a *BlockAdapter) exit() {
	if _, err := a.rw.Write([]byte{cmdExit}); err != nil {
		a.log.Warn("failed to leave programming mode", zap.Error(err))
	}
}

func blockHeader(op byte, addr, n int) []byte {
	return []byte{op, byte(addr >> 8), byte(addr), byte(n)}
}

func (a *BlockAdapter) readBlock(addr, n int) ([]byte, error) {
	cmd := blockHeader(cmdRead, addr, n)
	if _, err := a.rw.Write(cmd); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	resp := make([]byte, 4+n)
	if err := a.read(resp[:1]); err != nil {
		return nil, err
	}
	if resp[0] == NAK {
		return nil, ErrNAK
	}
	if err := a.read(resp[1:]); err != nil {
		return nil, err
	}
	want := blockHeader(cmdWrite, addr, n)
	if !bytes.Equal(resp[:4], want) {
		return nil, fmt.Errorf("unexpected response header % X", resp[:4])
	}
	if _, err := a.rw.Write([]byte{ACK}); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	if err := a.expectACK(); err != nil {
		return nil, err
	}
	a.log.Debug("read block", zap.Int("addr", addr), zap.Int("len", n))
	return resp[4:], nil
}

func (a *BlockAdapter) writeBlock(addr int, data []byte) error {
	cmd := append(blockHeader(cmdWrite, addr, len(data)), data...)
	if _, err := a.rw.Write(cmd); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := a.expectACK(); err != nil {
		return err
	}
	a.log.Debug("wrote block", zap.Int("addr", addr), zap.Int("len", len(data)))
	return nil
}

func (a *BlockAdapter) expectACK() error {
	var b [1]byte
	if err := a.read(b[:]); err != nil {
		return err
	}
	if b[0] != ACK {
		return ErrNAK
	}
	return nil
}

// read fills p. A short read is reported as ErrNoResponse, which is how a
// timed-out serial port surfaces.
func (a *BlockAdapter) read(p []byte) error {
	if _, err := io.ReadFull(a.rw, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrNoResponse
		}
		return fmt.Errorf("clone: read: %w", err)
	}
	return nil
}
