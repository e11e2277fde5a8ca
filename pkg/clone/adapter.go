// Package clone moves memory images between a radio and the host using the
// block-oriented clone protocol common to many handheld radios.
package clone

import (
	"context"
	"errors"
	"fmt"
)

// AdapterInfo describes the radio link an adapter talks to.
type AdapterInfo struct {
	Name      string
	Port      string
	Ident     string // identification string returned by the radio
	BlockSize int
	Baud      int
	Notes     string
}

// Status reports clone progress. Cur and Max are byte counts.
type Status struct {
	Msg string
	Cur int
	Max int
}

// Percent returns progress in the range 0-100.
func (s Status) Percent() float64 {
	if s.Max <= 0 {
		return 0
	}
	return float64(s.Cur) * 100 / float64(s.Max)
}

// Progress receives a Status after each block.
type Progress func(Status)

// Adapter abstracts a physical or simulated radio connection.
type Adapter interface {
	Info() (AdapterInfo, error)
	Download(ctx context.Context, size int, progress Progress) ([]byte, error)
	Upload(ctx context.Context, data []byte, progress Progress) error
	Close() error
}

var (
	// ErrNoResponse is returned when the radio does not answer.
	ErrNoResponse = errors.New("clone: no response from radio")
	// ErrRefused is returned when the radio rejects programming mode.
	ErrRefused = errors.New("clone: radio refused programming mode")
	// ErrBadIdent is returned when the identification string is unexpected.
	ErrBadIdent = errors.New("clone: unexpected radio identification")
	// ErrNAK is returned when the radio does not acknowledge a block.
	ErrNAK = errors.New("clone: block not acknowledged")
)

// BlockError reports the block that failed during a transfer.
type BlockError struct {
	Op   string // "read" or "write"
	Addr int
	Err  error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("clone: %s block at 0x%04X: %v", e.Op, e.Addr, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}
