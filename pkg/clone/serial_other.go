//go:build !linux

package clone

import (
	"fmt"
	"os"
	"time"
)

// OpenSerial is only implemented on Linux.
func OpenSerial(path string, baud int, timeout time.Duration) (*os.File, error) {
	return nil, fmt.Errorf("clone: serial ports are not supported on this platform")
}
