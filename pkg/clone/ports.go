package clone

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/google/gousb"
)

// PortKind categorizes programming cable families.
type PortKind string

const (
	PortKindProlific PortKind = "pl2303"
	PortKindFTDI     PortKind = "ftdi"
	PortKindCH340    PortKind = "ch340"
	PortKindCP210x   PortKind = "cp210x"
	PortKindTTY      PortKind = "tty"
	PortKindSim      PortKind = "simulator"
)

// PortInfo describes a programming cable or serial device.
type PortInfo struct {
	Kind        PortKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Path        string
}

// Label returns a user-friendly description for the port.
func (p PortInfo) Label() string {
	switch {
	case p.Path != "" && p.Description != "":
		return fmt.Sprintf("%s (%s)", p.Path, p.Description)
	case p.Description != "":
		return p.Description
	case p.Path != "":
		return p.Path
	}
	return fmt.Sprintf("USB %04X:%04X", p.VendorID, p.ProductID)
}

type knownCable struct {
	Kind        PortKind
	VendorID    uint16
	ProductID   uint16
	Description string
}

var knownCables = []knownCable{
	{PortKindProlific, 0x067b, 0x2303, "Prolific PL2303 programming cable"},
	{PortKindProlific, 0x067b, 0x23a3, "Prolific PL2303GC programming cable"},
	{PortKindFTDI, 0x0403, 0x6001, "FTDI FT232R programming cable"},
	{PortKindFTDI, 0x0403, 0x6015, "FTDI FT231X programming cable"},
	{PortKindCH340, 0x1a86, 0x7523, "WCH CH340 programming cable"},
	{PortKindCP210x, 0x10c4, 0xea60, "Silicon Labs CP210x programming cable"},
}

// ttyPatterns lists the device nodes USB serial drivers create.
var ttyPatterns = []string{"/dev/ttyUSB*", "/dev/ttyACM*", "/dev/cu.usbserial*"}

// DiscoverPorts lists USB programming cables with known VID/PID pairs, the
// serial device nodes present, and always a simulator entry.
func DiscoverPorts(ctx context.Context) ([]PortInfo, error) {
	var results []PortInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if info, ok := classifyCable(desc); ok {
			results = append(results, info)
		}
		return false
	})
	if err != nil && err != gousb.ErrorAccess {
		return results, err
	}

	results = append(results, serialNodes()...)
	results = append(results, PortInfo{
		Kind:        PortKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, nil
}

func classifyCable(desc *gousb.DeviceDesc) (PortInfo, bool) {
	for _, known := range knownCables {
		if uint16(desc.Vendor) == known.VendorID && uint16(desc.Product) == known.ProductID {
			return PortInfo{
				Kind:        known.Kind,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return PortInfo{}, false
}

func serialNodes() []PortInfo {
	var paths []string
	for _, pattern := range ttyPatterns {
		matches, _ := filepath.Glob(pattern)
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	out := make([]PortInfo, 0, len(paths))
	for _, p := range paths {
		out = append(out, PortInfo{Kind: PortKindTTY, Path: p})
	}
	return out
}
