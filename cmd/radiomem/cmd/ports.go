package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/clone"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List programming cables and serial ports",
	Long: `Scan USB for known programming cables (PL2303, FTDI, CH340, CP210x) and list
the serial device nodes present. The simulator is always listed so commands
can be exercised without hardware.`,
	Args: cobra.NoArgs,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ports, err := clone.DiscoverPorts(ctx)
	if err != nil {
		return fmt.Errorf("discover ports: %w", err)
	}

	fmt.Println(heading("Detected ports:"))
	for _, p := range ports {
		if p.VendorID != 0 {
			fmt.Printf("  - %s [%s] (VID:PID %04X:%04X)\n", p.Label(), p.Kind, p.VendorID, p.ProductID)
			continue
		}
		fmt.Printf("  - %s [%s]\n", p.Label(), p.Kind)
	}
	return nil
}
