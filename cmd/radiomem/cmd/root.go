package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceMem/internal/config"
	"github.com/OpenTraceLab/OpenTraceMem/internal/logging"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/registry"
)

var (
	// Global flags
	cfgFile   string
	verbose   bool
	modelsDir string

	cfg    *config.Config
	logger = zap.NewNop()
	repo   *registry.MemoryRepository
)

var rootCmd = &cobra.Command{
	Use:   "radiomem",
	Short: "Radio memory image toolkit",
	Long: `Compile memory-layout schemas, inspect and edit radio clone images, and
clone images to and from radios over a programming cable.

Examples:
  radiomem models                                   # List known radio models
  radiomem download -m BF-888 -p /dev/ttyUSB0 -o bf.img
  radiomem dump bf.img                              # Decode every field
  radiomem get bf.img settings2.squelchlevel        # Read one field
  radiomem set bf.img memory[0].rxfreq 14652000     # Edit one field
  radiomem compile radio.mem                        # Show a schema's layout`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default radiomem.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&modelsDir, "models", "", "extra directory of model manifests")
}

// setup loads configuration, builds the logger and fills the model registry.
func setup(cmd *cobra.Command, args []string) error {
	c, _, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if verbose {
		c.Log.Level = "debug"
	}
	if modelsDir != "" {
		c.Models.Dir = modelsDir
	}
	cfg = c
	logger = logging.New(c.Log)

	r, err := registry.Builtin(registry.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("load built-in models: %w", err)
	}
	if c.Models.Dir != "" {
		if err := r.LoadDir(c.Models.Dir); err != nil {
			return err
		}
	}
	repo = r
	return nil
}
