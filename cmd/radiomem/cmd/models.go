package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known radio models",
	Long: `Print the built-in models and those loaded from --models or models.dir,
with their image size, clone block size and compiled layout size.`,
	Args: cobra.NoArgs,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	models := repo.Models()
	if len(models) == 0 {
		fmt.Println("No models found.")
		return nil
	}

	fmt.Println(heading("Known radio models:"))
	for _, m := range models {
		layout, err := m.Layout(bitwise.WithLogger(logger))
		if err != nil {
			fmt.Printf("  - %-28s %s\n", m.ID(), label("schema error: "+err.Error()))
			continue
		}
		fmt.Printf("  - %-28s memsize 0x%04X  block %3d  baud %6d  layout %d bytes\n",
			m.ID(), m.MemSize, m.BlockSize, m.Baud, layout.Size())
	}
	return nil
}
