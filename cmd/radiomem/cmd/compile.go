package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
)

var (
	strictBCD  bool
	baseOffset int
)

var compileCmd = &cobra.Command{
	Use:   "compile <schema>",
	Short: "Compile a schema and print its layout",
	Long: `Compile a memory-layout schema, text or YAML (.yaml/.yml), and print every
field with its address and size. Use --verbose to see #printoffset output
and seek diagnostics.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().BoolVar(&strictBCD, "strict-bcd", false, "reject malformed BCD instead of reading it as blank")
	compileCmd.Flags().IntVar(&baseOffset, "base", 0, "address of the first byte of the schema")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	opts := []bitwise.Option{bitwise.WithLogger(logger), bitwise.WithBaseOffset(baseOffset)}
	if strictBCD {
		opts = append(opts, bitwise.WithStrictBCD())
	}

	path := args[0]
	var (
		layout *bitwise.Layout
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		layout, err = bitwise.CompileYAML(f, opts...)
	default:
		layout, err = bitwise.CompileFile(path, opts...)
	}
	if err != nil {
		return err
	}

	fmt.Println(heading(path))
	fmt.Print(layout.Describe())
	return nil
}
