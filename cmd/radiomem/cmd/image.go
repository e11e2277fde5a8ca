package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/bitwise"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/memmap"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/memobj"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/registry"
)

var (
	modelName  string
	dumpHex    bool
	dumpPath   string
	setOutFile string
)

var dumpCmd = &cobra.Command{
	Use:   "dump <image>",
	Short: "Decode every field of an image",
	Long: `Bind the model's schema to an image and print each field with its address,
raw bytes and decoded value. The model is taken from --model, the image
metadata, or detected from the image size.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

var getCmd = &cobra.Command{
	Use:   "get <image> <path>",
	Short: "Print one field of an image",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var setCmd = &cobra.Command{
	Use:   "set <image> <path> <value>",
	Short: "Change one field of an image",
	Long: `Encode value into the field at path and write the image back. Integers
accept decimal or 0x-prefixed hex; strings are padded with the schema's pad
byte. The image is rewritten in place unless --out is given.`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

func init() {
	for _, c := range []*cobra.Command{dumpCmd, getCmd, setCmd} {
		c.Flags().StringVarP(&modelName, "model", "m", "", "radio model (default: from image)")
		rootCmd.AddCommand(c)
	}
	dumpCmd.Flags().BoolVar(&dumpHex, "hex", false, "print a hexdump instead of decoded fields")
	dumpCmd.Flags().StringVar(&dumpPath, "path", "", "only dump the field at this path")
	setCmd.Flags().StringVarP(&setOutFile, "out", "o", "", "write the edited image here")
}

// resolveModel picks the model for img from the --model flag, the image
// metadata or the image size, in that order.
func resolveModel(img *memmap.Image) (*registry.Model, error) {
	if modelName != "" {
		return repo.Lookup(modelName)
	}
	if meta := img.Metadata(); meta != nil && meta.Model != "" {
		id := (&registry.Model{Vendor: meta.Vendor, Model: meta.Model, Variant: meta.Variant}).ID()
		return repo.Lookup(id)
	}
	found := repo.Detect(img.Len())
	switch len(found) {
	case 1:
		logger.Debug("model detected from image size")
		return found[0], nil
	case 0:
		return nil, fmt.Errorf("no model matches a %d byte image; use --model", img.Len())
	default:
		return nil, fmt.Errorf("%d models match a %d byte image; use --model", len(found), img.Len())
	}
}

// openImage loads path and binds the matching model's layout.
func openImage(path string) (*memmap.Image, *bitwise.Layout, error) {
	img, err := memmap.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	model, err := resolveModel(img)
	if err != nil {
		return nil, nil, err
	}
	layout, err := model.Layout(bitwise.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return img, layout, nil
}

func lookup(mem *memobj.Struct, path string) (memobj.Node, error) {
	if path == "" {
		return mem, nil
	}
	return mem.Path(path)
}

func runDump(cmd *cobra.Command, args []string) error {
	img, layout, err := openImage(args[0])
	if err != nil {
		return err
	}
	if dumpHex {
		fmt.Print(img.Printable(0, img.Len()))
		return nil
	}
	mem, err := img.Bind(layout)
	if err != nil {
		return err
	}
	node, err := lookup(mem, dumpPath)
	if err != nil {
		return err
	}
	fmt.Println(heading(fmt.Sprintf("%s (%d bytes, layout %d bytes)", args[0], img.Len(), layout.Size())))
	memobj.WriteDump(os.Stdout, node)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	img, layout, err := openImage(args[0])
	if err != nil {
		return err
	}
	mem, err := img.Bind(layout)
	if err != nil {
		return err
	}
	node, err := mem.Path(args[1])
	if err != nil {
		return err
	}
	if !node.Def().IsLeaf() {
		memobj.WriteDump(os.Stdout, node)
		return nil
	}
	v, err := node.Value()
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func runSet(cmd *cobra.Command, args []string) error {
	img, layout, err := openImage(args[0])
	if err != nil {
		return err
	}
	path, value := args[1], args[2]
	err = img.Edit(layout, func(mem *memobj.Struct) error {
		node, err := mem.Path(path)
		if err != nil {
			return err
		}
		return node.SetValue(value)
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}

	out := args[0]
	if setOutFile != "" {
		out = setOutFile
	}
	if err := img.SaveFile(out); err != nil {
		return err
	}
	logger.Debug("image written")
	fmt.Printf("%s %s = %s\n", success("updated"), path, value)
	return nil
}
