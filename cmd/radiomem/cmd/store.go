package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/imagestore"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/memmap"
)

var (
	storePath  string
	storeNote  string
	storeModel string
	storeOut   string
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage archived images",
	Long: `Archive images in a local sqlite database and get them back later. The
database defaults to store.path from the config.`,
}

var storeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived images",
	Args:  cobra.NoArgs,
	RunE:  runStoreList,
}

var storeSaveCmd = &cobra.Command{
	Use:   "save <image>",
	Short: "Archive an image file",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreSave,
}

var storeGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Write an archived image to a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreGet,
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove an archived image",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreDelete,
}

func init() {
	storeCmd.PersistentFlags().StringVar(&storePath, "db", "", "image database (default store.path)")
	storeListCmd.Flags().StringVarP(&storeModel, "model", "m", "", "only list images of this model")
	storeSaveCmd.Flags().StringVar(&storeNote, "note", "", "note stored with the image")
	storeSaveCmd.Flags().StringVarP(&storeModel, "model", "m", "", "model name (default: from image)")
	storeGetCmd.Flags().StringVarP(&storeOut, "out", "o", "", "image file to write")
	storeGetCmd.MarkFlagRequired("out")

	storeCmd.AddCommand(storeListCmd, storeSaveCmd, storeGetCmd, storeDeleteCmd)
	rootCmd.AddCommand(storeCmd)
}

func openStore() (*imagestore.Store, error) {
	path := storePath
	if path == "" {
		path = cfg.Store.Path
	}
	return imagestore.Open(path, imagestore.WithLogger(logger))
}

func archiveImage(ctx context.Context, model string, data []byte, note string) (int64, error) {
	s, err := openStore()
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.Save(ctx, model, data, note)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid image id %q", s)
	}
	return id, nil
}

func runStoreList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	entries, err := s.List(context.Background(), storeModel)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No archived images.")
		return nil
	}
	fmt.Println(heading("Archived images:"))
	for _, e := range entries {
		fmt.Printf("  %4d  %-24s %6d bytes  %s  %s  %s\n",
			e.ID, e.Model, e.Size, e.CreatedAt.Local().Format("2006-01-02 15:04"), label(e.SHA256[:12]), e.Note)
	}
	return nil
}

func runStoreSave(cmd *cobra.Command, args []string) error {
	img, err := memmap.LoadFile(args[0])
	if err != nil {
		return err
	}
	model := storeModel
	if model == "" {
		m, err := resolveModel(img)
		if err != nil {
			return err
		}
		model = m.ID()
	}
	id, err := archiveImage(context.Background(), model, img.Bytes(), storeNote)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s as image %d\n", success("archived"), args[0], id)
	return nil
}

func runStoreGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	e, err := s.Get(context.Background(), id)
	if err != nil {
		return err
	}
	img := memmap.New(e.Data)
	if m, err := repo.Lookup(e.Model); err == nil {
		img.SetMetadata(&memmap.Metadata{Vendor: m.Vendor, Model: m.Model, Variant: m.Variant, Version: rootCmd.Version})
	}
	if err := img.SaveFile(storeOut); err != nil {
		return err
	}
	fmt.Printf("wrote image %d (%s) to %s\n", e.ID, e.Model, storeOut)
	return nil
}

func runStoreDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Delete(context.Background(), id); err != nil {
		return err
	}
	fmt.Printf("deleted image %d\n", id)
	return nil
}
