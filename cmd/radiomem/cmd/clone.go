package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/OpenTraceMem/pkg/clone"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/memmap"
	"github.com/OpenTraceLab/OpenTraceMem/pkg/registry"
)

const simulatorPort = "simulator"

var (
	portName      string
	baudRate      int
	outFile       string
	simImage      string
	archiveNote   string
	metricsListen string
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Clone an image from a radio",
	Long: `Put the radio into programming mode, read its whole memory and save it as an
image file with model metadata. Use --port simulator to clone from an
in-memory radio, optionally seeded with --sim-image.`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <image>",
	Short: "Clone an image to a radio",
	Long: `Write an image back to the radio. Only the model's writable ranges are sent.
The model is taken from --model, the image metadata, or the image size.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	for _, c := range []*cobra.Command{downloadCmd, uploadCmd} {
		c.Flags().StringVarP(&modelName, "model", "m", "", "radio model")
		c.Flags().StringVarP(&portName, "port", "p", "", "serial port, or \"simulator\" (default from config)")
		c.Flags().IntVar(&baudRate, "baud", 0, "baud rate (default from model or config)")
		c.Flags().StringVar(&simImage, "sim-image", "", "image loaded into the simulated radio")
		c.Flags().StringVar(&metricsListen, "metrics-listen", "", "serve prometheus metrics on this address during the transfer")
		rootCmd.AddCommand(c)
	}
	downloadCmd.Flags().StringVarP(&outFile, "out", "o", "", "image file to write")
	downloadCmd.Flags().StringVar(&archiveNote, "archive", "", "also archive the image in the image store with this note")
	downloadCmd.MarkFlagRequired("out")
}

// openAdapter connects to the radio for model on the configured port.
func openAdapter(model *registry.Model, metrics *clone.Metrics) (clone.Adapter, *clone.SimAdapter, error) {
	port := portName
	if port == "" {
		port = cfg.Serial.Port
	}
	opts := []clone.Option{clone.WithLogger(logger), clone.WithMetrics(metrics)}
	cc := model.CloneConfig()

	if port == simulatorPort || port == "sim" {
		mem, err := simulatorMemory(model)
		if err != nil {
			return nil, nil, err
		}
		sim := clone.NewSimAdapter(mem, cc, opts...)
		return sim, sim, nil
	}
	if port == "" {
		return nil, nil, errors.New("no serial port; use --port or serial.port in the config")
	}

	baud := baudRate
	if baud == 0 {
		baud = model.Baud
	}
	if baud == 0 {
		baud = cfg.Serial.Baud
	}
	f, err := clone.OpenSerial(port, baud, cfg.Serial.Timeout)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, clone.WithPort(port, baud))
	return clone.NewBlockAdapter(f, cc, opts...), nil, nil
}

func simulatorMemory(model *registry.Model) ([]byte, error) {
	if simImage == "" {
		return memmap.Blank(model.MemSize, 0xFF).Bytes(), nil
	}
	img, err := memmap.LoadFile(simImage)
	if err != nil {
		return nil, err
	}
	if img.Len() != model.MemSize {
		return nil, fmt.Errorf("simulator image is %d bytes, %s needs %d", img.Len(), model.ID(), model.MemSize)
	}
	return img.Bytes(), nil
}

// startMetrics serves clone metrics when an address is configured. The
// returned stop function is always safe to call.
func startMetrics() (*clone.Metrics, func(), error) {
	addr := metricsListen
	if addr == "" {
		addr = cfg.Metrics.Listen
	}
	if addr == "" {
		return nil, func() {}, nil
	}
	reg := prometheus.NewRegistry()
	metrics, err := clone.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
	return metrics, stop, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	if modelName == "" {
		return errors.New("download needs --model")
	}
	model, err := repo.Lookup(modelName)
	if err != nil {
		return err
	}
	if model.MemSize <= 0 {
		return fmt.Errorf("%s has no memsize", model.ID())
	}

	metrics, stopMetrics, err := startMetrics()
	if err != nil {
		return err
	}
	defer stopMetrics()

	adapter, _, err := openAdapter(model, metrics)
	if err != nil {
		return err
	}
	defer adapter.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	data, err := adapter.Download(ctx, model.MemSize, progressPrinter())
	if err != nil {
		return fmt.Errorf("download from %s: %w", model.ID(), err)
	}

	img := memmap.New(data)
	img.SetMetadata(&memmap.Metadata{
		Vendor:  model.Vendor,
		Model:   model.Model,
		Variant: model.Variant,
		Version: rootCmd.Version,
	})
	if err := img.SaveFile(outFile); err != nil {
		return err
	}
	fmt.Printf("%s %d bytes from %s to %s\n", success("downloaded"), len(data), model.ID(), outFile)

	if archiveNote != "" {
		id, err := archiveImage(ctx, model.ID(), data, archiveNote)
		if err != nil {
			return err
		}
		fmt.Printf("archived as image %d\n", id)
	}
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	img, err := memmap.LoadFile(args[0])
	if err != nil {
		return err
	}
	model, err := resolveModel(img)
	if err != nil {
		return err
	}
	if model.MemSize > 0 && img.Len() != model.MemSize {
		return fmt.Errorf("image is %d bytes, %s needs %d", img.Len(), model.ID(), model.MemSize)
	}

	metrics, stopMetrics, err := startMetrics()
	if err != nil {
		return err
	}
	defer stopMetrics()

	adapter, sim, err := openAdapter(model, metrics)
	if err != nil {
		return err
	}
	defer adapter.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := adapter.Upload(ctx, img.Bytes(), progressPrinter()); err != nil {
		return fmt.Errorf("upload to %s: %w", model.ID(), err)
	}
	fmt.Printf("%s %s to %s\n", success("uploaded"), args[0], model.ID())
	if sim != nil {
		_, writes, _ := sim.Radio.Counts()
		fmt.Printf("simulator accepted %d blocks\n", writes)
	}
	return nil
}
