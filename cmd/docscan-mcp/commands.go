package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/docscan-mcp/internal/config"
	"github.com/ironsheep/docscan-mcp/internal/enhance"
	"github.com/ironsheep/docscan-mcp/internal/logger"
	"github.com/ironsheep/docscan-mcp/internal/raster"
	"github.com/ironsheep/docscan-mcp/internal/scanner"
	"github.com/ironsheep/docscan-mcp/internal/server"
)

// app carries state shared by the commands after PersistentPreRunE.
type app struct {
	cfg     *config.Config
	backend string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "docscan-mcp",
		Short: "Document scanner MCP server",
		Long: `docscan-mcp turns photos of paper documents into flat scans: it finds the
page corners, corrects the perspective and applies an output style.

Without a subcommand it serves the MCP protocol over stdin/stdout.

Configuration is read from DOCSCAN_* environment variables and an optional
.env file, e.g. DOCSCAN_BACKEND=accelerated or DOCSCAN_LOG_LEVEL=debug.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.backend, "backend", "", "Pipeline backend: reference or accelerated (overrides DOCSCAN_BACKEND)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve MCP over stdin/stdout",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.serve(cmd.Context())
			},
		},
		newScanCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			// Needs no configuration.
			PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
			Run: func(cmd *cobra.Command, args []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "docscan-mcp %s\n", Version)
				fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
				fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
			},
		},
	)
	return root
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.backend != "" {
		cfg.Backend = a.backend
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.cfg = cfg
	return nil
}

func (a *app) newScanner() (*scanner.Scanner, error) {
	b, err := scanner.NewBackend(a.cfg.Backend)
	if err != nil {
		return nil, err
	}
	return scanner.New(b, logger.WithComponent("scanner")), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func (a *app) serve(parent context.Context) error {
	ctx, stop := signalContext(parent)
	defer stop()

	sc, err := a.newScanner()
	if err != nil {
		return err
	}
	server.Version = Version
	srv := server.New(sc, server.Config{
		Scan:        a.cfg.ScanOptions(),
		JPEGQuality: a.cfg.JPEGQuality,
		Logger:      logger.GetLogger(),
	})

	err = srv.Run(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type scanFlags struct {
	outDir   string
	style    string
	width    int
	height   int
	autoSize bool
}

func newScanCmd(a *app) *cobra.Command {
	f := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan <file>...",
		Short: "Scan photos into flat documents",
		Long: `Scan detects the document in each photo, corrects its perspective, applies
the output style and writes <name>_scan.jpg into the output directory.

Photos are loaded and processed one after another. Ctrl-C stops the batch:
the photo in progress is discarded and finished photos are still written.`,
		Example: `  # Scan two receipts as black and white
  docscan-mcp scan receipt1.jpg receipt2.jpg --out scans --style blackwhite

  # Keep the document's own proportions
  docscan-mcp scan page.png --auto-size`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scan(cmd, args, f)
		},
	}
	cmd.Flags().StringVarP(&f.outDir, "out", "o", ".", "Output directory")
	cmd.Flags().StringVarP(&f.style, "style", "s", "", "Output style: original, grayscale, blackwhite, enhanced, magazine, whiteboard")
	cmd.Flags().IntVar(&f.width, "width", 0, "Output width in pixels (default from configuration)")
	cmd.Flags().IntVar(&f.height, "height", 0, "Output height in pixels (default from configuration)")
	cmd.Flags().BoolVar(&f.autoSize, "auto-size", false, "Derive the output size from the detected corners")
	return cmd
}

func (a *app) scan(cmd *cobra.Command, files []string, f *scanFlags) error {
	log := logger.WithComponent("scan")

	opts := a.cfg.ScanOptions()
	if cmd.Flags().Changed("style") {
		style, err := enhance.ParseStyle(f.style)
		if err != nil {
			return err
		}
		opts.Style = style
	}
	if f.width > 0 {
		opts.OutputWidth = f.width
	}
	if f.height > 0 {
		opts.OutputHeight = f.height
	}
	if f.autoSize {
		opts.AutoSize = true
	}
	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	sc, err := a.newScanner()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	items := make([]scanner.Item, len(files))
	for i, name := range files {
		items[i] = scanner.Item{Name: name, Load: func() (*raster.Buffer, error) { return raster.Open(name) }}
	}

	progress := make(chan scanner.Progress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range progress {
			ev := log.Info()
			if p.Err != nil {
				ev = log.Warn().Err(p.Err)
			}
			ev.Int("index", p.Index+1).
				Int("total", p.Total).
				Str("file", p.Name).
				Dur("elapsed", p.Elapsed.Round(time.Millisecond)).
				Msg("Scanned")
		}
	}()

	start := time.Now()
	outcomes, batchErr := sc.ScanBatch(ctx, items, opts, progress)
	close(progress)
	<-done

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			continue
		}
		out := filepath.Join(f.outDir, server.BatchOutputName(o.Name))
		if err := raster.Save(o.Result.Image, out, a.cfg.JPEGQuality); err != nil {
			log.Error().Err(err).Str("file", o.Name).Msg("Cannot write scan")
			failed++
			continue
		}
		if o.Result.Detection != nil && o.Result.Detection.Fallback {
			log.Warn().Str("file", o.Name).Msg("No document found, used the full frame")
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}

	log.Info().
		Int("scanned", len(outcomes)-failed).
		Int("failed", failed).
		Int("total", len(items)).
		Dur("elapsed", time.Since(start).Round(time.Millisecond)).
		Msg("Batch finished")

	if batchErr != nil {
		return fmt.Errorf("scan interrupted after %d of %d photos: %w", len(outcomes), len(items), batchErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d photos failed", failed, len(items))
	}
	return nil
}
