package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/audioqr/api"
	"github.com/openclaw/audioqr/config"
	"github.com/openclaw/audioqr/notify"
	"github.com/openclaw/audioqr/qrgen"
	"github.com/openclaw/audioqr/store"
)

var version = "v0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the audioqr command tree.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "audioqr",
		Short:        "Pack short audio clips into QR codes and serve the recorder page",
		SilenceUsage: true,
	}

	var configPath string
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")

	// --- encode command ------------------------------------------------------
	var encFlags encodeFlags
	encodeCmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode a file into a QR code image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEncode(cmd, configPath, encFlags)
		},
	}
	encodeCmd.Flags().StringVar(&encFlags.in, "in", "", "Source file (default from config)")
	encodeCmd.Flags().StringVar(&encFlags.out, "out", "", "Output PNG (default from config)")
	encodeCmd.Flags().IntVar(&encFlags.maxBytes, "max-bytes", 0, "Truncate payloads longer than this")
	encodeCmd.Flags().IntVar(&encFlags.qrVersion, "qr-version", 0, "Smallest QR version to produce (1-40)")
	encodeCmd.Flags().StringVar(&encFlags.level, "level", "", "Error correction level: L, M, Q or H")
	encodeCmd.Flags().IntVar(&encFlags.box, "box", 0, "Pixels per QR module")
	root.AddCommand(encodeCmd)

	// --- serve command -------------------------------------------------------
	var servePort int
	var serveRoot string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a directory with cross-origin isolation headers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, servePort, serveRoot)
		},
	}
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Directory to serve (default from config)")
	root.AddCommand(serveCmd)

	// --- history command -----------------------------------------------------
	var historyLimit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recent encodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(configPath, historyLimit)
		},
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of records to show")
	root.AddCommand(historyCmd)

	// --- version command -----------------------------------------------------
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("audioqr %s\n", version)
		},
	})

	return root
}

type encodeFlags struct {
	in        string
	out       string
	maxBytes  int
	qrVersion int
	level     string
	box       int
}

// setup loads the config and installs the default logger.
func setup(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	// Logs go to stderr; stdout carries the truncation warning.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	return cfg, log, nil
}

// encoderOptions maps the encoder config section onto qrgen options.
func encoderOptions(c config.EncoderConfig) (qrgen.Options, error) {
	level, err := qrgen.ParseLevel(c.ErrorCorrection)
	if err != nil {
		return qrgen.Options{}, err
	}
	return qrgen.Options{
		MaxPayloadBytes: c.MaxPayloadBytes,
		SourcePath:      c.SourcePath,
		OutputPath:      c.OutputPath,
		Version:         c.QRVersion,
		Level:           level,
		ModuleSize:      c.ModuleSize,
	}, nil
}

// openHistory opens the history store, logging and returning nil when it is
// unavailable; history is never required for encoding.
func openHistory(cfg *config.Config, log *slog.Logger) *store.HistoryStore {
	if err := cfg.EnsureDataDir(); err != nil {
		log.Warn("history disabled", "error", err)
		return nil
	}
	st, err := store.Open(cfg.HistoryPath())
	if err != nil {
		log.Warn("history disabled", "error", err)
		return nil
	}
	return st
}

// runEncode reads the source file, writes the QR image and records the run.
func runEncode(cmd *cobra.Command, configPath string, f encodeFlags) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("in") {
		cfg.Encoder.SourcePath = f.in
	}
	if flags.Changed("out") {
		cfg.Encoder.OutputPath = f.out
	}
	if flags.Changed("max-bytes") {
		cfg.Encoder.MaxPayloadBytes = f.maxBytes
	}
	if flags.Changed("qr-version") {
		cfg.Encoder.QRVersion = f.qrVersion
	}
	if flags.Changed("level") {
		cfg.Encoder.ErrorCorrection = f.level
	}
	if flags.Changed("box") {
		cfg.Encoder.ModuleSize = f.box
	}

	opts, err := encoderOptions(cfg.Encoder)
	if err != nil {
		return err
	}
	enc, err := qrgen.NewEncoder(opts, os.Stdout, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := enc.Run(ctx)
	if err != nil {
		return fmt.Errorf("encode %s: %w", opts.SourcePath, err)
	}

	rec := store.FromResult(opts.SourcePath, res)
	if st := openHistory(cfg, log); st != nil {
		defer st.Close()
		if err := st.Save(rec); err != nil {
			log.Warn("save history", "error", err)
		}
	}
	if err := notify.NewWebhookSender(cfg.WebhookURL, log).Send(ctx, notify.FromRecord(rec)); err != nil {
		log.Warn("notify encode", "error", err)
	}
	return nil
}

// runServe is the static server entrypoint.
func runServe(cmd *cobra.Command, configPath string, port int, dir string) error {
	cfg, log, err := setup(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = port
	}
	if cmd.Flags().Changed("root") {
		cfg.Server.Root = dir
	}

	opts, err := encoderOptions(cfg.Encoder)
	if err != nil {
		return err
	}
	enc, err := qrgen.NewEncoder(opts, os.Stdout, log)
	if err != nil {
		return err
	}

	st := openHistory(cfg, log)
	if st != nil {
		defer st.Close()
	}

	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(&api.Server{
			Encoder:   enc,
			Store:     st,
			Webhook:   notify.NewWebhookSender(cfg.WebhookURL, log),
			Log:       log,
			Root:      cfg.Server.Root,
			MaxUpload: cfg.Server.MaxUpload,
			Version:   version,
			StartTime: time.Now(),
		}),
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", srv.Addr, "root", cfg.Server.Root)
		fmt.Printf("Open http://localhost:%d in your browser\n", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	case <-quit:
	}

	log.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}
	log.Info("goodbye")
	return nil
}

// runHistory prints recent encodes as JSON lines.
func runHistory(configPath string, limit int) error {
	cfg, _, err := setup(configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}
	st, err := store.Open(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer st.Close()

	recs, err := st.Recent(limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
