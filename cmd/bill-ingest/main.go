package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/bill-ingest/internal/imaging"
	"github.com/zombor/bill-ingest/internal/ingest"
	"github.com/zombor/bill-ingest/internal/scanning"
	"github.com/zombor/bill-ingest/internal/token"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	cfg, fs := newConfig()
	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BILL_INGEST"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *cfg.showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

// closers collects resources to release on shutdown, in reverse order
type closers []func() error

func (c *closers) add(f func() error) {
	*c = append(*c, f)
}

func (c closers) closeAll() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			slog.Warn("Failed to close resource", "error", err)
		}
	}
}

func run(ctx context.Context, cfg *config) error {
	var cleanup closers
	defer cleanup.closeAll()

	tokenOpts := []token.Option{token.WithTTL(*cfg.tokenTTL)}

	slog.Info("Initializing token store...", "backend", *cfg.tokenStore, "ttl", *cfg.tokenTTL)
	tokens, err := openTokenStore(ctx, cfg, tokenOpts, &cleanup)
	if err != nil {
		return err
	}

	slog.Info("Initializing OCR engine...", "engine", *cfg.ocrEngine, "language", *cfg.ocrLanguage, "timeout", *cfg.ocrTimeout)
	engine, err := openRecognizer(ctx, cfg)
	if err != nil {
		return err
	}
	recognizer := &scanning.Bounded{
		Recognizer: engine,
		Timeout:    *cfg.ocrTimeout,
		Progress: func(percent int) {
			slog.Debug("Recognition progress", "percent", percent)
		},
	}
	cleanup.add(recognizer.Close)

	slog.Info("Initializing records...", "backend", *cfg.records)
	recorder, err := openRecorder(ctx, cfg, &cleanup)
	if err != nil {
		return err
	}

	var archive ingest.Archive
	if *cfg.storagePath != "" {
		slog.Info("Initializing storage...", "path", *cfg.storagePath)
		local, err := ingest.NewLocalStorage(*cfg.storagePath)
		if err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		archive = local
	}

	service := ingest.NewService(tokens, imaging.NewNormalizer(*cfg.normalizeWidth), recognizer, recorder, archive, ingest.Config{
		Language: *cfg.ocrLanguage,
	})

	basicAuth := ingest.BasicAuth{
		Username: *cfg.authUser,
		Password: *cfg.authPass,
	}
	server := ingest.NewServer(service, basicAuth, int64(*cfg.maxUploadMB)<<20)
	if *cfg.authUser != "" || *cfg.authPass != "" {
		slog.Info("Basic auth enabled", "user", *cfg.authUser)
	}

	sweeper := token.NewSweeper(tokens, *cfg.sweepInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx, fmt.Sprintf(":%d", *cfg.port))
	})
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	err = g.Wait()
	slog.Info("Shutting down...")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
