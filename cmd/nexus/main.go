package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ssh352/nexus/internal/config"
	"github.com/ssh352/nexus/internal/engine"
	"github.com/ssh352/nexus/internal/feed"
	"github.com/ssh352/nexus/internal/logging"
	"github.com/ssh352/nexus/internal/network"
	"github.com/ssh352/nexus/internal/repl"
	"github.com/ssh352/nexus/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to the YAML config file")
	serverMode := flag.Bool("server", false, "Run in server mode")
	port := flag.Int("port", 0, "Port to listen on (overrides config)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger, closeFn := logging.SetupLogger(cfg.Logging)
	defer closeFn()
	slog.SetDefault(logger)

	if err := run(cfg, *serverMode); err != nil {
		slog.Error("nexus stopped", "error", err)
		closeFn()
		os.Exit(1)
	}
}

func run(cfg *config.Config, serverMode bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kinds := cfg.Table.Kinds()
	model, err := engine.NewIndexedModel(cfg.Table.Index, cfg.Table.ColumnNames(),
		engine.WithName(cfg.Table.Name),
		engine.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("failed to build table: %w", err)
	}
	model.AddChangeListener(engine.NewLoggingListener(slog.Default()))
	guard := engine.NewGuard(model)

	if cfg.Seed != "" {
		rows, err := storage.LoadSeed(cfg.Seed, kinds, slog.Default())
		if err != nil {
			return err
		}
		if err := storage.Seed(guard, rows); err != nil {
			return err
		}
	}

	if cfg.Feed.URL != "" {
		worker := feed.NewWorker(cfg.Feed.URL, []byte(cfg.Feed.Subscribe),
			feed.NewDecoder(kinds, cfg.Table.Index), guard, slog.Default())
		if cfg.Feed.ReadTimeoutSec > 0 {
			worker.ReadTimeout = time.Duration(cfg.Feed.ReadTimeoutSec) * time.Second
		}
		if cfg.Feed.PingIntervalSec > 0 {
			worker.PingInterval = time.Duration(cfg.Feed.PingIntervalSec) * time.Second
		}
		worker.ClearOnReconnect = cfg.Feed.ClearOnReconnect
		worker.Start(ctx)
		defer func() {
			slog.Info("Stopping feed...", "stats", worker.Stats())
			worker.Stop()
		}()
	}

	slog.Info("Application ready!", "table", cfg.Table.Name, "columns", len(kinds))

	done := make(chan error, 1)
	go func() {
		if serverMode {
			slog.Info("Starting Server mode...")
			done <- network.Start(cfg.Server.Port, guard, kinds)
			return
		}
		slog.Info("Starting REPL mode...")
		repl.Start(os.Stdin, os.Stdout, guard, kinds)
		done <- nil
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down...")
		return nil
	case err := <-done:
		return err
	}
}
