package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/nguyentantai21042004/meeting-flow/internal/config"
	"github.com/nguyentantai21042004/meeting-flow/internal/contextstore"
	"github.com/nguyentantai21042004/meeting-flow/internal/gateway"
	"github.com/nguyentantai21042004/meeting-flow/internal/knowledge"
	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
	"github.com/nguyentantai21042004/meeting-flow/internal/pipeline"
	"github.com/nguyentantai21042004/meeting-flow/internal/server"
	"github.com/nguyentantai21042004/meeting-flow/internal/summary"
	"github.com/nguyentantai21042004/meeting-flow/internal/tasks"
	"github.com/nguyentantai21042004/meeting-flow/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	// .env is optional; the environment itself may carry the key.
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	log.Info(ctx, "========================================")
	log.Info(ctx, "Meeting Flow")
	log.Info(ctx, "========================================")
	log.Info(ctx, "Configuration loaded successfully")

	if err := ensureDirectories(cfg); err != nil {
		log.Error(ctx, "Failed to create directories: %v", err)
		os.Exit(1)
	}

	// Knowledge index: opened now, built in the background so startup
	// never blocks on a large knowledge base.
	store, err := knowledge.OpenStore(cfg.Paths.IndexDB)
	if err != nil {
		log.Error(ctx, "Failed to open knowledge store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	index := knowledge.NewIndex(cfg.Paths.KnowledgeSource, store, cfg.Knowledge.ChunkSize, cfg.Knowledge.ChunkOverlap, log)
	go index.Build(ctx)

	gw, err := gateway.New(ctx, cfg.Gemini, log)
	if err != nil {
		log.Error(ctx, "Failed to create inference gateway: %v", err)
		os.Exit(1)
	}

	registry := tasks.NewRegistry()
	contexts := contextstore.New(cfg.Paths.ContextFile, cfg.Paths.ContextDocs, log)
	writer := summary.NewWriter(cfg.Paths.Summaries, log)
	runner := pipeline.NewRunner(registry, gw, index, contexts, writer, cfg.Knowledge.TopK, log)

	handler := server.NewHandler(registry, runner, index, contexts, cfg.Paths.Uploads, cfg.Knowledge.TopK, log)
	srv := server.New(cfg.Server, handler, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan error, 2)

	// Optional drop-folder mode: audio files placed in the watch
	// directory are processed headless, summaries persisted as usual.
	if cfg.Paths.WatchInput != "" {
		w, err := watcher.New(cfg.Paths.WatchInput, dropHandler(registry, runner, log), log, 2)
		if err != nil {
			log.Error(ctx, "Failed to create drop folder watcher: %v", err)
			os.Exit(1)
		}
		defer w.Stop()
		go func() {
			if err := w.Start(ctx); err != nil && err != context.Canceled {
				errChan <- err
			}
		}()
	}

	go func() {
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	log.Info(ctx, "Meeting Flow is ready on port %s", cfg.Server.Port)
	log.Info(ctx, "Press Ctrl+C to stop")

	select {
	case <-sigChan:
		log.Info(ctx, "Shutdown signal received")
	case err := <-errChan:
		log.Error(ctx, "Server error: %v", err)
	}

	log.Info(ctx, "Shutting down gracefully...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "HTTP shutdown: %v", err)
	}

	log.Info(ctx, "Meeting Flow stopped")
}

// dropHandler registers a detected file as a task and runs the pipeline
// to completion, draining the event stream.
func dropHandler(registry *tasks.Registry, runner *pipeline.Runner, log logger.Logger) watcher.EventHandler {
	return func(ctx context.Context, filePath string) error {
		taskID := registry.Create(filePath, filepath.Base(filePath), "")
		var terminal pipeline.Event
		for ev := range runner.Run(ctx, taskID, "") {
			if ev.Terminal() {
				terminal = ev
			}
		}
		if terminal.Error != "" {
			return fmt.Errorf("pipeline failed at %s: %s", terminal.Stage, terminal.Error)
		}
		log.Info(ctx, "Drop folder file %s processed", filePath)
		return nil
	}
}

// ensureDirectories creates the working directories up front so the
// first request never fails on a missing path.
func ensureDirectories(cfg *config.Config) error {
	dirs := []string{cfg.Paths.Uploads, cfg.Paths.Summaries}
	if cfg.Paths.KnowledgeSource != "" {
		dirs = append(dirs, cfg.Paths.KnowledgeSource)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
