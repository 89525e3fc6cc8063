package watcher

import (
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"

	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
)

// New creates a Watcher over inputDir with bounded concurrent processing.
func New(inputDir string, handler EventHandler, log logger.Logger, maxConcurrent int) (Watcher, error) {
	if err := os.MkdirAll(inputDir, 0755); err != nil {
		return nil, fmt.Errorf("create watch directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	if err := fsw.Add(inputDir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}

	return &implWatcher{
		inputDir:  inputDir,
		handler:   handler,
		logger:    log,
		watcher:   fsw,
		semaphore: make(chan struct{}, maxConcurrent),
	}, nil
}
