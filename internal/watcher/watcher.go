package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nguyentantai21042004/meeting-flow/internal/gateway"
	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
)

// settleDelay gives the producer time to finish writing a dropped file
// before we start reading it.
const settleDelay = 500 * time.Millisecond

type implWatcher struct {
	inputDir  string
	handler   EventHandler
	logger    logger.Logger
	watcher   *fsnotify.Watcher
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// Start blocks monitoring the drop folder until ctx is cancelled. New
// audio files are handed to the handler with bounded concurrency; other
// files are ignored.
func (w *implWatcher) Start(ctx context.Context) error {
	w.logger.Info(ctx, "Drop folder watcher started. Monitoring: %s", w.inputDir)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info(ctx, "Waiting for ongoing processing to complete...")
			w.wg.Wait()
			w.logger.Info(ctx, "Drop folder watcher stopped")
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}

			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if !gateway.AllowedFile(event.Name) {
				w.logger.Debug(ctx, "Ignoring non-audio file: %s", event.Name)
				continue
			}

			w.logger.Info(ctx, "New audio file detected: %s", event.Name)
			time.Sleep(settleDelay)

			select {
			case w.semaphore <- struct{}{}:
				w.wg.Add(1)
				go func(filePath string) {
					defer w.wg.Done()
					defer func() { <-w.semaphore }()

					if err := w.handler(ctx, filePath); err != nil {
						w.logger.Error(ctx, "Failed to process %s: %v", filePath, err)
					}
				}(event.Name)
			case <-ctx.Done():
				return ctx.Err()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error(ctx, "Watcher error: %v", err)
		}
	}
}

// Stop closes the underlying fsnotify watcher.
func (w *implWatcher) Stop() error {
	return w.watcher.Close()
}
