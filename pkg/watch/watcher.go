// Package watch reports saves of a single file, coalescing the bursts of
// events editors produce into one notification.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultStabilityThreshold is how long a file must stay quiet before a save
// is reported
const DefaultStabilityThreshold = 300 * time.Millisecond

// FileWatcher watches one file. The parent directory is watched so that
// editors replacing the file through a rename are still seen.
type FileWatcher struct {
	watcher            *fsnotify.Watcher
	path               string
	stabilityThreshold time.Duration
	saves              chan struct{}
	done               chan struct{}
	timer              *time.Timer
	timerMu            sync.Mutex
	stopOnce           sync.Once
}

// FileWatcherConfig holds configuration for the watcher
type FileWatcherConfig struct {
	Path               string
	StabilityThreshold time.Duration
}

// NewFileWatcher creates a watcher for cfg.Path
func NewFileWatcher(cfg FileWatcherConfig) (*FileWatcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch path cannot be empty")
	}
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if cfg.StabilityThreshold == 0 {
		cfg.StabilityThreshold = DefaultStabilityThreshold
	}

	return &FileWatcher{
		watcher:            watcher,
		path:               abs,
		stabilityThreshold: cfg.StabilityThreshold,
		saves:              make(chan struct{}, 1),
		done:               make(chan struct{}),
	}, nil
}

// Start begins watching
func (w *FileWatcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go w.eventLoop()

	log.Info().Str("path", w.path).Msg("File watcher started")
	return nil
}

// Saves delivers one value per settled burst of writes. Saves that happen
// while the previous one is still unconsumed are merged into it.
func (w *FileWatcher) Saves() <-chan struct{} {
	return w.saves
}

// Stop stops the watcher
func (w *FileWatcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	log.Info().Msg("File watcher stopped")
	return nil
}

// Run calls onSave for every save until ctx is done. Calls never overlap;
// an onSave error is logged and watching continues.
func (w *FileWatcher) Run(ctx context.Context, onSave func(context.Context) error) error {
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.saves:
			if err := onSave(ctx); err != nil {
				log.Error().Err(err).Str("path", w.path).Msg("Error handling file save")
			}
		}
	}
}

func (w *FileWatcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.stabilityThreshold, w.notify)
}

func (w *FileWatcher) notify() {
	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.saves <- struct{}{}:
	default:
	}
}
