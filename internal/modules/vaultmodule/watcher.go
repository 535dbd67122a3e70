package vaultmodule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/mediawall/internal/events"
)

// Indexer is the catalog surface the watcher feeds. IndexFile reports
// whether the path was actually added to the catalog.
type Indexer interface {
	IndexFile(ctx context.Context, path string) (bool, error)
	RemovePath(ctx context.Context, path string) error
	RemovePathPrefix(ctx context.Context, prefix string) error
}

// Watcher provides real-time monitoring of the vault roots. File events are
// debounced into batches; one vault.changed event fires per quiet batch no
// matter how many files moved, so a bulk copy doesn't storm the wall with
// pool reloads.
type Watcher struct {
	logger   hclog.Logger
	eventBus events.EventBus
	indexer  Indexer

	watcher  *fsnotify.Watcher
	debounce time.Duration
	ignore   []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	roots   []string
	pending map[string]fsnotify.Op
	started bool
}

// NewWatcher creates a vault watcher; Start begins monitoring
func NewWatcher(indexer Indexer, eventBus events.EventBus, logger hclog.Logger, debounce time.Duration, ignore []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		logger:   logger.Named("vault-watcher"),
		eventBus: eventBus,
		indexer:  indexer,
		watcher:  fsw,
		debounce: debounce,
		ignore:   ignore,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]fsnotify.Op),
	}, nil
}

// Start begins watching the given roots, recursively
func (w *Watcher) Start(roots []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}

	for _, root := range roots {
		if err := w.addRecursiveWatch(root); err != nil {
			w.logger.Error("failed to watch vault root", "root", root, "error", err)
			continue
		}
		w.roots = append(w.roots, root)
	}

	w.wg.Add(1)
	go w.watchEvents()

	w.started = true
	w.logger.Info("vault watcher started", "roots", len(w.roots))
	return nil
}

// Stop halts monitoring and waits for the event loop to drain
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// Roots returns the watched vault roots
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	roots := make([]string, len(w.roots))
	copy(roots, w.roots)
	return roots
}

// addRecursiveWatch walks root and registers every subdirectory. New
// directories created later are picked up from their create events. Caller
// holds w.mu.
func (w *Watcher) addRecursiveWatch(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return true
	}
	for _, pattern := range w.ignore {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// watchEvents is the main loop: collect raw fsnotify events into the
// pending batch and flush after a quiet debounce window.
func (w *Watcher) watchEvents() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.ignored(event.Name) {
				continue
			}
			w.recordEvent(event)
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)

		case <-timer.C:
			w.flush()

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *Watcher) recordEvent(event fsnotify.Event) {
	// New directories need their own watch to keep recursion complete
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.mu.Lock()
			if err := w.addRecursiveWatch(event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
			w.mu.Unlock()
			return
		}
	}

	w.mu.Lock()
	w.pending[event.Name] |= event.Op
	w.mu.Unlock()
}

// flush applies the pending batch to the catalog and fires one
// vault.changed event if anything actually changed.
func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	added, removed := 0, 0
	for path, op := range batch {
		switch {
		case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
			if err := w.indexer.RemovePath(w.ctx, path); err != nil {
				w.logger.Warn("failed to remove path from catalog", "path", path, "error", err)
				continue
			}
			removed++
		case op.Has(fsnotify.Create) || op.Has(fsnotify.Write):
			indexed, err := w.indexer.IndexFile(w.ctx, path)
			if err != nil {
				w.logger.Warn("failed to index path", "path", path, "error", err)
				continue
			}
			if indexed {
				added++
			}
		}
	}

	if added == 0 && removed == 0 {
		return
	}

	w.logger.Info("vault changed", "added", added, "removed", removed)
	if w.eventBus != nil {
		w.eventBus.PublishAsync(events.NewEventWithData(
			events.EventVaultChanged,
			"vaultmodule",
			"Vault changed",
			fmt.Sprintf("%d added, %d removed", added, removed),
			map[string]interface{}{
				"added":   added,
				"removed": removed,
			},
		))
	}
}
