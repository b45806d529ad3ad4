package settings

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a Store whenever its settings file changes on disk, so
// hand edits take effect without the read-json command. Saves made by the
// store itself also trigger a reload, which is harmless: the file holds what
// was just installed.
type Watcher struct {
	store    *Store
	path     string
	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewWatcher creates a watcher for the settings file at path.
func NewWatcher(store *Store, path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("settings: watch %s: %w", path, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("settings: watch %s: %w", path, err)
	}
	return &Watcher{
		store:    store,
		path:     abs,
		fsw:      fsw,
		debounce: 250 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The directory is watched rather than the file
// because editors and FileBackend replace the file by renaming over it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("settings: watch %s: %w", w.path, err)
	}
	w.running = true
	go w.run(ctx)
	log.Printf("[settings] watching %s", w.path)
	return nil
}

// Stop closes the underlying watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if err := w.fsw.Close(); err != nil {
		log.Printf("[settings] close watcher: %v", err)
	}
	if running {
		<-w.done
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("[settings] watcher error: %v", err)
		case <-timer.C:
			if _, err := w.store.Reload(ctx); err != nil {
				log.Printf("[settings] reload after file change failed, keeping current settings: %v", err)
			}
		}
	}
}
