package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vowrite/vowrite/internal/logging"
)

// Watcher monitors the config file and reloads it on change.
type Watcher struct {
	filePath string
	watcher  *fsnotify.Watcher
	onReload func(*Config)

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	lastLoad time.Time
}

// NewWatcher creates a watcher for a config file. onReload is called with the
// freshly parsed config after every successful reload.
func NewWatcher(filePath string, onReload func(*Config)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		filePath: filePath,
		watcher:  watcher,
		onReload: onReload,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching the config file for changes.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Watch the directory (fsnotify can't always watch files directly on all platforms)
	dir := filepath.Dir(w.filePath)
	if err := w.watcher.Add(dir); err != nil {
		return err
	}

	logging.L_info("config: watching for changes", "file", filepath.Base(w.filePath))
	go w.watchLoop(ctx)
	return nil
}

// Stop stops watching.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	close(w.stopCh)
	w.watcher.Close()
	w.running = false
	logging.L_debug("config: watcher stopped")
}

func (w *Watcher) watchLoop(ctx context.Context) {
	targetFile := filepath.Base(w.filePath)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != targetFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.L_warn("config: watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	// Editors fire several events per save; collapse them.
	if time.Since(w.lastLoad) < 250*time.Millisecond {
		w.mu.Unlock()
		return
	}
	w.lastLoad = time.Now()
	w.mu.Unlock()

	cfg, err := Load(w.filePath)
	if err != nil {
		logging.L_warn("config: reload failed, keeping previous config", "error", err)
		return
	}
	logging.L_info("config: reloaded", "provider", cfg.API.Provider)
	w.onReload(cfg)
}
