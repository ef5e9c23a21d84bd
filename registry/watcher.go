package registry

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/artpar/structlite/record"
)

// Watcher keeps a registry in sync with a declaration directory. It
// performs the initial load, reloads on file changes or SIGHUP, and keeps
// the previously registered types when a reload fails.
type Watcher struct {
	mu       sync.Mutex
	registry *Registry
	dir      string
	funcs    *record.FuncMap
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Registry)
	stopCh   chan struct{}
}

// NewWatcher loads the declaration directory into the registry and
// returns a watcher for it. The function map may be nil.
func NewWatcher(reg *Registry, dir string, funcs *record.FuncMap, logger zerolog.Logger) (*Watcher, error) {
	if err := reg.LoadDir(dir, funcs); err != nil {
		return nil, fmt.Errorf("load declarations: %w", err)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	w := &Watcher{
		registry: reg,
		dir:      absDir,
		funcs:    funcs,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	return w, nil
}

// Registry returns the registry this watcher maintains.
func (w *Watcher) Registry() *Registry {
	return w.registry
}

// Reload re-reads the declaration directory. Returns an error if loading
// fails (keeps the registered types).
func (w *Watcher) Reload() error {
	w.logger.Info().Str("dir", w.dir).Msg("reloading record declarations")

	if err := w.registry.LoadDir(w.dir, w.funcs); err != nil {
		w.logger.Error().Err(err).Msg("declaration reload failed, keeping registered types")
		return fmt.Errorf("reload declarations: %w", err)
	}

	w.mu.Lock()
	callbacks := append(([]func(*Registry))(nil), w.onChange...)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(w.registry)
	}

	w.logger.Info().Int("types", len(w.registry.List())).Msg("record declarations reloaded")
	return nil
}

// OnChange registers a callback to be called after a successful reload.
func (w *Watcher) OnChange(fn func(*Registry)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Watch starts watching the declaration directory for changes. Changes
// trigger automatic reload.
func (w *Watcher) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	w.watcher = watcher

	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	go w.watchLoop()

	w.logger.Info().Str("dir", w.dir).Msg("watching declaration directory for changes")
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (w *Watcher) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				w.logger.Info().Msg("received SIGHUP, reloading declarations")
				if err := w.Reload(); err != nil {
					w.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-w.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	w.logger.Info().Msg("listening for SIGHUP to reload declarations")
}

// Stop stops watching for file changes and signals.
func (w *Watcher) Stop() {
	close(w.stopCh)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if !isDeclFile(event.Name) {
				continue
			}

			// Write or create covers editors that do atomic saves.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("declaration file changed")

				if err := w.Reload(); err != nil {
					w.logger.Error().Err(err).Msg("file watch reload failed")
				}
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func isDeclFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
