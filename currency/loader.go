package currency

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader reads a YAML rate table from disk and watches it for changes, so
// operators can push fresh rates without a restart. A load failure keeps the
// previous table in place.
type Loader struct {
	path    string
	mu      sync.RWMutex
	current *Table
}

// NewLoader creates a Loader and performs the initial load.
func NewLoader(path string) (*Loader, error) {
	l := &Loader{path: path}
	table, err := l.load()
	if err != nil {
		return nil, err
	}
	l.current = table
	return l, nil
}

// Table returns the latest successfully loaded table.
func (l *Loader) Table() *Table {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.current
}

// Reload forces an immediate re-read of the rate file.
func (l *Loader) Reload() (*Table, error) {
	table, err := l.load()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = table
	l.mu.Unlock()
	return table, nil
}

// Watch starts a background goroutine that hot-reloads the table when the
// file is written. Call the returned stop function to clean up.
func (l *Loader) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("rate table watcher: %w", err)
	}
	if err := w.Add(l.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("rate table watcher add %s: %w", l.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := l.Reload(); err != nil {
						slog.Warn("rate table reload failed, keeping previous rates", "path", l.path, "error", err)
						continue
					}
					slog.Info("rate table reloaded", "path", l.path)
				}
			case <-w.Errors:
				// Ignore watcher errors.
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}

func (l *Loader) load() (*Table, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read rate table %s: %w", l.path, err)
	}
	return ParseTable(data)
}
