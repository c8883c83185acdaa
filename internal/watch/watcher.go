// Package watch tails a spool directory for incoming issue files. Each
// *.json file is decoded into an issue and handed to the consumer; the
// file is removed once delivered.
package watch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/avialdo/triage/pkg/models"
)

// Watcher delivers issues dropped into a spool directory.
type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
	issues  chan *models.Issue
	done    chan struct{}

	// Logf receives diagnostics for skipped files. Never nil.
	logf func(format string, args ...interface{})

	mu        sync.Mutex
	delivered map[string]bool
	closed    bool
}

// New creates a Watcher on the given spool directory, creating it if
// needed. Files already present are delivered before new events.
func New(dir string, logf func(format string, args ...interface{})) (*Watcher, error) {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:       dir,
		watcher:   fw,
		issues:    make(chan *models.Issue, 16),
		done:      make(chan struct{}),
		logf:      logf,
		delivered: make(map[string]bool),
	}

	go w.run()

	return w, nil
}

// Issues returns the channel of decoded issues. It is closed when the
// watcher shuts down.
func (w *Watcher) Issues() <-chan *models.Issue {
	return w.issues
}

// Dir returns the watched spool directory.
func (w *Watcher) Dir() string {
	return w.dir
}

func (w *Watcher) run() {
	defer close(w.issues)

	// Drain anything that arrived before the watch started.
	w.scanExisting()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0 {
				w.tryDeliver(event.Name)
			}
			if event.Op&fsnotify.Remove != 0 {
				w.forget(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logf("[watch] watcher error: %v", err)
		}
	}
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logf("[watch] scan %s: %v", w.dir, err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.tryDeliver(filepath.Join(w.dir, entry.Name()))
	}
}

// tryDeliver decodes one spool file and hands the issue to the consumer.
// Malformed files are logged and left in place; a later write retries
// them. Delivered files are removed.
func (w *Watcher) tryDeliver(path string) {
	if !strings.HasSuffix(path, ".json") {
		return
	}

	w.mu.Lock()
	if w.delivered[path] {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logf("[watch] read %s: %v", path, err)
		}
		return
	}

	issue := &models.Issue{}
	if err := json.Unmarshal(data, issue); err != nil {
		w.logf("[watch] skipping malformed issue file %s: %v", path, err)
		return
	}
	if issue.Number <= 0 {
		w.logf("[watch] skipping issue file %s: missing issue number", path)
		return
	}

	w.mu.Lock()
	w.delivered[path] = true
	w.mu.Unlock()

	select {
	case w.issues <- issue:
	case <-w.done:
		return
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		w.logf("[watch] remove %s: %v", path, err)
	}
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.delivered, path)
	w.mu.Unlock()
}

// Close stops the watcher. The issues channel is closed once the
// run loop exits.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}
