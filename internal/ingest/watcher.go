// Package ingest watches a drop directory for batterystats dumps and
// feeds them into the parse pipeline without an upload request.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/battery-insight/backend/internal/models"
	"github.com/battery-insight/backend/internal/session"
	"github.com/battery-insight/backend/internal/storage"
)

// debounceDelay waits for a dropped file to stop changing before it is
// imported, so partially copied dumps are not parsed.
const debounceDelay = 500 * time.Millisecond

// acceptedExtensions are the file types imported from the watch
// directory.
var acceptedExtensions = map[string]bool{
	".txt": true,
	".log": true,
	".gz":  true,
}

// SessionStarter starts a parse session for a stored file.
type SessionStarter interface {
	StartSession(fileID string, opts session.StartOptions) (*models.ParseSession, error)
}

// Watcher imports dump files dropped into a directory.
type Watcher struct {
	watcher  *fsnotify.Watcher
	store    storage.Store
	sessions SessionStarter
	dir      string

	mu        sync.Mutex
	debounce  map[string]*time.Timer
	processed map[string]bool

	stopChan chan struct{}
}

// NewWatcher creates a watcher for the given directory.
func NewWatcher(dir string, store storage.Store, sessions SessionStarter) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &Watcher{
		watcher:   fsWatcher,
		store:     store,
		sessions:  sessions,
		dir:       dir,
		debounce:  make(map[string]*time.Timer),
		processed: make(map[string]bool),
		stopChan:  make(chan struct{}),
	}, nil
}

// Start begins monitoring the drop directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	fmt.Printf("[Ingest] Watching %s for dump files\n", w.dir)

	go w.watchLoop()
	return nil
}

// Stop stops the watcher and pending imports.
func (w *Watcher) Stop() {
	close(w.stopChan)
	w.watcher.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, timer := range w.debounce {
		timer.Stop()
	}
}

func (w *Watcher) watchLoop() {
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
			fmt.Printf("[Ingest] Watcher error: %v\n", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !acceptedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	w.scheduleImport(event.Name)
}

// scheduleImport debounces rapid create/write event bursts so a file is
// imported once, after it stopped changing.
func (w *Watcher) scheduleImport(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.processed[path] {
		return
	}
	if timer, ok := w.debounce[path]; ok {
		timer.Stop()
	}
	w.debounce[path] = time.AfterFunc(debounceDelay, func() {
		w.importFile(path)
	})
}

func (w *Watcher) importFile(path string) {
	w.mu.Lock()
	if w.processed[path] {
		w.mu.Unlock()
		return
	}
	w.processed[path] = true
	delete(w.debounce, path)
	w.mu.Unlock()

	info, err := w.store.ImportFile(path)
	if err != nil {
		fmt.Printf("[Ingest] ERROR importing %s: %v\n", path, err)
		return
	}

	s, err := w.sessions.StartSession(info.ID, session.StartOptions{})
	if err != nil {
		fmt.Printf("[Ingest] ERROR starting session for %s: %v\n", info.Name, err)
		return
	}

	fmt.Printf("[Ingest] Imported %s as file %s, session %s\n", info.Name, info.ID[:8], s.ID[:8])
}
