// Package watcher reports changes to breach fixture files so that open
// sessions can be re-analysed.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/securely/surfacemap/pkg/logging"
)

var log = logging.New("watcher")

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeWritten ChangeType = iota // created or rewritten
	ChangeTypeRemoved                   // removed or renamed away
)

func (t ChangeType) String() string {
	if t == ChangeTypeRemoved {
		return "removed"
	}
	return "written"
}

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches individual files. It watches their directories, since
// editors commonly replace a file instead of writing it in place.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	files   map[string]bool
	events  chan ChangeEvent
	batch   time.Duration
	mu      sync.Mutex
	stopped bool
}

// NewFileWatcher creates a watcher for the given files
func NewFileWatcher(paths ...string) (*FileWatcher, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := &FileWatcher{
		watcher: watcher,
		files:   make(map[string]bool),
		events:  make(chan ChangeEvent, 100),
		batch:   100 * time.Millisecond,
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		fw.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return fw, nil
}

// Start begins watching for file changes
func (fw *FileWatcher) Start(ctx context.Context) {
	log.Info("started watching fixture files", "count", len(fw.files))
	go fw.processEvents(ctx)
}

// processEvents filters file system events down to the watched files and
// batches them by type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	var written, removed []string

	flushTimer := time.NewTimer(fw.batch)
	flushTimer.Stop()

	flush := func() {
		if len(written) > 0 {
			fw.events <- ChangeEvent{Type: ChangeTypeWritten, Paths: written, Timestamp: time.Now()}
			written = nil
		}
		if len(removed) > 0 {
			fw.events <- ChangeEvent{Type: ChangeTypeRemoved, Paths: removed, Timestamp: time.Now()}
			removed = nil
		}
	}
	defer close(fw.events)

	for {
		select {
		case <-ctx.Done():
			fw.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				flush()
				return
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !fw.files[name] {
				continue
			}

			switch {
			case event.Has(fsnotify.Write) || event.Has(fsnotify.Create):
				written = appendUnique(written, name)
			case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
				removed = appendUnique(removed, name)
			default:
				continue
			}
			log.Debug("fixture event", "path", name, "op", event.Op.String())
			flushTimer.Reset(fw.batch)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Error("watcher error", "error", err)
		}
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// Events returns the channel of change events
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher. The events channel closes once pending
// events are drained.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.stopped {
		return nil
	}
	fw.stopped = true
	return fw.watcher.Close()
}
