// Package playlist provides real-time folder monitoring for media
// directories, maintaining a sorted media list that a zone engine plays.
package playlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"kiosk-player/internal/logger"
	"kiosk-player/internal/media"
)

// DefaultSettle is how long the watcher waits after the last file event
// before rescanning, so a file still being copied triggers one update.
const DefaultSettle = 250 * time.Millisecond

// OnChangeFunc is a callback invoked when the playlist changes.
// It receives the updated sorted media list.
type OnChangeFunc = func(items []media.Item)

// Watcher monitors a directory for file system events and maintains
// a sorted list of playable media files (videos and images).
type Watcher struct {
	mu      sync.RWMutex
	dir     string
	files   []string
	watcher *fsnotify.Watcher
	settle  time.Duration
	log     zerolog.Logger
}

// NewWatcher creates a new Watcher for dir and performs the initial scan.
func NewWatcher(dir string) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve playlist dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		dir:     abs,
		watcher: fw,
		settle:  DefaultSettle,
		log:     logger.Component("watcher").With().Str("dir", abs).Logger(),
	}
	w.scan()
	return w, nil
}

// SetSettle overrides the rescan delay. Call before Watch.
func (w *Watcher) SetSettle(d time.Duration) { w.settle = d }

// String names the source in logs.
func (w *Watcher) String() string { return w.dir }

// scan reads the directory and rebuilds the sorted file list. It reports
// whether the list changed.
func (w *Watcher) scan() bool {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.log.Error().Err(err).Msg("scan failed")
		return false
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if media.IsSupported(entry.Name()) {
			files = append(files, filepath.Join(w.dir, entry.Name()))
		}
	}
	sort.Strings(files)

	w.mu.Lock()
	changed := !slices.Equal(w.files, files)
	w.files = files
	w.mu.Unlock()

	w.log.Debug().Int("files", len(files)).Bool("changed", changed).Msg("scanned playlist dir")
	return changed
}

// Files returns the current sorted list of media file paths.
func (w *Watcher) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.files)
}

// List returns the current media list.
func (w *Watcher) List(context.Context) ([]media.Item, error) {
	return media.FromPaths(w.Files()), nil
}

// Watch delivers the current list, then a new list after every change,
// until ctx is cancelled. It closes the underlying fsnotify watcher on
// return.
func (w *Watcher) Watch(ctx context.Context, onChange OnChangeFunc) error {
	defer w.watcher.Close()

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info().Int("files", len(w.Files())).Msg("monitoring playlist dir")

	items, _ := w.List(ctx)
	onChange(items)

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			w.log.Debug().Msg("watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if isRelevantEvent(event) {
				w.log.Debug().Str("op", event.Op.String()).Str("name", event.Name).Msg("file event")
				settle = time.After(w.settle)
			}

		case <-settle:
			settle = nil
			if w.scan() {
				items, _ := w.List(ctx)
				w.log.Info().Int("items", len(items)).Msg("playlist changed")
				onChange(items)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

// isRelevantEvent filters for file create, remove, and rename events
// that would change the playlist contents.
func isRelevantEvent(e fsnotify.Event) bool {
	return e.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}
