package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is how long the watcher waits for a burst of file system
// events to settle before signalling.
const DefaultDebounce = 100 * time.Millisecond

type fileState struct {
	modTime time.Time
	size    int64
	missing bool
}

// Watcher tracks the source files of a device document. File system events
// for the tracked files wake Changes; Check then reports which files actually
// differ from the last snapshot.
type Watcher struct {
	mu       sync.Mutex
	files    map[string]fileState
	dirs     map[string]struct{}
	fs       *fsnotify.Watcher
	notify   chan struct{}
	logger   zerolog.Logger
	debounce time.Duration
	started  bool
}

// NewWatcher builds a watcher for files. The parent directories are watched
// so editors that replace files on save are noticed.
func NewWatcher(files []string, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		dirs:     make(map[string]struct{}),
		fs:       fsw,
		notify:   make(chan struct{}, 1),
		logger:   logger.With().Str("component", "reload").Logger(),
		debounce: DefaultDebounce,
	}
	if err := w.Update(files); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Update replaces the tracked file list and snapshots the current state.
func (w *Watcher) Update(files []string) error {
	if w == nil {
		return nil
	}
	states := make(map[string]fileState, len(files))
	for _, path := range uniquePaths(files) {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		state, ok := stat(abs)
		if !ok {
			continue
		}
		states[abs] = state
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.files = states
	if w.fs == nil {
		return nil
	}
	for path := range states {
		dir := filepath.Dir(path)
		if _, ok := w.dirs[dir]; ok {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch directory: %w", err)
		}
		w.dirs[dir] = struct{}{}
	}
	return nil
}

// Check reports the files that changed since the last snapshot and records
// their new state.
func (w *Watcher) Check() ([]string, error) {
	if w == nil {
		return nil, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := make([]string, 0)
	for path, prev := range w.files {
		state, ok := stat(path)
		if !ok {
			state = fileState{missing: true}
		}
		if state.missing != prev.missing || state.modTime.After(prev.modTime) || state.size != prev.size {
			changed = append(changed, path)
			w.files[path] = state
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// Changes signals that a tracked file saw a write, create, rename or
// removal. Bursts of events within the debounce window collapse into one
// signal.
func (w *Watcher) Changes() <-chan struct{} {
	return w.notify
}

// Run forwards file system events until ctx is done or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context) {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			if !w.tracked(event.Name) {
				continue
			}
			w.logger.Debug().
				Str("event", event.Op.String()).
				Str("file", event.Name).
				Msg("config file changed")
			timer.Reset(w.debounce)
		case <-timer.C:
			select {
			case w.notify <- struct{}{}:
			default:
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("file watcher error")
		}
	}
}

// Close stops the underlying file system watcher.
func (w *Watcher) Close() error {
	if w == nil || w.fs == nil {
		return nil
	}
	return w.fs.Close()
}

func (w *Watcher) tracked(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.files[abs]
	return ok
}

func stat(path string) (fileState, bool) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return fileState{}, false
	}
	return fileState{modTime: info.ModTime(), size: info.Size()}, true
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	result := make([]string, 0, len(paths))
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		result = append(result, path)
	}
	return result
}
