// Package watch turns file system changes into file-changed events.
package watch

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/services/stream"
)

// DebounceInterval is how long the watcher waits for a burst to settle.
const DebounceInterval = 100 * time.Millisecond

// ErrClosed is returned by Listen after Close.
var ErrClosed = errors.New("watcher closed")

// Watcher emits one file-changed event per burst of writes under its paths.
type Watcher struct {
	mu            sync.Mutex
	watcher       *fsnotify.Watcher
	listeners     map[uint64]func([]byte)
	nextID        uint64
	pending       map[string]struct{}
	debounceTimer *time.Timer
	interval      time.Duration
	closed        bool
	stopChan      chan struct{}
	doneChan      chan struct{}
}

var _ stream.Source = (*Watcher)(nil)

// New starts watching paths. Directories are watched directly; for files the
// parent directory is watched so that replaced files are still seen.
func New(paths []string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		watcher:   fw,
		listeners: make(map[uint64]func([]byte)),
		pending:   make(map[string]struct{}),
		interval:  DebounceInterval,
		stopChan:  make(chan struct{}),
		doneChan:  make(chan struct{}),
	}

	for _, dir := range watchDirs(paths) {
		if err := fw.Add(dir); err != nil {
			if closeErr := fw.Close(); closeErr != nil {
				logger.Error("failed to close watcher", "error", closeErr)
			}
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}

	go w.watchLoop()
	return w, nil
}

func watchDirs(paths []string) []string {
	var dirs []string
	for _, p := range paths {
		dir := p
		if info, err := os.Stat(p); err != nil || !info.IsDir() {
			dir = filepath.Dir(p)
		}
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Listen registers fn for file-changed payloads, a JSON array of paths.
func (w *Watcher) Listen(kind string, fn func([]byte)) (func(), error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, ErrClosed
	}
	if kind != stream.EventFileChanged {
		// The local source never emits other kinds.
		return func() {}, nil
	}

	w.nextID++
	id := w.nextID
	w.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.listeners, id)
			w.mu.Unlock()
		})
	}, nil
}

// watchLoop collects file system events and debounces them.
func (w *Watcher) watchLoop() {
	defer close(w.doneChan)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			w.mu.Lock()
			w.pending[event.Name] = struct{}{}
			if w.debounceTimer != nil {
				w.debounceTimer.Stop()
			}
			w.debounceTimer = time.AfterFunc(w.interval, w.flush)
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("file watcher error", "error", err)

		case <-w.stopChan:
			return
		}
	}
}

// flush emits the paths collected since the last flush.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})

	ids := make([]uint64, 0, len(w.listeners))
	for id := range w.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func([]byte), len(ids))
	for i, id := range ids {
		fns[i] = w.listeners[id]
	}
	w.mu.Unlock()

	slices.Sort(paths)
	data, err := json.Marshal(paths)
	if err != nil {
		logger.Error("encode changed paths", "error", err)
		return
	}

	logger.Debug("files changed", "count", len(paths))
	for _, fn := range fns {
		fn(data)
	}
}

// Close stops the file watcher and cleans up resources.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.listeners = make(map[uint64]func([]byte))
	w.mu.Unlock()

	close(w.stopChan)
	err := w.watcher.Close()
	<-w.doneChan
	return err
}
