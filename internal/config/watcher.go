package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads config when .requisite/config.yaml changes on disk.
// Editors often write via rename, so the parent directory is watched
// and events are filtered by filename.
type Watcher struct {
	workspace string
	onChange  func(*Config)

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	debounce time.Duration
}

// NewWatcher creates a config watcher. onChange receives the freshly
// loaded config after every change; it runs on the watcher goroutine.
func NewWatcher(workspace string, onChange func(*Config)) *Watcher {
	return &Watcher{
		workspace: workspace,
		onChange:  onChange,
		stopCh:    make(chan struct{}),
		debounce:  250 * time.Millisecond,
	}
}

// Start begins watching. Returns an error if the watch cannot be established.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(ConfigPath(w.workspace))
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return err
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	go w.loop(fw)
	return nil
}

func (w *Watcher) loop(fw *fsnotify.Watcher) {
	target := filepath.Base(ConfigPath(w.workspace))
	var timer *time.Timer

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of write events
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				cfg, err := Load(w.workspace)
				if err != nil {
					return
				}
				if w.onChange != nil {
					w.onChange(cfg)
				}
			})

		case _, ok := <-fw.Errors:
			if !ok {
				return
			}

		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	w.mu.Lock()
	if w.watcher != nil {
		w.watcher.Close()
		w.watcher = nil
	}
	w.mu.Unlock()
}
