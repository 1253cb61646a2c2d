package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is invoked after a reload that passed validation,
// with the configuration before and after the change.
type ChangeCallback func(oldConfig, newConfig *Config)

// Watcher hot-reloads Log.Level and Runtime.SyncInterval from path on
// every fsnotify write event. Only those two fields are ever allowed
// to move; any other difference is rejected and the prior
// configuration keeps running.
type Watcher struct {
	path string

	mu     sync.RWMutex
	config *Config

	callbacksMu sync.Mutex
	callbacks   []ChangeCallback

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	started   bool
}

// NewWatcher loads path once for the initial configuration and opens
// an fsnotify watch on it, but does not start the reload goroutine —
// call Start for that.
func NewWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := fsWatcher.Add(path); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	return &Watcher{
		path:      path,
		config:    cfg,
		fsWatcher: fsWatcher,
		done:      make(chan struct{}),
	}, nil
}

// Config returns the currently active configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// OnChange registers a callback invoked after every accepted reload.
func (w *Watcher) OnChange(cb ChangeCallback) {
	w.callbacksMu.Lock()
	defer w.callbacksMu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Start runs the reload loop in a new goroutine until Stop is called.
func (w *Watcher) Start() {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.loop()
}

// Stop closes the fsnotify watcher and, if Start was called, waits for
// the reload goroutine to exit.
func (w *Watcher) Stop() error {
	err := w.fsWatcher.Close()
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()
	if started {
		<-w.done
	}
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case _, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// reload loads path fresh, validates that only Log.Level and
// Runtime.SyncInterval differ from the active configuration, and
// either swaps it in and notifies callbacks, or leaves the active
// configuration untouched.
func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		return
	}

	w.mu.Lock()
	prev := w.config
	if err := onlyReloadableFieldsChanged(prev, next); err != nil {
		w.mu.Unlock()
		return
	}
	w.config = next
	w.mu.Unlock()

	w.callbacksMu.Lock()
	cbs := append([]ChangeCallback(nil), w.callbacks...)
	w.callbacksMu.Unlock()
	for _, cb := range cbs {
		cb(prev, next)
	}
}

// onlyReloadableFieldsChanged is the watcher's validation callback:
// Transport and Cluster already shaped channel construction, and App
// and Runtime.TickBudget are read once at startup, so a reload that
// would change anything besides Log.Level or Runtime.SyncInterval is
// rejected rather than applied.
func onlyReloadableFieldsChanged(prev, next *Config) error {
	if prev.Runtime.TickBudget != next.Runtime.TickBudget {
		return ErrImmutableFieldChanged
	}
	if prev.Transport != next.Transport {
		return ErrImmutableFieldChanged
	}
	if !clusterEqual(prev.Cluster, next.Cluster) {
		return ErrImmutableFieldChanged
	}
	if prev.App != next.App {
		return ErrImmutableFieldChanged
	}
	return nil
}

func clusterEqual(a, b ClusterConfig) bool {
	if a.Rank != b.Rank || a.Size != b.Size || len(a.Peers) != len(b.Peers) {
		return false
	}
	for i := range a.Peers {
		if a.Peers[i] != b.Peers[i] {
			return false
		}
	}
	return true
}
