package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Logger is the logging contract used by the watcher. *slog.Logger
// satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// Sourced is implemented by feeders that read a file.
type Sourced interface {
	Source() string
}

// DefaultDebounce is how long the watcher waits after the last file event
// before reloading.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads the configuration when one of the feeders' files changes
// and passes the new Config to every subscriber.
type Watcher struct {
	section  string
	feeders  []Feeder
	files    map[string]bool
	logger   Logger
	debounce time.Duration

	mu          sync.RWMutex
	current     *Config
	subscribers []func(*Config)

	fs     *fsnotify.Watcher
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher over the files read by feeders. It does not
// start watching until Start is called.
func NewWatcher(initial *Config, logger Logger, section string, feeders ...Feeder) (*Watcher, error) {
	files := make(map[string]bool)
	for _, f := range feeders {
		s, ok := f.(Sourced)
		if !ok {
			continue
		}
		if path := s.Source(); filepath.Ext(path) != "" {
			abs, err := filepath.Abs(path)
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", path, err)
			}
			files[abs] = true
		}
	}
	if len(files) == 0 {
		return nil, ErrNoWatchableSource
	}
	return &Watcher{
		section:  section,
		feeders:  feeders,
		files:    files,
		logger:   logger,
		debounce: DefaultDebounce,
		current:  initial,
	}, nil
}

// Subscribe registers fn to be called with every successfully reloaded Config.
func (w *Watcher) Subscribe(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.subscribers = append(w.subscribers, fn)
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Start watches the directories holding the config files. Directories are
// watched rather than files so editors that replace files are handled.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fs != nil {
		return ErrWatcherAlreadyStarted
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	dirs := make(map[string]bool)
	for file := range w.files {
		dirs[filepath.Dir(file)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.fs = fsw
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.watchLoop(fsw, w.stopCh, w.doneCh)
	w.logger.Info("Configuration watcher started", "files", len(w.files))
	return nil
}

// Stop ends watching and waits for the watch loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.fs == nil {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	done := w.doneCh
	w.fs = nil
	w.mu.Unlock()
	<-done
}

func (w *Watcher) watchLoop(fsw *fsnotify.Watcher, stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	defer fsw.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !w.files[abs] {
				continue
			}
			w.logger.Debug("Configuration file changed", "file", event.Name, "operation", event.Op.String())
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Configuration watcher error", "error", err)
		}
	}
}

// reload re-runs the feeder chain. An invalid file keeps the previous Config.
func (w *Watcher) reload() {
	cfg, err := Load(w.section, w.feeders...)
	if err != nil {
		w.logger.Warn("Configuration reload failed, keeping previous settings", "error", err)
		return
	}

	w.mu.Lock()
	w.current = cfg
	subscribers := append([]func(*Config){}, w.subscribers...)
	w.mu.Unlock()

	w.logger.Info("Configuration reloaded")
	for _, fn := range subscribers {
		fn(cfg)
	}
}
