package ruleset

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when a Watcher is created with a zero interval.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads rule files when they change. Files are watched through
// their parent directory so editors that replace files on save are seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	reloader *Reloader
	debounce *Debouncer
	logger   *slog.Logger

	// dirs are watched directories; files are watched individual files.
	dirs  map[string]struct{}
	files map[string]struct{}

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewWatcher creates a watcher for the reloader's paths.
func NewWatcher(reloader *Reloader, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		reloader: reloader,
		debounce: NewDebouncer(debounce),
		logger:   logger.With("component", "ruleset.watcher"),
		dirs:     make(map[string]struct{}),
		files:    make(map[string]struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	for _, p := range reloader.Paths() {
		if err := w.add(p); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("watch %q: %w", path, err)
	}

	dir := abs
	if info.IsDir() {
		w.dirs[abs] = struct{}{}
	} else {
		w.files[abs] = struct{}{}
		dir = filepath.Dir(abs)
	}
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %q: %w", dir, err)
	}
	return nil
}

// Watch processes file events until ctx is done or Stop is called. Each
// burst of relevant events triggers one reload after the debounce interval.
func (w *Watcher) Watch(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)

	w.logger.Info("watching rule files",
		"paths", w.reloader.Paths(),
		"debounce_ms", w.debounce.interval.Milliseconds(),
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.stopCh:
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("rule file event", "path", event.Name, "op", event.Op.String())
			w.debounce.Trigger(func() {
				if _, err := w.reloader.Reload(ctx); err != nil {
					w.logger.Error("rule reload failed", "error", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("file watcher error", "error", err)
		}
	}
}

// Stop stops a running watcher and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
		<-w.doneCh
	}
	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(event.Name)
	if _, ok := w.files[name]; ok {
		return true
	}
	if _, ok := w.dirs[filepath.Dir(name)]; ok {
		return isRuleFile(filepath.Base(name))
	}
	return false
}

// Debouncer runs the most recent callback once events stop arriving for
// the interval.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger records an event and restarts the quiet period.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.callback = nil
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
