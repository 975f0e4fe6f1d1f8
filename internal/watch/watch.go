// Package watch re-runs a callback when watched source files change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/goliatone/go-formkit/internal/logging"
)

// DefaultDebounce collapses bursts of editor writes into one run.
const DefaultDebounce = 250 * time.Millisecond

// Func is invoked after a quiet period following a change. changed holds the
// absolute paths touched during the burst.
type Func func(ctx context.Context, changed []string) error

// Options configure a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *zap.Logger
}

// Watcher observes a set of files and calls Func once per burst of changes.
type Watcher struct {
	files    map[string]struct{}
	dirs     map[string]struct{}
	debounce time.Duration
	logger   *zap.Logger
	fn       Func
}

// New watches the given files. Parent directories are registered with
// fsnotify so atomic saves (rename over the original) are seen.
func New(paths []string, fn Func, opts Options) (*Watcher, error) {
	if fn == nil {
		return nil, fmt.Errorf("watch: callback is required")
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("watch: no paths")
	}
	w := &Watcher{
		files:    make(map[string]struct{}, len(paths)),
		dirs:     make(map[string]struct{}),
		debounce: opts.Debounce,
		logger:   opts.Logger,
		fn:       fn,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	w.logger = logging.OrNop(w.logger)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: absolute path %q: %w", p, err)
		}
		w.files[abs] = struct{}{}
		w.dirs[filepath.Dir(abs)] = struct{}{}
	}
	return w, nil
}

// Run blocks until ctx is cancelled. Callback errors are logged and do not
// stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: create watcher: %w", err)
	}
	defer fsw.Close()

	for dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watch: add %s: %w", dir, err)
		}
	}
	w.logger.Info("watching for changes", zap.Int("files", len(w.files)), zap.Duration("debounce", w.debounce))

	d := newDebouncer(w.debounce)
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("source changed", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			d.add(event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("file watcher error", zap.Error(err))

		case <-d.fire:
			changed := d.drain()
			if err := w.fn(ctx, changed); err != nil {
				w.logger.Error("rebuild failed", zap.Strings("changed", changed), zap.Error(err))
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// debouncer delivers on fire once no add has happened for the delay.
type debouncer struct {
	delay time.Duration
	fire  chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	pending []string
	seen    map[string]struct{}
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay: delay,
		fire:  make(chan struct{}, 1),
		seen:  make(map[string]struct{}),
	}
}

func (d *debouncer) add(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if abs, err := filepath.Abs(name); err == nil {
		name = abs
	}
	if _, ok := d.seen[name]; !ok {
		d.seen[name] = struct{}{}
		d.pending = append(d.pending, name)
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.fire <- struct{}{}:
		default:
		}
	})
}

func (d *debouncer) drain() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.pending
	d.pending = nil
	d.seen = make(map[string]struct{})
	return out
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
