package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"smokeplan/internal/logging"
)

// DefaultDebounce is how long a file must stay quiet before onChange runs
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches files for changes and calls onChange once per burst of
// writes to each file.
type Watcher struct {
	paths    []string
	onChange func(ctx context.Context, path string) error
	debounce time.Duration
	log      logging.Logger
	ready    chan struct{}
}

// New creates a watcher over paths. onChange receives the absolute path of
// the file that changed and runs on the watching goroutine.
func New(onChange func(ctx context.Context, path string) error, paths ...string) *Watcher {
	return &Watcher{
		paths:    paths,
		onChange: onChange,
		debounce: DefaultDebounce,
		log:      logging.Noop(),
		ready:    make(chan struct{}),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// WithLogger sets the logger
func (w *Watcher) WithLogger(l logging.Logger) *Watcher {
	if l != nil {
		w.log = l
	}
	return w
}

// Ready is closed once every directory is being watched
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Watch blocks until ctx is cancelled or the underlying watcher fails.
// Directories are watched rather than files so that editors which replace
// the file still trigger a change.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	files := make(map[string]bool, len(w.paths))
	dirs := make(map[string]bool)
	for _, p := range w.paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		dirs[dir] = true
		w.log.Info(ctx, "watching for changes", logging.String("path", abs))
	}
	close(w.ready)

	fired := make(chan string, len(files))
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !files[abs] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if t, exists := timers[abs]; exists {
				t.Reset(w.debounce)
				continue
			}
			timers[abs] = time.AfterFunc(w.debounce, func() {
				select {
				case fired <- abs:
				case <-ctx.Done():
				}
			})

		case path := <-fired:
			delete(timers, path)
			w.log.Info(ctx, "file changed", logging.String("path", path))
			if err := w.onChange(ctx, path); err != nil {
				w.log.Warn(ctx, "change handler failed", logging.String("path", path), logging.Err(err))
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn(ctx, "watcher error", logging.Err(err))

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
