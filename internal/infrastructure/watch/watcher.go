// Package watch re-runs an action when configuration files change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	consts "github.com/khanhnv2901/nginx-audit/internal/shared/constants"
)

// Config controls how file events turn into actions.
type Config struct {
	// Paths are the files to watch. Their parent directories are watched so
	// editors that replace files on save are still noticed.
	Paths []string
	// Debounce is how long a burst of events must be quiet before the action runs.
	Debounce time.Duration
	// MinInterval is the minimum time between two actions.
	MinInterval time.Duration
}

// Watcher calls an action whenever one of the watched files changes.
type Watcher struct {
	cfg     Config
	logger  *zap.Logger
	limiter *rate.Limiter
	files   map[string]struct{}
}

// New creates a watcher. Zero durations fall back to the package defaults.
func New(cfg Config, logger *zap.Logger) (*Watcher, error) {
	if len(cfg.Paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = consts.WatchDebounce
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = consts.WatchMinInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	files := make(map[string]struct{}, len(cfg.Paths))
	for _, p := range cfg.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		files[abs] = struct{}{}
	}

	return &Watcher{
		cfg:     cfg,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
		files:   files,
	}, nil
}

// Run blocks until ctx is done, calling action with the changed path after
// each debounced burst of events. Actions never overlap.
func (w *Watcher) Run(ctx context.Context, action func(ctx context.Context, path string)) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	dirs := make(map[string]struct{})
	for file := range w.files {
		dirs[filepath.Dir(file)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.logger.Info("watch_started",
		zap.Int("files", len(w.files)),
		zap.Duration("debounce", w.cfg.Debounce),
		zap.Duration("min_interval", w.cfg.MinInterval),
	)

	return w.loop(ctx, fsw.Events, fsw.Errors, action)
}

// loop debounces events into actions until ctx is done or either channel
// closes. The action goroutine has exited when loop returns.
func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, action func(ctx context.Context, path string)) error {
	ctx, cancel := context.WithCancel(ctx)

	var (
		mu      sync.Mutex
		pending string
		wg      sync.WaitGroup
	)
	defer wg.Wait()
	defer cancel()

	trigger := make(chan struct{}, 1)
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-trigger:
			}
			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			mu.Lock()
			path := pending
			mu.Unlock()
			action(ctx, path)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watch_stopped")
			return nil

		case event, ok := <-events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("file_event", zap.String("path", event.Name), zap.Stringer("op", event.Op))

			mu.Lock()
			pending = event.Name
			mu.Unlock()
			timer.Reset(w.cfg.Debounce)

		case <-timer.C:
			select {
			case trigger <- struct{}{}:
			default:
			}

		case err, ok := <-errs:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("watch_error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}
