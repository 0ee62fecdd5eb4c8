package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a classifier's blocklist when the keywords file changes,
// so operators can update moderation policy without a restart.
type Watcher struct {
	path       string
	classifier *Classifier
	watcher    *fsnotify.Watcher
	debounce   time.Duration
	logger     *slog.Logger
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// NewWatcher creates a watcher for the keywords file feeding classifier.
func NewWatcher(path string, classifier *Classifier, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:       path,
		classifier: classifier,
		watcher:    fsw,
		debounce:   500 * time.Millisecond,
		logger:     logger,
	}, nil
}

// Start loads the file once, then watches its directory for changes.
// Editors replace files rather than writing in place, so watching the
// parent directory catches rename-based saves too.
func (w *Watcher) Start() error {
	keywords, err := LoadKeywordsFile(w.path)
	if err != nil {
		return err
	}
	w.classifier.SetKeywords(keywords)

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop terminates the watch loop and releases the fsnotify watcher.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	var timer *time.Timer
	pending := false
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Debounce bursts of events from one save.
			if !pending {
				pending = true
				timer = time.AfterFunc(w.debounce, func() {
					select {
					case fire <- struct{}{}:
					default:
					}
				})
			} else if timer != nil {
				timer.Reset(w.debounce)
			}

		case <-fire:
			pending = false
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("keywords watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) reload() {
	keywords, err := LoadKeywordsFile(w.path)
	if err != nil {
		// Keep the last good blocklist on a bad read.
		w.logger.Warn("keywords reload failed", slog.String("error", err.Error()))
		return
	}
	w.classifier.SetKeywords(keywords)
	w.logger.Info("keywords reloaded", slog.Int("count", len(keywords)))
}
