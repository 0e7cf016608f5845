package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"agentnet/internal/infra/telemetry"
)

const defaultDebounce = 200 * time.Millisecond

// ReindexFunc is invoked once per burst of catalog changes.
type ReindexFunc func(ctx context.Context, catalogPath string) error

// CatalogWatcher re-ensures the index whenever the catalog file changes.
type CatalogWatcher struct {
	path     string
	debounce time.Duration
	reindex  ReindexFunc
	logger   *zap.Logger
}

func NewCatalogWatcher(path string, debounce time.Duration, reindex ReindexFunc, logger *zap.Logger) (*CatalogWatcher, error) {
	if path == "" {
		return nil, errors.New("catalog watcher requires a path")
	}
	if reindex == nil {
		return nil, errors.New("catalog watcher requires a reindex callback")
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve catalog path: %w", err)
	}
	return &CatalogWatcher{
		path:     abs,
		debounce: debounce,
		reindex:  reindex,
		logger:   logger.Named("catalog_watcher"),
	}, nil
}

// Run blocks until ctx is canceled. The parent directory is watched so that
// editors replacing the file via rename are still observed.
func (w *CatalogWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching catalog", telemetry.CatalogField(w.path))

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				w.logger.Warn("catalog watcher error", zap.Error(err))
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			w.logger.Info("catalog changed", telemetry.EventField(telemetry.EventCatalogChange), telemetry.CatalogField(w.path))
			if err := w.reindex(ctx, w.path); err != nil {
				w.logger.Warn("reindex after catalog change failed",
					telemetry.EventField(telemetry.EventReindexFailure),
					zap.Error(err),
				)
			}
		}
	}
}

func (w *CatalogWatcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
