// internal/store/watch.go
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"tranche-workers/internal/common/logger"
	"tranche-workers/internal/common/metrics"
)

// Invalidation triggers.
const (
	TriggerFile     = "file"
	TriggerSchedule = "schedule"
	TriggerJob      = "job"
	TriggerAPI      = "api"
)

// Invalidator is the part of ThresholdStore the refresh triggers use.
type Invalidator interface {
	Invalidate(ctx context.Context, version string) error
	LatestVersion(ctx context.Context) (string, error)
}

// ThresholdWatcher invalidates the threshold cache whenever the YAML source
// file changes on disk.
type ThresholdWatcher struct {
	store   Invalidator
	path    string
	logger  logger.Logger
	watcher *fsnotify.Watcher
}

func NewThresholdWatcher(store Invalidator, path string, log logger.Logger) (*ThresholdWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	return &ThresholdWatcher{
		store:   store,
		path:    abs,
		logger:  log.WithFields(map[string]interface{}{"component": "threshold-watcher", "path": abs}),
		watcher: w,
	}, nil
}

// Run blocks until ctx is cancelled. The parent directory is watched so that
// editors replacing the file by rename are still seen.
func (w *ThresholdWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	w.logger.Info("threshold file watcher started", nil)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("threshold file watcher stopped", nil)
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			w.logger.Debug("threshold file changed", map[string]interface{}{"op": event.Op.String()})
			if err := w.store.Invalidate(ctx, ""); err != nil {
				w.logger.Error("threshold invalidation failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			metrics.ThresholdInvalidations.WithLabelValues(TriggerFile).Inc()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("threshold file watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}

// ThresholdRefresher polls the source's latest version on a cron schedule and
// invalidates the cache when it moves.
type ThresholdRefresher struct {
	store    Invalidator
	schedule string
	logger   logger.Logger
	cron     *cron.Cron

	mu   sync.Mutex
	last string
}

func NewThresholdRefresher(store Invalidator, schedule string, log logger.Logger) *ThresholdRefresher {
	return &ThresholdRefresher{
		store:    store,
		schedule: schedule,
		logger:   log.WithFields(map[string]interface{}{"component": "threshold-refresher"}),
		cron:     cron.New(),
	}
}

// Start records the current version and schedules polling. An empty schedule
// disables it.
func (r *ThresholdRefresher) Start(ctx context.Context) error {
	if r.schedule == "" {
		r.logger.Info("threshold refresh schedule not configured", nil)
		return nil
	}
	if _, err := cron.ParseStandard(r.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.schedule, err)
	}

	if v, err := r.store.LatestVersion(ctx); err == nil {
		r.mu.Lock()
		r.last = v
		r.mu.Unlock()
	}

	if _, err := r.cron.AddFunc(r.schedule, func() { _, _ = r.Poll(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule threshold refresh: %w", err)
	}
	r.cron.Start()
	r.logger.Info("threshold refresher started", map[string]interface{}{"schedule": r.schedule})

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Poll compares the latest version with the last one seen and invalidates on
// change. It reports whether it invalidated.
func (r *ThresholdRefresher) Poll(ctx context.Context) (bool, error) {
	v, err := r.store.LatestVersion(ctx)
	if err != nil {
		r.logger.Error("threshold version poll failed", map[string]interface{}{"error": err.Error()})
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v == r.last {
		return false, nil
	}

	if err := r.store.Invalidate(ctx, ""); err != nil {
		r.logger.Error("threshold invalidation failed", map[string]interface{}{"error": err.Error()})
		return false, err
	}
	r.logger.Info("threshold version changed", map[string]interface{}{"from": r.last, "to": v})
	r.last = v
	metrics.ThresholdInvalidations.WithLabelValues(TriggerSchedule).Inc()
	return true, nil
}

// Stop halts the schedule and waits for a running poll.
func (r *ThresholdRefresher) Stop() {
	<-r.cron.Stop().Done()
}
