package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Watcher polls a drop folder for saved pages and runs each through
// the pipeline. Sweeps and page runs share one goroutine, so at most
// one page is ever in flight.
type Watcher struct {
	pipeline *Pipeline
	dir      string
	interval time.Duration
}

func NewWatcher(p *Pipeline, dir string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = time.Second * 5
	}
	return &Watcher{
		pipeline: p,
		dir:      dir,
		interval: interval,
	}
}

// Run polls until the context is canceled. A page already in flight
// finishes its current fetch before the loop stops.
func (w *Watcher) Run(ctx context.Context) error {
	err := os.MkdirAll(w.dir, 0755)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "watching for saved pages",
		"dir", w.dir, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Watcher) sweep(ctx context.Context) {
	matches, err := filepath.Glob(filepath.Join(w.dir, "*.html"))
	if err != nil {
		slog.ErrorContext(ctx, "drop folder scan failed", "dir", w.dir, "err", err)
		return
	}
	sort.Strings(matches)

	for _, path := range matches {
		if ctx.Err() != nil {
			return
		}
		out := w.pipeline.Process(ctx, path, false)
		switch out.Status {
		case StatusSkipped:
			slog.DebugContext(ctx, "page skipped", "path", path, "notice", out.Notice)
		case StatusCompleted:
			slog.InfoContext(ctx, "page processed", "path", path, "app_id", out.AppID)
		default:
			slog.WarnContext(ctx, "page not completed",
				"path", path, "status", string(out.Status), "err", out.Err)
		}
	}
}
