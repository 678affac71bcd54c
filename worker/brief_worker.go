package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"market-briefer/internal/model"
	"market-briefer/internal/pipeline"
)

// BriefWorker runs the weekly batch: every interval it walks the
// subscriber roster and runs each pipeline, at most MaxConcurrent at a
// time. One subscriber's failure never aborts the batch.
type BriefWorker struct {
	Pipeline      *pipeline.Pipeline
	Subscribers   func() []model.Profile
	Interval      time.Duration
	MaxConcurrent int
}

func (w *BriefWorker) Start(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = 7 * 24 * time.Hour
	}
	if w.MaxConcurrent <= 0 {
		w.MaxConcurrent = 5
	}
	t := time.NewTicker(w.Interval)
	defer t.Stop()

	// initial run
	w.runBatch(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			w.runBatch(ctx)
		}
	}
}

func (w *BriefWorker) runBatch(ctx context.Context) {
	profiles := w.Subscribers()
	if len(profiles) == 0 {
		slog.Info("brief worker: no subscribers configured")
		return
	}
	start := time.Now()
	sem := make(chan struct{}, w.MaxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed []string

	for _, p := range profiles {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(p model.Profile) {
			defer wg.Done()
			defer func() { <-sem }()
			if _, err := w.Pipeline.Run(ctx, p); err != nil {
				slog.Error("brief worker: pipeline failed", "subscriber", p.ID, "error", err)
				mu.Lock()
				failed = append(failed, p.ID)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	slog.Info("brief worker: batch completed",
		"subscribers", len(profiles),
		"failed", len(failed),
		"elapsed", time.Since(start).Round(time.Second))
}
