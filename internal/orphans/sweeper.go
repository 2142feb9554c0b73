package orphans

import (
	"context"
	"log/slog"
	"time"
)

// Remover deletes a bucket object. storage.Bucket satisfies it.
type Remover interface {
	Remove(ctx context.Context, path string) error
}

// Sweeper periodically drains the queue and retries removals.
type Sweeper struct {
	Queue       Queue
	Bucket      Remover
	Interval    time.Duration
	MaxAttempts int
}

// Run sweeps every Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep makes one pass over the items queued when it starts. Items that fail
// again are re-enqueued behind them, so a pass always terminates.
func (s *Sweeper) Sweep(ctx context.Context) (removed int) {
	n, err := s.Queue.Len(ctx)
	if err != nil {
		slog.Error("orphan sweep: queue length", slog.String("error", err.Error()))
		return 0
	}

	for range n {
		if ctx.Err() != nil {
			return removed
		}
		item, ok, err := s.Queue.Dequeue(ctx)
		if err != nil {
			slog.Error("orphan sweep: dequeue", slog.String("error", err.Error()))
			return removed
		}
		if !ok {
			return removed
		}

		err = s.Bucket.Remove(ctx, item.Path)
		if err == nil {
			removed++
			slog.Info("orphan removed", slog.String("path", item.Path))
			continue
		}
		item.Attempts++
		if s.MaxAttempts > 0 && item.Attempts >= s.MaxAttempts {
			slog.Error("orphan dropped after retries",
				slog.String("path", item.Path),
				slog.Int("attempts", item.Attempts),
				slog.String("error", err.Error()))
			continue
		}
		slog.Warn("orphan removal failed",
			slog.String("path", item.Path),
			slog.Int("attempts", item.Attempts),
			slog.String("error", err.Error()))
		if err := s.Queue.Enqueue(ctx, item); err != nil {
			slog.Error("orphan sweep: re-enqueue",
				slog.String("path", item.Path),
				slog.String("error", err.Error()))
		}
	}
	return removed
}

// Drain makes a last pass and returns how many items are still queued.
// Items left on a MemoryQueue are lost with the process, so they are logged.
func (s *Sweeper) Drain(ctx context.Context) int {
	s.Sweep(ctx)
	n, err := s.Queue.Len(ctx)
	if err != nil {
		slog.Error("orphan drain: queue length", slog.String("error", err.Error()))
		return 0
	}
	if n > 0 {
		slog.Warn("orphans still queued at exit", slog.Int("count", n))
	}
	return n
}
