package service

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper calls Sweep every interval until ctx ends. Errors are logged and
// the loop keeps going. A non-positive interval returns immediately.
func (s *MarkerService) RunSweeper(ctx context.Context, interval time.Duration, log *slog.Logger) {
	if interval <= 0 {
		return
	}
	if log == nil {
		log = slog.Default()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := s.Sweep(ctx)
		if err != nil {
			if ctx.Err() == nil {
				log.Error("marker sweep failed", "error", err)
			}
			continue
		}
		if n > 0 {
			log.Info("expired markers swept", "count", n)
		}
	}
}
