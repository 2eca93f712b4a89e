package engine

import (
	"context"
	"log/slog"
	"time"
)

// RunClock advances the block number every interval until ctx is done.
func (l *Local) RunClock(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			block, err := l.AdvanceBlock()
			if err != nil {
				l.logger.Error("advance block", slog.Any("error", err))
				continue
			}
			l.logger.Debug("block advanced", slog.Uint64("block", block))
		}
	}
}
