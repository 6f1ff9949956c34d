package verification

import (
	"context"
	"log/slog"
	"time"
)

// RunSweeper calls CleanupExpired every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
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
			n, err := m.CleanupExpired(ctx)
			if err != nil {
				m.logger.Warn("verification sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				m.logger.Info("verification sweep", slog.Int64("deleted", n))
			}
		}
	}
}
