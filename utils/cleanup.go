package utils

import (
	"context"
	"time"

	"github.com/cppla/queridometro/tally"
)

// Pruner deletes vote lines older than a day key.
type Pruner interface {
	DeleteBefore(ctx context.Context, day string) (int64, error)
}

// PruneOnce removes days that fell out of the retention window ending at
// today, then drops cached results so pruned days are not served from Redis.
// retentionDays <= 0 keeps everything.
func PruneOnce(ctx context.Context, p Pruner, today string, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := tally.AddDays(today, -retentionDays)
	if cutoff == "" {
		return 0, nil
	}
	n, err := p.DeleteBefore(ctx, cutoff)
	if err == nil && n > 0 {
		InvalidateByPrefix(ctx, ResultsCachePrefix)
	}
	return n, err
}

// StartRetentionCleaner prunes old days in the background until ctx is done.
// It is best-effort and logs failures.
func StartRetentionCleaner(ctx context.Context, p Pruner, today func() string, retentionDays int, interval time.Duration) {
	if retentionDays <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			n, err := PruneOnce(ctx, p, today(), retentionDays)
			if err != nil {
				Sugar.Warnf("retention cleaner failed: %v", err)
			} else if n > 0 {
				Sugar.Infof("retention cleaner removed %d vote lines", n)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}
