package usage

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CleanupInterval is how often expired usage entries are deleted.
const CleanupInterval = time.Hour

const pruneTimeout = 5 * time.Minute

// pruneFunc deletes entries older than cutoff and reports how many went.
type pruneFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// retention runs a store's pruneFunc once at start and then every interval
// while days is positive.
type retention struct {
	days  int
	prune pruneFunc
	stop  chan struct{}
	once  sync.Once
}

func startRetention(days int, interval time.Duration, prune pruneFunc) *retention {
	r := &retention{days: days, prune: prune, stop: make(chan struct{})}
	if days > 0 {
		go r.loop(interval)
	}
	return r
}

func (r *retention) loop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.run(time.Now())
	for {
		select {
		case now := <-ticker.C:
			r.run(now)
		case <-r.stop:
			return
		}
	}
}

func (r *retention) run(now time.Time) {
	if r.days <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()

	deleted, err := r.prune(ctx, now.AddDate(0, 0, -r.days).UTC())
	if err != nil {
		slog.Error("failed to cleanup old usage entries", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("cleaned up old usage entries", "deleted", deleted, "retention_days", r.days)
	}
}

func (r *retention) halt() {
	r.once.Do(func() { close(r.stop) })
}
