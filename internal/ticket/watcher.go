package ticket

import (
	"context"
	"log/slog"
	"time"

	"github.com/ironlady-io/bridge/pkg/protocol"
)

// Watcher approximates real-time sync between the two surfaces by
// re-reading the repository on a fixed interval. Both surfaces consume it
// through Subscribe/SubscribeAll, so a push channel can replace the
// polling without touching state-machine or console logic.
type Watcher struct {
	repo     *Repository
	interval time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher polling at the given interval.
func NewWatcher(repo *Repository, interval time.Duration, logger *slog.Logger) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{repo: repo, interval: interval, logger: logger}
}

// Interval returns the poll period.
func (w *Watcher) Interval() time.Duration { return w.interval }

// Subscribe invokes fn with the current state of one ticket once per poll
// cycle. A missing ticket is skipped, not an error: the visitor may hold a
// stale id. Blocks until ctx is cancelled.
func (w *Watcher) Subscribe(ctx context.Context, ticketID string, fn func(*protocol.Ticket)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t, err := w.repo.FindByID(ticketID)
			if err != nil {
				continue
			}
			fn(t)
		case <-ctx.Done():
			return
		}
	}
}

// SubscribeAll invokes fn with the full ticket list once per poll cycle.
// Used by the console's inbox refresh. Blocks until ctx is cancelled.
func (w *Watcher) SubscribeAll(ctx context.Context, fn func([]protocol.Ticket)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tickets, err := w.repo.ListAll()
			if err != nil {
				w.logger.Error("ticket poll failed", "error", err)
				continue
			}
			fn(tickets)
		case <-ctx.Done():
			return
		}
	}
}
