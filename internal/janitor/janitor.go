// Package janitor runs periodic sweeps over the ticket collection so Open
// inquiries do not sit unanswered at Medium priority forever.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ironlady-io/bridge/internal/ticket"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

const defaultStaleAfter = 30 * time.Minute

// Janitor raises the priority of stale Open tickets and escalates the ones
// that have gone twice the stale window without an agent reply.
type Janitor struct {
	repo       *ticket.Repository
	cron       *cron.Cron
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithStaleAfter sets the unanswered window before a priority bump.
func WithStaleAfter(d time.Duration) Option {
	return func(j *Janitor) { j.staleAfter = d }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(j *Janitor) { j.now = now }
}

func New(repo *ticket.Repository, logger *slog.Logger, opts ...Option) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		repo:       repo,
		cron:       cron.New(),
		staleAfter: defaultStaleAfter,
		now:        time.Now,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Start registers the sweep under the given cron spec and blocks until the
// context is cancelled.
func (j *Janitor) Start(ctx context.Context, spec string) error {
	if _, err := j.cron.AddFunc(spec, func() {
		if err := j.Sweep(); err != nil {
			j.logger.Error("janitor sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("janitor: invalid schedule %q: %w", spec, err)
	}

	j.cron.Start()
	j.logger.Info("janitor started", "schedule", spec, "stale_after", j.staleAfter)

	<-ctx.Done()
	j.cron.Stop()
	j.logger.Info("janitor stopped")
	return ctx.Err()
}

// Sweep runs one pass. A ticket counts as stale from its last message, not
// its creation, so an active back-and-forth is never bumped.
func (j *Janitor) Sweep() error {
	tickets, err := j.repo.ListAll()
	if err != nil {
		return err
	}

	now := j.now()
	for _, t := range tickets {
		if t.Status != protocol.TicketOpen {
			continue
		}
		age := now.Sub(lastActivity(t))
		switch {
		case age >= 2*j.staleAfter:
			if err := j.repo.SetStatus(t.ID, protocol.TicketEscalated, ""); err != nil {
				return err
			}
			j.logger.Warn("stale ticket escalated", "ticket", t.ID, "age", age)
		case age >= j.staleAfter && t.Priority != protocol.PriorityHigh:
			if err := j.repo.SetPriority(t.ID, protocol.PriorityHigh); err != nil {
				return err
			}
			j.logger.Info("stale ticket raised to high priority", "ticket", t.ID, "age", age)
		}
	}
	return nil
}

func lastActivity(t protocol.Ticket) time.Time {
	if len(t.Messages) == 0 {
		return t.CreatedAt
	}
	return t.Messages[len(t.Messages)-1].Timestamp
}
