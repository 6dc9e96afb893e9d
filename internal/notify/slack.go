// Package notify pushes ticket lifecycle events to Slack so the support
// team hears about new and escalated inquiries without watching the inbox.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"

	"github.com/ironlady-io/bridge/internal/ticket"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

// Poster is the slice of the Slack client the notifier uses.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Config holds Slack notifier settings.
type Config struct {
	Token   string // xoxb-... Bot User OAuth Token
	Channel string // channel name or ID to post into
}

// Notifier watches the ticket stream and posts one message per lifecycle
// transition: created, escalated, resolved. It keeps the last seen status
// per ticket so repeated polls do not repost.
type Notifier struct {
	api     Poster
	channel string
	watcher *ticket.Watcher
	logger  *slog.Logger

	mu   sync.Mutex
	seen map[string]protocol.TicketStatus
}

func New(cfg Config, watcher *ticket.Watcher, logger *slog.Logger) (*Notifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("notify: slack token is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("notify: slack channel is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		api:     slack.New(cfg.Token),
		channel: cfg.Channel,
		watcher: watcher,
		logger:  logger,
		seen:    make(map[string]protocol.TicketStatus),
	}, nil
}

// NewWithPoster builds a notifier over an injected Slack client (tests).
func NewWithPoster(api Poster, channel string, watcher *ticket.Watcher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		api:     api,
		channel: channel,
		watcher: watcher,
		logger:  logger,
		seen:    make(map[string]protocol.TicketStatus),
	}
}

// Start subscribes to the ticket stream and blocks until the context is
// cancelled.
func (n *Notifier) Start(ctx context.Context) error {
	n.logger.Info("slack notifier started", "channel", n.channel)
	n.watcher.SubscribeAll(ctx, func(tickets []protocol.Ticket) {
		n.Observe(ctx, tickets)
	})
	return ctx.Err()
}

// Observe diffs the ticket list against the last seen statuses and posts
// for each transition worth announcing.
func (n *Notifier) Observe(ctx context.Context, tickets []protocol.Ticket) {
	for _, t := range tickets {
		n.mu.Lock()
		prev, known := n.seen[t.ID]
		n.seen[t.ID] = t.Status
		n.mu.Unlock()

		switch {
		case !known:
			var lastText string
			if last := t.LastMessage(); last != nil {
				lastText = last.Text
			}
			n.post(ctx, fmt.Sprintf(":ticket: New inquiry %s from %s: %q", t.ID, t.LearnerName, lastText))
		case prev == t.Status:
			// No transition.
		case t.Status == protocol.TicketEscalated:
			n.post(ctx, fmt.Sprintf(":rotating_light: Ticket %s (%s) escalated to senior review", t.ID, t.LearnerName))
		case t.Status == protocol.TicketResolved:
			n.post(ctx, fmt.Sprintf(":white_check_mark: Ticket %s (%s) resolved", t.ID, t.LearnerName))
		}
	}
}

func (n *Notifier) post(ctx context.Context, text string) {
	if _, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false)); err != nil {
		n.logger.Warn("slack post failed", "error", err)
	}
}
