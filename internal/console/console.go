// Package console implements the agent-facing side of the ticketing
// bridge: the inbox, the reply composer, status actions, and the per-ticket
// copilot panel.
package console

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ironlady-io/bridge/internal/assist"
	"github.com/ironlady-io/bridge/internal/ticket"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

// Closing messages appended when an agent resolves or escalates a thread.
const (
	resolvedClosing  = "Thank you. Your inquiry is now resolved."
	escalatedClosing = "This chat is escalated to senior review."
)

// Service backs the agent console. Ticket reads always go through the
// repository so the inbox reflects visitor writes on every poll; the only
// console-local state is the copilot analysis cache.
type Service struct {
	tickets *ticket.Repository
	assist  *assist.Client
	logger  *slog.Logger

	mu       sync.Mutex
	analyses map[string]analysis
}

// analysis is a cached copilot run, keyed by ticket id and pinned to the
// message count it saw. A stale count triggers a re-run.
type analysis struct {
	msgCount int
	intel    protocol.Intelligence
}

func NewService(repo *ticket.Repository, ai *assist.Client, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tickets:  repo,
		assist:   ai,
		logger:   logger,
		analyses: make(map[string]analysis),
	}
}

// Inbox returns the full ticket list, newest first.
func (s *Service) Inbox() ([]protocol.Ticket, error) {
	return s.tickets.ListAll()
}

// Stats counts tickets by status for the portal dashboard.
func (s *Service) Stats() (map[protocol.TicketStatus]int, error) {
	return s.tickets.Stats()
}

// Ticket returns one ticket thread.
func (s *Service) Ticket(id string) (*protocol.Ticket, error) {
	return s.tickets.FindByID(id)
}

// SendReply appends an agent message and moves the ticket to Assigned
// unless it is already Resolved. Blank replies are rejected.
func (s *Service) SendReply(id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("console: empty reply")
	}
	if err := s.tickets.Reply(id, text); err != nil {
		return err
	}
	s.logger.Info("agent reply sent", "ticket", id)
	return nil
}

// Resolve closes the thread with the canned resolution message. The
// visitor's widget renders its own closing line when it sees the status.
func (s *Service) Resolve(id string) error {
	if err := s.tickets.SetStatus(id, protocol.TicketResolved, resolvedClosing); err != nil {
		return err
	}
	s.logger.Info("ticket resolved", "ticket", id)
	return nil
}

// Escalate flags the thread for senior review. The status is advisory: a
// later agent reply moves it back to Assigned.
func (s *Service) Escalate(id string) error {
	if err := s.tickets.SetStatus(id, protocol.TicketEscalated, escalatedClosing); err != nil {
		return err
	}
	s.logger.Info("ticket escalated", "ticket", id)
	return nil
}

// Polish proxies the writing assistant for the reply composer.
func (s *Service) Polish(ctx context.Context, text string) string {
	return s.assist.Polish(ctx, text)
}

// Suggestions returns the copilot analysis for a ticket. A fresh analysis
// runs only when the message count changed since the last run and the
// latest message is not agent-authored; otherwise the cached result is
// returned, or nil when nothing has been analyzed yet. Resolved tickets are
// never re-analyzed.
func (s *Service) Suggestions(ctx context.Context, id string) (*protocol.Intelligence, error) {
	t, err := s.tickets.FindByID(id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cached, ok := s.analyses[id]
	s.mu.Unlock()

	fresh := len(t.Messages) > 0 &&
		t.Status != protocol.TicketResolved &&
		t.Messages[len(t.Messages)-1].Sender != protocol.SenderAgent &&
		(!ok || cached.msgCount != len(t.Messages))

	if !fresh {
		if !ok {
			return nil, nil
		}
		intel := cached.intel
		return &intel, nil
	}

	intel := s.assist.ExtractIntelligence(ctx, t.Messages)

	s.mu.Lock()
	s.analyses[id] = analysis{msgCount: len(t.Messages), intel: intel}
	s.mu.Unlock()

	return &intel, nil
}
