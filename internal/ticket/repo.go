package ticket

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironlady-io/bridge/internal/store"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

// MissingTicketPolicy controls what AppendMessage does when the target
// ticket id is not in the collection. Dropping such writes silently is the
// default, but the behavior is an explicit policy rather than an accident.
type MissingTicketPolicy string

const (
	// MissingIgnore drops the message without error.
	MissingIgnore MissingTicketPolicy = "ignore"
	// MissingCreate materializes a fresh ticket under the stale id.
	MissingCreate MissingTicketPolicy = "create"
	// MissingError reports the stale id to the caller.
	MissingError MissingTicketPolicy = "error"
)

// ErrNotFound is returned for a missing ticket id.
var ErrNotFound = fmt.Errorf("ticket not found")

// Repository provides ticket operations over the persisted store. Every
// write is a whole-collection read-modify-write: the backing store holds
// the ticket list as a single JSON document. The mutex serializes writers
// within this process; two daemon instances sharing a store can still lose
// updates to each other. Known limitation, kept.
type Repository struct {
	mu     sync.Mutex
	store  store.Store
	policy MissingTicketPolicy
	now    func() time.Time
}

// Option configures a Repository.
type Option func(*Repository)

// WithMissingPolicy sets the stale-id append policy.
func WithMissingPolicy(p MissingTicketPolicy) Option {
	return func(r *Repository) { r.policy = p }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// NewRepository creates a ticket repository on top of the given store.
func NewRepository(s store.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  s,
		policy: MissingIgnore,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create generates an id and writes a new Open, Medium-priority ticket with
// the given first message. Contact info falls back to placeholders when the
// lead has none. Returns the created ticket; the caller caches its id.
func (r *Repository) Create(sender protocol.Sender, text string, lead protocol.LeadProfile) (*protocol.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	t := protocol.Ticket{
		ID:          newTicketID(now),
		LearnerName: orDefault(lead.Name, "New Customer"),
		Phone:       orDefault(lead.FormattedPhone(), "Not provided"),
		Status:      protocol.TicketOpen,
		Priority:    protocol.PriorityMedium,
		CreatedAt:   now,
		Messages: []protocol.TicketMessage{{
			ID:        uuid.NewString(),
			Sender:    sender,
			Text:      text,
			Timestamp: now,
		}},
	}

	tickets, err := r.load()
	if err != nil {
		return nil, err
	}
	// Newest first, matching the console's inquiry stream ordering.
	tickets = append([]protocol.Ticket{t}, tickets...)
	if err := r.save(tickets); err != nil {
		return nil, err
	}
	return &t, nil
}

// AppendMessage adds a message to the target ticket and refreshes its
// contact info from the latest known lead data. A stale id is handled
// per the configured MissingTicketPolicy.
func (r *Repository) AppendMessage(ticketID string, sender protocol.Sender, text string, lead protocol.LeadProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := r.load()
	if err != nil {
		return err
	}

	for i := range tickets {
		if tickets[i].ID != ticketID {
			continue
		}
		tickets[i].Messages = append(tickets[i].Messages, protocol.TicketMessage{
			ID:        uuid.NewString(),
			Sender:    sender,
			Text:      text,
			Timestamp: r.now(),
		})
		if lead.Name != "" {
			tickets[i].LearnerName = lead.Name
		}
		if lead.Phone != "" {
			tickets[i].Phone = lead.FormattedPhone()
		}
		return r.save(tickets)
	}

	switch r.policy {
	case MissingCreate:
		now := r.now()
		t := protocol.Ticket{
			ID:          ticketID,
			LearnerName: orDefault(lead.Name, "New Customer"),
			Phone:       orDefault(lead.FormattedPhone(), "Not provided"),
			Status:      protocol.TicketOpen,
			Priority:    protocol.PriorityMedium,
			CreatedAt:   now,
			Messages: []protocol.TicketMessage{{
				ID:        uuid.NewString(),
				Sender:    sender,
				Text:      text,
				Timestamp: now,
			}},
		}
		return r.save(append([]protocol.Ticket{t}, tickets...))
	case MissingError:
		return fmt.Errorf("ticket repo: append to %q: %w", ticketID, ErrNotFound)
	default:
		return nil
	}
}

// Reply appends an agent message and marks the ticket Assigned in the same
// write. A Resolved ticket keeps its status; an Escalated one returns to
// Assigned, since a further agent send reopens the dialogue.
func (r *Repository) Reply(ticketID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := r.load()
	if err != nil {
		return err
	}

	for i := range tickets {
		if tickets[i].ID != ticketID {
			continue
		}
		tickets[i].Messages = append(tickets[i].Messages, protocol.TicketMessage{
			ID:        uuid.NewString(),
			Sender:    protocol.SenderAgent,
			Text:      text,
			Timestamp: r.now(),
		})
		if tickets[i].Status != protocol.TicketResolved {
			tickets[i].Status = protocol.TicketAssigned
		}
		return r.save(tickets)
	}
	return fmt.Errorf("ticket repo: reply to %q: %w", ticketID, ErrNotFound)
}

// SetStatus updates a ticket's status and, when closingText is non-empty,
// appends it as an agent message in the same write.
func (r *Repository) SetStatus(ticketID string, status protocol.TicketStatus, closingText string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := r.load()
	if err != nil {
		return err
	}

	for i := range tickets {
		if tickets[i].ID != ticketID {
			continue
		}
		tickets[i].Status = status
		if closingText != "" {
			tickets[i].Messages = append(tickets[i].Messages, protocol.TicketMessage{
				ID:        uuid.NewString(),
				Sender:    protocol.SenderAgent,
				Text:      closingText,
				Timestamp: r.now(),
			})
		}
		return r.save(tickets)
	}
	return fmt.Errorf("ticket repo: set status on %q: %w", ticketID, ErrNotFound)
}

// SetPriority updates a ticket's priority (used by the janitor sweeps).
func (r *Repository) SetPriority(ticketID string, p protocol.Priority) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tickets, err := r.load()
	if err != nil {
		return err
	}
	for i := range tickets {
		if tickets[i].ID == ticketID {
			tickets[i].Priority = p
			return r.save(tickets)
		}
	}
	return fmt.Errorf("ticket repo: set priority on %q: %w", ticketID, ErrNotFound)
}

// FindByID returns the ticket with the given id.
func (r *Repository) FindByID(ticketID string) (*protocol.Ticket, error) {
	tickets, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		if tickets[i].ID == ticketID {
			t := tickets[i]
			return &t, nil
		}
	}
	return nil, fmt.Errorf("ticket repo: %q: %w", ticketID, ErrNotFound)
}

// ListAll returns every ticket, newest first.
func (r *Repository) ListAll() ([]protocol.Ticket, error) {
	return r.load()
}

// Stats counts tickets by status.
func (r *Repository) Stats() (map[protocol.TicketStatus]int, error) {
	tickets, err := r.load()
	if err != nil {
		return nil, err
	}
	stats := make(map[protocol.TicketStatus]int)
	for _, t := range tickets {
		stats[t.Status]++
	}
	return stats, nil
}

func (r *Repository) load() ([]protocol.Ticket, error) {
	var tickets []protocol.Ticket
	if _, err := r.store.Get(store.KeyTickets, &tickets); err != nil {
		return nil, fmt.Errorf("ticket repo: load: %w", err)
	}
	return tickets, nil
}

func (r *Repository) save(tickets []protocol.Ticket) error {
	if err := r.store.Put(store.KeyTickets, tickets); err != nil {
		return fmt.Errorf("ticket repo: save: %w", err)
	}
	return nil
}

// newTicketID keeps the T-<unix-ms> shape and appends a short random
// suffix so two tickets minted in the same millisecond stay distinct.
func newTicketID(now time.Time) string {
	var b [2]byte
	rand.Read(b[:])
	return fmt.Sprintf("T-%d-%s", now.UnixMilli(), hex.EncodeToString(b[:]))
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
