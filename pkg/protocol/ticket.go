package protocol

import "time"

// TicketStatus represents the lifecycle state of a support ticket.
// The repository does not enforce transitions; the intended set is
// Open → Assigned → Resolved, with Escalated as an advisory detour
// that a further agent send reverses back to Assigned.
type TicketStatus string

const (
	TicketOpen      TicketStatus = "Open"
	TicketAssigned  TicketStatus = "Assigned"
	TicketResolved  TicketStatus = "Resolved"
	TicketEscalated TicketStatus = "Escalated"
)

// Priority is set at creation; the janitor may raise it for stale tickets.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Sender identifies the author of a persisted ticket message. Scripted
// bot turns are never persisted, so there is no "model" sender here.
type Sender string

const (
	SenderUser  Sender = "user"
	SenderAgent Sender = "agent"
)

// TicketMessage is one persisted turn of a support conversation.
// IDs give the sync loops a stable identity to dedup on.
type TicketMessage struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Ticket is the durable record of one customer support conversation,
// shared between the visitor widget and the agent console.
type Ticket struct {
	ID          string          `json:"id"`
	LearnerName string          `json:"learnerName"`
	Phone       string          `json:"phone"`
	Messages    []TicketMessage `json:"messages"`
	Status      TicketStatus    `json:"status"`
	Priority    Priority        `json:"priority"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// LastMessage returns the most recent message, or nil for an empty ticket.
func (t *Ticket) LastMessage() *TicketMessage {
	if len(t.Messages) == 0 {
		return nil
	}
	return &t.Messages[len(t.Messages)-1]
}
