package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ironlady-io/bridge/internal/assist"
	"github.com/ironlady-io/bridge/internal/store"
	"github.com/ironlady-io/bridge/internal/ticket"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

// ErrResolved is returned for input into a session whose ticket has been
// resolved; the conversation is closed to further visitor turns.
var ErrResolved = errors.New("advisor: session resolved")

// ErrFreeTextUnavailable is returned for typed input while the session is
// collecting structured data (the contact form or the request choice), where
// the widget replaces the composer.
var ErrFreeTextUnavailable = errors.New("advisor: free text not available in this state")

// defaultProgramDelay is the simulated lookup latency applied when a
// program description is requested.
const defaultProgramDelay = 600 * time.Millisecond

// Session drives the scripted conversation for one visitor. The transcript,
// state, profile, and active ticket id are persisted per session so a reload
// resumes mid-flow instead of restarting.
type Session struct {
	ID string

	store   store.Store
	tickets *ticket.Repository
	assist  *assist.Client
	watcher *ticket.Watcher
	logger  *slog.Logger

	programDelay time.Duration
	parentCtx    context.Context

	mu          sync.Mutex
	messages    []protocol.ChatMessage
	state       protocol.ConversationState
	profile     string
	lead        protocol.LeadProfile
	ticketID    string
	resolved    bool
	watchCancel context.CancelFunc
}

// Snapshot is a render-ready view of the session.
type Snapshot struct {
	SessionID string                     `json:"sessionId"`
	Messages  []protocol.ChatMessage     `json:"messages"`
	State     protocol.ConversationState `json:"state"`
	Profile   string                     `json:"profile,omitempty"`
	TicketID  string                     `json:"ticketId,omitempty"`
	Resolved  bool                       `json:"resolved"`
	// Choices are the buttons currently offered, already stripped when the
	// session is resolved or the form is showing.
	Choices []protocol.Choice `json:"choices,omitempty"`
}

// load restores persisted session data. A fresh browser, or one whose
// saved state never left welcome, starts over with the seeded greeting.
func (s *Session) load() {
	var saved []protocol.ChatMessage
	s.store.Get(store.SessionKey(s.ID, store.KeyChatHistory), &saved)
	var state protocol.ConversationState
	s.store.Get(store.SessionKey(s.ID, store.KeyChatState), &state)

	if len(saved) == 0 || state == "" || state == protocol.StateWelcome {
		s.reseed()
		return
	}

	s.messages = saved
	s.state = state
	s.store.Get(store.SessionKey(s.ID, store.KeyUserProfile), &s.profile)
	s.store.Get(store.SessionKey(s.ID, store.KeyActiveTicketID), &s.ticketID)

	// The resolved flag and the agent-message cursor are both derived from
	// the transcript, so a reload neither duplicates the closing message
	// nor re-renders agent turns.
	for _, m := range s.messages {
		if m.Role == protocol.RoleModel && m.Text == resolvedText {
			s.resolved = true
		}
	}
}

func (s *Session) reseed() {
	s.messages = []protocol.ChatMessage{{
		Role:      protocol.RoleModel,
		Text:      welcomeText,
		Choices:   profileChoices(),
		Timestamp: time.Now(),
	}}
	s.state = protocol.StateWelcome
	s.profile = ""
	s.lead = protocol.LeadProfile{}
	s.ticketID = ""
	s.resolved = false
	s.store.Delete(store.SessionKey(s.ID, store.KeyActiveTicketID))
	s.persist()
}

// Reset clears the session and reseeds the welcome message.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	s.reseed()
}

// Snapshot returns a copy of the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]protocol.ChatMessage, len(s.messages))
	copy(msgs, s.messages)

	snap := Snapshot{
		SessionID: s.ID,
		Messages:  msgs,
		State:     s.state,
		Profile:   s.profile,
		TicketID:  s.ticketID,
		Resolved:  s.resolved,
	}
	if !s.resolved && s.state != protocol.StateForm && len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		if last.Role == protocol.RoleModel {
			snap.Choices = last.Choices
		}
	}
	return snap
}

// HandleChoice records the picked choice as a user turn and dispatches its
// action. Unknown actions are an error rather than a silent no-op.
func (s *Session) HandleChoice(ctx context.Context, choice protocol.Choice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved {
		return ErrResolved
	}

	s.appendLocked(protocol.ChatMessage{Role: protocol.RoleUser, Text: choice.Label, Timestamp: time.Now()})
	if s.ticketID != "" {
		s.syncLocked(choice.Label)
	}

	switch choice.Action {
	case protocol.ActionSelectProfile:
		s.profile = choice.Value
		s.state = protocol.StateMenu
		s.addModelLocked(menuText, menuChoices())

	case protocol.ActionExplore:
		s.state = protocol.StateExplore
		s.addModelLocked(exploreText, exploreChoices())

	case protocol.ActionProgramInfo:
		// Simulated lookup latency before the description lands.
		s.mu.Unlock()
		select {
		case <-time.After(s.programDelay):
		case <-ctx.Done():
			s.mu.Lock()
			return ctx.Err()
		}
		s.mu.Lock()
		s.addModelLocked(programInfo(choice.Value), programChoices())

	case protocol.ActionTalkMentor:
		s.state = protocol.StateForm

	case protocol.ActionGoMenu:
		s.state = protocol.StateMenu
		s.addModelLocked(reMenuText, menuChoices())

	case protocol.ActionGoWelcome:
		s.state = protocol.StateWelcome
		s.addModelLocked(reWelcomeText, profileChoices())

	case protocol.ActionRequestType:
		s.state = protocol.StateHandover
		s.syncLocked(fmt.Sprintf("Customer requested a %s", choice.Label))
		s.addModelLocked(handoverText, nil)

	default:
		return fmt.Errorf("advisor: unhandled choice action %q", choice.Action)
	}

	s.persist()
	return nil
}

// HandleFreeText records a typed visitor message, persists it to the ticket
// when one exists or the session is in handover, and asks the advisor for a
// reply. An assist failure degrades to a fixed apology; it never surfaces.
func (s *Session) HandleFreeText(ctx context.Context, text string) error {
	s.mu.Lock()
	if s.resolved {
		s.mu.Unlock()
		return ErrResolved
	}
	if s.state == protocol.StateForm || s.state == protocol.StateRequestChoice {
		s.mu.Unlock()
		return ErrFreeTextUnavailable
	}

	// History excludes agent turns: the upstream model has no context for
	// messages a human typed into the console.
	var history []assist.Turn
	for _, m := range s.messages {
		if m.Role == protocol.RoleAgent {
			continue
		}
		history = append(history, assist.Turn{Role: m.Role, Text: m.Text})
	}

	s.appendLocked(protocol.ChatMessage{Role: protocol.RoleUser, Text: text, Timestamp: time.Now()})
	if s.ticketID != "" || s.state == protocol.StateHandover {
		s.syncLocked(text)
	}
	s.persist()
	s.mu.Unlock()

	reply, err := s.assist.Advise(ctx, text, history)
	if err != nil {
		reply = apologyText
	}

	s.mu.Lock()
	s.addModelLocked(reply, nil)
	s.persist()
	s.mu.Unlock()
	return nil
}

// SubmitLead validates the contact form. On success the flow moves to the
// request choice; a validation failure leaves the state unchanged so the
// form re-renders with the error inline.
func (s *Session) SubmitLead(lead protocol.LeadProfile) error {
	if err := lead.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lead = lead
	s.state = protocol.StateRequestChoice
	s.addModelLocked(requestText, requestChoices())
	s.persist()
	return nil
}

// CancelForm backs out of the contact form to the menu without a message.
func (s *Session) CancelForm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == protocol.StateForm {
		s.state = protocol.StateMenu
		s.persist()
	}
}

// Polish proxies the writing assistant for the free-text composer.
func (s *Session) Polish(ctx context.Context, text string) string {
	return s.assist.Polish(ctx, text)
}

// applyTicket folds the ticket's current state into the session: a newly
// Resolved status appends the closing message exactly once, and agent
// messages beyond the session's cursor are appended in order. The cursor is
// the count of agent turns already in the transcript, so identical agent
// texts never collapse and repeated polls never duplicate.
func (s *Session) applyTicket(t *protocol.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID != s.ticketID {
		return
	}

	seen := 0
	for _, m := range s.messages {
		if m.Role == protocol.RoleAgent {
			seen++
		}
	}

	changed := false
	for _, m := range t.Messages {
		if m.Sender != protocol.SenderAgent {
			continue
		}
		if seen > 0 {
			seen--
			continue
		}
		s.appendLocked(protocol.ChatMessage{Role: protocol.RoleAgent, Text: m.Text, Timestamp: m.Timestamp})
		changed = true
	}

	if t.Status == protocol.TicketResolved && !s.resolved {
		s.resolved = true
		s.addModelLocked(resolvedText, nil)
		changed = true
	}

	if changed {
		s.persist()
	}
}

// --- internals (callers hold s.mu) ---

func (s *Session) appendLocked(m protocol.ChatMessage) {
	s.messages = append(s.messages, m)
}

func (s *Session) addModelLocked(text string, choices []protocol.Choice) {
	s.appendLocked(protocol.ChatMessage{
		Role:      protocol.RoleModel,
		Text:      text,
		Choices:   choices,
		Timestamp: time.Now(),
	})
}

// syncLocked persists a visitor turn to the ticket, creating the ticket
// lazily on the first write and pinning its id to the session.
func (s *Session) syncLocked(text string) {
	if s.ticketID == "" {
		t, err := s.tickets.Create(protocol.SenderUser, text, s.lead)
		if err != nil {
			s.logger.Error("ticket create failed", "session", s.ID, "error", err)
			return
		}
		s.ticketID = t.ID
		s.store.Put(store.SessionKey(s.ID, store.KeyActiveTicketID), s.ticketID)
		s.startWatchLocked()
		s.logger.Info("ticket created", "session", s.ID, "ticket", t.ID)
		return
	}

	if err := s.tickets.AppendMessage(s.ticketID, protocol.SenderUser, text, s.lead); err != nil {
		s.logger.Error("ticket append failed", "session", s.ID, "ticket", s.ticketID, "error", err)
	}
}

// startWatchLocked begins polling the session's ticket for agent activity.
func (s *Session) startWatchLocked() {
	if s.watcher == nil || s.parentCtx == nil || s.ticketID == "" {
		return
	}
	if s.watchCancel != nil {
		s.watchCancel()
	}
	ctx, cancel := context.WithCancel(s.parentCtx)
	s.watchCancel = cancel
	go s.watcher.Subscribe(ctx, s.ticketID, s.applyTicket)
}

func (s *Session) persist() {
	put := func(key string, v any) {
		if err := s.store.Put(store.SessionKey(s.ID, key), v); err != nil {
			s.logger.Error("session persist failed", "session", s.ID, "key", key, "error", err)
		}
	}
	put(store.KeyChatHistory, s.messages)
	put(store.KeyChatState, s.state)
	if s.profile != "" {
		put(store.KeyUserProfile, s.profile)
	}
}
