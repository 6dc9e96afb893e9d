package advisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ironlady-io/bridge/internal/assist"
	"github.com/ironlady-io/bridge/internal/store"
	"github.com/ironlady-io/bridge/internal/ticket"
)

// Manager tracks visitor sessions by id. Sessions are created on first
// access, restored from the persisted store, and begin watching their
// ticket as soon as one is pinned.
type Manager struct {
	store        store.Store
	tickets      *ticket.Repository
	assist       *assist.Client
	watcher      *ticket.Watcher
	logger       *slog.Logger
	programDelay time.Duration

	mu       sync.Mutex
	ctx      context.Context
	sessions map[string]*Session
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithProgramDelay overrides the simulated program-lookup latency (tests).
func WithProgramDelay(d time.Duration) ManagerOption {
	return func(m *Manager) { m.programDelay = d }
}

// NewManager creates a session manager. watcher may be nil, in which case
// sessions do not poll for agent activity (tests drive applyTicket directly).
func NewManager(s store.Store, repo *ticket.Repository, ai *assist.Client, watcher *ticket.Watcher, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:        s,
		tickets:      repo,
		assist:       ai,
		watcher:      watcher,
		logger:       logger,
		programDelay: defaultProgramDelay,
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start hands the manager the lifetime context under which session watchers
// run. Blocks until the context is cancelled.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	// Sessions restored before Start begin watching now.
	for _, s := range m.sessions {
		s.mu.Lock()
		s.parentCtx = ctx
		s.startWatchLocked()
		s.mu.Unlock()
	}
	m.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

// Session returns the session for id, creating and restoring it on first
// access.
func (m *Manager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s
	}

	s := &Session{
		ID:           id,
		store:        m.store,
		tickets:      m.tickets,
		assist:       m.assist,
		watcher:      m.watcher,
		logger:       m.logger.With("session", id),
		programDelay: m.programDelay,
		parentCtx:    m.ctx,
	}
	s.load()
	if s.ticketID != "" {
		s.mu.Lock()
		s.startWatchLocked()
		s.mu.Unlock()
	}
	m.sessions[id] = s
	return s
}
