// Package api exposes the bridge over REST: the visitor widget endpoints,
// the agent console endpoints, the portal login, and the directory CRUD.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ironlady-io/bridge/internal/advisor"
	"github.com/ironlady-io/bridge/internal/auth"
	"github.com/ironlady-io/bridge/internal/console"
	"github.com/ironlady-io/bridge/internal/directory"
	"github.com/ironlady-io/bridge/internal/logbuf"
	"github.com/ironlady-io/bridge/internal/ticket"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

// LogReader abstracts captured-log access so the server does not require a
// live ring in tests.
type LogReader interface {
	Tail(minLevel slog.Level, limit int) []logbuf.Record
}

// Config holds API server configuration. Key, when set, gates the agent
// console, directory, and log endpoints behind a bearer token; the visitor
// widget routes stay open.
type Config struct {
	Host string
	Port int
	Key  string
}

// Server is the bridge REST server.
type Server struct {
	sessions *advisor.Manager
	console  *console.Service
	dir      *directory.Service
	gate     *auth.Gate
	logs     LogReader
	logger   *slog.Logger
	cfg      Config
	srv      *http.Server
}

// NewServer wires the HTTP surface. logs may be nil.
func NewServer(sessions *advisor.Manager, cs *console.Service, dir *directory.Service, gate *auth.Gate, cfg Config, logger *slog.Logger, logs LogReader) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sessions: sessions,
		console:  cs,
		dir:      dir,
		gate:     gate,
		logs:     logs,
		logger:   logger,
		cfg:      cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Visitor widget.
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/choices", s.handleChoice)
	mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleMessage)
	mux.HandleFunc("POST /api/sessions/{id}/polish", s.handleSessionPolish)
	mux.HandleFunc("POST /api/sessions/{id}/lead", s.handleLead)
	mux.HandleFunc("POST /api/sessions/{id}/form/cancel", s.handleCancelForm)
	mux.HandleFunc("POST /api/sessions/{id}/reset", s.handleReset)

	// Agent console.
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("GET /api/tickets", s.requireAuth(s.handleListTickets))
	mux.HandleFunc("GET /api/tickets/{id}", s.requireAuth(s.handleGetTicket))
	mux.HandleFunc("POST /api/tickets/{id}/reply", s.requireAuth(s.handleReply))
	mux.HandleFunc("POST /api/tickets/{id}/resolve", s.requireAuth(s.handleResolve))
	mux.HandleFunc("POST /api/tickets/{id}/escalate", s.requireAuth(s.handleEscalate))
	mux.HandleFunc("GET /api/tickets/{id}/suggestions", s.requireAuth(s.handleSuggestions))
	mux.HandleFunc("POST /api/polish", s.requireAuth(s.handleConsolePolish))
	mux.HandleFunc("GET /api/stats", s.requireAuth(s.handleStats))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleGetLogs))

	// Directory collections.
	mux.HandleFunc("GET /api/directory/programs", s.requireAuth(s.handleListPrograms))
	mux.HandleFunc("POST /api/directory/programs", s.requireAuth(s.handleSaveProgram))
	mux.HandleFunc("DELETE /api/directory/programs/{id}", s.requireAuth(s.handleDeleteProgram))
	mux.HandleFunc("GET /api/directory/mentors", s.requireAuth(s.handleListMentors))
	mux.HandleFunc("POST /api/directory/mentors", s.requireAuth(s.handleSaveMentor))
	mux.HandleFunc("DELETE /api/directory/mentors/{id}", s.requireAuth(s.handleDeleteMentor))
	mux.HandleFunc("GET /api/directory/customers", s.requireAuth(s.handleListCustomers))
	mux.HandleFunc("POST /api/directory/customers", s.requireAuth(s.handleSaveCustomer))
	mux.HandleFunc("DELETE /api/directory/customers/{id}", s.requireAuth(s.handleDeleteCustomer))
	mux.HandleFunc("GET /api/directory/staff", s.requireAuth(s.handleListStaff))
	mux.HandleFunc("POST /api/directory/staff", s.requireAuth(s.handleSaveStaff))
	mux.HandleFunc("DELETE /api/directory/staff/{id}", s.requireAuth(s.handleDeleteStaff))

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Visitor widget ---

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap := s.sessions.Session(r.PathValue("id")).Snapshot()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleChoice(w http.ResponseWriter, r *http.Request) {
	var choice protocol.Choice
	if err := json.NewDecoder(r.Body).Decode(&choice); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	sess := s.sessions.Session(r.PathValue("id"))
	if err := sess.HandleChoice(r.Context(), choice); err != nil {
		if errors.Is(err, advisor.ErrResolved) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "session resolved"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

type messageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	sess := s.sessions.Session(r.PathValue("id"))
	if err := sess.HandleFreeText(r.Context(), req.Text); err != nil {
		if errors.Is(err, advisor.ErrResolved) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "session resolved"})
			return
		}
		if errors.Is(err, advisor.ErrFreeTextUnavailable) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "finish the current step first"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleSessionPolish(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	sess := s.sessions.Session(r.PathValue("id"))
	writeJSON(w, http.StatusOK, map[string]string{"text": sess.Polish(r.Context(), req.Text)})
}

func (s *Server) handleLead(w http.ResponseWriter, r *http.Request) {
	var lead protocol.LeadProfile
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	sess := s.sessions.Session(r.PathValue("id"))
	if err := sess.SubmitLead(lead); err != nil {
		var verr *protocol.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": verr.Error(),
				"field": verr.Field,
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleCancelForm(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Session(r.PathValue("id"))
	sess.CancelForm()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Session(r.PathValue("id"))
	sess.Reset()
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// --- Agent console ---

type loginRequest struct {
	Email   string `json:"email"`
	Passkey string `json:"passkey"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	role, err := s.gate.Login(req.Email, req.Passkey)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"role": string(role)})
	case errors.Is(err, auth.ErrBadDomain):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleListTickets(w http.ResponseWriter, _ *http.Request) {
	tickets, err := s.console.Inbox()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if tickets == nil {
		tickets = []protocol.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	t, err := s.console.Ticket(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	id := r.PathValue("id")
	if err := s.console.SendReply(id, req.Text); err != nil {
		if errors.Is(err, ticket.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.writeTicket(w, id)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.console.Resolve(id); err != nil {
		writeStatusErr(w, err)
		return
	}
	s.writeTicket(w, id)
}

func (s *Server) handleEscalate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.console.Escalate(id); err != nil {
		writeStatusErr(w, err)
		return
	}
	s.writeTicket(w, id)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	intel, err := s.console.Suggestions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
		return
	}
	if intel == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, intel)
}

func (s *Server) handleConsolePolish(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": s.console.Polish(r.Context(), req.Text)})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.console.Stats()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Record{})
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	minLevel := slog.LevelDebug
	if lvl := r.URL.Query().Get("level"); lvl != "" {
		switch strings.ToLower(lvl) {
		case "info":
			minLevel = slog.LevelInfo
		case "warn":
			minLevel = slog.LevelWarn
		case "error":
			minLevel = slog.LevelError
		}
	}

	records := s.logs.Tail(minLevel, limit)
	if since := r.URL.Query().Get("since"); since != "" {
		cutoff, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since timestamp"})
			return
		}
		kept := records[:0]
		for _, rec := range records {
			if rec.Time.After(cutoff) {
				kept = append(kept, rec)
			}
		}
		records = kept
	}
	if records == nil {
		records = []logbuf.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// --- Directory ---

func (s *Server) handleListPrograms(w http.ResponseWriter, _ *http.Request) {
	writeList(w, s.dir.Programs)
}

func (s *Server) handleSaveProgram(w http.ResponseWriter, r *http.Request) {
	var p protocol.Program
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	saved, err := s.dir.SaveProgram(p)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	writeDelete(w, s.dir.DeleteProgram(r.PathValue("id")))
}

func (s *Server) handleListMentors(w http.ResponseWriter, _ *http.Request) {
	writeList(w, s.dir.Mentors)
}

func (s *Server) handleSaveMentor(w http.ResponseWriter, r *http.Request) {
	var m protocol.Mentor
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	saved, err := s.dir.SaveMentor(m)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteMentor(w http.ResponseWriter, r *http.Request) {
	writeDelete(w, s.dir.DeleteMentor(r.PathValue("id")))
}

func (s *Server) handleListCustomers(w http.ResponseWriter, _ *http.Request) {
	writeList(w, s.dir.Customers)
}

func (s *Server) handleSaveCustomer(w http.ResponseWriter, r *http.Request) {
	var c protocol.Customer
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	saved, err := s.dir.SaveCustomer(c)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	writeDelete(w, s.dir.DeleteCustomer(r.PathValue("id")))
}

func (s *Server) handleListStaff(w http.ResponseWriter, _ *http.Request) {
	writeList(w, s.dir.Staff)
}

func (s *Server) handleSaveStaff(w http.ResponseWriter, r *http.Request) {
	var u protocol.StaffUser
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	saved, err := s.dir.SaveStaff(u)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteStaff(w http.ResponseWriter, r *http.Request) {
	writeDelete(w, s.dir.DeleteStaff(r.PathValue("id")))
}

// --- Helpers ---

func (s *Server) writeTicket(w http.ResponseWriter, id string) {
	t, err := s.console.Ticket(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func writeStatusErr(w http.ResponseWriter, err error) {
	if errors.Is(err, ticket.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeList[T any](w http.ResponseWriter, list func() ([]T, error)) {
	items, err := list()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, items)
}

func writeDelete(w http.ResponseWriter, err error) {
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
