package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ironlady-io/bridge/internal/advisor"
	"github.com/ironlady-io/bridge/internal/assist"
	"github.com/ironlady-io/bridge/internal/auth"
	"github.com/ironlady-io/bridge/internal/console"
	"github.com/ironlady-io/bridge/internal/directory"
	"github.com/ironlady-io/bridge/internal/logbuf"
	"github.com/ironlady-io/bridge/internal/provider"
	"github.com/ironlady-io/bridge/internal/store"
	"github.com/ironlady-io/bridge/internal/ticket"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

type stubProvider struct{ reply string }

func (p *stubProvider) Chat(_ context.Context, _ provider.Request) (*provider.Response, error) {
	return &provider.Response{Content: p.reply}, nil
}

func (p *stubProvider) Name() string { return "stub" }

func newTestServer(t *testing.T) (*Server, *ticket.Repository) {
	t.Helper()
	st := store.NewMemoryStore()
	repo := ticket.NewRepository(st)
	ai := assist.NewClient(&stubProvider{reply: "Happy to help."})
	sessions := advisor.NewManager(st, repo, ai, nil, nil, advisor.WithProgramDelay(0))
	cs := console.NewService(repo, ai, nil)
	dir := directory.NewService(st)
	srv := NewServer(sessions, cs, dir, auth.NewGate(), Config{Host: "127.0.0.1", Port: 0}, nil, nil)
	return srv, repo
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestGetSessionSeedsWelcome(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "GET", "/api/sessions/v1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var snap advisor.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.State != protocol.StateWelcome || len(snap.Choices) != 3 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestChoiceAdvancesState(t *testing.T) {
	srv, _ := newTestServer(t)
	body := `{"label":"Working Professional","action":"select_profile","value":"Working Professional"}`
	w := do(t, srv, "POST", "/api/sessions/v1/choices", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}

	var snap advisor.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.State != protocol.StateMenu {
		t.Errorf("state = %q", snap.State)
	}
}

func TestChoiceUnknownAction(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "POST", "/api/sessions/v1/choices", `{"label":"X","action":"no_such_action"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestMessageReturnsAdvisorReply(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "POST", "/api/sessions/v1/messages", `{"text":"program fees?"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}

	var snap advisor.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	last := snap.Messages[len(snap.Messages)-1]
	if last.Role != protocol.RoleModel || last.Text != "Happy to help." {
		t.Errorf("last message = %+v", last)
	}
}

func TestMessageRequiresText(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, "POST", "/api/sessions/v1/messages", `{"text":"  "}`); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestMessageDuringFormIs409(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, "POST", "/api/sessions/v1/choices", `{"label":"Working Professional","action":"select_profile","value":"Working Professional"}`)
	do(t, srv, "POST", "/api/sessions/v1/choices", `{"label":"Talk to a Mentor","action":"talk_mentor"}`)

	if w := do(t, srv, "POST", "/api/sessions/v1/messages", `{"text":"what are the fees?"}`); w.Code != http.StatusConflict {
		t.Errorf("status = %d, body = %s", w.Code, w.Body)
	}
}

func TestLeadValidationFailureIs422(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, "POST", "/api/sessions/v1/choices", `{"label":"Working Professional","action":"select_profile","value":"Working Professional"}`)
	do(t, srv, "POST", "/api/sessions/v1/choices", `{"label":"Talk to a Mentor","action":"talk_mentor"}`)

	w := do(t, srv, "POST", "/api/sessions/v1/lead", `{"name":"A","email":"a@co.net","phone":"9876543210","countryCode":"+91"}`)
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["field"] != "email" {
		t.Errorf("field = %q", body["field"])
	}

	w = do(t, srv, "POST", "/api/sessions/v1/lead", `{"name":"A","email":"a@co.com","phone":"9876543210","countryCode":"+91"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("valid lead rejected: %d %s", w.Code, w.Body)
	}
	var snap advisor.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.State != protocol.StateRequestChoice {
		t.Errorf("state = %q", snap.State)
	}
}

func TestResetReturnsFreshSnapshot(t *testing.T) {
	srv, _ := newTestServer(t)
	do(t, srv, "POST", "/api/sessions/v1/choices", `{"label":"Entrepreneur","action":"select_profile","value":"Entrepreneur"}`)

	w := do(t, srv, "POST", "/api/sessions/v1/reset", "")
	var snap advisor.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if snap.State != protocol.StateWelcome || len(snap.Messages) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestLogin(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "POST", "/api/login", `{"email":"admin@ironlady.com","passkey":"leadership"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["role"] != "Admin" {
		t.Errorf("role = %q", body["role"])
	}

	if w := do(t, srv, "POST", "/api/login", `{"email":"admin@ironlady.org","passkey":"leadership"}`); w.Code != http.StatusForbidden {
		t.Errorf("non-com domain status = %d", w.Code)
	}
	if w := do(t, srv, "POST", "/api/login", `{"email":"admin@ironlady.com","passkey":"wrong"}`); w.Code != http.StatusUnauthorized {
		t.Errorf("bad passkey status = %d", w.Code)
	}
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	srv, repo := newTestServer(t)
	tk, err := repo.Create(protocol.SenderUser, "Need a mentor call", protocol.LeadProfile{Name: "Asha"})
	if err != nil {
		t.Fatal(err)
	}

	w := do(t, srv, "GET", "/api/tickets", "")
	var list []protocol.Ticket
	json.NewDecoder(w.Body).Decode(&list)
	if len(list) != 1 || list[0].ID != tk.ID {
		t.Fatalf("list = %+v", list)
	}

	w = do(t, srv, "POST", "/api/tickets/"+tk.ID+"/reply", `{"text":"On my way."}`)
	if w.Code != http.StatusOK {
		t.Fatalf("reply status = %d, body = %s", w.Code, w.Body)
	}
	var got protocol.Ticket
	json.NewDecoder(w.Body).Decode(&got)
	if got.Status != protocol.TicketAssigned {
		t.Errorf("status after reply = %q", got.Status)
	}

	w = do(t, srv, "POST", "/api/tickets/"+tk.ID+"/resolve", "")
	json.NewDecoder(w.Body).Decode(&got)
	if got.Status != protocol.TicketResolved {
		t.Errorf("status after resolve = %q", got.Status)
	}
	if last := got.Messages[len(got.Messages)-1]; last.Sender != protocol.SenderAgent {
		t.Errorf("closing message = %+v", last)
	}
}

func TestReplyMissingTicket(t *testing.T) {
	srv, _ := newTestServer(t)
	if w := do(t, srv, "POST", "/api/tickets/T-absent/reply", `{"text":"hi"}`); w.Code != http.StatusNotFound {
		t.Errorf("status = %d", w.Code)
	}
}

func TestSuggestionsEndpoint(t *testing.T) {
	srv, repo := newTestServer(t)
	tk, _ := repo.Create(protocol.SenderUser, "fees?", protocol.LeadProfile{})

	// The stub returns free text, which fails schema parsing and yields
	// the deterministic fallback.
	w := do(t, srv, "GET", "/api/tickets/"+tk.ID+"/suggestions", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var intel protocol.Intelligence
	json.NewDecoder(w.Body).Decode(&intel)
	if intel.Intent != "General Inquiry" || len(intel.Suggestions) != 1 {
		t.Errorf("intelligence = %+v", intel)
	}
}

func TestStats(t *testing.T) {
	srv, repo := newTestServer(t)
	tk, _ := repo.Create(protocol.SenderUser, "hello", protocol.LeadProfile{})
	repo.SetStatus(tk.ID, protocol.TicketEscalated, "")

	w := do(t, srv, "GET", "/api/stats", "")
	var stats map[protocol.TicketStatus]int
	json.NewDecoder(w.Body).Decode(&stats)
	if stats[protocol.TicketEscalated] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestDirectoryCRUDOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, "GET", "/api/directory/programs", "")
	var programs []protocol.Program
	json.NewDecoder(w.Body).Decode(&programs)
	if len(programs) != 2 {
		t.Fatalf("seed programs = %+v", programs)
	}

	w = do(t, srv, "POST", "/api/directory/mentors", `{"name":"Deepa Rao","specialization":"Negotiation","available":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d", w.Code)
	}
	var saved protocol.Mentor
	json.NewDecoder(w.Body).Decode(&saved)
	if saved.ID == "" {
		t.Fatal("expected minted id")
	}

	if w := do(t, srv, "DELETE", "/api/directory/mentors/"+saved.ID, ""); w.Code != http.StatusOK {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := do(t, srv, "DELETE", "/api/directory/mentors/"+saved.ID, ""); w.Code != http.StatusNotFound {
		t.Errorf("double delete status = %d", w.Code)
	}
}

func TestLogsEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	repo := ticket.NewRepository(st)
	ai := assist.NewClient(&stubProvider{reply: "ok"})
	ring := logbuf.NewRing(16)
	ring.Append(logbuf.Record{Level: "INFO", Message: "started"})
	ring.Append(logbuf.Record{Level: "DEBUG", Message: "noise"})

	srv := NewServer(
		advisor.NewManager(st, repo, ai, nil, nil, advisor.WithProgramDelay(0)),
		console.NewService(repo, ai, nil),
		directory.NewService(st),
		auth.NewGate(),
		Config{Host: "127.0.0.1", Port: 0},
		slog.Default(),
		ring,
	)

	w := do(t, srv, "GET", "/api/logs?level=info", "")
	var records []logbuf.Record
	json.NewDecoder(w.Body).Decode(&records)
	if len(records) != 1 || records[0].Message != "started" {
		t.Errorf("records = %+v", records)
	}
}

func TestLogsSinceFilter(t *testing.T) {
	st := store.NewMemoryStore()
	repo := ticket.NewRepository(st)
	ai := assist.NewClient(&stubProvider{reply: "ok"})
	ring := logbuf.NewRing(16)
	old := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ring.Append(logbuf.Record{Time: old, Level: "INFO", Message: "before"})
	ring.Append(logbuf.Record{Time: old.Add(time.Hour), Level: "INFO", Message: "after"})

	srv := NewServer(
		advisor.NewManager(st, repo, ai, nil, nil, advisor.WithProgramDelay(0)),
		console.NewService(repo, ai, nil),
		directory.NewService(st),
		auth.NewGate(),
		Config{Host: "127.0.0.1", Port: 0},
		slog.Default(),
		ring,
	)

	w := do(t, srv, "GET", "/api/logs?since="+old.Add(time.Minute).Format(time.RFC3339), "")
	var records []logbuf.Record
	json.NewDecoder(w.Body).Decode(&records)
	if len(records) != 1 || records[0].Message != "after" {
		t.Errorf("records = %+v", records)
	}

	w = do(t, srv, "GET", "/api/logs?since=not-a-time", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAPIKeyGatesConsoleRoutes(t *testing.T) {
	st := store.NewMemoryStore()
	repo := ticket.NewRepository(st)
	ai := assist.NewClient(&stubProvider{reply: "Happy to help."})
	sessions := advisor.NewManager(st, repo, ai, nil, nil, advisor.WithProgramDelay(0))
	srv := NewServer(sessions, console.NewService(repo, ai, nil), directory.NewService(st),
		auth.NewGate(), Config{Host: "127.0.0.1", Port: 0, Key: "sesame"}, nil, nil)

	send := func(header string) int {
		req := httptest.NewRequest("GET", "/api/tickets", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w.Code
	}

	if got := send(""); got != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", got)
	}
	if got := send("Bearer wrong"); got != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d", got)
	}
	if got := send("Bearer sesame"); got != http.StatusOK {
		t.Errorf("valid token: status = %d", got)
	}

	// Visitor widget routes stay open.
	if w := do(t, srv, "GET", "/api/sessions/s1", ""); w.Code != http.StatusOK {
		t.Errorf("visitor route gated: status = %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)
	w := do(t, srv, "OPTIONS", "/api/tickets", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}
