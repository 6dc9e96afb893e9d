package console

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ironlady-io/bridge/internal/assist"
	"github.com/ironlady-io/bridge/internal/provider"
	"github.com/ironlady-io/bridge/internal/store"
	"github.com/ironlady-io/bridge/internal/ticket"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

type stubProvider struct {
	intel protocol.Intelligence
	err   error
	calls int
}

func (p *stubProvider) Chat(_ context.Context, _ provider.Request) (*provider.Response, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	body, _ := json.Marshal(p.intel)
	return &provider.Response{Content: string(body)}, nil
}

func (p *stubProvider) Name() string { return "stub" }

func newService(t *testing.T) (*Service, *ticket.Repository, *stubProvider) {
	t.Helper()
	repo := ticket.NewRepository(store.NewMemoryStore())
	prov := &stubProvider{intel: protocol.Intelligence{
		Intent:  "Pricing",
		Summary: "Customer asks about fees.",
		Suggestions: []protocol.Suggestion{
			{Label: "Fees", Short: "Share the fee sheet", Detailed: "Our programs start at..."},
			{Label: "Call", Short: "Offer a call", Detailed: "Would a quick call help?"},
			{Label: "Defer", Short: "Loop in finance", Detailed: "Let me check with our team."},
		},
	}}
	return NewService(repo, assist.NewClient(prov), nil), repo, prov
}

func openTicket(t *testing.T, repo *ticket.Repository) string {
	t.Helper()
	tk, err := repo.Create(protocol.SenderUser, "What are the fees?", protocol.LeadProfile{Name: "Asha"})
	if err != nil {
		t.Fatal(err)
	}
	return tk.ID
}

func TestSendReplyAssignsTicket(t *testing.T) {
	svc, repo, _ := newService(t)
	id := openTicket(t, repo)

	if err := svc.SendReply(id, "Happy to help with fees."); err != nil {
		t.Fatal(err)
	}

	tk, _ := repo.FindByID(id)
	if tk.Status != protocol.TicketAssigned {
		t.Errorf("expected Assigned, got %q", tk.Status)
	}
	last := tk.Messages[len(tk.Messages)-1]
	if last.Sender != protocol.SenderAgent || last.Text != "Happy to help with fees." {
		t.Errorf("unexpected last message %+v", last)
	}
}

func TestSendReplyRejectsBlank(t *testing.T) {
	svc, repo, _ := newService(t)
	id := openTicket(t, repo)

	if err := svc.SendReply(id, "   "); err == nil {
		t.Fatal("expected error for blank reply")
	}
	tk, _ := repo.FindByID(id)
	if len(tk.Messages) != 1 {
		t.Errorf("blank reply must not be persisted, got %d messages", len(tk.Messages))
	}
}

func TestSendReplyMissingTicket(t *testing.T) {
	svc, _, _ := newService(t)
	if err := svc.SendReply("T-absent", "hello"); !errors.Is(err, ticket.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveAppendsClosingMessage(t *testing.T) {
	svc, repo, _ := newService(t)
	id := openTicket(t, repo)

	if err := svc.Resolve(id); err != nil {
		t.Fatal(err)
	}

	tk, _ := repo.FindByID(id)
	if tk.Status != protocol.TicketResolved {
		t.Errorf("expected Resolved, got %q", tk.Status)
	}
	last := tk.Messages[len(tk.Messages)-1]
	if last.Sender != protocol.SenderAgent || last.Text != resolvedClosing {
		t.Errorf("unexpected closing %+v", last)
	}
}

func TestEscalateIsReversibleByReply(t *testing.T) {
	svc, repo, _ := newService(t)
	id := openTicket(t, repo)

	if err := svc.Escalate(id); err != nil {
		t.Fatal(err)
	}
	tk, _ := repo.FindByID(id)
	if tk.Status != protocol.TicketEscalated {
		t.Fatalf("expected Escalated, got %q", tk.Status)
	}
	if last := tk.Messages[len(tk.Messages)-1]; last.Text != escalatedClosing {
		t.Errorf("unexpected escalation note %q", last.Text)
	}

	// A further agent send reopens the dialogue.
	if err := svc.SendReply(id, "Senior mentor here."); err != nil {
		t.Fatal(err)
	}
	tk, _ = repo.FindByID(id)
	if tk.Status != protocol.TicketAssigned {
		t.Errorf("expected Assigned after reply, got %q", tk.Status)
	}
}

func TestReplyToResolvedKeepsStatus(t *testing.T) {
	svc, repo, _ := newService(t)
	id := openTicket(t, repo)

	if err := svc.Resolve(id); err != nil {
		t.Fatal(err)
	}
	if err := svc.SendReply(id, "One last note."); err != nil {
		t.Fatal(err)
	}
	tk, _ := repo.FindByID(id)
	if tk.Status != protocol.TicketResolved {
		t.Errorf("resolved ticket must stay Resolved, got %q", tk.Status)
	}
}

func TestSuggestionsAnalyzeAndCache(t *testing.T) {
	svc, repo, prov := newService(t)
	id := openTicket(t, repo)

	intel, err := svc.Suggestions(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if intel == nil || intel.Intent != "Pricing" || len(intel.Suggestions) != 3 {
		t.Fatalf("unexpected analysis %+v", intel)
	}
	if prov.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", prov.calls)
	}

	// Unchanged message count serves the cache.
	if _, err := svc.Suggestions(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if prov.calls != 1 {
		t.Errorf("unchanged ticket must not re-analyze, got %d calls", prov.calls)
	}

	// A new visitor message triggers a re-run.
	repo.AppendMessage(id, protocol.SenderUser, "And the duration?", protocol.LeadProfile{})
	if _, err := svc.Suggestions(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if prov.calls != 2 {
		t.Errorf("new visitor message must re-analyze, got %d calls", prov.calls)
	}
}

func TestSuggestionsSkipAgentAuthoredTail(t *testing.T) {
	svc, repo, prov := newService(t)
	id := openTicket(t, repo)

	if _, err := svc.Suggestions(context.Background(), id); err != nil {
		t.Fatal(err)
	}
	if err := svc.SendReply(id, "Checking now."); err != nil {
		t.Fatal(err)
	}

	// The count changed but the latest message is the agent's own text.
	intel, err := svc.Suggestions(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if prov.calls != 1 {
		t.Errorf("agent-authored tail must not re-analyze, got %d calls", prov.calls)
	}
	if intel == nil || intel.Intent != "Pricing" {
		t.Errorf("expected cached analysis, got %+v", intel)
	}
}

func TestSuggestionsNeverAnalyzedGatedReturnsNil(t *testing.T) {
	svc, repo, prov := newService(t)
	id := openTicket(t, repo)

	if err := svc.Resolve(id); err != nil {
		t.Fatal(err)
	}
	intel, err := svc.Suggestions(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if intel != nil {
		t.Errorf("expected nil for unanalyzed resolved ticket, got %+v", intel)
	}
	if prov.calls != 0 {
		t.Errorf("resolved ticket must not be analyzed, got %d calls", prov.calls)
	}
}

func TestSuggestionsServiceFailureFallsBack(t *testing.T) {
	svc, repo, prov := newService(t)
	prov.err = errors.New("upstream down")
	id := openTicket(t, repo)

	intel, err := svc.Suggestions(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if intel.Intent != "General Inquiry" || len(intel.Suggestions) != 1 {
		t.Errorf("expected fallback analysis, got %+v", intel)
	}
}

func TestInboxNewestFirst(t *testing.T) {
	// Stepped clock keeps the millisecond-derived ids distinct.
	base := time.Now()
	step := 0
	repo := ticket.NewRepository(store.NewMemoryStore(), ticket.WithClock(func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Millisecond)
	}))
	svc := NewService(repo, assist.NewClient(&stubProvider{}), nil)

	first := openTicket(t, repo)
	second, err := repo.Create(protocol.SenderUser, "Second inquiry", protocol.LeadProfile{})
	if err != nil {
		t.Fatal(err)
	}

	list, err := svc.Inbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first {
		t.Errorf("unexpected inbox order %+v", list)
	}
}
