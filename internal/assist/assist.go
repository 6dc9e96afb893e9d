package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ironlady-io/bridge/internal/provider"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

// minPolishLength is the shortest input Polish will send to the service.
const minPolishLength = 5

// DefaultTimeout bounds each assist call. The calls are fire-and-forget
// from the caller's perspective; a hung upstream must not pin a session.
const DefaultTimeout = 20 * time.Second

// Turn is one prior conversation turn passed to Advise. Roles are
// restricted to user and model; agent turns are excluded by the caller
// because the upstream model has no context for them.
type Turn struct {
	Role protocol.ChatRole
	Text string
}

// Client exposes the three assist operations against the external
// language-model service. Polish and ExtractIntelligence never return an
// error: every failure degrades to a deterministic fallback value. Advise
// returns an error so the state machine can substitute its own apology.
type Client struct {
	prov          provider.Provider
	chatModel     string
	analysisModel string
	timeout       time.Duration
	logger        *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithChatModel sets the model used by Advise and Polish.
func WithChatModel(m string) ClientOption {
	return func(c *Client) { c.chatModel = m }
}

// WithAnalysisModel sets the model used by ExtractIntelligence.
func WithAnalysisModel(m string) ClientOption {
	return func(c *Client) { c.analysisModel = m }
}

// WithTimeout bounds each upstream call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates an assist client on top of the given provider.
func NewClient(prov provider.Provider, opts ...ClientOption) *Client {
	c := &Client{
		prov:    prov,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Advise asks the advisor for a conversational reply to userMessage given
// the prior turns. The error is for the caller to absorb; it never carries
// upstream response bodies into user-visible text.
func (c *Client) Advise(ctx context.Context, userMessage string, history []Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msgs := make([]provider.Message, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == protocol.RoleModel {
			role = "assistant"
		}
		msgs = append(msgs, provider.Message{Role: role, Content: turn.Text})
	}
	msgs = append(msgs, provider.Message{Role: "user", Content: userMessage})

	resp, err := c.prov.Chat(ctx, provider.Request{
		Model:       c.chatModel,
		System:      advisorSystem,
		Messages:    msgs,
		Temperature: 0.3,
	})
	if err != nil {
		c.logger.Warn("advise failed", "error", err)
		return "", fmt.Errorf("assist: advise: %w", err)
	}
	return strings.TrimSpace(resp.Content), nil
}

// Polish corrects spelling and grammar and raises the register of text
// without changing its meaning. Inputs shorter than five characters are
// returned unchanged without calling the service, and any failure returns
// the original input. Polish never returns an error.
func (c *Client) Polish(ctx context.Context, text string) string {
	if len(text) < minPolishLength {
		return text
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.prov.Chat(ctx, provider.Request{
		Model:    c.chatModel,
		System:   polishSystem,
		Messages: []provider.Message{{Role: "user", Content: text}},
	})
	if err != nil {
		c.logger.Warn("polish failed, returning original", "error", err)
		return text
	}
	if polished := strings.TrimSpace(resp.Content); polished != "" {
		return polished
	}
	return text
}

// ExtractIntelligence analyzes a ticket conversation, focused on the latest
// user turn, and returns intent, summary, and three reply drafts. Any
// service or parse failure yields the fixed fallback; the operation never
// returns an error.
func (c *Client) ExtractIntelligence(ctx context.Context, messages []protocol.TicketMessage) protocol.Intelligence {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var transcript strings.Builder
	for _, m := range messages {
		transcript.WriteString(string(m.Sender))
		transcript.WriteString(": ")
		transcript.WriteString(m.Text)
		transcript.WriteString("\n")
	}

	resp, err := c.prov.Chat(ctx, provider.Request{
		Model:      c.analysisModel,
		System:     intelligenceSystem,
		Messages:   []provider.Message{{Role: "user", Content: "CHAT HISTORY:\n" + transcript.String()}},
		SchemaName: "intelligence",
		JSONSchema: intelligenceSchema(),
	})
	if err != nil {
		c.logger.Warn("intelligence extraction failed, using fallback", "error", err)
		return FallbackIntelligence()
	}

	var intel protocol.Intelligence
	if err := json.Unmarshal([]byte(resp.Content), &intel); err != nil {
		c.logger.Warn("intelligence parse failed, using fallback", "error", err)
		return FallbackIntelligence()
	}
	if intel.Intent == "" || len(intel.Suggestions) == 0 {
		return FallbackIntelligence()
	}
	return intel
}

// FallbackIntelligence is the deterministic result substituted when
// extraction fails for any reason.
func FallbackIntelligence() protocol.Intelligence {
	return protocol.Intelligence{
		Intent:  "General Inquiry",
		Summary: "Customer needs help.",
		Suggestions: []protocol.Suggestion{{
			Label:    "Help",
			Short:    "How can I assist you?",
			Detailed: "Welcome to Iron Lady Support. I am here to guide you through our elite programs.",
		}},
	}
}
