// Package telegram exposes the visitor chat flow over a Telegram bot, as an
// alternative front end to the web widget. Each chat maps to one advisor
// session, so tickets, handover, and agent replies work the same way.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ironlady-io/bridge/internal/advisor"
	"github.com/ironlady-io/bridge/pkg/protocol"
)

// Config holds Telegram bridge configuration.
type Config struct {
	Token     string  // Bot token from @BotFather
	AllowFrom []int64 // Allowed Telegram user IDs (empty = allow all)
	// FlushInterval is how often async agent replies are pushed out.
	// Zero means 2s, matching the widget's poll cadence.
	FlushInterval time.Duration
}

// Bridge long-polls Telegram and drives advisor sessions from chat input.
type Bridge struct {
	bot      *tgbotapi.BotAPI
	cfg      Config
	sessions *advisor.Manager
	logger   *slog.Logger

	mu      sync.Mutex
	cursors map[int64]int // chat id → transcript turns already delivered
}

func New(cfg Config, sessions *advisor.Manager, logger *slog.Logger) (*Bridge, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}

	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Bridge{
		bot:      bot,
		cfg:      cfg,
		sessions: sessions,
		logger:   logger,
		cursors:  make(map[int64]int),
	}, nil
}

// Start begins long-polling for updates. Blocks until the context is
// cancelled. A ticker flushes agent replies that arrive between visitor
// turns.
func (b *Bridge) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.bot.GetUpdatesChan(u)

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	b.logger.Info("telegram bridge started", "bot", b.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			if update.Message == nil {
				continue
			}
			b.handleMessage(ctx, update.Message)

		case <-ticker.C:
			b.flushAll()

		case <-ctx.Done():
			b.bot.StopReceivingUpdates()
			b.logger.Info("telegram bridge stopped")
			return ctx.Err()
		}
	}
}

func (b *Bridge) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if len(b.cfg.AllowFrom) > 0 && !allowed(b.cfg.AllowFrom, msg.From.ID) {
		b.logger.Warn("unauthorized telegram user", "user_id", msg.From.ID, "username", msg.From.UserName)
		return
	}

	chatID := msg.Chat.ID
	sess := b.sessions.Session(sessionID(chatID))

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "reset":
			sess.Reset()
			b.resetCursor(chatID)
		default:
			b.send(chatID, "Unknown command. Use /start to begin or /reset to start over.")
			return
		}
		b.flush(chatID, sess)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	snap := sess.Snapshot()
	switch {
	case snap.Resolved:
		b.send(chatID, "This conversation is closed. Send /reset to start a new one.")
	case snap.State == protocol.StateForm:
		b.handleLeadForm(chatID, sess, text)
	case len(snap.Choices) > 0:
		b.handleChoiceReply(ctx, chatID, sess, snap.Choices, text)
	default:
		if err := sess.HandleFreeText(ctx, text); err != nil {
			b.logger.Error("free text failed", "chat_id", chatID, "error", err)
		}
		b.flush(chatID, sess)
	}
}

// handleChoiceReply accepts either the option number or its exact label.
// Anything else falls through to free text, mirroring the widget where the
// composer stays usable under a choice menu.
func (b *Bridge) handleChoiceReply(ctx context.Context, chatID int64, sess *advisor.Session, choices []protocol.Choice, text string) {
	var picked *protocol.Choice
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(choices) {
		picked = &choices[n-1]
	} else {
		for i := range choices {
			if strings.EqualFold(choices[i].Label, text) {
				picked = &choices[i]
				break
			}
		}
	}

	var err error
	if picked != nil {
		err = sess.HandleChoice(ctx, *picked)
	} else {
		err = sess.HandleFreeText(ctx, text)
	}
	if errors.Is(err, advisor.ErrFreeTextUnavailable) {
		b.send(chatID, "Please reply with one of the numbered options.")
		return
	}
	if err != nil {
		b.logger.Error("choice reply failed", "chat_id", chatID, "error", err)
	}
	b.flush(chatID, sess)
}

// handleLeadForm expects "name, email, phone" on one line. The country code
// defaults to +91, same as the widget's form.
func (b *Bridge) handleLeadForm(chatID int64, sess *advisor.Session, text string) {
	lead, ok := parseLead(text)
	if !ok {
		b.send(chatID, "Please share your details as: name, email, phone")
		return
	}
	if err := sess.SubmitLead(lead); err != nil {
		b.send(chatID, err.Error())
		return
	}
	b.flush(chatID, sess)
}

// flushAll pushes pending transcript turns for every known chat. This is
// how async agent replies and the resolution notice reach Telegram.
func (b *Bridge) flushAll() {
	b.mu.Lock()
	ids := make([]int64, 0, len(b.cursors))
	for id := range b.cursors {
		ids = append(ids, id)
	}
	b.mu.Unlock()

	for _, id := range ids {
		b.flush(id, b.sessions.Session(sessionID(id)))
	}
}

// flush sends every transcript turn past the chat's cursor, skipping the
// visitor's own messages, and renders the current choice menu under the
// last one.
func (b *Bridge) flush(chatID int64, sess *advisor.Session) {
	snap := sess.Snapshot()

	b.mu.Lock()
	cursor := b.cursors[chatID]
	b.cursors[chatID] = len(snap.Messages)
	b.mu.Unlock()

	if cursor > len(snap.Messages) {
		// Transcript shrank (reset); everything after the reseed is new.
		cursor = 0
	}

	for i := cursor; i < len(snap.Messages); i++ {
		m := snap.Messages[i]
		if m.Role == protocol.RoleUser {
			continue
		}
		text := m.Text
		if i == len(snap.Messages)-1 {
			text += renderChoices(snap.Choices)
		}
		b.send(chatID, text)
	}

	if snap.State == protocol.StateForm {
		b.send(chatID, "Please share your details as: name, email, phone")
	}
}

// parseLead splits a "name, email, phone" line. The country code defaults
// to +91, same as the widget's form.
func parseLead(text string) (protocol.LeadProfile, bool) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return protocol.LeadProfile{}, false
	}
	return protocol.LeadProfile{
		Name:        strings.TrimSpace(parts[0]),
		Email:       strings.TrimSpace(parts[1]),
		Phone:       strings.TrimSpace(parts[2]),
		CountryCode: "+91",
	}, true
}

func renderChoices(choices []protocol.Choice) string {
	if len(choices) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("\n")
	for i, c := range choices {
		fmt.Fprintf(&sb, "\n%d) %s", i+1, c.Label)
	}
	sb.WriteString("\n\nReply with a number to choose.")
	return sb.String()
}

func (b *Bridge) send(chatID int64, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := b.bot.Send(msg); err != nil {
		b.logger.Warn("telegram send failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bridge) resetCursor(chatID int64) {
	b.mu.Lock()
	b.cursors[chatID] = 0
	b.mu.Unlock()
}

func sessionID(chatID int64) string {
	return fmt.Sprintf("tg-%d", chatID)
}

func allowed(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
