// Package logbuf keeps the most recent log records in memory so the portal
// can show them without shelling out to the host's log files.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Record is one captured log line.
type Record struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Ring holds the last N records.
type Ring struct {
	mu   sync.Mutex
	recs []Record
	cap  int
	head int
	full bool
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{recs: make([]Record, capacity), cap: capacity}
}

// Append stores a record, evicting the oldest when full.
func (r *Ring) Append(rec Record) {
	r.mu.Lock()
	r.recs[r.head] = rec
	r.head = (r.head + 1) % r.cap
	if r.head == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// Tail returns up to limit records at or above minLevel, oldest first.
// limit <= 0 returns everything retained.
func (r *Ring) Tail(minLevel slog.Level, limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, start := r.head, 0
	if r.full {
		n, start = r.cap, r.head
	}

	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		rec := r.recs[(start+i)%r.cap]
		if levelOf(rec.Level) >= minLevel {
			out = append(out, rec)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func levelOf(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
