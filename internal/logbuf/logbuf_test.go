package logbuf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	for i, msg := range []string{"a", "b", "c", "d"} {
		r.Append(Record{Time: time.Unix(int64(i), 0), Level: "INFO", Message: msg})
	}

	got := r.Tail(slog.LevelDebug, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 retained, got %d", len(got))
	}
	if got[0].Message != "b" || got[2].Message != "d" {
		t.Errorf("wrong order or eviction: %+v", got)
	}
}

func TestTailLevelAndLimit(t *testing.T) {
	r := NewRing(10)
	r.Append(Record{Level: "DEBUG", Message: "noise"})
	r.Append(Record{Level: "INFO", Message: "one"})
	r.Append(Record{Level: "ERROR", Message: "two"})
	r.Append(Record{Level: "WARN", Message: "three"})

	got := r.Tail(slog.LevelInfo, 2)
	if len(got) != 2 || got[0].Message != "two" || got[1].Message != "three" {
		t.Errorf("unexpected tail %+v", got)
	}
}

func TestHandlerCapturesBelowInnerLevel(t *testing.T) {
	ring := NewRing(10)
	inner := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	logger := slog.New(NewHandler(inner, ring))

	logger.Debug("quiet", "k", "v")
	logger.Error("loud", "err", errors.New("boom"))

	got := ring.Tail(slog.LevelDebug, 0)
	if len(got) != 2 {
		t.Fatalf("expected both records captured, got %d", len(got))
	}
	if got[0].Attrs["k"] != "v" {
		t.Errorf("missing attr: %+v", got[0].Attrs)
	}
	if got[1].Attrs["err"] != "boom" {
		t.Errorf("error attr must flatten to string, got %#v", got[1].Attrs["err"])
	}
}

func TestHandlerWithAttrsCarriesBoundFields(t *testing.T) {
	ring := NewRing(10)
	base := slog.New(NewHandler(slog.NewTextHandler(io.Discard, nil), ring))
	base.With("session", "v1").Info("hello")

	got := ring.Tail(slog.LevelDebug, 0)
	if len(got) != 1 || got[0].Attrs["session"] != "v1" {
		t.Errorf("bound attr not captured: %+v", got)
	}
}

func TestHandlerEnabledAlways(t *testing.T) {
	h := NewHandler(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}), NewRing(1))
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("handler must accept every level")
	}
}
