package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/murmurlabs/murmur/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.SessionLogConfig{RetentionMode: "ephemeral"}
	s, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.BeginSession(ctx, "s-1", 16000); err != nil {
		t.Fatalf("begin session should be a no-op: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.SessionLogConfig{Path: filepath.Join(tmp, "sessions.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open session journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sessionID := "session-123"
	if err := s.BeginSession(context.Background(), sessionID, 16000); err != nil {
		t.Fatalf("begin session: %v", err)
	}
	if err := s.AppendEvent(context.Background(), Event{SessionID: sessionID, Type: "capture_error", Detail: "overflow"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := s.EndSession(context.Background(), sessionID, 12, 5); err != nil {
		t.Fatalf("end session: %v", err)
	}

	events, err := s.ListSessionEvents(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != "capture_error" || events[0].Detail != "overflow" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.SessionLogConfig{Path: filepath.Join(tmp, "sessions.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open session journal: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.BeginSession(context.Background(), "old-session", 16000); err != nil {
		t.Fatalf("begin session: %v", err)
	}
	if err := s.AppendEvent(context.Background(), Event{SessionID: "old-session", Type: "note"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.BeginSession(context.Background(), "new-session", 16000); err != nil {
		t.Fatalf("begin session: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := s.ListSessionEvents(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old session pruned")
	}
}
