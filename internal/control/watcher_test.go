package control

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/murmurlabs/murmur/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "control")
	w := NewWatcher(config.ControlConfig{Path: path, PollIntervalMS: 5}, newLogger())
	return w, path
}

func waitCommand(t *testing.T, commands <-chan Command) Command {
	t.Helper()
	select {
	case cmd := <-commands:
		return cmd
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for command")
		return ""
	}
}

func TestEnsureReadyCreatesMarker(t *testing.T) {
	w, path := newTestWatcher(t)
	if err := w.EnsureReady(); err != nil {
		t.Fatalf("ensure ready: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read control file: %v", err)
	}
	if string(data) != "ready\n" {
		t.Fatalf("unexpected marker: %q", data)
	}
}

func TestEnsureReadyPreservesExistingFile(t *testing.T) {
	w, path := newTestWatcher(t)
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("seed control file: %v", err)
	}
	if err := w.EnsureReady(); err != nil {
		t.Fatalf("ensure ready: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "start\n" {
		t.Fatalf("existing file overwritten: %q", data)
	}
}

func TestDeliversStartAndStop(t *testing.T) {
	w, path := newTestWatcher(t)
	if err := w.EnsureReady(); err != nil {
		t.Fatalf("ensure ready: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commands, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write command: %v", err)
	}
	if cmd := waitCommand(t, commands); cmd != CommandStart {
		t.Fatalf("expected start, got %q", cmd)
	}

	if err := os.WriteFile(path, []byte("stop\n"), 0o644); err != nil {
		t.Fatalf("write command: %v", err)
	}
	if cmd := waitCommand(t, commands); cmd != CommandStop {
		t.Fatalf("expected stop, got %q", cmd)
	}
}

func TestDuplicateCommandsDeduplicated(t *testing.T) {
	w, path := newTestWatcher(t)
	if err := w.EnsureReady(); err != nil {
		t.Fatalf("ensure ready: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commands, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write command: %v", err)
	}
	if cmd := waitCommand(t, commands); cmd != CommandStart {
		t.Fatalf("expected start, got %q", cmd)
	}

	// Rewriting the same command must not produce another delivery.
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("rewrite command: %v", err)
	}
	select {
	case cmd := <-commands:
		t.Fatalf("unexpected duplicate command %q", cmd)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnknownContentIgnored(t *testing.T) {
	w, path := newTestWatcher(t)
	if err := w.EnsureReady(); err != nil {
		t.Fatalf("ensure ready: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	commands, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("start watcher: %v", err)
	}

	if err := os.WriteFile(path, []byte("bogus\n"), 0o644); err != nil {
		t.Fatalf("write command: %v", err)
	}
	select {
	case cmd := <-commands:
		t.Fatalf("unexpected command %q for unknown content", cmd)
	case <-time.After(100 * time.Millisecond):
	}
}
