package control

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/murmurlabs/murmur/internal/config"
)

// Command is a deduplicated control-file command.
type Command string

const (
	CommandStart Command = "start"
	CommandStop  Command = "stop"
)

// readyMarker is written to the control file at startup so external tooling
// can tell the daemon is listening.
const readyMarker = "ready\n"

// Watcher monitors the control file for start/stop commands. It combines an
// fsnotify subscription with a short polling interval: notify events give
// low latency, the poll covers editors and filesystems that rewrite the file
// without emitting events. Duplicate consecutive commands are ignored.
type Watcher struct {
	cfg config.ControlConfig
	log *slog.Logger

	lastCommand string
}

func NewWatcher(cfg config.ControlConfig, log *slog.Logger) *Watcher {
	return &Watcher{
		cfg: cfg,
		log: log.With(slog.String("component", "control-watcher")),
	}
}

// EnsureReady writes the readiness marker when the control file is absent.
func (w *Watcher) EnsureReady() error {
	if _, err := os.Stat(w.cfg.Path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat control file: %w", err)
	}
	if err := os.WriteFile(w.cfg.Path, []byte(readyMarker), 0o644); err != nil {
		return fmt.Errorf("write control file: %w", err)
	}
	return nil
}

// Start begins watching and returns the command channel. The channel closes
// when ctx is canceled.
func (w *Watcher) Start(ctx context.Context) (<-chan Command, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := notifier.Add(w.cfg.Path); err != nil {
		notifier.Close()
		return nil, fmt.Errorf("watch control file: %w", err)
	}

	commands := make(chan Command, 4)
	go w.run(ctx, notifier, commands)
	return commands, nil
}

func (w *Watcher) run(ctx context.Context, notifier *fsnotify.Watcher, commands chan<- Command) {
	defer close(commands)
	defer notifier.Close()

	ticker := time.NewTicker(time.Duration(w.cfg.PollIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	// Pick up a command already present at startup.
	w.check(ctx, commands)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx, commands)
		case event, ok := <-notifier.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.check(ctx, commands)
			}
		case err, ok := <-notifier.Errors:
			if !ok {
				return
			}
			w.log.Warn("control watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) check(ctx context.Context, commands chan<- Command) {
	data, err := os.ReadFile(w.cfg.Path)
	if err != nil {
		w.log.Warn("failed to read control file", slog.String("error", err.Error()))
		return
	}

	command := strings.TrimSpace(string(data))
	if command == w.lastCommand {
		return
	}
	w.lastCommand = command

	switch Command(command) {
	case CommandStart, CommandStop:
		select {
		case commands <- Command(command):
		case <-ctx.Done():
		}
	default:
		// "ready" and anything else are not commands.
	}
}
