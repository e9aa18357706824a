package typist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/murmurlabs/murmur/internal/bus"
	"github.com/murmurlabs/murmur/internal/config"
	"github.com/murmurlabs/murmur/internal/protocol"
	"github.com/nats-io/nats.go"
)

// commandTimeout bounds a single injection command.
const commandTimeout = 10 * time.Second

// runner executes an injection command; text goes to stdin when the argv has
// no trailing text argument slot.
type runner func(ctx context.Context, argv []string, stdin string) error

// Service turns transcript deltas from the bus into simulated keystrokes.
// Text deltas are appended to the configured type command; terminal markers
// run the return command. When injection fails the fallback command receives
// the text on stdin (clipboard-style), and failures are logged, never fatal.
type Service struct {
	cfg    config.TypistConfig
	bus    *bus.Client
	log    *slog.Logger
	run    runner
	sub    *nats.Subscription
	mu     sync.Mutex
	ready  bool
	typeA  []string
	retA   []string
	fallbA []string
}

func NewService(cfg config.TypistConfig, busClient *bus.Client, log *slog.Logger) (*Service, error) {
	s := &Service{
		cfg: cfg,
		bus: busClient,
		log: log.With(slog.String("component", "typist")),
		run: execRunner,
	}

	parser := shellwords.NewParser()
	var err error
	if s.typeA, err = parser.Parse(cfg.TypeCommand); err != nil || len(s.typeA) == 0 {
		return nil, fmt.Errorf("parse typist type command: %w", err)
	}
	if s.retA, err = parser.Parse(cfg.ReturnCommand); err != nil || len(s.retA) == 0 {
		return nil, fmt.Errorf("parse typist return command: %w", err)
	}
	if cfg.FallbackCommand != "" {
		if s.fallbA, err = parser.Parse(cfg.FallbackCommand); err != nil {
			return nil, fmt.Errorf("parse typist fallback command: %w", err)
		}
	}
	return s, nil
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectTranscriptDelta, s.handleDelta)
	if err != nil {
		return fmt.Errorf("subscribe transcript deltas: %w", err)
	}
	s.sub = sub
	s.ready = true
	return nil
}

func (s *Service) Close() {
	if s.sub != nil {
		_ = s.sub.Drain()
	}
}

func (s *Service) Healthy() bool {
	return !s.cfg.Enabled || s.ready
}

func (s *Service) handleDelta(msg *nats.Msg) {
	var delta protocol.TranscriptDelta
	if err := json.Unmarshal(msg.Data, &delta); err != nil {
		s.log.Warn("failed to decode transcript delta", slog.String("error", err.Error()))
		return
	}
	s.inject(delta)
}

func (s *Service) inject(delta protocol.TranscriptDelta) {
	// Injection is serialized so keystrokes reach the focused window in
	// emission order.
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if delta.Terminal {
		if err := s.run(ctx, s.retA, ""); err != nil {
			s.log.Warn("failed to key return", slog.String("error", err.Error()))
		}
		return
	}
	if delta.Text == "" {
		return
	}

	argv := append(append([]string{}, s.typeA...), delta.Text)
	if err := s.run(ctx, argv, ""); err != nil {
		s.log.Warn("keystroke injection failed", slog.String("error", err.Error()))
		s.fallback(ctx, delta.Text)
	}
}

func (s *Service) fallback(ctx context.Context, text string) {
	if len(s.fallbA) == 0 {
		return
	}
	if err := s.run(ctx, s.fallbA, text); err != nil {
		s.log.Warn("clipboard fallback failed", slog.String("error", err.Error()))
		return
	}
	s.log.Info("text placed on clipboard, paste manually")
}

func execRunner(ctx context.Context, argv []string, stdin string) error {
	command := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != "" {
		command.Stdin = strings.NewReader(stdin)
	}
	if out, err := command.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
