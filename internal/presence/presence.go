package presence

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/murmurlabs/murmur/internal/bus"
	"github.com/murmurlabs/murmur/internal/config"
	"github.com/murmurlabs/murmur/internal/protocol"
)

// Service announces daemon state on the bus and publishes periodic
// heartbeats so external consumers can tell the daemon is alive.
type Service struct {
	cfg      config.HeartbeatConfig
	bus      *bus.Client
	log      *slog.Logger
	daemonID string

	mu        sync.Mutex
	state     string
	sessionID string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(cfg config.HeartbeatConfig, busClient *bus.Client, log *slog.Logger) *Service {
	return &Service{
		cfg:      cfg,
		bus:      busClient,
		log:      log.With(slog.String("component", "presence")),
		daemonID: uuid.NewString(),
		state:    "idle",
	}
}

// DaemonID is the instance identifier used in announcements.
func (s *Service) DaemonID() string {
	return s.daemonID
}

func (s *Service) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel

	s.publishStatus()

	s.wg.Add(1)
	go s.runHeartbeat(ctx)
}

func (s *Service) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// SetState records a state transition and broadcasts it.
func (s *Service) SetState(state, sessionID string) {
	s.mu.Lock()
	s.state = state
	s.sessionID = sessionID
	s.mu.Unlock()
	s.publishStatus()
}

func (s *Service) runHeartbeat(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Duration(s.cfg.IntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hb := protocol.Heartbeat{DaemonID: s.daemonID, Timestamp: time.Now().UTC()}
			data, err := json.Marshal(hb)
			if err != nil {
				continue
			}
			if err := s.bus.Conn().Publish(protocol.SubjectHeartbeat, data); err != nil {
				s.log.Warn("failed to publish heartbeat", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Service) publishStatus() {
	s.mu.Lock()
	status := protocol.SessionStatus{
		DaemonID:  s.daemonID,
		SessionID: s.sessionID,
		State:     s.state,
		Timestamp: time.Now().UTC(),
	}
	s.mu.Unlock()

	data, err := json.Marshal(status)
	if err != nil {
		s.log.Warn("failed to marshal status", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectSessionStatus, data); err != nil {
		s.log.Warn("failed to publish status", slog.String("error", err.Error()))
	}
}
