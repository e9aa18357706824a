package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/murmurlabs/murmur/internal/audio"
	"github.com/murmurlabs/murmur/internal/capture"
	"github.com/murmurlabs/murmur/internal/config"
	"github.com/murmurlabs/murmur/internal/eventstore"
	"github.com/murmurlabs/murmur/internal/protocol"
	"github.com/murmurlabs/murmur/internal/reconcile"
	"github.com/murmurlabs/murmur/internal/stt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// State of the dictation session lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
)

// Controller owns the recording pipeline: rolling buffer, segment
// dispatcher, inference worker, and reconciliation engine. It moves between
// Idle and Recording on control commands; repeated commands in the same
// state are no-ops.
type Controller struct {
	captureCfg config.CaptureConfig
	segCfg     config.SegmenterConfig
	log        *slog.Logger
	source     capture.Source
	recognizer stt.Recognizer
	emitter    Emitter
	journal    *eventstore.Store
	onState    func(state State, sessionID string)

	mu          sync.Mutex
	state       State
	sessionID   string
	device      capture.Device
	worker      *stt.Worker
	quit        chan struct{}
	captureDone chan struct{}
	stats       *sessionStats

	sessionsStarted metric.Int64Counter
	deltasEmitted   metric.Int64Counter
}

type sessionStats struct {
	segments atomic.Int64
	deltas   atomic.Int64
}

func NewController(captureCfg config.CaptureConfig, segCfg config.SegmenterConfig, source capture.Source, recognizer stt.Recognizer, emitter Emitter, journal *eventstore.Store, log *slog.Logger) *Controller {
	c := &Controller{
		captureCfg: captureCfg,
		segCfg:     segCfg,
		log:        log.With(slog.String("component", "session-controller")),
		source:     source,
		recognizer: recognizer,
		emitter:    emitter,
		journal:    journal,
		state:      StateIdle,
	}
	c.initMetrics()
	return c
}

func (c *Controller) initMetrics() {
	meter := otel.Meter("github.com/murmurlabs/murmur/session")
	var err error
	if c.sessionsStarted, err = meter.Int64Counter("murmur.session.started"); err != nil {
		c.log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
	if c.deltasEmitted, err = meter.Int64Counter("murmur.session.deltas_emitted"); err != nil {
		c.log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
}

// SetStateListener registers a callback invoked on every state transition.
// Must be called before Start.
func (c *Controller) SetStateListener(fn func(state State, sessionID string)) {
	c.onState = fn
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID reports the active session id, empty while idle.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Start transitions Idle -> Recording: clears all per-session state, opens
// the capture device, and launches the worker and capture loop. Calling
// Start while recording is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRecording {
		return nil
	}

	device, err := c.source.Open(c.captureCfg)
	if err != nil {
		return fmt.Errorf("open capture device: %w", err)
	}

	sessionID := uuid.NewString()
	buffer := audio.NewRollingBuffer(c.segCfg.BufferSeconds * c.captureCfg.SampleRate)
	dispatcher := audio.NewDispatcher(buffer, c.segCfg.SegmentSeconds*c.captureCfg.SampleRate)
	engine := reconcile.New()
	stats := &sessionStats{}

	// Per-session state is bound into the result closure so a worker that
	// outlives its drain timeout can never touch the next session.
	var lastSeq int64
	onResult := func(seq int64, text string) {
		if seq <= lastSeq {
			c.log.Warn("dropping out-of-order result",
				slog.Int64("seq", seq), slog.Int64("last_seq", lastSeq))
			return
		}
		lastSeq = seq
		delta, ok := engine.Reconcile(text)
		if !ok {
			return
		}
		stats.deltas.Add(1)
		if c.deltasEmitted != nil {
			c.deltasEmitted.Add(context.Background(), 1)
		}
		if err := c.emitter.Emit(protocol.TranscriptDelta{
			SessionID: sessionID,
			Seq:       seq,
			Text:      delta,
			Timestamp: time.Now().UTC(),
		}); err != nil {
			c.log.Warn("failed to emit delta", slog.String("error", err.Error()))
		}
	}

	worker := stt.NewWorker(context.Background(), c.recognizer, c.segCfg.QueueDepth, engine.LastText, onResult, c.log)
	worker.Start()

	quit := make(chan struct{})
	captureDone := make(chan struct{})
	go c.captureLoop(device, buffer, dispatcher, worker, stats, quit, captureDone)

	c.state = StateRecording
	c.sessionID = sessionID
	c.device = device
	c.worker = worker
	c.quit = quit
	c.captureDone = captureDone
	c.stats = stats

	if c.sessionsStarted != nil {
		c.sessionsStarted.Add(ctx, 1)
	}
	if c.journal != nil {
		if err := c.journal.BeginSession(ctx, sessionID, c.captureCfg.SampleRate); err != nil {
			c.log.Warn("failed to journal session start", slog.String("error", err.Error()))
		}
	}
	c.notifyState(StateRecording, sessionID)
	c.log.Info("recording started", slog.String("session_id", sessionID))
	return nil
}

// Stop transitions Recording -> Idle: halts capture, drains the worker with
// a bounded wait, and emits a terminal marker. Calling Stop while idle is a
// no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRecording {
		return nil
	}

	close(c.quit)
	if err := c.device.Close(); err != nil {
		c.log.Warn("failed to close capture device", slog.String("error", err.Error()))
	}
	<-c.captureDone

	drain := time.Duration(c.segCfg.DrainTimeoutMS) * time.Millisecond
	if !c.worker.Stop(drain) {
		c.log.Warn("inference worker did not drain cleanly", slog.String("session_id", c.sessionID))
	}

	if err := c.emitter.Emit(protocol.TranscriptDelta{
		SessionID: c.sessionID,
		Terminal:  true,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		c.log.Warn("failed to emit terminal marker", slog.String("error", err.Error()))
	}

	if c.journal != nil {
		if err := c.journal.EndSession(ctx, c.sessionID, c.stats.segments.Load(), c.stats.deltas.Load()); err != nil {
			c.log.Warn("failed to journal session stop", slog.String("error", err.Error()))
		}
	}

	c.log.Info("recording stopped",
		slog.String("session_id", c.sessionID),
		slog.Int64("segments", c.stats.segments.Load()),
		slog.Int64("deltas", c.stats.deltas.Load()))

	sessionID := c.sessionID
	c.state = StateIdle
	c.sessionID = ""
	c.device = nil
	c.worker = nil
	c.quit = nil
	c.captureDone = nil
	c.notifyState(StateIdle, sessionID)
	return nil
}

// Shutdown releases the capture device and worker on process exit.
func (c *Controller) Shutdown(ctx context.Context) {
	if err := c.Stop(ctx); err != nil {
		c.log.Warn("shutdown stop failed", slog.String("error", err.Error()))
	}
}

func (c *Controller) notifyState(state State, sessionID string) {
	if c.onState != nil {
		c.onState(state, sessionID)
	}
}

// captureLoop pulls audio chunks, feeds the rolling buffer, and hands full
// windows to the worker. It is the buffer's single owner; hand-off to the
// worker is queue-based so capture never blocks on inference.
func (c *Controller) captureLoop(device capture.Device, buffer *audio.RollingBuffer, dispatcher *audio.Dispatcher, worker *stt.Worker, stats *sessionStats, quit, done chan struct{}) {
	defer close(done)

	chunk := make([]int16, c.captureCfg.ChunkSamples)
	for {
		select {
		case <-quit:
			return
		default:
		}

		n, err := device.Read(chunk)
		if err != nil {
			select {
			case <-quit:
				return
			default:
			}
			if errors.Is(err, capture.ErrClosed) {
				return
			}
			// Transient read failure: skip this cycle.
			c.log.Warn("capture read failed", slog.String("error", err.Error()))
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}

		buffer.Push(chunk[:n])
		if segment, ok := dispatcher.Poll(); ok {
			stats.segments.Add(1)
			worker.Submit(segment)
		}
	}
}
