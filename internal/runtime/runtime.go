package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/murmurlabs/murmur/internal/bus"
	"github.com/murmurlabs/murmur/internal/capture"
	"github.com/murmurlabs/murmur/internal/config"
	"github.com/murmurlabs/murmur/internal/control"
	"github.com/murmurlabs/murmur/internal/eventstore"
	"github.com/murmurlabs/murmur/internal/natsserver"
	"github.com/murmurlabs/murmur/internal/presence"
	"github.com/murmurlabs/murmur/internal/session"
	"github.com/murmurlabs/murmur/internal/stt"
	"github.com/murmurlabs/murmur/internal/typist"
)

// Runtime assembles the daemon: embedded bus, session journal, the dictation
// pipeline, the typist, and the control-file watcher. Start blocks until the
// context is canceled, then tears everything down in reverse order.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	embedded      *natsserver.EmbeddedServer
	busClient     *bus.Client
	store         *eventstore.Store
	typist        *typist.Service
	presence      *presence.Service
	controller    *session.Controller

	ready atomic.Bool
	wg    sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	if r.cfg.Bus.Embedded {
		embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
		r.embedded = embedded
	}

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		r.shutdownEmbedded()
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busClient = busClient

	store, err := eventstore.Open(ctx, r.cfg.SessionLog, r.logger)
	if err != nil {
		r.closeBus()
		return fmt.Errorf("failed to open session journal: %w", err)
	}
	r.store = store

	recognizer, err := stt.New(r.cfg.STT, r.cfg.Capture.SampleRate)
	if err != nil {
		r.closeStore()
		r.closeBus()
		return fmt.Errorf("failed to create recognizer: %w", err)
	}

	typistService, err := typist.NewService(r.cfg.Typist, busClient, r.logger)
	if err != nil {
		r.closeStore()
		r.closeBus()
		return fmt.Errorf("failed to create typist: %w", err)
	}
	if err := typistService.Start(); err != nil {
		r.closeStore()
		r.closeBus()
		return fmt.Errorf("failed to start typist: %w", err)
	}
	r.typist = typistService

	presenceService := presence.NewService(r.cfg.Heartbeat, busClient, r.logger)
	presenceService.Start(ctx)
	r.presence = presenceService

	controller := session.NewController(
		r.cfg.Capture,
		r.cfg.Segmenter,
		capture.NewPortAudioSource(),
		recognizer,
		session.NewBusEmitter(busClient),
		store,
		r.logger,
	)
	controller.SetStateListener(func(state session.State, sessionID string) {
		presenceService.SetState(string(state), sessionID)
	})
	r.controller = controller

	watcher := control.NewWatcher(r.cfg.Control, r.logger)
	if err := watcher.EnsureReady(); err != nil {
		return fmt.Errorf("failed to prepare control file: %w", err)
	}
	commands, err := watcher.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch control file: %w", err)
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.commandLoop(ctx, commands)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	if metricsHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
	}

	r.ready.Store(true)
	r.logger.Info("daemon started",
		slog.String("addr", addr),
		slog.String("control_file", r.cfg.Control.Path))

	<-ctx.Done()
	r.logger.Info("daemon stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	r.controller.Shutdown(shutdownCtx)
	r.typist.Close()
	r.presence.Close()

	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	r.closeBus()
	r.shutdownEmbedded()
	r.closeStore()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// commandLoop applies control-file commands to the session controller. Command
// failures are logged and journaled; the daemon keeps running.
func (r *Runtime) commandLoop(ctx context.Context, commands <-chan control.Command) {
	for cmd := range commands {
		var err error
		switch cmd {
		case control.CommandStart:
			err = r.controller.Start(ctx)
		case control.CommandStop:
			err = r.controller.Stop(ctx)
		}
		if err != nil {
			r.logger.Warn("control command failed",
				slog.String("command", string(cmd)),
				slog.String("error", err.Error()))
			if sessionID := r.controller.SessionID(); sessionID != "" {
				if jerr := r.store.AppendEvent(ctx, eventstore.Event{
					SessionID: sessionID,
					Type:      "command_error",
					Detail:    fmt.Sprintf("%s: %v", cmd, err),
				}); jerr != nil {
					r.logger.Warn("failed to journal command error", slog.String("error", jerr.Error()))
				}
			}
		}
	}
}

func (r *Runtime) shutdownEmbedded() {
	if r.embedded != nil {
		r.embedded.Shutdown()
		r.embedded = nil
	}
}

func (r *Runtime) closeBus() {
	if r.busClient != nil {
		r.busClient.Close()
		r.busClient = nil
	}
}

func (r *Runtime) closeStore() {
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.logger.Warn("session journal close failed", slog.String("error", err.Error()))
		}
		r.store = nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.busClient != nil && r.busClient.Healthy() && r.typist.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
