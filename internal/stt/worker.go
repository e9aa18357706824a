package stt

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/murmurlabs/murmur/internal/audio"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// transcribeTimeout bounds a single backend call.
const transcribeTimeout = 45 * time.Second

// Worker is the single-concurrency inference consumer. Segments are handed
// off through a bounded queue so the capture loop never blocks on the
// backend; when the queue is full the oldest pending segment is dropped, as
// a newer window always re-covers its audio.
//
// Exactly one goroutine consumes the queue, so results reach onResult in
// submission order. Submit and Stop must not race: the capture loop is the
// only submitter and is stopped before Stop is called.
type Worker struct {
	recognizer Recognizer
	log        *slog.Logger
	jobs       chan audio.Segment
	hint       func() string
	onResult   func(seq int64, text string)

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped atomic.Bool

	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failures  metric.Int64Counter
}

// NewWorker builds a worker with a queue of the given depth. hint supplies
// the backend priming prompt; onResult receives each successful result with
// its segment's sequence number.
func NewWorker(parent context.Context, recognizer Recognizer, depth int, hint func() string, onResult func(int64, string), log *slog.Logger) *Worker {
	if depth <= 0 {
		depth = 1
	}
	ctx, cancel := context.WithCancel(parent)
	w := &Worker{
		recognizer: recognizer,
		log:        log.With(slog.String("component", "inference-worker")),
		jobs:       make(chan audio.Segment, depth),
		hint:       hint,
		onResult:   onResult,
		ctx:        ctx,
		cancel:     cancel,
	}
	w.initMetrics()
	return w
}

func (w *Worker) initMetrics() {
	meter := otel.Meter("github.com/murmurlabs/murmur/stt")
	var err error
	if w.processed, err = meter.Int64Counter("murmur.stt.segments_processed"); err != nil {
		w.log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
	if w.dropped, err = meter.Int64Counter("murmur.stt.segments_dropped"); err != nil {
		w.log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
	if w.failures, err = meter.Int64Counter("murmur.stt.transcribe_failures"); err != nil {
		w.log.Warn("failed to create counter", slog.String("error", err.Error()))
	}
}

// Start launches the consumer goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Submit enqueues a segment without blocking. Returns false once the worker
// has been stopped.
func (w *Worker) Submit(segment audio.Segment) bool {
	if w.stopped.Load() {
		return false
	}
	for {
		select {
		case w.jobs <- segment:
			return true
		default:
		}
		select {
		case old := <-w.jobs:
			w.log.Debug("inference queue full, dropping oldest segment", slog.Int64("seq", old.Seq))
			if w.dropped != nil {
				w.dropped.Add(w.ctx, 1)
			}
		default:
		}
	}
}

// Stop closes the queue and waits for the worker to drain, up to the given
// timeout. After the timeout any in-flight backend call is abandoned via
// context cancellation. Returns whether the drain completed in time.
func (w *Worker) Stop(drain time.Duration) bool {
	if w.stopped.Swap(true) {
		return true
	}
	close(w.jobs)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.cancel()
		return true
	case <-time.After(drain):
		w.cancel()
		w.log.Warn("inference worker drain timed out, abandoning in-flight call")
		return false
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for segment := range w.jobs {
		w.process(segment)
	}
}

func (w *Worker) process(segment audio.Segment) {
	samples := make([]float32, len(segment.Samples))
	for i, s := range segment.Samples {
		samples[i] = float32(s) / 32768
	}

	ctx, cancel := context.WithTimeout(w.ctx, transcribeTimeout)
	defer cancel()

	text, err := w.recognizer.Transcribe(ctx, samples, w.hint())
	if err != nil {
		// Best effort: a dropped segment only delays new words by one cycle.
		w.log.Warn("transcription failed, dropping segment",
			slog.Int64("seq", segment.Seq),
			slog.String("error", err.Error()))
		if w.failures != nil {
			w.failures.Add(w.ctx, 1)
		}
		return
	}
	if w.processed != nil {
		w.processed.Add(w.ctx, 1)
	}
	w.onResult(segment.Seq, text)
}
