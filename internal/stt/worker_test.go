package stt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/murmurlabs/murmur/internal/audio"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type scriptedRecognizer struct {
	mu      sync.Mutex
	texts   []string
	errs    []error
	hints   []string
	samples [][]float32
	idx     int
	block   chan struct{}
}

func (r *scriptedRecognizer) Transcribe(ctx context.Context, samples []float32, hint string) (string, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hints = append(r.hints, hint)
	r.samples = append(r.samples, samples)
	i := r.idx
	r.idx++
	if i < len(r.errs) && r.errs[i] != nil {
		return "", r.errs[i]
	}
	if i < len(r.texts) {
		return r.texts[i], nil
	}
	return "", nil
}

type resultCollector struct {
	mu      sync.Mutex
	seqs    []int64
	texts   []string
	arrived chan struct{}
}

func newResultCollector() *resultCollector {
	return &resultCollector{arrived: make(chan struct{}, 64)}
}

func (c *resultCollector) collect(seq int64, text string) {
	c.mu.Lock()
	c.seqs = append(c.seqs, seq)
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	c.arrived <- struct{}{}
}

func (c *resultCollector) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.arrived:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for result %d of %d", i+1, n)
		}
	}
}

func TestWorkerProcessesInSubmissionOrder(t *testing.T) {
	rec := &scriptedRecognizer{texts: []string{"one", "one two", "one two three"}}
	results := newResultCollector()
	w := NewWorker(context.Background(), rec, 8, func() string { return "" }, results.collect, newLogger())
	w.Start()

	for i := int64(1); i <= 3; i++ {
		if !w.Submit(audio.Segment{Seq: i, Samples: []int16{0, 0}}) {
			t.Fatalf("submit %d rejected", i)
		}
	}
	results.wait(t, 3)
	if !w.Stop(time.Second) {
		t.Fatal("expected clean drain")
	}

	for i, seq := range results.seqs {
		if seq != int64(i+1) {
			t.Fatalf("results out of order: %v", results.seqs)
		}
	}
}

func TestWorkerNormalizesSamples(t *testing.T) {
	rec := &scriptedRecognizer{texts: []string{"ok"}}
	results := newResultCollector()
	w := NewWorker(context.Background(), rec, 2, func() string { return "" }, results.collect, newLogger())
	w.Start()

	w.Submit(audio.Segment{Seq: 1, Samples: []int16{-32768, 0, 16384}})
	results.wait(t, 1)
	w.Stop(time.Second)

	got := rec.samples[0]
	if got[0] != -1 || got[1] != 0 || got[2] != 0.5 {
		t.Fatalf("unexpected normalized samples: %v", got)
	}
}

func TestWorkerPassesHint(t *testing.T) {
	rec := &scriptedRecognizer{texts: []string{"a", "b"}}
	results := newResultCollector()
	hint := "previous transcript"
	w := NewWorker(context.Background(), rec, 2, func() string { return hint }, results.collect, newLogger())
	w.Start()

	w.Submit(audio.Segment{Seq: 1, Samples: []int16{0}})
	results.wait(t, 1)
	w.Stop(time.Second)

	if rec.hints[0] != hint {
		t.Fatalf("expected hint %q, got %q", hint, rec.hints[0])
	}
}

func TestWorkerDropsFailedSegmentAndContinues(t *testing.T) {
	rec := &scriptedRecognizer{
		texts: []string{"", "after failure"},
		errs:  []error{errors.New("backend unavailable"), nil},
	}
	results := newResultCollector()
	w := NewWorker(context.Background(), rec, 4, func() string { return "" }, results.collect, newLogger())
	w.Start()

	w.Submit(audio.Segment{Seq: 1, Samples: []int16{0}})
	w.Submit(audio.Segment{Seq: 2, Samples: []int16{0}})
	results.wait(t, 1)
	w.Stop(time.Second)

	if len(results.seqs) != 1 || results.seqs[0] != 2 {
		t.Fatalf("expected only segment 2 to produce a result, got %v", results.seqs)
	}
	if results.texts[0] != "after failure" {
		t.Fatalf("unexpected text: %q", results.texts[0])
	}
}

func TestWorkerRejectsSubmitAfterStop(t *testing.T) {
	rec := &scriptedRecognizer{}
	results := newResultCollector()
	w := NewWorker(context.Background(), rec, 2, func() string { return "" }, results.collect, newLogger())
	w.Start()
	w.Stop(time.Second)

	if w.Submit(audio.Segment{Seq: 1, Samples: []int16{0}}) {
		t.Fatal("expected submit after stop to be rejected")
	}
}

func TestWorkerStopDrainsPendingSegment(t *testing.T) {
	rec := &scriptedRecognizer{texts: []string{"pending"}}
	results := newResultCollector()
	w := NewWorker(context.Background(), rec, 2, func() string { return "" }, results.collect, newLogger())
	w.Start()

	w.Submit(audio.Segment{Seq: 1, Samples: []int16{0}})
	if !w.Stop(2 * time.Second) {
		t.Fatal("expected pending segment to drain within timeout")
	}
	if len(results.texts) != 1 || results.texts[0] != "pending" {
		t.Fatalf("expected drained result, got %v", results.texts)
	}
}

func TestWorkerStopTimesOutOnStuckBackend(t *testing.T) {
	rec := &scriptedRecognizer{block: make(chan struct{})}
	results := newResultCollector()
	w := NewWorker(context.Background(), rec, 2, func() string { return "" }, results.collect, newLogger())
	w.Start()

	w.Submit(audio.Segment{Seq: 1, Samples: []int16{0}})
	time.Sleep(50 * time.Millisecond)
	if w.Stop(100 * time.Millisecond) {
		t.Fatal("expected drain timeout while backend is stuck")
	}
}

func TestWorkerDropsOldestWhenQueueFull(t *testing.T) {
	block := make(chan struct{})
	rec := &scriptedRecognizer{block: block}
	results := newResultCollector()
	w := NewWorker(context.Background(), rec, 1, func() string { return "" }, results.collect, newLogger())
	w.Start()

	// First segment occupies the backend, the rest contend for the queue.
	w.Submit(audio.Segment{Seq: 1, Samples: []int16{0}})
	time.Sleep(50 * time.Millisecond)
	w.Submit(audio.Segment{Seq: 2, Samples: []int16{0}})
	w.Submit(audio.Segment{Seq: 3, Samples: []int16{0}})
	close(block)

	results.wait(t, 2)
	w.Stop(time.Second)

	last := results.seqs[len(results.seqs)-1]
	if last != 3 {
		t.Fatalf("expected newest segment to survive the queue, got %v", results.seqs)
	}
}
