package reconcile

import (
	"strings"
	"testing"
)

func TestFirstUtteranceSpaceJoined(t *testing.T) {
	e := New()
	delta, ok := e.Reconcile("hello")
	if !ok {
		t.Fatal("expected a delta for the first utterance")
	}
	if delta != " hello" {
		t.Fatalf("expected %q, got %q", " hello", delta)
	}
	if e.LastText() != "hello" {
		t.Fatalf("expected lastText %q, got %q", "hello", e.LastText())
	}
}

func TestContinuationEmitsOnlyTail(t *testing.T) {
	e := New()
	e.Reconcile("hello")
	delta, ok := e.Reconcile("hello world")
	if !ok {
		t.Fatal("expected a delta for the continuation")
	}
	if delta != " world" {
		t.Fatalf("expected %q, got %q", " world", delta)
	}
	if e.LastText() != "hello world" {
		t.Fatalf("expected lastText %q, got %q", "hello world", e.LastText())
	}
}

func TestIdenticalResultSuppressed(t *testing.T) {
	e := New()
	e.Reconcile("hello world")
	if delta, ok := e.Reconcile("hello world"); ok {
		t.Fatalf("expected no delta for identical result, got %q", delta)
	}
}

func TestTrailingSubsetSuppressed(t *testing.T) {
	e := New()
	e.Reconcile("the quick brown fox")
	if delta, ok := e.Reconcile("brown fox"); ok {
		t.Fatalf("expected no delta for re-confirmed tail, got %q", delta)
	}
	if e.LastText() != "the quick brown fox" {
		t.Fatal("state must not change when suppressing")
	}
}

func TestDivergentOpeningTreatedAsNewUtterance(t *testing.T) {
	e := New()
	e.Reconcile("good morning everyone")
	delta, ok := e.Reconcile("thanks for joining")
	if !ok {
		t.Fatal("expected a delta for the new utterance")
	}
	if delta != " thanks for joining" {
		t.Fatalf("expected space-joined full text, got %q", delta)
	}
}

func TestShortLastTextContinuation(t *testing.T) {
	// lastText shorter than the opening window still matches by its full
	// length.
	e := New()
	e.Reconcile("hi")
	delta, ok := e.Reconcile("hi there")
	if !ok {
		t.Fatal("expected continuation delta")
	}
	if delta != " there" {
		t.Fatalf("expected %q, got %q", " there", delta)
	}
}

func TestWhitespaceOnlyIgnored(t *testing.T) {
	e := New()
	e.Reconcile("hello")
	if _, ok := e.Reconcile("   \n\t "); ok {
		t.Fatal("expected no delta for whitespace-only candidate")
	}
	if e.LastText() != "hello" {
		t.Fatal("state must not change for an empty candidate")
	}
}

func TestCandidateIsTrimmed(t *testing.T) {
	e := New()
	delta, _ := e.Reconcile("  hello  ")
	if delta != " hello" {
		t.Fatalf("expected trimmed candidate, got %q", delta)
	}
	if e.LastText() != "hello" {
		t.Fatalf("expected trimmed lastText, got %q", e.LastText())
	}
}

func TestReconcileIsIdempotentOnceStabilized(t *testing.T) {
	inputs := []string{"hello", "hello world", "something else entirely", "tail"}
	for _, in := range inputs {
		e := New()
		e.Reconcile(in)
		if delta, ok := e.Reconcile(in); ok {
			t.Fatalf("second reconcile of %q emitted %q", in, delta)
		}
	}
}

func TestGrowingWindowReconstructsWithoutDuplicates(t *testing.T) {
	e := New()
	candidates := []string{
		"the meeting",
		"the meeting will start",
		"the meeting will start at noon",
		"the meeting will start at noon tomorrow",
	}
	var out strings.Builder
	for _, c := range candidates {
		if delta, ok := e.Reconcile(c); ok {
			out.WriteString(delta)
		}
	}
	want := " the meeting will start at noon tomorrow"
	if out.String() != want {
		t.Fatalf("expected %q, got %q", want, out.String())
	}
}

func TestReset(t *testing.T) {
	e := New()
	e.Reconcile("hello")
	e.Reset()
	if e.LastText() != "" {
		t.Fatal("expected empty state after reset")
	}
	delta, _ := e.Reconcile("hello")
	if delta != " hello" {
		t.Fatalf("expected fresh session behavior after reset, got %q", delta)
	}
}
