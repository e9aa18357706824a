package reconcile

import "strings"

// openingLen is how many leading characters two transcripts must share to be
// judged a continuation of the same utterance. Inherited behavior: short or
// rewritten openings can misclassify, but downstream consumers depend on the
// exact heuristic, so it must not be replaced by a smarter alignment without
// re-validation against real transcription drift.
const openingLen = 10

// Engine compares each transcription of the rolling audio window against the
// most recently accepted transcript and computes the minimal new suffix to
// emit, so re-transcribed audio never produces duplicate output.
//
// Not safe for concurrent use; the worker result consumer is its single
// owner.
type Engine struct {
	lastText string
}

func New() *Engine {
	return &Engine{}
}

// Reconcile evaluates candidate against the accepted transcript. It returns
// the delta to emit and whether anything new was recognized. State only
// advances when a delta is produced.
func (e *Engine) Reconcile(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return "", false
	}

	// The new window re-covers audio the engine already accepted: either an
	// identical re-statement or a trailing subset. Nothing new to emit.
	if candidate == e.lastText || strings.HasSuffix(e.lastText, candidate) {
		return "", false
	}

	var delta string
	if e.lastText != "" && len(candidate) > len(e.lastText) && strings.HasPrefix(candidate, opening(e.lastText)) {
		// Continuation: the backend extended the previous transcript, so only
		// the tail beyond what was already emitted is new.
		delta = candidate[len(e.lastText):]
	} else {
		// The opening diverged; the backend re-segmented or started a new
		// utterance. Join it onto prior output with a single space.
		delta = " " + candidate
	}

	e.lastText = candidate
	return delta, true
}

// LastText returns the most recently accepted full transcript. The inference
// worker feeds it back to the backend as a priming hint.
func (e *Engine) LastText() string {
	return e.lastText
}

// Reset clears the accepted transcript at session start.
func (e *Engine) Reset() {
	e.lastText = ""
}

func opening(s string) string {
	if len(s) > openingLen {
		return s[:openingLen]
	}
	return s
}
