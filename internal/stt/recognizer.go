package stt

import (
	"context"
	"fmt"

	"github.com/murmurlabs/murmur/internal/config"
)

// Recognizer abstracts the speech-recognition backend. Samples are mono
// float32 amplitudes in [-1, 1]; hint is the previously accepted transcript,
// passed as a priming prompt so the backend stays consistent across
// overlapping windows.
type Recognizer interface {
	Transcribe(ctx context.Context, samples []float32, hint string) (string, error)
}

// New creates a Recognizer for the configured mode. sampleRate is the
// capture rate the backend will receive.
func New(cfg config.STTConfig, sampleRate int) (Recognizer, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecRecognizer(cfg, sampleRate)
	case "mock", "":
		return NewMockRecognizer(), nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}
