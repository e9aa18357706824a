package stt

import (
	"context"
	"fmt"
)

type mockRecognizer struct{}

func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(_ context.Context, samples []float32, _ string) (string, error) {
	return fmt.Sprintf("[mock transcript samples=%d]", len(samples)), nil
}
