package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capture.SampleRate != 16000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Segmenter.SegmentSeconds != 2 || cfg.Segmenter.BufferSeconds != 10 {
		t.Fatalf("unexpected segmenter defaults: %+v", cfg.Segmenter)
	}
	if cfg.Control.Path != "/tmp/murmur_control" {
		t.Fatalf("unexpected control path: %s", cfg.Control.Path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MURMUR_CAPTURE_SAMPLE_RATE", "8000")
	t.Setenv("MURMUR_SEGMENTER_SEGMENT_SECONDS", "1")
	t.Setenv("MURMUR_SEGMENTER_BUFFER_SECONDS", "5")
	t.Setenv("MURMUR_SEGMENTER_QUEUE_DEPTH", "4")
	t.Setenv("MURMUR_STT_MODE", "exec")
	t.Setenv("MURMUR_STT_COMMAND", "whisper-cli")
	t.Setenv("MURMUR_STT_MODEL_PATH", "./models/ggml-tiny.bin")
	t.Setenv("MURMUR_TYPIST_ENABLED", "false")
	t.Setenv("MURMUR_CONTROL_PATH", "/tmp/other_control")
	t.Setenv("MURMUR_SESSION_LOG_RETENTION_MODE", "persistent")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Capture.SampleRate != 8000 {
		t.Fatalf("expected sample rate override, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Segmenter.SegmentSeconds != 1 || cfg.Segmenter.BufferSeconds != 5 {
		t.Fatalf("expected segmenter overrides: %+v", cfg.Segmenter)
	}
	if cfg.Segmenter.QueueDepth != 4 {
		t.Fatalf("expected queue depth override, got %d", cfg.Segmenter.QueueDepth)
	}
	if cfg.STT.Mode != "exec" || cfg.STT.Command != "whisper-cli" {
		t.Fatalf("expected stt overrides: %+v", cfg.STT)
	}
	if cfg.STT.ModelPath != "./models/ggml-tiny.bin" {
		t.Fatalf("expected model path override")
	}
	if cfg.Typist.Enabled {
		t.Fatal("expected typist disabled")
	}
	if cfg.Control.Path != "/tmp/other_control" {
		t.Fatalf("expected control path override")
	}
	if cfg.SessionLog.RetentionMode != "persistent" {
		t.Fatalf("expected session log retention override")
	}
}

func TestValidateExecRequiresCommand(t *testing.T) {
	t.Setenv("MURMUR_STT_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for exec mode without command")
	}
}

func TestValidateBufferShorterThanSegment(t *testing.T) {
	t.Setenv("MURMUR_SEGMENTER_SEGMENT_SECONDS", "5")
	t.Setenv("MURMUR_SEGMENTER_BUFFER_SECONDS", "2")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for buffer shorter than segment")
	}
}
