package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// CaptureConfig describes the microphone stream the daemon records from.
type CaptureConfig struct {
	SampleRate   int `yaml:"sample_rate"`
	Channels     int `yaml:"channels"`
	ChunkSamples int `yaml:"chunk_samples"`
}

// SegmenterConfig bounds the rolling window and the inference hand-off.
type SegmenterConfig struct {
	SegmentSeconds int `yaml:"segment_seconds"`
	BufferSeconds  int `yaml:"buffer_seconds"`
	QueueDepth     int `yaml:"queue_depth"`
	DrainTimeoutMS int `yaml:"drain_timeout_ms"`
}

type STTConfig struct {
	Mode      string `yaml:"mode"` // mock, exec
	Command   string `yaml:"command"`
	ModelPath string `yaml:"model_path"`
	Language  string `yaml:"language"`
}

// TypistConfig configures keystroke injection for transcribed text.
type TypistConfig struct {
	Enabled         bool   `yaml:"enabled"`
	TypeCommand     string `yaml:"type_command"`
	ReturnCommand   string `yaml:"return_command"`
	FallbackCommand string `yaml:"fallback_command"`
}

type ControlConfig struct {
	Path           string `yaml:"path"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
}

type SessionLogConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type HeartbeatConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

type Config struct {
	DaemonName  string           `yaml:"daemon_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Capture     CaptureConfig    `yaml:"capture"`
	Segmenter   SegmenterConfig  `yaml:"segmenter"`
	STT         STTConfig        `yaml:"stt"`
	Typist      TypistConfig     `yaml:"typist"`
	Control     ControlConfig    `yaml:"control"`
	SessionLog  SessionLogConfig `yaml:"session_log"`
	Heartbeat   HeartbeatConfig  `yaml:"heartbeat"`
}

func Default() Config {
	return Config{
		DaemonName:  "murmurd",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8424,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9424",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Capture: CaptureConfig{
			SampleRate:   16000,
			Channels:     1,
			ChunkSamples: 4096,
		},
		Segmenter: SegmenterConfig{
			SegmentSeconds: 2,
			BufferSeconds:  10,
			QueueDepth:     8,
			DrainTimeoutMS: 2000,
		},
		STT: STTConfig{
			Mode:     "mock",
			Language: "en",
		},
		Typist: TypistConfig{
			Enabled:         true,
			TypeCommand:     "xdotool type --",
			ReturnCommand:   "xdotool key Return",
			FallbackCommand: "xclip -selection clipboard",
		},
		Control: ControlConfig{
			Path:           "/tmp/murmur_control",
			PollIntervalMS: 10,
		},
		SessionLog: SessionLogConfig{
			Path:          "./data/murmur-sessions.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Heartbeat: HeartbeatConfig{
			IntervalMS: 2000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.DaemonName, "MURMUR_DAEMON_NAME")
	overrideString(&cfg.Environment, "MURMUR_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "MURMUR_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "MURMUR_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "MURMUR_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "MURMUR_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "MURMUR_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "MURMUR_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "MURMUR_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "MURMUR_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "MURMUR_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "MURMUR_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "MURMUR_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "MURMUR_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "MURMUR_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "MURMUR_BUS_CONNECT_TIMEOUT_MS")
	overrideInt(&cfg.Capture.SampleRate, "MURMUR_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.Channels, "MURMUR_CAPTURE_CHANNELS")
	overrideInt(&cfg.Capture.ChunkSamples, "MURMUR_CAPTURE_CHUNK_SAMPLES")
	overrideInt(&cfg.Segmenter.SegmentSeconds, "MURMUR_SEGMENTER_SEGMENT_SECONDS")
	overrideInt(&cfg.Segmenter.BufferSeconds, "MURMUR_SEGMENTER_BUFFER_SECONDS")
	overrideInt(&cfg.Segmenter.QueueDepth, "MURMUR_SEGMENTER_QUEUE_DEPTH")
	overrideInt(&cfg.Segmenter.DrainTimeoutMS, "MURMUR_SEGMENTER_DRAIN_TIMEOUT_MS")
	overrideString(&cfg.STT.Mode, "MURMUR_STT_MODE")
	overrideString(&cfg.STT.Command, "MURMUR_STT_COMMAND")
	overrideString(&cfg.STT.ModelPath, "MURMUR_STT_MODEL_PATH")
	overrideString(&cfg.STT.Language, "MURMUR_STT_LANGUAGE")
	overrideBool(&cfg.Typist.Enabled, "MURMUR_TYPIST_ENABLED")
	overrideString(&cfg.Typist.TypeCommand, "MURMUR_TYPIST_TYPE_COMMAND")
	overrideString(&cfg.Typist.ReturnCommand, "MURMUR_TYPIST_RETURN_COMMAND")
	overrideString(&cfg.Typist.FallbackCommand, "MURMUR_TYPIST_FALLBACK_COMMAND")
	overrideString(&cfg.Control.Path, "MURMUR_CONTROL_PATH")
	overrideInt(&cfg.Control.PollIntervalMS, "MURMUR_CONTROL_POLL_INTERVAL_MS")
	overrideString(&cfg.SessionLog.Path, "MURMUR_SESSION_LOG_PATH")
	overrideString(&cfg.SessionLog.RetentionMode, "MURMUR_SESSION_LOG_RETENTION_MODE")
	overrideInt(&cfg.SessionLog.RetentionDays, "MURMUR_SESSION_LOG_RETENTION_DAYS")
	overrideInt(&cfg.SessionLog.MaxSessions, "MURMUR_SESSION_LOG_MAX_SESSIONS")
	overrideBool(&cfg.SessionLog.VacuumOnStart, "MURMUR_SESSION_LOG_VACUUM_ON_START")
	overrideInt(&cfg.Heartbeat.IntervalMS, "MURMUR_HEARTBEAT_INTERVAL_MS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.DaemonName == "" {
		return errors.New("daemon_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.Channels != 1 {
		return errors.New("capture.channels must be 1 (mono)")
	}
	if cfg.Capture.ChunkSamples <= 0 {
		return errors.New("capture.chunk_samples must be positive")
	}
	if cfg.Segmenter.SegmentSeconds <= 0 {
		return errors.New("segmenter.segment_seconds must be positive")
	}
	if cfg.Segmenter.BufferSeconds < cfg.Segmenter.SegmentSeconds {
		return errors.New("segmenter.buffer_seconds must be >= segment_seconds")
	}
	if cfg.Segmenter.QueueDepth <= 0 {
		return errors.New("segmenter.queue_depth must be >= 1")
	}
	if cfg.Segmenter.DrainTimeoutMS <= 0 {
		return errors.New("segmenter.drain_timeout_ms must be positive")
	}
	switch cfg.STT.Mode {
	case "mock", "exec":
	default:
		return errors.New("stt.mode must be one of mock|exec")
	}
	if cfg.STT.Mode == "exec" && cfg.STT.Command == "" {
		return errors.New("stt.command must be set when mode=exec")
	}
	if cfg.Typist.Enabled {
		if cfg.Typist.TypeCommand == "" {
			return errors.New("typist.type_command must not be empty when typist is enabled")
		}
		if cfg.Typist.ReturnCommand == "" {
			return errors.New("typist.return_command must not be empty when typist is enabled")
		}
	}
	if cfg.Control.Path == "" {
		return errors.New("control.path must not be empty")
	}
	if cfg.Control.PollIntervalMS <= 0 {
		return errors.New("control.poll_interval_ms must be positive")
	}
	switch cfg.SessionLog.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("session_log.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.SessionLog.RetentionMode != "ephemeral" && cfg.SessionLog.Path == "" {
		return errors.New("session_log.path must not be empty")
	}
	if cfg.SessionLog.RetentionDays < 0 {
		return errors.New("session_log.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	if cfg.Heartbeat.IntervalMS <= 0 {
		return errors.New("heartbeat.interval_ms must be positive")
	}
	return nil
}
