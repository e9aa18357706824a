package capture

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/murmurlabs/murmur/internal/config"
)

// PortAudioSource opens the default system input device via PortAudio.
type PortAudioSource struct{}

func NewPortAudioSource() *PortAudioSource {
	return &PortAudioSource{}
}

func (s *PortAudioSource) Open(cfg config.CaptureConfig) (Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	buf := make([]int16, cfg.ChunkSamples)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.ChunkSamples, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start capture stream: %w", err)
	}

	return &portAudioDevice{stream: stream, buf: buf}, nil
}

type portAudioDevice struct {
	stream *portaudio.Stream
	buf    []int16
	closed bool
}

func (d *portAudioDevice) Read(dst []int16) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if err := d.stream.Read(); err != nil {
		// Overflow means the host dropped samples; callers log and skip the read.
		if err == portaudio.InputOverflowed {
			return 0, fmt.Errorf("capture overflow: %w", err)
		}
		return 0, err
	}
	return copy(dst, d.buf), nil
}

func (d *portAudioDevice) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.stream.Stop()
	err := d.stream.Close()
	_ = portaudio.Terminate()
	return err
}
