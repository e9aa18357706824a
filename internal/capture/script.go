package capture

import (
	"sync"

	"github.com/murmurlabs/murmur/internal/config"
)

// ScriptSource plays back pre-recorded chunks, for development and tests.
type ScriptSource struct {
	Chunks [][]int16
}

func (s *ScriptSource) Open(_ config.CaptureConfig) (Device, error) {
	return NewScriptDevice(s.Chunks), nil
}

// ScriptDevice returns each scripted chunk in order, then blocks until
// closed, mimicking a microphone that has gone quiet.
type ScriptDevice struct {
	mu     sync.Mutex
	chunks [][]int16
	idx    int
	done   chan struct{}
	once   sync.Once
}

func NewScriptDevice(chunks [][]int16) *ScriptDevice {
	return &ScriptDevice{chunks: chunks, done: make(chan struct{})}
}

func (d *ScriptDevice) Read(dst []int16) (int, error) {
	d.mu.Lock()
	if d.idx < len(d.chunks) {
		chunk := d.chunks[d.idx]
		d.idx++
		d.mu.Unlock()
		return copy(dst, chunk), nil
	}
	d.mu.Unlock()

	<-d.done
	return 0, ErrClosed
}

func (d *ScriptDevice) Close() error {
	d.once.Do(func() { close(d.done) })
	return nil
}
