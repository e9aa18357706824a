package capture

import (
	"errors"

	"github.com/murmurlabs/murmur/internal/config"
)

// ErrClosed is returned by Read after the device has been closed.
var ErrClosed = errors.New("capture device closed")

// Device is an open microphone stream. Read fills dst with the next chunk of
// samples and blocks until they are available. A single capture loop owns the
// device for the duration of a session.
type Device interface {
	Read(dst []int16) (int, error)
	Close() error
}

// Source opens capture devices. The production source wraps PortAudio; tests
// substitute scripted audio.
type Source interface {
	Open(cfg config.CaptureConfig) (Device, error)
}
