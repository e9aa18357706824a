package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/murmurlabs/murmur/internal/bus"
	"github.com/murmurlabs/murmur/internal/protocol"
)

// Emitter delivers transcript deltas to downstream consumers.
type Emitter interface {
	Emit(delta protocol.TranscriptDelta) error
}

// BusEmitter publishes deltas on the NATS bus, where the typist service (and
// any other subscriber) picks them up in publish order.
type BusEmitter struct {
	bus *bus.Client
}

func NewBusEmitter(busClient *bus.Client) *BusEmitter {
	return &BusEmitter{bus: busClient}
}

func (e *BusEmitter) Emit(delta protocol.TranscriptDelta) error {
	if delta.Timestamp.IsZero() {
		delta.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("marshal transcript delta: %w", err)
	}
	if err := e.bus.Conn().Publish(protocol.SubjectTranscriptDelta, data); err != nil {
		return fmt.Errorf("publish transcript delta: %w", err)
	}
	return nil
}
