package audio

// Segment is a snapshot of the rolling buffer submitted for transcription.
// Immutable once created; ownership passes to the inference queue.
type Segment struct {
	Seq     int64
	Samples []int16
}

// Dispatcher decides when enough audio has accumulated to hand a segment to
// the inference worker. It is polled once per capture read cycle and emits
// the buffer's entire current window so the backend always has context, not
// just the newest samples.
type Dispatcher struct {
	buf       *RollingBuffer
	threshold int
	nextSeq   int64
}

// NewDispatcher creates a dispatcher that triggers once the buffer holds at
// least threshold samples.
func NewDispatcher(buf *RollingBuffer, threshold int) *Dispatcher {
	if threshold <= 0 {
		threshold = 1
	}
	return &Dispatcher{buf: buf, threshold: threshold}
}

// Poll emits one segment when the occupancy threshold is met. Sequence
// numbers increase strictly with each dispatched segment.
func (d *Dispatcher) Poll() (Segment, bool) {
	if d.buf.Len() < d.threshold {
		return Segment{}, false
	}
	d.nextSeq++
	return Segment{Seq: d.nextSeq, Samples: d.buf.Snapshot()}, true
}

// LastSeq reports the sequence number of the most recently dispatched
// segment, zero before any dispatch.
func (d *Dispatcher) LastSeq() int64 {
	return d.nextSeq
}
