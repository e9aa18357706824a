package audio

// RollingBuffer is a fixed-capacity FIFO of 16-bit PCM samples. Pushing past
// capacity evicts the oldest samples first, so the buffer always holds the
// most recent window of audio.
//
// It is not safe for concurrent use; a single recording session owns it and
// only the capture loop mutates it.
type RollingBuffer struct {
	data   []int16
	start  int
	length int
}

// NewRollingBuffer returns a buffer holding at most capacity samples.
func NewRollingBuffer(capacity int) *RollingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RollingBuffer{data: make([]int16, capacity)}
}

// Push appends samples, evicting the oldest entries beyond capacity.
func (b *RollingBuffer) Push(samples []int16) {
	capacity := len(b.data)
	if len(samples) >= capacity {
		// Only the tail of the incoming chunk survives.
		copy(b.data, samples[len(samples)-capacity:])
		b.start = 0
		b.length = capacity
		return
	}

	for _, s := range samples {
		end := (b.start + b.length) % capacity
		b.data[end] = s
		if b.length < capacity {
			b.length++
		} else {
			b.start = (b.start + 1) % capacity
		}
	}
}

// Snapshot returns an independent copy of the buffer contents in temporal
// order, oldest sample first.
func (b *RollingBuffer) Snapshot() []int16 {
	out := make([]int16, b.length)
	head := copy(out, b.data[b.start:min(b.start+b.length, len(b.data))])
	if head < b.length {
		copy(out[head:], b.data[:b.length-head])
	}
	return out
}

// Len reports the number of samples currently held.
func (b *RollingBuffer) Len() int {
	return b.length
}

// Cap reports the fixed capacity in samples.
func (b *RollingBuffer) Cap() int {
	return len(b.data)
}

// Clear empties the buffer.
func (b *RollingBuffer) Clear() {
	b.start = 0
	b.length = 0
}
