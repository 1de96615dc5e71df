package audio

import "sync"

// Buffer is a Sink that keeps every captured sample.
type Buffer struct {
	mu  sync.Mutex
	buf []float32
}

// Write appends samples to the buffer.
func (b *Buffer) Write(samples []float32) {
	b.mu.Lock()
	b.buf = append(b.buf, samples...)
	b.mu.Unlock()
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Samples returns a copy of the buffered samples, or nil if empty.
func (b *Buffer) Samples() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buf) == 0 {
		return nil
	}
	out := make([]float32, len(b.buf))
	copy(out, b.buf)
	return out
}

// Reset empties the buffer but keeps its capacity.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.buf = b.buf[:0]
	b.mu.Unlock()
}
