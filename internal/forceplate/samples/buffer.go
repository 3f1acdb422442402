package samples

import "fmt"

// Buffer is a bounded, time-ordered ring of samples. When full, pushing a new
// sample evicts the oldest one.
type Buffer struct {
	data  []ForceSample
	start int
	size  int
}

// NewBuffer creates a ring holding at most capacity samples.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{data: make([]ForceSample, capacity)}
}

// NewBufferForDuration sizes a ring for seconds of data at rate Hz.
func NewBufferForDuration(seconds, rate float64) *Buffer {
	return NewBuffer(int(seconds*rate + 0.5))
}

// Push appends s, evicting the oldest sample when full. Timestamps must be
// strictly increasing.
func (b *Buffer) Push(s ForceSample) error {
	if last, ok := b.Latest(); ok && s.TimestampMs <= last.TimestampMs {
		return fmt.Errorf("%w: %.3f after %.3f", ErrOutOfOrder, s.TimestampMs, last.TimestampMs)
	}
	if b.size < len(b.data) {
		b.data[(b.start+b.size)%len(b.data)] = s
		b.size++
		return nil
	}
	b.data[b.start] = s
	b.start = (b.start + 1) % len(b.data)
	return nil
}

// Len returns the number of samples held.
func (b *Buffer) Len() int { return b.size }

// Cap returns the capacity.
func (b *Buffer) Cap() int { return len(b.data) }

// At returns the i-th oldest sample held.
func (b *Buffer) At(i int) ForceSample {
	return b.data[(b.start+i)%len(b.data)]
}

// Latest returns the newest sample.
func (b *Buffer) Latest() (ForceSample, bool) {
	if b.size == 0 {
		return ForceSample{}, false
	}
	return b.At(b.size - 1), true
}

// Last returns a copy of the newest n samples in time order.
func (b *Buffer) Last(n int) []ForceSample {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]ForceSample, n)
	for i := 0; i < n; i++ {
		out[i] = b.At(b.size - n + i)
	}
	return out
}

// Window returns the samples whose timestamps fall within ms of the newest
// sample, inclusive.
func (b *Buffer) Window(ms float64) []ForceSample {
	latest, ok := b.Latest()
	if !ok {
		return nil
	}
	cutoff := latest.TimestampMs - ms
	n := 0
	for i := b.size - 1; i >= 0; i-- {
		if b.At(i).TimestampMs < cutoff {
			break
		}
		n++
	}
	return b.Last(n)
}

// Since returns the samples with timestamps strictly after t.
func (b *Buffer) Since(t float64) []ForceSample {
	n := 0
	for i := b.size - 1; i >= 0; i-- {
		if b.At(i).TimestampMs <= t {
			break
		}
		n++
	}
	return b.Last(n)
}

// Snapshot returns a copy of every sample held.
func (b *Buffer) Snapshot() []ForceSample { return b.Last(b.size) }

// Reset drops all samples.
func (b *Buffer) Reset() {
	b.start = 0
	b.size = 0
}
