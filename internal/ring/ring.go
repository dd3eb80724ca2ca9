// Package ring implements the bounded single-producer/single-consumer byte
// queue shared between the TCP receive path, the modem state machine and
// the bulk-IN pacer (spec.md §3, §4.1, component A).
package ring

import (
	"sync"
	"time"
)

// Buffer is a fixed-capacity circular byte queue. The zero value is not
// usable; construct with New. Effective capacity is cap-1: the buffer is
// full when advancing the write index by one (mod cap) would equal the
// read index.
type Buffer struct {
	mu       sync.Mutex
	cond     *sync.Cond
	data     []byte
	readPtr  int
	writePtr int
}

// New creates a ring buffer with the given capacity in bytes.
func New(capacity int) *Buffer {
	b := &Buffer{
		data: make([]byte, capacity),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *Buffer) isEmptyLocked() bool {
	return b.readPtr == b.writePtr
}

func (b *Buffer) isFullLocked() bool {
	next := (b.writePtr + 1) % len(b.data)
	return next == b.readPtr
}

// IsEmpty reports whether the buffer currently holds no data.
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isEmptyLocked()
}

// Enqueue copies as much of data as fits without overflowing, returning the
// number of bytes accepted. A short count is not an error by itself; per
// spec.md §4.1 the caller must surface the shortfall.
func (b *Buffer) Enqueue(data []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for n < len(data) && !b.isFullLocked() {
		b.data[b.writePtr] = data[n]
		b.writePtr = (b.writePtr + 1) % len(b.data)
		n++
	}
	return n
}

// Dequeue drains up to len(out) bytes into out, returning the number
// copied. Returns 0 if the buffer is empty.
func (b *Buffer) Dequeue(out []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for n < len(out) && !b.isEmptyLocked() {
		out[n] = b.data[b.readPtr]
		b.readPtr = (b.readPtr + 1) % len(b.data)
		n++
	}
	return n
}

// Wait blocks until the buffer is non-empty or deadline elapses. It reports
// whether it actually waited and observed new data; if the buffer was
// already non-empty it returns false immediately without waiting.
func (b *Buffer) Wait(deadline time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isEmptyLocked() {
		return false
	}

	for b.isEmptyLocked() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		done := make(chan struct{})
		timer := time.AfterFunc(remaining, func() {
			b.mu.Lock()
			close(done)
			b.cond.Broadcast()
			b.mu.Unlock()
		})

		b.cond.Wait()

		select {
		case <-done:
			timer.Stop()
			return !b.isEmptyLocked()
		default:
			timer.Stop()
		}
	}

	return true
}

// NotifyOne wakes one waiter blocked in Wait. Callers enqueueing data MUST
// call NotifyOne afterward (spec.md §4.1).
func (b *Buffer) NotifyOne() {
	b.cond.Signal()
}
