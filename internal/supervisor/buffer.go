package supervisor

import "sync"

// Buffer accumulates child output. Writes from both capture workers are
// serialized; readers take a copy and never hold the lock past it.
type Buffer struct {
	mu   sync.Mutex
	data []byte
}

// Write appends p atomically. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	b.mu.Unlock()
	return len(p), nil
}

// Snapshot returns a copy of everything written so far.
func (b *Buffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// String returns the snapshot as a string.
func (b *Buffer) String() string {
	return string(b.Snapshot())
}
