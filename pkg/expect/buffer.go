package expect

import (
	"regexp"
	"sync"
)

// outputBuffer is a thread-safe ring of child output awaiting a match.
// When full, the oldest bytes are overwritten.
type outputBuffer struct {
	data     []byte
	size     int
	writePos int
	count    int // bytes currently held
	mu       sync.RWMutex
}

func newOutputBuffer(size int) *outputBuffer {
	return &outputBuffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends data, overwriting the oldest bytes once the buffer is full
func (b *outputBuffer) Write(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, c := range data {
		b.data[b.writePos] = c
		b.writePos = (b.writePos + 1) % b.size

		if b.count < b.size {
			b.count++
		}
	}
}

// Bytes returns a snapshot of the held bytes, oldest first.
func (b *outputBuffer) Bytes() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshot()
}

// Take returns the held bytes and empties the buffer.
func (b *outputBuffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	data := b.snapshot()
	b.count = 0
	return data
}

// Match runs re against the held bytes. On a match it returns the submatches
// and drops everything up to the end of the match.
func (b *outputBuffer) Match(re *regexp.Regexp) ([]string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data := b.snapshot()
	loc := re.FindSubmatchIndex(data)
	if loc == nil {
		return nil, false
	}

	groups := make([]string, len(loc)/2)
	for i := range groups {
		if loc[2*i] >= 0 {
			groups[i] = string(data[loc[2*i]:loc[2*i+1]])
		}
	}
	b.count -= loc[1]
	return groups, true
}

func (b *outputBuffer) snapshot() []byte {
	if b.count == 0 {
		return nil
	}

	result := make([]byte, b.count)
	start := (b.writePos - b.count + b.size) % b.size
	n := copy(result, b.data[start:min(start+b.count, b.size)])
	copy(result[n:], b.data[:b.count-n])
	return result
}
