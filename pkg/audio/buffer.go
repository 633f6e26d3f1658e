package audio

import (
	"errors"
	"sync"
	"time"
)

// ErrBufferFull is returned when an utterance exceeds the configured cap.
var ErrBufferFull = errors.New("audio: utterance buffer full")

// DefaultMaxUtterance caps one utterance at two minutes of μ-law audio.
const DefaultMaxUtterance = 2 * 60 * SampleRate

// Buffer accumulates μ-law audio frames for one caller utterance.
// It is bounded: callers that never stop talking cannot grow it
// without limit.
type Buffer struct {
	mu   sync.Mutex
	data []byte
	max  int
}

// NewBuffer creates a buffer with the given byte cap.
// A cap of zero uses DefaultMaxUtterance.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxUtterance
	}
	return &Buffer{max: max}
}

// Append adds an audio frame. Returns ErrBufferFull if the frame would
// exceed the cap; the buffer keeps what it already has.
func (b *Buffer) Append(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data)+len(frame) > b.max {
		return ErrBufferFull
	}
	b.data = append(b.data, frame...)
	return nil
}

// Take returns the buffered audio and resets the buffer.
func (b *Buffer) Take() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	data := b.data
	b.data = nil
	return data
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Duration returns the playback duration of the buffered audio.
func (b *Buffer) Duration() time.Duration {
	return time.Duration(b.Len()) * time.Second / SampleRate
}

// Reset discards any buffered audio.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = nil
}
