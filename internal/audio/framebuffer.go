package audio

import (
	"sync"
)

// FrameBuffer assembles arbitrary-size inbound audio chunks into fixed-size
// frames. The media transport delivers whatever chunk sizes the network
// produced; the recognition session consumes exact frame multiples.
type FrameBuffer struct {
	buffer []byte
	size   int
	read   int
	write  int
	mu     sync.Mutex
}

// NewFrameBuffer creates a frame assembly buffer with the specified capacity in bytes
func NewFrameBuffer(size int) *FrameBuffer {
	return &FrameBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write appends a chunk to the buffer
// Returns the number of bytes written (may be less than len(data) if buffer is full)
func (fb *FrameBuffer) Write(data []byte) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	written := 0
	for i := 0; i < len(data); i++ {
		if (fb.write+1)%fb.size == fb.read {
			break // Buffer full
		}

		fb.buffer[fb.write] = data[i]
		fb.write = (fb.write + 1) % fb.size
		written++
	}

	return written
}

// NextFrame returns the next complete frame of frameBytes bytes, or false if
// fewer bytes than a full frame are buffered. Bytes are returned in arrival order.
func (fb *FrameBuffer) NextFrame(frameBytes int) ([]byte, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.available() < frameBytes {
		return nil, false
	}

	frame := make([]byte, frameBytes)
	for i := 0; i < frameBytes; i++ {
		frame[i] = fb.buffer[fb.read]
		fb.read = (fb.read + 1) % fb.size
	}
	return frame, true
}

// Available returns the number of bytes buffered
func (fb *FrameBuffer) Available() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.available()
}

func (fb *FrameBuffer) available() int {
	if fb.write >= fb.read {
		return fb.write - fb.read
	}
	return fb.size - fb.read + fb.write
}

// Clear discards all buffered bytes
func (fb *FrameBuffer) Clear() {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.read = 0
	fb.write = 0
}
