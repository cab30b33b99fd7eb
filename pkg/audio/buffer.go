package audio

import "sync"

// PlaybackBuffer accumulates synthesized mu-law audio for one call and is
// drained in fixed-size frames by the pacing loop. It grows without bound
// between drains and is emptied wholesale on barge-in. Never shared across
// calls.
type PlaybackBuffer struct {
	mu   sync.Mutex
	data []byte
}

// NewPlaybackBuffer creates an empty playback buffer.
func NewPlaybackBuffer() *PlaybackBuffer {
	return &PlaybackBuffer{data: make([]byte, 0, 4096)}
}

// Append adds synthesized audio to the tail of the buffer.
func (b *PlaybackBuffer) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, data...)
}

// DrainFrame removes and returns exactly frameSize bytes. A short buffer is
// padded with mu-law silence so the returned frame is always full-size.
// ok is false when the buffer was completely empty and the frame is pure
// silence.
func (b *PlaybackBuffer) DrainFrame(frameSize int) (frame []byte, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) == 0 {
		return SilenceFrame(frameSize), false
	}

	n := frameSize
	if n > len(b.data) {
		n = len(b.data)
	}
	frame = make([]byte, frameSize)
	copy(frame, b.data[:n])
	for i := n; i < frameSize; i++ {
		frame[i] = MulawSilence
	}
	b.data = b.data[n:]
	return frame, true
}

// Len returns the number of buffered bytes.
func (b *PlaybackBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Clear empties the buffer. Called on barge-in and when a new agent response
// begins.
func (b *PlaybackBuffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
}
