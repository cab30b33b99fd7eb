package audio

import (
	"bytes"
	"testing"
)

func TestPlaybackBuffer_DrainExactFrames(t *testing.T) {
	const frameSize = 160
	const frames = 10

	b := NewPlaybackBuffer()
	payload := make([]byte, frameSize*frames)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	b.Append(payload)

	for i := 0; i < frames; i++ {
		frame, ok := b.DrainFrame(frameSize)
		if !ok {
			t.Fatalf("drain %d: buffer reported empty", i)
		}
		if len(frame) != frameSize {
			t.Fatalf("drain %d: frame size %d, want %d", i, len(frame), frameSize)
		}
		if !bytes.Equal(frame, payload[i*frameSize:(i+1)*frameSize]) {
			t.Fatalf("drain %d: frame content mismatch", i)
		}
		if want := (frames - i - 1) * frameSize; b.Len() != want {
			t.Fatalf("drain %d: buffer length %d, want %d", i, b.Len(), want)
		}
	}
}

func TestPlaybackBuffer_PadsShortTail(t *testing.T) {
	b := NewPlaybackBuffer()
	b.Append([]byte{1, 2, 3})

	frame, ok := b.DrainFrame(8)
	if !ok {
		t.Fatal("expected ok for non-empty buffer")
	}
	want := []byte{1, 2, 3, MulawSilence, MulawSilence, MulawSilence, MulawSilence, MulawSilence}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = %v, want %v", frame, want)
	}
	if b.Len() != 0 {
		t.Errorf("buffer length %d after draining tail, want 0", b.Len())
	}
}

func TestPlaybackBuffer_EmptyYieldsSilence(t *testing.T) {
	b := NewPlaybackBuffer()
	frame, ok := b.DrainFrame(4)
	if ok {
		t.Error("expected ok=false for empty buffer")
	}
	if !bytes.Equal(frame, []byte{MulawSilence, MulawSilence, MulawSilence, MulawSilence}) {
		t.Errorf("frame = %v, want all silence", frame)
	}
}

func TestPlaybackBuffer_ClearOnBargeIn(t *testing.T) {
	b := NewPlaybackBuffer()
	b.Append(make([]byte, 64*1024))
	b.Clear()
	if b.Len() != 0 {
		t.Fatalf("buffer length %d after clear, want 0", b.Len())
	}
	if _, ok := b.DrainFrame(160); ok {
		t.Error("drain after clear should report empty")
	}
}

func TestPlaybackBuffer_AppendEmptyNoop(t *testing.T) {
	b := NewPlaybackBuffer()
	b.Append(nil)
	if b.Len() != 0 {
		t.Error("nil append should not grow buffer")
	}
}
