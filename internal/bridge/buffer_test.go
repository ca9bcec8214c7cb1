package bridge

import (
	"fmt"
	"testing"
)

func TestFrameBufferDropsOldestOnOverflow(t *testing.T) {
	b := newFrameBuffer(50)
	for i := 0; i < 60; i++ {
		b.push([]byte(fmt.Sprintf("frame-%02d", i)))
	}
	if b.len() != 50 {
		t.Fatalf("len = %d, want 50", b.len())
	}

	frames := b.drain()
	if len(frames) != 50 {
		t.Fatalf("drained %d frames, want 50", len(frames))
	}
	if string(frames[0]) != "frame-10" {
		t.Fatalf("oldest surviving frame = %s, want frame-10", frames[0])
	}
	if string(frames[49]) != "frame-59" {
		t.Fatalf("newest frame = %s, want frame-59", frames[49])
	}
	if b.len() != 0 {
		t.Fatalf("len after drain = %d, want 0", b.len())
	}
}

func TestFrameBufferPreservesOrder(t *testing.T) {
	b := newFrameBuffer(10)
	for i := 0; i < 5; i++ {
		b.push([]byte{byte(i)})
	}
	for i, f := range b.drain() {
		if f[0] != byte(i) {
			t.Fatalf("frame %d = %v", i, f)
		}
	}
}

func TestFrameBufferDiscard(t *testing.T) {
	b := newFrameBuffer(10)
	b.push([]byte{1})
	b.push([]byte{2})
	b.discard()
	if b.len() != 0 || len(b.drain()) != 0 {
		t.Fatalf("buffer not empty after discard")
	}
}

func TestFrameBufferDefaultCapacity(t *testing.T) {
	b := newFrameBuffer(0)
	if b.cap != DefaultBufferFrames {
		t.Fatalf("cap = %d, want %d", b.cap, DefaultBufferFrames)
	}
}
