package bridge

import "sync"

// DefaultBufferFrames bounds how much caller audio survives a session
// outage. At one telephony packet per 20ms this is about a second.
const DefaultBufferFrames = 50

// frameBuffer is a bounded FIFO of audio frames. Overflow drops the
// oldest frame: during an outage recent speech is worth more than the
// start of the backlog.
type frameBuffer struct {
	mu     sync.Mutex
	frames [][]byte
	cap    int
}

func newFrameBuffer(capacity int) *frameBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferFrames
	}
	return &frameBuffer{cap: capacity}
}

func (b *frameBuffer) push(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.frames) == b.cap {
		b.frames = b.frames[1:]
	}
	b.frames = append(b.frames, frame)
}

// drain returns every buffered frame in arrival order and empties the
// buffer.
func (b *frameBuffer) drain() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.frames
	b.frames = nil
	return out
}

func (b *frameBuffer) discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = nil
}

func (b *frameBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}
