package render

import (
	"bytes"
	"sync"
)

const stderrTailSize = 4 * 1024

// stderrTail captures a subprocess's stderr, retaining the final few
// kilobytes for error reporting.
type stderrTail struct {
	mu   sync.Mutex
	tail bytes.Buffer
}

func newStderrTail() *stderrTail {
	return &stderrTail{}
}

func (t *stderrTail) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tail.Write(b)
	if t.tail.Len() > stderrTailSize {
		overflow := t.tail.Len() - stderrTailSize
		t.tail.Next(overflow)
	}
	return len(b), nil
}

// Tail returns the retained stderr output.
func (t *stderrTail) Tail() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tail.String()
}
