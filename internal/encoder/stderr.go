package encoder

import (
	"bytes"
	"sync"
)

const stderrTailSize = 4 * 1024

// prefixLogger captures a subprocess's stderr, retaining the final few
// kilobytes for error reporting.
type prefixLogger struct {
	name string
	mu   sync.Mutex
	tail bytes.Buffer
}

func newPrefixLogger(name string) *prefixLogger {
	return &prefixLogger{name: name}
}

func (p *prefixLogger) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail.Write(b)
	if p.tail.Len() > stderrTailSize {
		overflow := p.tail.Len() - stderrTailSize
		p.tail.Next(overflow)
	}
	return len(b), nil
}

// Tail returns the retained stderr output.
func (p *prefixLogger) Tail() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tail.String()
}
