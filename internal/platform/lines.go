package platform

import (
	"strings"
	"sync"
)

// maxLineLength caps a single buffered line; longer runs are emitted in
// untrimmed pieces of this size
const maxLineLength = 64 * 1024

// lineWriter splits written bytes on CR or LF and hands every non-empty line
// to fn. Writers sharing mu never interleave their callbacks.
type lineWriter struct {
	mu  *sync.Mutex
	buf []byte
	fn  func(string)
}

func newLineWriter(mu *sync.Mutex, fn func(string)) *lineWriter {
	return &lineWriter{mu: mu, fn: fn}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range p {
		if b == '\n' || b == '\r' {
			w.flushLocked()
			continue
		}
		w.buf = append(w.buf, b)
		if len(w.buf) >= maxLineLength {
			// emitted verbatim so that consumers can rejoin the pieces
			w.fn(string(w.buf))
			w.buf = w.buf[:0]
		}
	}
	return len(p), nil
}

// Flush emits a trailing unterminated line
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
}

func (w *lineWriter) flushLocked() {
	if len(w.buf) == 0 {
		return
	}
	s := strings.TrimRight(string(w.buf), " \t")
	w.buf = w.buf[:0]
	if s != "" {
		w.fn(s)
	}
}

// tailBuffer keeps the last limit bytes of added lines
type tailBuffer struct {
	limit int
	lines []string
	size  int
}

func (t *tailBuffer) add(line string) {
	t.lines = append(t.lines, line)
	t.size += len(line) + 1
	for t.size > t.limit && len(t.lines) > 1 {
		t.size -= len(t.lines[0]) + 1
		t.lines = t.lines[1:]
	}
}

func (t *tailBuffer) String() string {
	return strings.Join(t.lines, "\n")
}
