package runner

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
)

// maxOutputBytes caps the output tail kept for a job record.
const maxOutputBytes = 64 * 1024

// outputSink receives the combined stdout/stderr stream of a subprocess. It
// logs complete lines and keeps a bounded tail.
type outputSink struct {
	mu      sync.Mutex
	logger  *slog.Logger
	partial []byte
	tail    []byte
	lines   int
}

func newOutputSink(logger *slog.Logger) *outputSink {
	return &outputSink{logger: logger}
}

func (s *outputSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tail = append(s.tail, p...)
	if over := len(s.tail) - maxOutputBytes; over > 0 {
		s.tail = s.tail[over:]
	}

	s.partial = append(s.partial, p...)
	for {
		i := bytes.IndexByte(s.partial, '\n')
		if i < 0 {
			break
		}
		s.emit(s.partial[:i])
		s.partial = s.partial[i+1:]
	}
	// Progress bars without newlines would otherwise grow this forever.
	if len(s.partial) > maxOutputBytes {
		s.emit(s.partial)
		s.partial = nil
	}
	return len(p), nil
}

// Flush logs any trailing line without a newline.
func (s *outputSink) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.partial) > 0 {
		s.emit(s.partial)
		s.partial = nil
	}
}

func (s *outputSink) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if strings.TrimSpace(text) == "" {
		return
	}
	s.lines++
	s.logger.Debug("downloader output", "line", text)
}

func (s *outputSink) Tail() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.tail)
}

func (s *outputSink) Lines() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lines
}
