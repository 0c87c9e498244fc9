package encryptor

import (
	"bytes"
	"sync"

	"github.com/rs/zerolog"
)

// maxLine splits output that never ends a line.
const maxLine = 1024 * 1024

// lineWriter logs every complete line written to it at a fixed level.
type lineWriter struct {
	mu     sync.Mutex
	logger zerolog.Logger
	level  zerolog.Level
	buf    []byte
}

func newLineWriter(logger zerolog.Logger, level zerolog.Level) *lineWriter {
	return &lineWriter{logger: logger, level: level}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) >= maxLine {
		w.emit(w.buf)
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

// Flush logs a trailing line that had no newline.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(line []byte) {
	w.logger.WithLevel(w.level).Msg(string(bytes.TrimSuffix(line, []byte("\r"))))
}
