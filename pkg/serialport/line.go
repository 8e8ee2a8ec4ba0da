package serialport

import (
	"bytes"
	"context"
	"io"
	"strings"
)

// MaxLineLength bounds a buffered line. Longer runs without a newline are dropped.
const MaxLineLength = 4096

// LineReader splits a byte stream into newline-terminated lines.
//
// Unlike bufio.Scanner it tolerates readers that return (0, nil) on a read
// timeout, and it checks ctx between reads so a caller can stop it within
// one read timeout.
type LineReader struct {
	r       io.Reader
	buf     []byte
	pending []byte
}

// NewLineReader returns a LineReader reading from r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r, buf: make([]byte, 256)}
}

// ReadLine returns the next line without its trailing newline. Invalid
// UTF-8 bytes are dropped. It returns ctx.Err() once ctx is done and the
// reader's error when a read fails.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	for {
		if i := bytes.IndexByte(l.pending, '\n'); i >= 0 {
			line := strings.ToValidUTF8(string(l.pending[:i]), "")
			n := copy(l.pending, l.pending[i+1:])
			l.pending = l.pending[:n]
			return line, nil
		}
		if len(l.pending) > MaxLineLength {
			l.pending = l.pending[:0]
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := l.r.Read(l.buf)
		l.pending = append(l.pending, l.buf[:n]...)
		if err != nil {
			return "", err
		}
	}
}
