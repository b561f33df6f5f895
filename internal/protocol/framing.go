package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Reader reads framed JSON messages from a stream.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for frame-by-frame reading.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadMessage reads one frame and returns its JSON payload. io.EOF is
// returned untouched at a clean end of stream; any other failure means the
// stream can no longer be trusted and the caller should treat it as fatal.
func (r *Reader) ReadMessage() ([]byte, error) {
	length := -1

	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			if err == io.EOF && strings.TrimSpace(line) == "" && length < 0 {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("protocol: read header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if length >= 0 {
				break
			}
			// Stray blank line between frames; keep looking for headers.
			continue
		}
		if v, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil || n < 0 {
				return nil, fmt.Errorf("protocol: bad Content-Length %q", strings.TrimSpace(v))
			}
			length = n
		}
		// Other header lines are ignored.
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("protocol: read payload: %w", err)
	}
	r.discardNewline()
	return payload, nil
}

// discardNewline consumes the newline terminating a payload, if present.
func (r *Reader) discardNewline() {
	for _, want := range []byte{'\r', '\n'} {
		b, err := r.r.Peek(1)
		if err != nil || b[0] != want {
			if err == nil && want == '\r' {
				continue // bare \n terminator
			}
			return
		}
		_, _ = r.r.Discard(1)
	}
}

// Writer writes framed JSON messages to a stream. Writes are serialized so
// concurrent senders can never interleave mid-frame.
type Writer struct {
	mu sync.Mutex
	w  *bufio.Writer
}

// NewWriter wraps w for frame-by-frame writing.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteMessage frames payload and writes it atomically.
func (w *Writer) WriteMessage(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return fmt.Errorf("protocol: write header: %w", err)
	}
	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("protocol: write payload: %w", err)
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("protocol: write terminator: %w", err)
	}
	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("protocol: flush: %w", err)
	}
	return nil
}

// WriteResponse marshals and writes a synthesized response.
func (w *Writer) WriteResponse(resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("protocol: marshal response: %w", err)
	}
	return w.WriteMessage(payload)
}
