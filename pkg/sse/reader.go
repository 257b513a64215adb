package sse

import (
	"bufio"
	"io"
	"strings"
)

// Reader reads `data:` payloads from a source io.Reader carrying an SSE
// stream. It is a single-pass pull decoder: incoming bytes are reassembled
// into lines regardless of how the transport chunks them, lines without the
// data prefix (blank keep-alives, comments, other SSE fields) are skipped,
// and the "[DONE]" sentinel ends the sequence without error.
type Reader struct {
	scanner *bufio.Scanner
	done    bool
}

// NewReader returns a Reader decoding payloads from src.
// The src reader typically wraps a live upstream HTTP response body.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{scanner: scanner}
}

// Next returns the next data payload from the stream. It blocks until a
// complete line is available from the source.
// Next returns nil, nil when the source is exhausted or the done sentinel
// has been seen; no further lines are read after the sentinel.
func (r *Reader) Next() (*Event, error) {
	if r.done {
		return nil, nil
	}

	for r.scanner.Scan() {
		line := r.scanner.Text()

		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// Blank keep-alive lines, ": comment" lines, and non-data SSE
			// fields carry no chunk payload.
			continue
		}
		// Per the SSE spec a single leading space after the colon is
		// optional and stripped when present.
		payload = strings.TrimPrefix(payload, " ")

		if strings.TrimSpace(payload) == DoneSentinel {
			r.done = true
			return nil, nil
		}

		return &Event{Data: payload}, nil
	}

	r.done = true
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	return nil, nil
}
