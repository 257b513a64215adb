package llm

import (
	"encoding/json"
	"io"

	"github.com/muuya/essence-logic/pkg/sse"
)

// Stream is a lazy, finite, single-pass sequence of decoded chunks sourced
// from a live upstream SSE response body. It is not restartable.
type Stream struct {
	reader *sse.Reader
	body   io.Closer
}

// NewStream returns a Stream decoding chunks from body. Closing the stream
// closes the body, releasing the upstream connection.
func NewStream(body io.ReadCloser) *Stream {
	return &Stream{
		reader: sse.NewReader(body),
		body:   body,
	}
}

// Next returns the next decoded chunk. Payloads that fail to parse as JSON
// are dropped, not surfaced; malformed chunks never abort the stream.
// Next returns nil, nil when the stream has ended (done sentinel or end of
// input) and an error only for a transport-level read failure.
func (s *Stream) Next() (*StreamChunk, error) {
	for {
		ev, err := s.reader.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, nil
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			continue
		}

		return &chunk, nil
	}
}

// Close releases the underlying connection. Safe to call after the stream
// is exhausted.
func (s *Stream) Close() error {
	if s.body == nil {
		return nil
	}
	return s.body.Close()
}
