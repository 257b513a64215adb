package sse

import (
	"bytes"
	"encoding/json"
	"io"
)

// Writer formats outbound SSE frames for a client connection. Each frame is
// a single `data: <json>\n\n` event; the JSON payload keeps non-ASCII text
// verbatim (no HTML escaping), so streamed model output round-trips exactly.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer emitting frames to w.
// The w writer typically backs an io.Pipe connected to the downstream HTTP
// response.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEvent JSON-encodes v and writes it as one SSE frame. A write error
// means the client connection is gone; the caller should stop emitting.
func (w *Writer) WriteEvent(v any) error {
	var buf bytes.Buffer
	buf.WriteString("data: ")

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}

	// Encode appends a single trailing newline; the blank separator line
	// completes the frame.
	buf.WriteString("\n")

	_, err := w.w.Write(buf.Bytes())
	return err
}
