// Package relay reassembles an upstream chunk stream into caller-facing SSE
// frames. It consumes decoded chunks in arrival order, emits one frame per
// content delta, accumulates the full response text for persistence, and
// guarantees the outbound stream always ends with exactly one terminal
// frame, whatever fails underneath it.
package relay

// StreamEvent is one caller-facing frame: a content delta, or the normal
// terminal frame when Done is true and Content is empty.
type StreamEvent struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// ErrorEvent is the error-shaped terminal frame. It replaces the normal
// terminal frame; a stream never carries both.
type ErrorEvent struct {
	Error string `json:"error"`
	Done  bool   `json:"done"`
}
