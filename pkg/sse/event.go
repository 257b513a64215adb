// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// decoder and frame writer for the essence-logic chat relay. The Reader
// parses `data:` payloads from an upstream LLM provider stream; the Writer
// formats outbound frames for the downstream client connection.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// DoneSentinel is the payload upstream providers send as the final data
// line of a completed stream.
const DoneSentinel = "[DONE]"

// Event represents a single `data:` payload from the upstream byte stream.
type Event struct {
	// Data is the payload with the "data:" prefix and its optional leading
	// space stripped.
	Data string
}
