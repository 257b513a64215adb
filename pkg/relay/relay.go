package relay

import (
	"io"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/muuya/essence-logic/pkg/llm"
	"github.com/muuya/essence-logic/pkg/sse"
)

// ChunkSource is a pull sequence of decoded chunks. Next returns nil, nil
// when the sequence has ended.
type ChunkSource interface {
	Next() (*llm.StreamChunk, error)
}

// Sink receives the completed exchange once a stream finishes successfully.
// Sink failures are logged by the relay, never surfaced to the caller.
type Sink interface {
	Record(userMessage, assistantMessage, clientIP string, messageCount int) error
}

// Params carries the request-side context the sink needs.
type Params struct {
	UserMessage  string
	ClientIP     string
	MessageCount int
}

// Result summarizes one relayed stream.
type Result struct {
	// Content is the full assistant text, the in-order concatenation of
	// every emitted delta.
	Content string

	// Chunks is the number of chunks consumed.
	Chunks int

	// ContentLen is the accumulated delta length in characters.
	ContentLen int

	// Err is the upstream failure converted to the error terminal frame,
	// nil on a clean stream.
	Err error

	// Persisted reports whether the exchange was handed to the sink.
	Persisted bool
}

// Relay wire-formats chunk streams for caller connections.
type Relay struct {
	sink   Sink
	logger *zap.Logger
}

// New creates a Relay recording completed exchanges to sink.
func New(sink Sink, logger *zap.Logger) *Relay {
	return &Relay{sink: sink, logger: logger}
}

// Run consumes src to completion and emits the outbound frame sequence to w.
//
// Per chunk: a non-empty first-choice delta becomes one content frame; a
// non-empty finish reason stops consumption after that chunk's content has
// been flushed. Running out of chunks with no finish reason is also normal
// termination. Exactly one terminal frame is emitted: the done frame on
// success, the error frame when src fails mid-stream. A write failure means
// the caller is gone; the relay stops reading and discards the partial
// accumulation.
//
// On success with non-zero accumulated content, the exchange is handed to
// the sink; error and disconnect paths never persist.
func (r *Relay) Run(src ChunkSource, w io.Writer, p Params) Result {
	writer := sse.NewWriter(w)

	var (
		content strings.Builder
		res     Result
	)

	for {
		chunk, err := src.Next()
		if err != nil {
			res.Err = err
			r.fail(writer, err)
			return res
		}
		if chunk == nil {
			break
		}
		res.Chunks++

		if delta := chunk.DeltaContent(); delta != "" {
			if err := writer.WriteEvent(StreamEvent{Content: delta}); err != nil {
				// Caller disconnected: stop reading upstream, discard the
				// partial response.
				r.logger.Debug("client write failed, aborting stream", zap.Error(err))
				res.Err = err
				return res
			}
			content.WriteString(delta)
			res.ContentLen += utf8.RuneCountInString(delta)
		}

		if chunk.FinishReason() != "" {
			break
		}
	}

	if err := writer.WriteEvent(StreamEvent{Done: true}); err != nil {
		r.logger.Debug("client write failed on terminal frame", zap.Error(err))
		res.Err = err
		return res
	}

	res.Content = content.String()

	// Empty responses are not recorded.
	if res.ContentLen > 0 && r.sink != nil {
		if err := r.sink.Record(p.UserMessage, res.Content, p.ClientIP, p.MessageCount); err != nil {
			r.logger.Error("recording exchange failed", zap.Error(err))
		} else {
			res.Persisted = true
		}
	}

	return res
}

// Fail emits the error terminal frame for a stream that failed before any
// chunk could be read (e.g. the upstream request itself failed).
func (r *Relay) Fail(w io.Writer, err error) {
	r.fail(sse.NewWriter(w), err)
}

func (r *Relay) fail(writer *sse.Writer, err error) {
	if werr := writer.WriteEvent(ErrorEvent{Error: err.Error(), Done: true}); werr != nil {
		r.logger.Debug("client write failed on error frame", zap.Error(werr))
	}
}
