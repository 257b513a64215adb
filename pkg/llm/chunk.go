package llm

// StreamChunk is one decoded JSON unit from an upstream SSE stream. Chunks
// are transient: they exist only while the stream is being relayed and are
// never persisted.
type StreamChunk struct {
	Model   string        `json:"model,omitempty"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice carries the incremental delta for one completion alternative.
type ChunkChoice struct {
	Delta        ChunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// ChunkDelta is the incremental message fragment within a chunk.
type ChunkDelta struct {
	Content string `json:"content,omitempty"`
}

// DeltaContent returns the first choice's incremental text, or "" for a
// chunk shaped unexpectedly. A missing delta is not an error.
func (c *StreamChunk) DeltaContent() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}

// FinishReason returns the first choice's finish reason, or "" when the
// chunk is not terminal.
func (c *StreamChunk) FinishReason() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].FinishReason
}
