package llm

// ChatResponse is a complete (non-streamed) chat completion in the
// OpenAI-compatible wire shape shared by both backends.
type ChatResponse struct {
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

// Choice is one completion alternative. The service only ever reads the
// first choice.
type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

// Text returns the assistant content of the first choice, or "" when the
// response carries no choices.
func (r *ChatResponse) Text() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}
