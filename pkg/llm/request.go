package llm

// Default generation parameters, matching what the upstream gateway expects
// for ordinary chat traffic.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2000
)

// ChatRequest is a chat completion request in the upstream wire shape.
// Both backend flavors accept this payload verbatim; only the URL path and
// the model alias differ between them.
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream,omitempty"`
}

// NewChatRequest builds a request with the default generation parameters.
func NewChatRequest(model string, messages []Message) *ChatRequest {
	return &ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}
