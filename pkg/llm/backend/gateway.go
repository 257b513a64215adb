package backend

// DefaultGatewayURL is the AI Builders gateway base URL.
const DefaultGatewayURL = "https://space.ai-builders.com/backend"

// gateway is the AI Builders flavor. It serves completions under /v1 and
// names the DeepSeek model plainly "deepseek".
type gateway struct {
	*client
}

func newGateway(cfg Config) *gateway {
	return &gateway{client: newClient(
		Gateway,
		DefaultGatewayURL,
		"/v1/chat/completions",
		map[string]string{"deepseek-chat": "deepseek"},
		cfg,
	)}
}
