package backend

// DefaultDeepSeekURL is the DeepSeek API base URL.
const DefaultDeepSeekURL = "https://api.deepseek.com"

// deepseek is the directly OpenAI-compatible flavor. Completions live at
// the API root and the model identifier carries the -chat suffix.
type deepseek struct {
	*client
}

func newDeepSeek(cfg Config) *deepseek {
	return &deepseek{client: newClient(
		DeepSeek,
		DefaultDeepSeekURL,
		"/chat/completions",
		map[string]string{"deepseek": "deepseek-chat"},
		cfg,
	)}
}
