package config

// Environment names. Development relaxes endpoint gating and enables config
// hot-reload; anything else is treated as production.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the persistent service configuration stored as config.toml.
// The TOML layout uses sections for logical grouping; mapstructure tags keep
// viper's dotted keys aligned with the file layout.
type Config struct {
	Version int          `toml:"version" mapstructure:"version"`
	Server  ServerConfig `toml:"server" mapstructure:"server"`
	AI      AIConfig     `toml:"ai" mapstructure:"ai"`
	Data    DataConfig   `toml:"data" mapstructure:"data"`
	Worker  WorkerConfig `toml:"worker" mapstructure:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Listen      string `toml:"listen,omitempty" mapstructure:"listen"`
	Environment string `toml:"environment,omitempty" mapstructure:"environment"`

	// AdminToken gates the chat history endpoint in production. Empty in
	// production means the endpoint is unavailable.
	AdminToken string `toml:"admin_token,omitempty" mapstructure:"admin_token"`
}

// AIConfig holds upstream model service settings.
type AIConfig struct {
	// Service selects the upstream flavor: "gateway" or "deepseek".
	Service string `toml:"service,omitempty" mapstructure:"service"`

	// Model is the default model requests fall back to.
	Model string `toml:"model,omitempty" mapstructure:"model"`

	// BaseURL overrides the service's built-in base URL when set.
	BaseURL string `toml:"base_url,omitempty" mapstructure:"base_url"`

	GatewayToken  string `toml:"gateway_token,omitempty" mapstructure:"gateway_token"`
	DeepSeekToken string `toml:"deepseek_token,omitempty" mapstructure:"deepseek_token"`
}

// DataConfig holds persistence settings.
type DataConfig struct {
	// Dir is the directory holding the JSON record files.
	Dir string `toml:"dir,omitempty" mapstructure:"dir"`
}

// WorkerConfig holds async persistence pool settings.
type WorkerConfig struct {
	QueueSize int `toml:"queue_size,omitempty" mapstructure:"queue_size"`
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// ActiveToken returns the credential for the configured service. The gateway
// token doubles as the fallback for unrecognized service names so the
// backend factory reports the unknown service, not a missing credential.
func (c *Config) ActiveToken() string {
	if c.AI.Service == "deepseek" {
		return c.AI.DeepSeekToken
	}
	return c.AI.GatewayToken
}
