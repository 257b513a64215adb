package config

const (
	// v0 is the alpha version of the config.
	v0 = 0

	// CurrentV is the currently supported version, points to v0.
	CurrentV = v0

	defaultListen      = ":8000"
	defaultEnvironment = EnvProduction
	defaultService     = "gateway"
	defaultModel       = "deepseek-chat"
	defaultDataDir     = "data"
	defaultQueueSize   = 256
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Server: ServerConfig{
			Listen:      defaultListen,
			Environment: defaultEnvironment,
		},
		AI: AIConfig{
			Service: defaultService,
			Model:   defaultModel,
		},
		Data: DataConfig{
			Dir: defaultDataDir,
		},
		Worker: WorkerConfig{
			QueueSize: defaultQueueSize,
		},
	}
}
