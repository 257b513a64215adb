package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// legacyEnv maps environment variable names from earlier deployments to
// their dotted config keys. They sit below ESSENCE_-prefixed variables in
// precedence but above the config file.
var legacyEnv = map[string]string{
	"AI_SERVICE":       "ai.service",
	"AI_BUILDER_TOKEN": "ai.gateway_token",
	"DEEPSEEK_API_KEY": "ai.deepseek_token",
	"ADMIN_TOKEN":      "server.admin_token",
	"ENVIRONMENT":      "server.environment",
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads config.toml from configPath
// (a file path, or a directory searched for config.toml; empty means the
// current directory), and binds environment variables.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (ESSENCE_SERVER_LISTEN, ESSENCE_AI_SERVICE, ...)
//  3. Legacy environment variables (AI_BUILDER_TOKEN, ADMIN_TOKEN, PORT, ...)
//  4. config.toml file values
//  5. Defaults from NewDefaultConfig()
func InitViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	switch {
	case configPath == "":
		v.AddConfigPath(".")
	case isDir(configPath):
		v.AddConfigPath(configPath)
	default:
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, defaults will apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("ESSENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyLegacyEnv(v)

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of
// truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.environment", d.Server.Environment)
	v.SetDefault("server.admin_token", d.Server.AdminToken)

	v.SetDefault("ai.service", d.AI.Service)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.gateway_token", d.AI.GatewayToken)
	v.SetDefault("ai.deepseek_token", d.AI.DeepSeekToken)

	v.SetDefault("data.dir", d.Data.Dir)

	v.SetDefault("worker.queue_size", d.Worker.QueueSize)
}

// configKeys lists every dotted key so each one gets an explicit env
// binding; Unmarshal only sees environment values for bound keys.
var configKeys = []string{
	"version",
	"server.listen",
	"server.environment",
	"server.admin_token",
	"ai.service",
	"ai.model",
	"ai.base_url",
	"ai.gateway_token",
	"ai.deepseek_token",
	"data.dir",
	"worker.queue_size",
}

// applyLegacyEnv binds each dotted key to its ESSENCE_-prefixed environment
// variable, plus the legacy name where one exists. BindEnv checks names in
// order, so the prefixed variable wins when both are set.
func applyLegacyEnv(v *viper.Viper) {
	legacyByKey := make(map[string]string, len(legacyEnv))
	for name, key := range legacyEnv {
		legacyByKey[key] = name
	}

	for _, key := range configKeys {
		prefixed := "ESSENCE_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		names := []string{key, prefixed}
		if legacy, ok := legacyByKey[key]; ok {
			names = append(names, legacy)
		}
		_ = v.BindEnv(names...)
	}

	// PORT carries just the port number in hosting environments and needs
	// the leading colon added, which a plain binding cannot express.
	if port, ok := os.LookupEnv("PORT"); ok && port != "" {
		if _, explicit := os.LookupEnv("ESSENCE_SERVER_LISTEN"); !explicit {
			v.Set("server.listen", ":"+port)
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
