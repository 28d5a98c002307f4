// Package config loads gateway configuration from a YAML file and
// environment variables, with environment taking precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full gateway configuration.
type Config struct {
	// Provider API keys. A model is only available when its
	// provider's key is set.
	AnthropicAPIKey   string
	OpenAIAPIKey      string
	GoogleAPIKey      string
	GroqAPIKey        string
	CerebrasAPIKey    string
	HuggingFaceAPIKey string

	Server  ServerConfig
	Safety  SafetyConfig
	Storage StorageConfig
	Log     LogConfig

	// CatalogPath optionally overrides the built-in model catalog.
	CatalogPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// SafetyConfig holds safety gate settings.
type SafetyConfig struct {
	Enabled    bool
	FailClosed bool
	Endpoint   string
	Model      string
	Timeout    time.Duration
}

// StorageConfig holds artifact storage settings.
type StorageConfig struct {
	Root    string
	BaseURL string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration. An optional config file path may be
// given; otherwise promptgate.yaml is looked up in the working
// directory. Environment variables use the PROMPTGATE_ prefix with
// underscores (PROMPTGATE_SERVER_ADDR), except the provider API keys
// which keep their conventional names.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("safety.enabled", true)
	v.SetDefault("safety.fail_closed", false)
	v.SetDefault("safety.timeout", "5s")
	v.SetDefault("storage.root", "data/images")
	v.SetDefault("storage.base_url", "http://localhost:8080/images")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("promptgate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PROMPTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// API keys come straight from the environment.
	for _, key := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY",
		"GROQ_API_KEY", "CEREBRAS_API_KEY", "HUGGINGFACE_API_KEY",
	} {
		_ = v.BindEnv(strings.ToLower(key), key)
	}

	cfg := &Config{
		AnthropicAPIKey:   v.GetString("anthropic_api_key"),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		GoogleAPIKey:      v.GetString("google_api_key"),
		GroqAPIKey:        v.GetString("groq_api_key"),
		CerebrasAPIKey:    v.GetString("cerebras_api_key"),
		HuggingFaceAPIKey: v.GetString("huggingface_api_key"),
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Safety: SafetyConfig{
			Enabled:    v.GetBool("safety.enabled"),
			FailClosed: v.GetBool("safety.fail_closed"),
			Endpoint:   v.GetString("safety.endpoint"),
			Model:      v.GetString("safety.model"),
			Timeout:    v.GetDuration("safety.timeout"),
		},
		Storage: StorageConfig{
			Root:    v.GetString("storage.root"),
			BaseURL: v.GetString("storage.base_url"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		CatalogPath: v.GetString("catalog_path"),
	}
	return cfg, nil
}

// HasProvider reports whether a provider's API key is configured.
func (c *Config) HasProvider(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "groq":
		return c.GroqAPIKey != ""
	case "cerebras":
		return c.CerebrasAPIKey != ""
	case "huggingface":
		return c.HuggingFaceAPIKey != ""
	}
	return false
}

// Providers lists the configured provider names.
func (c *Config) Providers() []string {
	var out []string
	for _, name := range []string{"anthropic", "openai", "google", "groq", "cerebras", "huggingface"} {
		if c.HasProvider(name) {
			out = append(out, name)
		}
	}
	return out
}
