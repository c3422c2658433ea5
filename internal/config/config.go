package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/michaelbrown/parley/internal/debate"
	"github.com/michaelbrown/parley/internal/llm"
)

// ModelConfig describes one completion endpoint, in the shape the config
// file uses.
type ModelConfig struct {
	Name                string         `mapstructure:"name"`
	Model               string         `mapstructure:"model_name"`
	APIKey              string         `mapstructure:"api_key"`
	BaseURL             string         `mapstructure:"base_url"`
	MaxCompletionTokens int64          `mapstructure:"max_completion_tokens"`
	ExtraBody           map[string]any `mapstructure:"extra_body"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "json" or "sqlite"
	Dir     string `mapstructure:"dir"`     // jsonfile history directory
	DBPath  string `mapstructure:"db_path"` // sqlite database path
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LLMConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type Config struct {
	Models  []ModelConfig `mapstructure:"models"`
	Panel   debate.Roster `mapstructure:"panel"`
	Storage StorageConfig `mapstructure:"storage"`
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
}

// Load reads parley.yaml from the working directory or $HOME/.parley.
// A missing config file is fine; defaults still apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("parley")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.parley")

	home := os.Getenv("HOME")
	v.SetDefault("storage.backend", "json")
	v.SetDefault("storage.dir", filepath.Join(home, ".parley", "history"))
	v.SetDefault("storage.db_path", filepath.Join(home, ".parley", "parley.db"))
	v.SetDefault("server.port", 8080)
	v.SetDefault("llm.request_timeout", 2*time.Minute)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variables in API keys
	for i, m := range cfg.Models {
		if strings.HasPrefix(m.APIKey, "${") && strings.HasSuffix(m.APIKey, "}") {
			cfg.Models[i].APIKey = os.Getenv(m.APIKey[2 : len(m.APIKey)-1])
		}
	}

	return &cfg, nil
}

// Descriptors returns the configured models as immutable descriptors in
// configured order.
func (c *Config) Descriptors() ([]llm.ModelDescriptor, error) {
	seen := make(map[string]bool, len(c.Models))
	descs := make([]llm.ModelDescriptor, 0, len(c.Models))
	for _, m := range c.Models {
		if m.Name == "" || m.Model == "" {
			return nil, fmt.Errorf("model entries need both name and model_name")
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("duplicate model name %q", m.Name)
		}
		seen[m.Name] = true

		descs = append(descs, llm.ModelDescriptor{
			Name:                m.Name,
			Model:               m.Model,
			APIKey:              m.APIKey,
			BaseURL:             m.BaseURL,
			MaxCompletionTokens: m.MaxCompletionTokens,
			ExtraBody:           m.ExtraBody,
			RequestTimeout:      c.LLM.RequestTimeout,
		})
	}
	return descs, nil
}
