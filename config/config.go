// Package config loads runtime settings from a config file, AGENTRT_*
// environment variables and defaults using viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/agentrt/logging"
)

// EnvPrefix is the prefix of environment overrides (AGENTRT_LOG_LEVEL, ...).
const EnvPrefix = "AGENTRT"

// Providers lists the accepted model providers.
var Providers = []string{"mock", "openai", "anthropic"}

// Config is the complete runtime configuration.
type Config struct {
	Modules ModulesConfig `mapstructure:"modules"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Log     LogConfig     `mapstructure:"log"`
	Model   ModelConfig   `mapstructure:"model"`
	Index   IndexConfig   `mapstructure:"index"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Manager ManagerConfig `mapstructure:"manager"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ModulesConfig lists the directories scanned for agent modules.
type ModulesConfig struct {
	Paths []string `mapstructure:"paths"`
}

// BridgeConfig sizes the per-subscriber event queues.
type BridgeConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// LogConfig configures the runtime logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ModelConfig selects the language model backend.
type ModelConfig struct {
	Provider    string  `mapstructure:"provider"`
	Name        string  `mapstructure:"name"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
}

// IndexConfig configures the vector index store.
type IndexConfig struct {
	PersistPath string `mapstructure:"persist_path"`
	Embedding   string `mapstructure:"embedding"` // hash or openai
}

// SandboxConfig configures the working-directory sandbox provider.
type SandboxConfig struct {
	Root string `mapstructure:"root"`
}

// ManagerConfig tunes the agent manager.
type ManagerConfig struct {
	CancelGrace time.Duration `mapstructure:"cancel_grace"`
}

// MetricsConfig configures the Prometheus endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("modules.paths", []string{"modules"})
	v.SetDefault("bridge.capacity", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("model.provider", "mock")
	v.SetDefault("model.name", "")
	v.SetDefault("model.temperature", 0.7)
	v.SetDefault("model.max_tokens", 4096)
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("index.persist_path", ".agentrt/index")
	v.SetDefault("index.embedding", "hash")
	v.SetDefault("sandbox.root", "")
	v.SetDefault("manager.cancel_grace", 2*time.Second)
	v.SetDefault("metrics.addr", "")
}

// New returns a viper instance with defaults, env overrides and the config
// search path set up. file, when non-empty, is used instead of searching
// for agentrt.yaml.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		return v
	}
	v.SetConfigName("agentrt")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "agentrt"))
	}
	return v
}

// Load reads the configuration. A missing config file is not an error
// unless file was given explicitly.
func Load(file string) (*Config, error) {
	return FromViper(New(file), file != "")
}

// FromViper reads v into a validated Config.
func FromViper(v *viper.Viper, requireFile bool) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if requireFile || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects unknown providers, log levels and formats and
// non-positive sizes.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(Providers, c.Model.Provider) {
		errs = append(errs, fmt.Errorf("model.provider %q: must be one of %s", c.Model.Provider, strings.Join(Providers, ", ")))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q: must be text or json", c.Log.Format))
	}
	if c.Bridge.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("bridge.capacity must be positive, got %d", c.Bridge.Capacity))
	}
	if c.Model.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("model.max_tokens must be positive, got %d", c.Model.MaxTokens))
	}
	if c.Manager.CancelGrace < 0 {
		errs = append(errs, fmt.Errorf("manager.cancel_grace must not be negative"))
	}
	if c.Index.Embedding != "hash" && c.Index.Embedding != "openai" {
		errs = append(errs, fmt.Errorf("index.embedding %q: must be hash or openai", c.Index.Embedding))
	}
	if len(c.Modules.Paths) == 0 {
		errs = append(errs, errors.New("modules.paths must not be empty"))
	}
	return errors.Join(errs...)
}

// Logger builds the runtime logger described by the log section.
func (c *Config) Logger() *logging.RuntimeLogger {
	level, _ := logging.ParseLevel(c.Log.Level)
	return logging.NewSlogLogger(level, c.Log.Format, false)
}
