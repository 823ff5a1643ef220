package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for multichat
type Config struct {
	API       EndpointConfig `mapstructure:"api"`
	Inference EndpointConfig `mapstructure:"inference"`
	HTTP      HTTPConfig     `mapstructure:"http"`
	Chat      ChatConfig     `mapstructure:"chat"`
	Storage   StorageConfig  `mapstructure:"storage"`
	Models    ModelsConfig   `mapstructure:"models"`
	Log       LogConfig      `mapstructure:"log"`
}

// EndpointConfig holds a backend's root URL
type EndpointConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// HTTPConfig holds transport settings
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// ChatConfig holds send-cycle settings
type ChatConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// StorageConfig holds the local transcript database location
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// ModelsConfig holds the model set file location
type ModelsConfig struct {
	File string `mapstructure:"file"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// EnvPrefix prefixes every environment override, e.g. MULTICHAT_API_BASE_URL.
const EnvPrefix = "MULTICHAT"

// DefaultConfigDir returns ~/.multichat, or ./.multichat when the home
// directory cannot be determined.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".multichat"
	}
	return filepath.Join(home, ".multichat")
}

// LoadConfig loads configuration from file and environment. An empty
// configPath looks for config.yaml in the default config directory; a missing
// file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setConfigDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultConfigDir())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		LogDebug("No config file found, using defaults")
	} else {
		LogDebug("Loaded config from %s", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)
	cfg.Models.File = expandHome(cfg.Models.File)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setConfigDefaults(v *viper.Viper) {
	dir := DefaultConfigDir()

	v.SetDefault("api.base_url", DefaultAPIBaseURL)
	v.SetDefault("inference.base_url", DefaultInferenceBaseURL)
	v.SetDefault("http.timeout", DefaultTimeout)
	v.SetDefault("chat.settle_delay", DefaultSettleDelay)
	v.SetDefault("storage.path", filepath.Join(dir, "multichat.db"))
	v.SetDefault("models.file", filepath.Join(dir, "models.yaml"))
	v.SetDefault("log.level", "info")
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Inference.BaseURL == "" {
		return fmt.Errorf("inference.base_url is required")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout)
	}
	if c.Chat.SettleDelay < 0 {
		return fmt.Errorf("chat.settle_delay must not be negative, got %s", c.Chat.SettleDelay)
	}
	return nil
}

// ClientOptions maps the config onto a Client.
func (c *Config) ClientOptions() ClientOptions {
	return ClientOptions{
		APIBaseURL:       c.API.BaseURL,
		InferenceBaseURL: c.Inference.BaseURL,
		Timeout:          c.HTTP.Timeout,
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
