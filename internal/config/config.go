package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models solvermarket.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret    string `yaml:"jwt_secret"`
		TokenTTLMins int    `yaml:"token_ttl_minutes"`
	} `yaml:"auth"`
	Uploads struct {
		Dir               string   `yaml:"dir"`
		MaxSizeMB         int64    `yaml:"max_size_mb"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"uploads"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig describes one event relay target.
type WebhookConfig struct {
	Name           string   `yaml:"name"`
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate with sm config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if c.Server.BasePath == "" {
		return fmt.Errorf("config.server.base_path is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("config.auth.jwt_secret is required")
	}
	if c.Auth.TokenTTLMins <= 0 {
		return fmt.Errorf("config.auth.token_ttl_minutes must be positive")
	}
	if c.Uploads.MaxSizeMB <= 0 {
		return fmt.Errorf("config.uploads.max_size_mb must be positive")
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		return fmt.Errorf("config.uploads.allowed_extensions is required")
	}
	for _, ext := range c.Uploads.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("upload extension %q must start with a dot", ext)
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "solvermarket.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8470
  base_path: /v1

auth:
  jwt_secret: change-me
  token_ttl_minutes: 1440

uploads:
  dir: .solvermarket/uploads
  max_size_mb: 50
  allowed_extensions: [.zip]

webhooks: []
`
