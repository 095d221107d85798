package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is read from a YAML file under the user's home directory.
// All fields are optional; defaults are applied by the accessor methods.
//
// Example (~/.easybot/config.yaml):
//
//	server:
//	  host: 127.0.0.1
//	  port: 8090
//	database:
//	  dsn: /var/lib/easybot/easybot.db
//	model:
//	  provider: google
//	  model: gemini-2.5-flash
//	storage:
//	  root: /var/lib/easybot/documents
//
// Notes:
//   - If the config file does not exist, Load returns defaults without error.
//   - If the config file exists but cannot be parsed, Load returns an error.
//   - Secrets (API key, DSN) can be overridden via environment variables.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Model      ModelConfig      `yaml:"model"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Storage    StorageConfig    `yaml:"storage"`
	Clustering ClusteringConfig `yaml:"clustering"`
}

type ServerConfig struct {
	Host *string `yaml:"host"`
	Port *int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN *string `yaml:"dsn"`
}

// ModelConfig selects the chat completion provider.
// Provider is one of: google, openai, anthropic, ollama, custom.
type ModelConfig struct {
	Provider       *string `yaml:"provider"`
	APIKey         *string `yaml:"api_key"`
	BaseURL        *string `yaml:"base_url"`
	Model          *string `yaml:"model"`
	TimeoutSeconds *int    `yaml:"timeout_seconds"`
}

// EmbeddingConfig selects the embedding provider used by the
// deterministic cluster matcher. Only consulted when
// clustering.matcher is "embedding".
type EmbeddingConfig struct {
	APIKey  *string `yaml:"api_key"`
	BaseURL *string `yaml:"base_url"`
	Model   *string `yaml:"model"`
}

type StorageConfig struct {
	Root *string `yaml:"root"`
}

// ClusteringConfig selects the matcher used when merging new question
// groups into existing clusters: "llm" (default) or "embedding".
type ClusteringConfig struct {
	Matcher *string `yaml:"matcher"`
}

const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8090
	DefaultProvider       = "google"
	DefaultModel          = "gemini-2.5-flash"
	DefaultTimeoutSeconds = 60
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultMatcher        = "llm"
)

// DefaultPaths returns the config dir and config file path.
func DefaultPaths() (configDir string, configFile string, err error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", "", fmt.Errorf("get user home dir: %w", err)
	}
	configDir = filepath.Join(home, ".easybot")
	configFile = filepath.Join(configDir, "config.yaml")
	return configDir, configFile, nil
}

// Load reads ~/.easybot/config.yaml.
// If the file doesn't exist, it returns a default config and nil error.
func Load() (*AppConfig, string, error) {
	_, configFile, err := DefaultPaths()
	if err != nil {
		return nil, "", err
	}

	cfg := &AppConfig{}

	b, err := os.ReadFile(configFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, configFile, nil
		}
		return nil, "", fmt.Errorf("read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, "", fmt.Errorf("parse yaml config %s: %w", configFile, err)
	}

	// Validate
	host := cfg.Host()
	if strings.TrimSpace(host) == "" {
		return nil, "", fmt.Errorf("invalid server.host (empty) in %s", configFile)
	}

	port := cfg.Port()
	if port < 1 || port > 65535 {
		return nil, "", fmt.Errorf("invalid server.port %d in %s", port, configFile)
	}

	switch cfg.ClusterMatcher() {
	case "llm", "embedding":
	default:
		return nil, "", fmt.Errorf("invalid clustering.matcher %q in %s", cfg.ClusterMatcher(), configFile)
	}

	return cfg, configFile, nil
}

// EnsureDefaultConfig writes a default config file if it doesn't already exist.
// It is safe to call on startup.
func EnsureDefaultConfig() (string, error) {
	configDir, configFile, err := DefaultPaths()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(configFile); err == nil {
		return configFile, nil
	}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir %s: %w", configDir, err)
	}

	defaultCfg := AppConfig{
		Server: ServerConfig{Host: ptr(DefaultHost), Port: ptr(DefaultPort)},
		Model:  ModelConfig{Provider: ptr(DefaultProvider), Model: ptr(DefaultModel)},
	}
	b, err := yaml.Marshal(&defaultCfg)
	if err != nil {
		return "", fmt.Errorf("marshal default config: %w", err)
	}

	// Write with restrictive permissions; the file may hold API keys.
	if err := os.WriteFile(configFile, b, 0o600); err != nil {
		return "", fmt.Errorf("write default config file %s: %w", configFile, err)
	}

	return configFile, nil
}

func (c *AppConfig) Host() string {
	if c == nil || c.Server.Host == nil {
		return DefaultHost
	}
	v := strings.TrimSpace(*c.Server.Host)
	if v == "" {
		return DefaultHost
	}
	return v
}

func (c *AppConfig) Port() int {
	if v := strings.TrimSpace(os.Getenv("EASYBOT_PORT")); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 && p <= 65535 {
			return p
		}
	}
	if c == nil || c.Server.Port == nil {
		return DefaultPort
	}
	return *c.Server.Port
}

// DatabaseDSN returns the sqlite DSN. Defaults to easybot.db under the
// config directory.
func (c *AppConfig) DatabaseDSN() string {
	if v := strings.TrimSpace(os.Getenv("EASYBOT_DB_DSN")); v != "" {
		return v
	}
	if c != nil && c.Database.DSN != nil && strings.TrimSpace(*c.Database.DSN) != "" {
		return strings.TrimSpace(*c.Database.DSN)
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "easybot.db"
	}
	return filepath.Join(configDir, "easybot.db")
}

func (c *AppConfig) ModelProvider() string {
	if c == nil || c.Model.Provider == nil || strings.TrimSpace(*c.Model.Provider) == "" {
		return DefaultProvider
	}
	return strings.TrimSpace(*c.Model.Provider)
}

func (c *AppConfig) ModelAPIKey() string {
	if v := strings.TrimSpace(os.Getenv("EASYBOT_MODEL_API_KEY")); v != "" {
		return v
	}
	if c == nil || c.Model.APIKey == nil {
		return ""
	}
	return strings.TrimSpace(*c.Model.APIKey)
}

func (c *AppConfig) ModelBaseURL() string {
	if c == nil || c.Model.BaseURL == nil {
		return ""
	}
	return strings.TrimSpace(*c.Model.BaseURL)
}

func (c *AppConfig) ModelName() string {
	if c == nil || c.Model.Model == nil || strings.TrimSpace(*c.Model.Model) == "" {
		return DefaultModel
	}
	return strings.TrimSpace(*c.Model.Model)
}

func (c *AppConfig) ModelTimeoutSeconds() int {
	if c == nil || c.Model.TimeoutSeconds == nil || *c.Model.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds
	}
	return *c.Model.TimeoutSeconds
}

func (c *AppConfig) EmbeddingAPIKey() string {
	if c == nil || c.Embedding.APIKey == nil {
		return ""
	}
	return strings.TrimSpace(*c.Embedding.APIKey)
}

func (c *AppConfig) EmbeddingBaseURL() string {
	if c == nil || c.Embedding.BaseURL == nil {
		return ""
	}
	return strings.TrimSpace(*c.Embedding.BaseURL)
}

func (c *AppConfig) EmbeddingModel() string {
	if c == nil || c.Embedding.Model == nil || strings.TrimSpace(*c.Embedding.Model) == "" {
		return DefaultEmbeddingModel
	}
	return strings.TrimSpace(*c.Embedding.Model)
}

// StorageRoot returns the local blob storage root. Defaults to
// documents/ under the config directory.
func (c *AppConfig) StorageRoot() string {
	if v := strings.TrimSpace(os.Getenv("EASYBOT_STORAGE_ROOT")); v != "" {
		return v
	}
	if c != nil && c.Storage.Root != nil && strings.TrimSpace(*c.Storage.Root) != "" {
		return strings.TrimSpace(*c.Storage.Root)
	}
	configDir, _, err := DefaultPaths()
	if err != nil {
		return "documents"
	}
	return filepath.Join(configDir, "documents")
}

func (c *AppConfig) ClusterMatcher() string {
	if c == nil || c.Clustering.Matcher == nil || strings.TrimSpace(*c.Clustering.Matcher) == "" {
		return DefaultMatcher
	}
	return strings.TrimSpace(*c.Clustering.Matcher)
}

func ptr[T any](v T) *T { return &v }
