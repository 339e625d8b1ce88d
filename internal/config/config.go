package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the gateway configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Auth        AuthConfig        `yaml:"auth"`
	Models      ModelsConfig      `yaml:"models"`
	Translation TranslationConfig `yaml:"translation"`
	Backend     BackendConfig     `yaml:"backend"`
}

// ServerConfig contains the HTTP listener settings
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	PathPrefix string `yaml:"path_prefix"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}

// AuthConfig restricts accepted API keys. An empty list accepts any well-formed key.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys,omitempty"`
}

// ModelsConfig selects the model resolver
type ModelsConfig struct {
	Resolver   string            `yaml:"resolver"`
	Namespace  string            `yaml:"namespace,omitempty"`
	Mapping    map[string]string `yaml:"mapping,omitempty"`
	Advertised []string          `yaml:"advertised,omitempty"`
}

// TranslationConfig contains request translation settings
type TranslationConfig struct {
	EmptyContent string `yaml:"empty_content"`
}

// BackendConfig contains configuration for the inference backend
type BackendConfig struct {
	Type           string                 `yaml:"type"`
	APIBase        string                 `yaml:"api_base,omitempty"`
	APIKey         string                 `yaml:"api_key,omitempty"`
	Model          string                 `yaml:"model,omitempty"`
	Timeout        time.Duration          `yaml:"timeout,omitempty"`
	DefaultParams  map[string]interface{} `yaml:"default_params,omitempty"`
	DisabledParams []string               `yaml:"disabled_params,omitempty"`
	SimulateStream bool                   `yaml:"simulate_stream"`
	MockContent    string                 `yaml:"mock_content,omitempty"`
	ChunkDelay     time.Duration          `yaml:"chunk_delay,omitempty"`
}

// Default returns the configuration used when no file sets a value
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:       ":8080",
			PathPrefix: "/v1",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Models: ModelsConfig{
			Resolver:  "prefix",
			Namespace: "openai",
		},
		Translation: TranslationConfig{
			EmptyContent: "drop",
		},
		Backend: BackendConfig{
			Type:    "mock",
			Timeout: 60 * time.Second,
		},
	}
}

// LoadConfig loads configuration from a YAML file, then applies a .env file
// next to the working directory and GATEWAY_* environment overrides.
// An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	// A missing .env is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by YAML decoding
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.PathPrefix != "" && !strings.HasPrefix(c.Server.PathPrefix, "/") {
		return fmt.Errorf("server.path_prefix must start with '/': %q", c.Server.PathPrefix)
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json: %q", c.Log.Format)
	}

	switch c.Models.Resolver {
	case "static":
		if len(c.Models.Mapping) == 0 {
			return errors.New("models.mapping is required for the static resolver")
		}
	case "prefix":
	default:
		return fmt.Errorf("models.resolver must be static or prefix: %q", c.Models.Resolver)
	}

	switch c.Translation.EmptyContent {
	case "reject", "drop":
	default:
		return fmt.Errorf("translation.empty_content must be reject or drop: %q", c.Translation.EmptyContent)
	}

	switch c.Backend.Type {
	case "mock":
	case "http", "openai":
		if c.Backend.APIBase == "" {
			return fmt.Errorf("backend.api_base is required for backend type %s", c.Backend.Type)
		}
	default:
		return fmt.Errorf("backend.type must be mock, http or openai: %q", c.Backend.Type)
	}
	if c.Backend.Timeout < 0 || c.Backend.ChunkDelay < 0 {
		return errors.New("backend durations must not be negative")
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("GATEWAY_ADDR", c.Server.Addr)
	c.Server.PathPrefix = getEnv("GATEWAY_PATH_PREFIX", c.Server.PathPrefix)
	c.Log.Level = getEnv("GATEWAY_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("GATEWAY_LOG_FORMAT", c.Log.Format)
	c.Log.File = getEnv("GATEWAY_LOG_FILE", c.Log.File)
	c.Models.Resolver = getEnv("GATEWAY_MODEL_RESOLVER", c.Models.Resolver)
	c.Models.Namespace = getEnv("GATEWAY_MODEL_NAMESPACE", c.Models.Namespace)
	c.Translation.EmptyContent = getEnv("GATEWAY_EMPTY_CONTENT", c.Translation.EmptyContent)
	c.Backend.Type = getEnv("GATEWAY_BACKEND_TYPE", c.Backend.Type)
	c.Backend.APIBase = getEnv("GATEWAY_BACKEND_API_BASE", c.Backend.APIBase)
	c.Backend.APIKey = getEnv("GATEWAY_BACKEND_API_KEY", c.Backend.APIKey)
	c.Backend.Model = getEnv("GATEWAY_BACKEND_MODEL", c.Backend.Model)
	c.Backend.MockContent = getEnv("GATEWAY_MOCK_CONTENT", c.Backend.MockContent)
	if keys := getEnv("GATEWAY_API_KEYS", ""); keys != "" {
		c.Auth.APIKeys = splitList(keys)
	}

	var err error
	if c.Backend.SimulateStream, err = getEnvAsBool("GATEWAY_SIMULATE_STREAM", c.Backend.SimulateStream); err != nil {
		return err
	}
	if c.Backend.Timeout, err = getEnvAsDuration("GATEWAY_BACKEND_TIMEOUT", c.Backend.Timeout); err != nil {
		return err
	}
	if c.Backend.ChunkDelay, err = getEnvAsDuration("GATEWAY_CHUNK_DELAY", c.Backend.ChunkDelay); err != nil {
		return err
	}
	if c.Log.MaxSizeMB, err = getEnvAsInt("GATEWAY_LOG_MAX_SIZE_MB", c.Log.MaxSizeMB); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := getEnv(key, "")
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value := getEnv(key, "")
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := getEnv(key, "")
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
