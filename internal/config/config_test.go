package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create a temporary test config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.yaml")

	testConfig := `server:
  addr: ":9090"
  path_prefix: "/openai/v1"
log:
  level: debug
  format: json
auth:
  api_keys:
    - "sk-proj-abcdefghijklmnopqrstuvwxyz0123456789ABCD"
models:
  resolver: static
  mapping:
    gpt-4: cohere.command-r-plus
    gpt-4o-mini: meta.llama-3.1-70b-instruct
translation:
  empty_content: drop
backend:
  type: http
  api_base: "http://localhost:8001/chat"
  timeout: 30s
  simulate_stream: true
  chunk_delay: 20ms
  default_params:
    temperature: 0.7
    maxTokens: 1000
  disabled_params:
    - "presencePenalty"
    - "frequencyPenalty"
`

	err := os.WriteFile(configPath, []byte(testConfig), 0644)
	require.NoError(t, err)

	// Test successful config loading
	cfg, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "/openai/v1", cfg.Server.PathPrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Len(t, cfg.Auth.APIKeys, 1)

	assert.Equal(t, "static", cfg.Models.Resolver)
	assert.Equal(t, "cohere.command-r-plus", cfg.Models.Mapping["gpt-4"])
	assert.Equal(t, "drop", cfg.Translation.EmptyContent)

	// Verify backend config
	assert.Equal(t, "http", cfg.Backend.Type)
	assert.Equal(t, "http://localhost:8001/chat", cfg.Backend.APIBase)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 20*time.Millisecond, cfg.Backend.ChunkDelay)
	assert.True(t, cfg.Backend.SimulateStream)
	assert.Equal(t, 0.7, cfg.Backend.DefaultParams["temperature"], "temperature param mismatch")
	assert.Equal(t, 1000, cfg.Backend.DefaultParams["maxTokens"], "maxTokens param mismatch")
	assert.Contains(t, cfg.Backend.DisabledParams, "presencePenalty")

	// Test error cases
	t.Run("NonexistentFile", func(t *testing.T) {
		_, err := LoadConfig("nonexistent.yaml")
		assert.Error(t, err)
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		invalidPath := filepath.Join(tmpDir, "invalid.yaml")
		err := os.WriteFile(invalidPath, []byte("invalid: yaml: {content"), 0644)
		require.NoError(t, err)

		_, err = LoadConfig(invalidPath)
		assert.Error(t, err)
	})

	t.Run("EmptyFile", func(t *testing.T) {
		emptyPath := filepath.Join(tmpDir, "empty.yaml")
		err := os.WriteFile(emptyPath, []byte{}, 0644)
		require.NoError(t, err)

		cfg, err := LoadConfig(emptyPath)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_ADDR", ":7070")
	t.Setenv("GATEWAY_BACKEND_TYPE", "openai")
	t.Setenv("GATEWAY_BACKEND_API_BASE", "http://vllm:8000/v1")
	t.Setenv("GATEWAY_SIMULATE_STREAM", "true")
	t.Setenv("GATEWAY_CHUNK_DELAY", "5ms")
	t.Setenv("GATEWAY_API_KEYS", "sk-a, sk-b,,")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.Backend.Type)
	assert.Equal(t, "http://vllm:8000/v1", cfg.Backend.APIBase)
	assert.True(t, cfg.Backend.SimulateStream)
	assert.Equal(t, 5*time.Millisecond, cfg.Backend.ChunkDelay)
	assert.Equal(t, []string{"sk-a", "sk-b"}, cfg.Auth.APIKeys)

	t.Run("malformed value", func(t *testing.T) {
		t.Setenv("GATEWAY_SIMULATE_STREAM", "sometimes")
		_, err := LoadConfig("")
		assert.ErrorContains(t, err, "GATEWAY_SIMULATE_STREAM")
	})
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"missing addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"relative prefix", func(c *Config) { c.Server.PathPrefix = "v1" }, "path_prefix"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"static without mapping", func(c *Config) { c.Models.Resolver = "static" }, "models.mapping"},
		{"unknown resolver", func(c *Config) { c.Models.Resolver = "regex" }, "models.resolver"},
		{"empty content policy", func(c *Config) { c.Translation.EmptyContent = "ignore" }, "empty_content"},
		{"http without api base", func(c *Config) { c.Backend.Type = "http" }, "api_base"},
		{"unknown backend", func(c *Config) { c.Backend.Type = "grpc" }, "backend.type"},
		{"negative delay", func(c *Config) { c.Backend.ChunkDelay = -time.Second }, "durations"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)

			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
