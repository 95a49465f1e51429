package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gpt-4o", cfg.Backend.Model)
	assert.Equal(t, 1024, cfg.Image.MaxDimension)
	assert.Equal(t, 70, cfg.Image.JPEGQuality)
	assert.Equal(t, 4, cfg.Detection.Passes)
	assert.Equal(t, time.Second, cfg.Detection.PassDelay)
}

func TestLoadFromFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  type: ollama
  model: llava:13b
detection:
  passes: 2
  pass_delay: 250ms
grid:
  columns: 4
  rows: 3
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendOllama, cfg.Backend.Type)
	assert.Equal(t, "llava:13b", cfg.Backend.Model)
	assert.Equal(t, 2, cfg.Detection.Passes)
	assert.Equal(t, 250*time.Millisecond, cfg.Detection.PassDelay)
	assert.Equal(t, time.Second, cfg.Detection.PhotoDelay)
	assert.Equal(t, 4, cfg.Grid.Columns)
	assert.Equal(t, 70, cfg.Image.JPEGQuality)
	assert.Equal(t, "http://localhost:11434", cfg.BackendURL())
}

func TestLoadFromFileAcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"image": {"jpeg_quality": 90}}`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.Image.JPEGQuality)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestSaveToFileOmitsAPIKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Backend.APIKey = "sk-secret"
	cfg.Detection.PhotoDelay = 3 * time.Second

	require.NoError(t, cfg.SaveToFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "sk-secret")
	assert.Equal(t, "sk-secret", cfg.Backend.APIKey)

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, loaded.Detection.PhotoDelay)
	assert.Empty(t, loaded.Backend.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"backend", func(c *Config) { c.Backend.Type = "clippy" }},
		{"quality", func(c *Config) { c.Image.JPEGQuality = 0 }},
		{"dimension", func(c *Config) { c.Image.MaxDimension = 10 }},
		{"grid", func(c *Config) { c.Grid.Columns = 27 }},
		{"passes", func(c *Config) { c.Detection.Passes = 3 }},
		{"delay", func(c *Config) { c.Detection.PassDelay = -time.Second }},
		{"overlap", func(c *Config) { c.Detection.OverlapThreshold = 1 }},
		{"padding", func(c *Config) { c.Cropper.PaddingRatio = 2 }},
		{"cache", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Path = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DECLUTTER_BACKEND", "Gemini")
	t.Setenv("DECLUTTER_MODEL", "gemini-2.5-pro")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("OPENAI_API_KEY", "o-key")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, BackendGemini, cfg.Backend.Type)
	assert.Equal(t, "gemini-2.5-pro", cfg.Backend.Model)
	assert.Equal(t, "g-key", cfg.Backend.APIKey)

	cfg = Default()
	cfg.Backend.APIKey = "from-file"
	t.Setenv("DECLUTTER_BACKEND", "")
	cfg.ApplyEnv()
	assert.Equal(t, "from-file", cfg.Backend.APIKey)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), EnvFileName)
	require.NoError(t, os.WriteFile(path, []byte("DECLUTTER_TEST_VALUE=from-file\n"), 0644))
	t.Setenv("DECLUTTER_TEST_VALUE", "")
	os.Unsetenv("DECLUTTER_TEST_VALUE")

	LoadEnvFile(path, filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "from-file", os.Getenv("DECLUTTER_TEST_VALUE"))
	os.Unsetenv("DECLUTTER_TEST_VALUE")
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yaml", filepath.Base(GetConfigPath()))
}

func TestSetBackend(t *testing.T) {
	cfg := Default()
	cfg.Backend.APIKey = "o-key"
	cfg.SetBackend("openai")
	assert.Equal(t, "o-key", cfg.Backend.APIKey)

	cfg.SetBackend("Ollama")
	assert.Equal(t, BackendOllama, cfg.Backend.Type)
	assert.Empty(t, cfg.Backend.APIKey)
	assert.Equal(t, "openbmb/minicpm-v4.5", cfg.Backend.Model)
	assert.Equal(t, "gpt-4o", DefaultModel(BackendOpenAI))
}
