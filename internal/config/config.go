package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/declutter/pkg/geometry"
)

const (
	AppName     = "declutter"
	EnvFileName = "config.env"
)

// Supported vision backends
const (
	BackendOpenAI   = "openai"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
	BackendGemini   = "gemini"
)

// Config holds the application configuration
type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Image     ImageConfig     `yaml:"image"`
	Grid      geometry.Grid   `yaml:"grid"`
	Detection DetectionConfig `yaml:"detection"`
	Cropper   CropperConfig   `yaml:"cropper"`
	Cache     CacheConfig     `yaml:"cache"`
	Output    OutputConfig    `yaml:"output"`
}

// BackendConfig selects and parameterizes the vision model
type BackendConfig struct {
	Type        string        `yaml:"type"`
	Model       string        `yaml:"model"`
	URL         string        `yaml:"url,omitempty"`
	APIKey      string        `yaml:"api_key,omitempty"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Detail      string        `yaml:"detail,omitempty"`
	Timeout     time.Duration `yaml:"timeout"`
}

// ImageConfig controls how photos are prepared for the model
type ImageConfig struct {
	MaxDimension int  `yaml:"max_dimension"`
	JPEGQuality  int  `yaml:"jpeg_quality"`
	GridOverlay  bool `yaml:"grid_overlay"`
}

// DetectionConfig holds configuration for the multi-pass run
type DetectionConfig struct {
	Passes           int           `yaml:"passes"`
	PassDelay        time.Duration `yaml:"pass_delay"`
	PhotoDelay       time.Duration `yaml:"photo_delay"`
	OverlapThreshold float64       `yaml:"overlap_threshold"`
	Thumbnails       bool          `yaml:"thumbnails"`
}

// CropperConfig holds configuration for item thumbnails
type CropperConfig struct {
	PaddingRatio   float64 `yaml:"padding_ratio"`
	ThumbnailSize  int     `yaml:"thumbnail_size"`
	AllowUpscaling bool    `yaml:"allow_upscaling"`
}

// CacheConfig holds configuration for the response cache
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir          string `yaml:"dir"`
	Format       string `yaml:"format"`
	Quality      int    `yaml:"quality"`
	DebugOverlay bool   `yaml:"debug_overlay"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Type:        BackendOpenAI,
			Model:       "gpt-4o",
			Temperature: 0.3,
			MaxTokens:   4096,
			Detail:      "high",
			Timeout:     2 * time.Minute,
		},
		Image: ImageConfig{
			MaxDimension: 1024,
			JPEGQuality:  70,
			GridOverlay:  true,
		},
		Grid: geometry.DefaultGrid,
		Detection: DetectionConfig{
			Passes:           4,
			PassDelay:        time.Second,
			PhotoDelay:       time.Second,
			OverlapThreshold: 0.5,
			Thumbnails:       true,
		},
		Cropper: CropperConfig{
			PaddingRatio:  0.1,
			ThumbnailSize: 256,
		},
		Cache: CacheConfig{
			Enabled: false,
			Path:    filepath.Join(os.TempDir(), AppName, "cache.db"),
		},
		Output: OutputConfig{
			Dir:     "./output",
			Format:  "jpg",
			Quality: 85,
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file. Fields missing
// from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file. The API key is never written.
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	out.Backend.APIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Backend.Type {
	case BackendOpenAI, BackendOllama, BackendLlamaCpp, BackendGemini:
	default:
		return fmt.Errorf("backend.type must be one of openai, ollama, llamacpp, gemini (got %q)", c.Backend.Type)
	}

	if c.Backend.Temperature < 0 || c.Backend.Temperature > 2 {
		return fmt.Errorf("backend.temperature must be between 0 and 2")
	}

	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("image.jpeg_quality must be between 1 and 100")
	}

	if c.Image.MaxDimension < 64 {
		return fmt.Errorf("image.max_dimension must be at least 64")
	}

	if !c.Grid.Valid() {
		return fmt.Errorf("grid must have 1-26 columns and at least 1 row")
	}

	if c.Detection.Passes != 2 && c.Detection.Passes != 4 {
		return fmt.Errorf("detection.passes must be 2 or 4")
	}

	if c.Detection.PassDelay < 0 || c.Detection.PhotoDelay < 0 {
		return fmt.Errorf("detection delays cannot be negative")
	}

	if c.Detection.OverlapThreshold <= 0 || c.Detection.OverlapThreshold >= 1 {
		return fmt.Errorf("detection.overlap_threshold must be between 0 and 1")
	}

	if c.Cropper.PaddingRatio < 0 || c.Cropper.PaddingRatio > 1 {
		return fmt.Errorf("cropper.padding_ratio must be between 0 and 1")
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required when the cache is enabled")
	}

	return nil
}

// BackendURL returns the configured URL or the backend's usual local address
func (c *Config) BackendURL() string {
	if c.Backend.URL != "" {
		return c.Backend.URL
	}
	switch c.Backend.Type {
	case BackendOllama:
		return "http://localhost:11434"
	case BackendLlamaCpp:
		return "http://localhost:8080"
	}
	return ""
}

// DefaultModel returns the model used when a backend is picked without one
func DefaultModel(backend string) string {
	switch backend {
	case BackendOllama, BackendLlamaCpp:
		return "openbmb/minicpm-v4.5"
	case BackendGemini:
		return "gemini-2.5-flash"
	default:
		return "gpt-4o"
	}
}

// SetBackend switches the backend type and resets the model to its default.
// Keys belong to one backend, so switching drops the current one.
func (c *Config) SetBackend(backend string) {
	backend = strings.ToLower(backend)
	if backend != c.Backend.Type {
		c.Backend.APIKey = ""
	}
	c.Backend.Type = backend
	c.Backend.Model = DefaultModel(backend)
}

// apiKeyEnv names the environment variable holding each backend's key
var apiKeyEnv = map[string]string{
	BackendOpenAI:   "OPENAI_API_KEY",
	BackendGemini:   "GEMINI_API_KEY",
	BackendLlamaCpp: "LLAMACPP_API_KEY",
}

// ApplyEnv fills in settings from the environment. Keys only fill an empty
// api_key; DECLUTTER_* variables override the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DECLUTTER_BACKEND"); v != "" {
		c.SetBackend(v)
	}
	if v := os.Getenv("DECLUTTER_MODEL"); v != "" {
		c.Backend.Model = v
	}
	if v := os.Getenv("DECLUTTER_URL"); v != "" {
		c.Backend.URL = v
	}
	c.LoadAPIKey()
}

// LoadAPIKey reads the backend's API key variable when no key is set
func (c *Config) LoadAPIKey() {
	if c.Backend.APIKey != "" {
		return
	}
	if name, ok := apiKeyEnv[c.Backend.Type]; ok {
		c.Backend.APIKey = os.Getenv(name)
	}
}

// LoadEnvFile loads environment variables from the given files, or from the
// config file in the user's config directory when none are given. Missing
// files are ignored. Variables already set are not overridden.
func LoadEnvFile(paths ...string) {
	if len(paths) == 0 {
		configBase, err := os.UserConfigDir()
		if err != nil {
			return
		}
		paths = []string{filepath.Join(configBase, AppName, EnvFileName)}
	}
	for _, path := range paths {
		_ = godotenv.Load(path)
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", AppName, "config.yaml")
}
