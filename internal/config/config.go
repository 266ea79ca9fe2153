package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-quality/pkg/analyzer"
	"github.com/menta2k/image-quality/pkg/composition"
	"github.com/menta2k/image-quality/pkg/vision"
)

type contextKey string

const configKey contextKey = "config"

// FileName is the name searched for in the working directory
const FileName = "image-quality.yaml"

// Config holds the application configuration
type Config struct {
	Analyzer AnalyzerConfig         `yaml:"analyzer"`
	Vision   vision.DetectionConfig `yaml:"vision"`
	Remote   RemoteConfig           `yaml:"remote"`
	Batch    BatchConfig            `yaml:"batch"`
	Quota    QuotaConfig            `yaml:"quota"`
	Output   OutputConfig           `yaml:"output"`
}

// AnalyzerConfig holds configuration for the local heuristic scorer
type AnalyzerConfig struct {
	SupportedFormats []string            `yaml:"supported_formats"`
	MinImageSize     int                 `yaml:"min_image_size"`
	MaxDimension     int                 `yaml:"max_dimension"`
	GoodThreshold    int                 `yaml:"good_threshold"`
	ContrastScale    float64             `yaml:"contrast_scale"`
	SharpnessScale   float64             `yaml:"sharpness_scale"`
	Weights          analyzer.Weights    `yaml:"weights"`
	Composition      composition.Weights `yaml:"composition"`
}

// RemoteConfig selects and configures the vision model backend
type RemoteConfig struct {
	Backend     string        `yaml:"backend"`
	URL         string        `yaml:"url"`
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key,omitempty"`
	SendSize    int           `yaml:"send_size"`
	SendQuality int           `yaml:"send_quality"`
	SendFormat  string        `yaml:"send_format"`
	Timeout     time.Duration `yaml:"timeout"`
}

// BatchConfig holds configuration for the batch orchestrator
type BatchConfig struct {
	Size  int           `yaml:"size"`
	Pause time.Duration `yaml:"pause"`
}

// QuotaConfig limits the number of analyses. Limit 0 means unlimited;
// an empty StorePath keeps counters in memory.
type QuotaConfig struct {
	Limit     int    `yaml:"limit"`
	Key       string `yaml:"key"`
	StorePath string `yaml:"store_path"`
}

// OutputConfig holds configuration for report generation
type OutputConfig struct {
	CSVPath  string `yaml:"csv_path"`
	JSONPath string `yaml:"json_path"`
	DebugDir string `yaml:"debug_dir"`
}

// Backends
const (
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Default returns a configuration with default values
func Default() *Config {
	ac := analyzer.DefaultConfig()
	return &Config{
		Analyzer: AnalyzerConfig{
			SupportedFormats: ac.SupportedFormats,
			MinImageSize:     ac.MinImageSize,
			MaxDimension:     ac.MaxDimension,
			GoodThreshold:    ac.GoodThreshold,
			ContrastScale:    ac.ContrastScale,
			SharpnessScale:   ac.SharpnessScale,
			Weights:          ac.Weights,
			Composition:      ac.Composition,
		},
		Vision: vision.DefaultConfig(),
		Remote: RemoteConfig{
			Backend:     BackendOllama,
			URL:         "http://localhost:11434",
			Model:       "qwen2.5vl:7b",
			SendSize:    1024,
			SendQuality: 85,
			SendFormat:  "jpeg",
			Timeout:     5 * time.Minute,
		},
		Batch: BatchConfig{
			Size:  5,
			Pause: 500 * time.Millisecond,
		},
		Quota: QuotaConfig{
			Key: "default",
		},
	}
}

// Load reads configuration from file or returns defaults. With an empty
// path the working directory and the user config dir are searched.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveToFile writes configuration as YAML, creating the directory
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
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
	a := c.Analyzer
	if a.MinImageSize < 1 {
		return fmt.Errorf("analyzer.min_image_size must be positive")
	}

	if a.MaxDimension < 0 {
		return fmt.Errorf("analyzer.max_dimension cannot be negative")
	}

	if len(a.SupportedFormats) == 0 {
		return fmt.Errorf("analyzer.supported_formats cannot be empty")
	}

	if a.GoodThreshold < 0 || a.GoodThreshold > 100 {
		return fmt.Errorf("analyzer.good_threshold must be between 0 and 100")
	}

	if a.ContrastScale <= 0 || a.SharpnessScale <= 0 {
		return fmt.Errorf("analyzer.contrast_scale and analyzer.sharpness_scale must be positive")
	}

	w := a.Weights
	if sum := w.Brightness + w.Contrast + w.Sharpness + w.ColorBalance + w.Composition; sum <= 0 {
		return fmt.Errorf("analyzer.weights must sum to a positive value")
	}

	if c.Vision.KeyFraction < 0 || c.Vision.KeyFraction > 1 {
		return fmt.Errorf("vision.key_fraction must be between 0 and 1")
	}

	if c.Vision.BWSampleSize < 1 {
		return fmt.Errorf("vision.bw_sample_size must be positive")
	}

	switch c.Remote.Backend {
	case BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("remote.backend must be %q or %q, got %q", BackendOllama, BackendLlamaCpp, c.Remote.Backend)
	}

	if c.Remote.SendQuality < 1 || c.Remote.SendQuality > 100 {
		return fmt.Errorf("remote.send_quality must be between 1 and 100")
	}

	if c.Batch.Size < 1 {
		return fmt.Errorf("batch.size must be positive")
	}

	if c.Batch.Pause < 0 {
		return fmt.Errorf("batch.pause cannot be negative")
	}

	if c.Quota.Limit < 0 {
		return fmt.Errorf("quota.limit cannot be negative")
	}

	return nil
}

// AnalyzerConfig builds the analyzer configuration from the file sections
func (c *Config) AnalyzerConfig() analyzer.Config {
	a := c.Analyzer
	return analyzer.Config{
		SupportedFormats: a.SupportedFormats,
		MinImageSize:     a.MinImageSize,
		MaxDimension:     a.MaxDimension,
		GoodThreshold:    a.GoodThreshold,
		Weights:          a.Weights,
		ContrastScale:    a.ContrastScale,
		SharpnessScale:   a.SharpnessScale,
		Detection:        c.Vision,
		Composition:      a.Composition,
	}
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./" + FileName
	}
	return filepath.Join(home, ".config", "image-quality", "config.yaml")
}

func findConfigFile() string {
	candidates := []string{
		"./" + FileName,
		GetConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
