// Package config provides configuration management for the city-parse
// service and CLI. It combines server settings, model backend wiring,
// task parameters and logging preferences into a single YAML-loadable
// structure, with environment variable expansion for credentials.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/SepineTam/city-parse/llm"
)

// Config represents the complete application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Model          ModelConfig          `yaml:"model"`
	Task           TaskConfig           `yaml:"task"`
	Logging        LoggingConfig        `yaml:"logging"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// ReadTimeout is the maximum duration for reading the entire
	// request (default: 30s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes
	// of the response (default: 45s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes caps request header parsing (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// RequestTimeout bounds a single labeling request (default: 2m)
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ModelConfig wires the chat model backend.
type ModelConfig struct {
	// ID is the backend-side model identifier (e.g. "qwen3:1.7b")
	ID string `yaml:"id" validate:"required"`

	// Backend selects the adapter kind: "ollama" or "openai"
	Backend string `yaml:"backend" validate:"required"`

	// SystemPrompt overrides the task's built-in instruction base
	SystemPrompt string `yaml:"system_prompt"`

	// Temperature is the generation temperature in [0, 2]
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`

	// Host addresses a local Ollama service
	Host string `yaml:"host"`

	// APIKey authenticates remote APIs. Use ${OPENAI_API_KEY} to pull
	// it from the environment; an empty value also falls back to that
	// variable at call time.
	APIKey string `yaml:"api_key"`

	// BaseURL is the remote API base URL
	BaseURL string `yaml:"base_url"`

	// Device and Dtype apply to hardware-bound backends
	Device string `yaml:"device"`
	Dtype  string `yaml:"dtype"`
}

// TaskConfig selects and parameterizes the labeling task.
type TaskConfig struct {
	// Mode is either "extract" (city extraction) or "classify"
	Mode string `yaml:"mode" validate:"oneof=extract classify"`

	// Categories is the classification category set; required when
	// Mode is "classify"
	Categories []string `yaml:"categories"`

	// Descriptions optionally documents each category
	Descriptions map[string]string `yaml:"descriptions"`

	// Examples optionally provides worked examples per category; at
	// most three per category are shown to the model
	Examples map[string][]string `yaml:"examples"`
}

// LoggingConfig controls the zap logger construction.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is "json" or "text"
	Format string `yaml:"format" validate:"oneof=json text"`
}

// CircuitBreakerConfig tunes the breaker guarding backend calls in the
// HTTP service path. The library core never breaks or retries.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxRequests uint32        `yaml:"max_requests"`
	Interval    time.Duration `yaml:"interval"`
	Timeout     time.Duration `yaml:"timeout"`

	// FailureThreshold is the number of consecutive failures that
	// trips the breaker
	FailureThreshold uint32 `yaml:"failure_threshold"`
}

// DefaultConfig returns the configuration defaults. Load decodes YAML
// on top of these, so omitted fields keep their default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    45 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  2 * time.Minute,
		},
		Model: ModelConfig{
			ID:          "qwen3:1.7b",
			Backend:     string(llm.KindOllama),
			Temperature: llm.DefaultTemperature,
			Host:        llm.DefaultOllamaHost,
			BaseURL:     llm.DefaultOpenAIBase,
			Device:      llm.DefaultDevice,
			Dtype:       llm.DefaultDtype,
		},
		Task: TaskConfig{
			Mode: "extract",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:          true,
			MaxRequests:      1,
			Interval:         60 * time.Second,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// LoadFile loads configuration from a YAML file.
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load reads YAML configuration from r, expands environment variable
// references, merges it over the defaults and validates the result.
//
// Supported expansion syntax:
//   - ${VAR}           replaced with the value of VAR
//   - ${VAR:-default}  replaced with default when VAR is unset
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := expandEnvVars(string(data))

	config := DefaultConfig()
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		if hasFallback {
			return fallback
		}
		return ""
	})
}

var validate = validator.New()

// Validate checks the configuration for structural and semantic
// problems. Classification mode without categories is rejected here,
// before any model wiring happens.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := llm.ParseKind(c.Model.Backend); err != nil {
		return err
	}

	if c.Task.Mode == "classify" && len(effectiveCategories(c.Task.Categories)) == 0 {
		return fmt.Errorf("classify mode requires at least one non-blank category")
	}

	return nil
}

func effectiveCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

// ModelLLMConfig projects the model section onto the llm package's
// configuration value.
func (c *Config) ModelLLMConfig() (llm.Config, error) {
	kind, err := llm.ParseKind(c.Model.Backend)
	if err != nil {
		return llm.Config{}, err
	}

	cfg := llm.NewConfig(c.Model.ID, kind)
	cfg.SystemPrompt = c.Model.SystemPrompt
	cfg.Temperature = c.Model.Temperature
	if c.Model.Host != "" {
		cfg.Host = c.Model.Host
	}
	cfg.APIKey = c.Model.APIKey
	if c.Model.BaseURL != "" {
		cfg.BaseURL = c.Model.BaseURL
	}
	if c.Model.Device != "" {
		cfg.Device = c.Model.Device
	}
	if c.Model.Dtype != "" {
		cfg.Dtype = c.Model.Dtype
	}
	return cfg, nil
}
