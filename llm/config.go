package llm

// Kind identifies which concrete chat backend implementation to use.
type Kind string

const (
	// KindOllama addresses a locally reachable Ollama chat service.
	KindOllama Kind = "ollama"

	// KindOpenAI addresses an OpenAI-compatible remote chat API.
	KindOpenAI Kind = "openai"

	// KindHuggingFace and KindModelScope are declared for
	// configuration compatibility but have no built-in adapter.
	// Resolving them fails with a configuration error unless an
	// adapter is registered by the embedding application.
	KindHuggingFace Kind = "huggingface"
	KindModelScope  Kind = "modelscope"
)

// Defaults applied by NewConfig and the per-kind factories.
const (
	DefaultTemperature = 0.1
	DefaultOllamaHost  = "http://localhost:11434"
	DefaultOpenAIBase  = "https://api.openai.com/v1"
	DefaultDevice      = "cpu"
	DefaultDtype       = "float32"

	// APIKeyEnv is the environment variable consulted when no
	// explicit credential is configured for a remote API backend.
	APIKeyEnv = "OPENAI_API_KEY"
)

// Config carries every field any backend may need. It is a plain value:
// copy it to clone, and nothing in this package mutates a caller's copy.
// Backend-specific fields are ignored by kinds that do not consume them.
type Config struct {
	// ModelID is the backend-side model identifier, e.g. "qwen3:1.7b"
	// or "gpt-4o-mini".
	ModelID string

	// Kind selects the backend adapter.
	Kind Kind

	// SystemPrompt is the instruction text sent as the first message
	// of every call. Empty means no system message.
	SystemPrompt string

	// Temperature is the generation temperature, valid in [0, 2].
	Temperature float64

	// Host addresses a local chat service (Ollama).
	Host string

	// APIKey and BaseURL configure remote API backends. An empty
	// APIKey falls back to the OPENAI_API_KEY environment variable.
	APIKey  string
	BaseURL string

	// Device and Dtype apply to hardware-bound backends registered by
	// embedding applications; the built-in adapters ignore them.
	Device string
	Dtype  string
}

// NewConfig returns a Config for the given model and backend kind with
// package defaults applied.
func NewConfig(modelID string, kind Kind) Config {
	return Config{
		ModelID:     modelID,
		Kind:        kind,
		Temperature: DefaultTemperature,
		Host:        DefaultOllamaHost,
		BaseURL:     DefaultOpenAIBase,
		Device:      DefaultDevice,
		Dtype:       DefaultDtype,
	}
}

// WithSystemPrompt returns a copy of the config with the system prompt
// replaced. Used when a task rebuilds its prompt, e.g. after adding a
// classification category.
func (c Config) WithSystemPrompt(prompt string) Config {
	c.SystemPrompt = prompt
	return c
}

// Option overrides a single configuration field at instance creation
// time. Options are applied to a fresh copy of the config on every New
// call, so overrides never leak between successive calls.
type Option func(*Config)

// WithModel overrides the model identifier.
func WithModel(modelID string) Option {
	return func(c *Config) { c.ModelID = modelID }
}

// WithPrompt overrides the system prompt.
func WithPrompt(prompt string) Option {
	return func(c *Config) { c.SystemPrompt = prompt }
}

// WithTemperature overrides the generation temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithHost overrides the local service host.
func WithHost(host string) Option {
	return func(c *Config) { c.Host = host }
}

// WithAPIKey overrides the remote API credential.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the remote API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}
