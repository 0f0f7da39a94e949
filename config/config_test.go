package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SepineTam/city-parse/llm"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)
	assert.Equal(t, string(llm.KindOllama), cfg.Model.Backend)
	assert.Equal(t, llm.DefaultTemperature, cfg.Model.Temperature)
	assert.Equal(t, "extract", cfg.Task.Mode)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.CircuitBreaker.Enabled)

	require.NoError(t, cfg.Validate())
}

func TestLoadMergesOverDefaults(t *testing.T) {
	yaml := `
server:
  port: 9090
model:
  id: gpt-4o-mini
  backend: openai
  temperature: 0.3
task:
  mode: classify
  categories:
    - 正面
    - 负面
`
	cfg, err := Load(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.ID)
	assert.Equal(t, "openai", cfg.Model.Backend)
	assert.Equal(t, 0.3, cfg.Model.Temperature)
	assert.Equal(t, []string{"正面", "负面"}, cfg.Task.Categories)

	// untouched sections keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_CITYPARSE_KEY", "sk-secret")

	yaml := `
model:
  id: gpt-4o-mini
  backend: openai
  api_key: ${TEST_CITYPARSE_KEY}
  host: ${TEST_CITYPARSE_HOST:-http://localhost:11434}
`
	cfg, err := Load(strings.NewReader(yaml))
	require.NoError(t, err)

	assert.Equal(t, "sk-secret", cfg.Model.APIKey)
	assert.Equal(t, "http://localhost:11434", cfg.Model.Host)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown_backend",
			yaml: "model:\n  id: m\n  backend: carrier-pigeon\n",
		},
		{
			name: "temperature_out_of_range",
			yaml: "model:\n  id: m\n  backend: ollama\n  temperature: 3.5\n",
		},
		{
			name: "bad_task_mode",
			yaml: "model:\n  id: m\n  backend: ollama\ntask:\n  mode: translate\n",
		},
		{
			name: "classify_without_categories",
			yaml: "model:\n  id: m\n  backend: ollama\ntask:\n  mode: classify\n",
		},
		{
			name: "classify_with_blank_categories",
			yaml: "model:\n  id: m\n  backend: ollama\ntask:\n  mode: classify\n  categories: [\"\", \"  \"]\n",
		},
		{
			name: "bad_log_level",
			yaml: "model:\n  id: m\n  backend: ollama\nlogging:\n  level: verbose\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestModelLLMConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.ID = "qwen3:8b"
	cfg.Model.Backend = "ollama"
	cfg.Model.SystemPrompt = "自定义提示词"
	cfg.Model.Temperature = 0.5
	cfg.Model.Host = "http://ollama.internal:11434"

	llmCfg, err := cfg.ModelLLMConfig()
	require.NoError(t, err)

	assert.Equal(t, "qwen3:8b", llmCfg.ModelID)
	assert.Equal(t, llm.KindOllama, llmCfg.Kind)
	assert.Equal(t, "自定义提示词", llmCfg.SystemPrompt)
	assert.Equal(t, 0.5, llmCfg.Temperature)
	assert.Equal(t, "http://ollama.internal:11434", llmCfg.Host)
}

func TestModelLLMConfigEmptyHostKeepsDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Host = ""
	cfg.Model.BaseURL = ""

	llmCfg, err := cfg.ModelLLMConfig()
	require.NoError(t, err)

	assert.Equal(t, llm.DefaultOllamaHost, llmCfg.Host)
	assert.Equal(t, llm.DefaultOpenAIBase, llmCfg.BaseURL)
}
