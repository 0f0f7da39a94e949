package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/SepineTam/city-parse/errors"
)

// openaiBackend talks to an OpenAI-compatible chat completions API.
// The credential falls back to the OPENAI_API_KEY environment variable
// when not configured explicitly.
type openaiBackend struct {
	modelID     string
	apiKey      string
	baseURL     string
	temperature float64
	client      *http.Client
}

func newOpenAIBackend(cfg Config) (Backend, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(APIKeyEnv)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultOpenAIBase
	}
	return &openaiBackend{
		modelID:     cfg.ModelID,
		apiKey:      apiKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type openaiChatRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	Messages    []Message `json:"messages"`
}

type openaiChatChoice struct {
	Index   int     `json:"index"`
	Message Message `json:"message"`
}

type openaiChatResponse struct {
	Choices []openaiChatChoice `json:"choices"`
}

// Complete performs one chat completions call. Authentication,
// transport and malformed-response failures all propagate as backend
// errors.
func (b *openaiBackend) Complete(ctx context.Context, messages []Message) (string, error) {
	if b.apiKey == "" {
		return "", errors.NewBackendError(
			"no API key configured and "+APIKeyEnv+" is unset", nil,
		)
	}

	body, err := json.Marshal(openaiChatRequest{
		Model:       b.modelID,
		Temperature: b.temperature,
		Messages:    messages,
	})
	if err != nil {
		return "", errors.NewBackendError("encode chat completions request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewBackendError("build chat completions request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return "", errors.NewBackendError("chat completions call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return "", errors.NewBackendError(
			fmt.Sprintf("chat completions returned http %d", resp.StatusCode),
			fmt.Errorf("response: %v", payload),
		)
	}

	var out openaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.NewBackendError("decode chat completions response", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.NewBackendError("chat completions response has no choices", nil)
	}

	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
