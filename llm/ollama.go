package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/SepineTam/city-parse/errors"
)

// ollamaBackend talks to a locally reachable Ollama chat service over
// its /api/chat endpoint.
type ollamaBackend struct {
	modelID     string
	host        string
	temperature float64
	client      *http.Client
}

func newOllamaBackend(cfg Config) (Backend, error) {
	host := cfg.Host
	if host == "" {
		host = DefaultOllamaHost
	}
	return &ollamaBackend{
		modelID:     cfg.ModelID,
		host:        strings.TrimRight(host, "/"),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: 120 * time.Second},
	}, nil
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatResponse struct {
	Message *Message `json:"message"`
	Error   string   `json:"error,omitempty"`
}

// Complete performs one chat call against the Ollama service. Transport
// and malformed-response failures surface as backend errors; there is
// no placeholder-string fallback.
func (b *ollamaBackend) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    b.modelID,
		Messages: messages,
		Stream:   false,
		Options:  ollamaOptions{Temperature: b.temperature},
	})
	if err != nil {
		return "", errors.NewBackendError("encode ollama request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", errors.NewBackendError("build ollama request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", errors.NewBackendError("ollama chat call failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return "", errors.NewBackendError(
			fmt.Sprintf("ollama returned http %d", resp.StatusCode),
			fmt.Errorf("response: %v", payload),
		)
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errors.NewBackendError("decode ollama response", err)
	}
	if out.Error != "" {
		return "", errors.NewBackendError("ollama error: "+out.Error, nil)
	}
	if out.Message == nil {
		return "", errors.NewBackendError("ollama response missing message content", nil)
	}

	return strings.TrimSpace(out.Message.Content), nil
}
