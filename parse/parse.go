// Package parse implements single-city extraction from free-form text,
// typically document titles, by delegating to a chat model backend with
// a fixed exemplar-driven instruction prompt.
package parse

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/SepineTam/city-parse/errors"
	"github.com/SepineTam/city-parse/llm"
	"github.com/SepineTam/city-parse/prompt"
)

// Parser extracts the most relevant city name from input text. Each
// Parse call uses a fresh model session, so extractions are
// independent of each other.
type Parser struct {
	cfg      llm.Config
	registry *llm.Registry
	logger   *zap.Logger
}

// Option customizes a Parser at construction time.
type Option func(*Parser)

// WithRegistry injects a backend registry, primarily for tests.
func WithRegistry(registry *llm.Registry) Option {
	return func(p *Parser) { p.registry = registry }
}

// WithLogger injects a logger; zap.NewNop is used by default.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New builds a Parser. When cfg.SystemPrompt is empty the built-in
// extraction instruction set is used; a non-empty prompt overrides it
// wholesale.
func New(cfg llm.Config, opts ...Option) (*Parser, error) {
	if cfg.SystemPrompt == "" {
		cfg = cfg.WithSystemPrompt(prompt.Extraction())
	}

	p := &Parser{
		cfg:      cfg,
		registry: llm.DefaultRegistry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	// Fail on unknown backend kinds at setup, not on first parse.
	if _, err := p.registry.Resolve(cfg.Kind); err != nil {
		return nil, err
	}

	return p, nil
}

// Parse extracts a city name from text. Empty or whitespace-only text
// fails with a validation error before any backend call.
func (p *Parser) Parse(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.NewValidationError("input text cannot be empty", nil)
	}

	session, err := llm.NewWithRegistry(p.registry, p.cfg)
	if err != nil {
		return "", err
	}

	city, err := session.Run(ctx, text, false)
	if err != nil {
		return "", err
	}

	p.logger.Debug("parsed city",
		zap.String("text", text),
		zap.String("city", city),
	)
	return city, nil
}

// NewSession creates a model session carrying the extraction prompt,
// for advanced callers that want history management.
func (p *Parser) NewSession() (*llm.Session, error) {
	return llm.NewWithRegistry(p.registry, p.cfg)
}
