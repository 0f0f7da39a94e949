// Package classify implements text classification against a fixed
// category set, delegating label prediction to a chat model backend and
// post-processing raw replies with an exact-then-fuzzy matching policy.
package classify

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/SepineTam/city-parse/errors"
	"github.com/SepineTam/city-parse/llm"
	"github.com/SepineTam/city-parse/prompt"
)

// confidenceSamples is how many independent predictions back a
// confidence estimate.
const confidenceSamples = 3

// Classifier classifies free-form text into one of a fixed set of
// categories. Each Classify call creates a fresh model session, so
// predictions never share conversation history.
type Classifier struct {
	cfg          llm.Config
	registry     *llm.Registry
	logger       *zap.Logger
	basePrompt   string
	categories   []string
	descriptions map[string]string
	examples     map[string][]string
}

// Option customizes a Classifier at construction time.
type Option func(*Classifier)

// WithDescriptions attaches per-category description texts that are
// embedded in the system prompt.
func WithDescriptions(descriptions map[string]string) Option {
	return func(c *Classifier) {
		for k, v := range descriptions {
			c.descriptions[k] = v
		}
	}
}

// WithExamples attaches per-category worked examples; at most three
// per category are shown in the system prompt.
func WithExamples(examples map[string][]string) Option {
	return func(c *Classifier) {
		for k, v := range examples {
			c.examples[k] = v
		}
	}
}

// WithRegistry injects a backend registry, primarily for tests and
// embedders that register their own backend kinds.
func WithRegistry(registry *llm.Registry) Option {
	return func(c *Classifier) { c.registry = registry }
}

// WithLogger injects a logger; zap.NewNop is used by default.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Confidence is the result of a repeated-sampling classification.
type Confidence struct {
	// Category is the most frequent surviving prediction; ties break
	// to the first maximum in sample order.
	Category string `json:"category"`

	// Confidence is the winning prediction's frequency divided by the
	// number of surviving predictions.
	Confidence float64 `json:"confidence"`

	// AllPredictions lists every surviving prediction in sample order.
	AllPredictions []string `json:"all_predictions"`
}

// New builds a Classifier. Categories are trimmed and blank entries
// filtered while preserving order; an empty effective category set is a
// configuration error raised before any backend call.
//
// A non-empty cfg.SystemPrompt is treated as a custom base instruction
// and decorated with the category list and examples; otherwise the
// strict fixed-output default is used.
func New(cfg llm.Config, categories []string, opts ...Option) (*Classifier, error) {
	c := &Classifier{
		cfg:          cfg,
		registry:     llm.DefaultRegistry,
		logger:       zap.NewNop(),
		basePrompt:   cfg.SystemPrompt,
		descriptions: make(map[string]string),
		examples:     make(map[string][]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	for _, category := range categories {
		category = strings.TrimSpace(category)
		if category != "" {
			c.categories = append(c.categories, category)
		}
	}
	if len(c.categories) == 0 {
		return nil, errors.NewConfigError("at least one category must be provided", nil)
	}

	c.rebuildPrompt()
	return c, nil
}

// rebuildPrompt regenerates the system prompt from the current task
// specification and stores it on the configuration, so every session
// created afterwards sees it. Sessions created earlier keep the prompt
// they captured at construction time.
func (c *Classifier) rebuildPrompt() {
	c.cfg = c.cfg.WithSystemPrompt(
		prompt.Classification(c.basePrompt, c.categories, c.descriptions, c.examples),
	)
}

// SystemPrompt returns the currently effective system prompt.
func (c *Classifier) SystemPrompt() string {
	return c.cfg.SystemPrompt
}

// Categories returns a copy of the effective category list.
func (c *Classifier) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// AddCategory appends a new category and rebuilds the system prompt.
// Blank and already-present categories leave the classifier unchanged.
// Existing sessions are not retroactively updated; only sessions
// created after the rebuild see the new prompt.
func (c *Classifier) AddCategory(category, description string) {
	category = strings.TrimSpace(category)
	if category == "" {
		return
	}
	for _, existing := range c.categories {
		if existing == category {
			return
		}
	}

	c.categories = append(c.categories, category)
	if description != "" {
		c.descriptions[category] = description
	}
	c.rebuildPrompt()

	c.logger.Info("category added",
		zap.String("category", category),
		zap.Int("categories", len(c.categories)),
	)
}

// NewSession creates a model session carrying the current system
// prompt, for advanced callers that want history management.
func (c *Classifier) NewSession() (*llm.Session, error) {
	return llm.NewWithRegistry(c.registry, c.cfg)
}

// Classify labels text with one of the configured categories.
//
// Empty or whitespace-only text fails with a validation error before
// any backend call. The raw reply is matched exactly first; failing
// that, the first category (in enumeration order) that contains the
// reply or is contained in it, case-insensitively, wins. A reply
// matching neither way is a mismatch error carrying the reply and the
// full category list.
func (c *Classifier) Classify(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.NewValidationError("input text cannot be empty", nil)
	}

	session, err := llm.NewWithRegistry(c.registry, c.cfg)
	if err != nil {
		return "", err
	}

	reply, err := session.Run(ctx, text, false)
	if err != nil {
		return "", err
	}

	category, ok := c.match(reply)
	if !ok {
		return "", errors.NewMismatchError(reply, c.Categories())
	}

	c.logger.Debug("classified",
		zap.String("reply", reply),
		zap.String("category", category),
	)
	return category, nil
}

// match applies the exact-then-fuzzy matching policy.
func (c *Classifier) match(reply string) (string, bool) {
	for _, category := range c.categories {
		if reply == category {
			return category, true
		}
	}

	lowerReply := strings.ToLower(reply)
	for _, category := range c.categories {
		lowerCategory := strings.ToLower(category)
		if strings.Contains(lowerReply, lowerCategory) || strings.Contains(lowerCategory, lowerReply) {
			return category, true
		}
	}

	return "", false
}

// ClassifyBatch labels each text in order, strictly sequentially. An
// empty input yields an empty result with no backend calls. The first
// failing item aborts the rest of the batch.
func (c *Classifier) ClassifyBatch(ctx context.Context, texts []string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	results := make([]string, 0, len(texts))
	for _, text := range texts {
		category, err := c.Classify(ctx, text)
		if err != nil {
			return nil, err
		}
		results = append(results, category)
	}
	return results, nil
}

// ClassifyWithConfidence classifies text three times with independent
// sessions and reports the most frequent prediction together with its
// frequency among the surviving samples. Mismatch errors are dropped
// from the sample rather than propagated; any other error aborts
// immediately. If every sample mismatches, an aggregate failure is
// returned instead of a mismatch error.
func (c *Classifier) ClassifyWithConfidence(ctx context.Context, text string) (*Confidence, error) {
	predictions := make([]string, 0, confidenceSamples)
	for i := 0; i < confidenceSamples; i++ {
		category, err := c.Classify(ctx, text)
		if err != nil {
			if errors.IsType(err, errors.MismatchError) {
				c.logger.Warn("dropping mismatched sample", zap.Error(err))
				continue
			}
			return nil, err
		}
		predictions = append(predictions, category)
	}

	if len(predictions) == 0 {
		return nil, errors.NewError(
			errors.InternalError,
			"all classification attempts failed to match a category",
			http.StatusInternalServerError, "",
			map[string]interface{}{"attempts": confidenceSamples},
			nil,
		)
	}

	counts := make(map[string]int, len(predictions))
	for _, p := range predictions {
		counts[p]++
	}
	best, bestCount := "", 0
	for _, p := range predictions {
		if counts[p] > bestCount {
			best, bestCount = p, counts[p]
		}
	}

	return &Confidence{
		Category:       best,
		Confidence:     float64(bestCount) / float64(len(predictions)),
		AllPredictions: predictions,
	}, nil
}
