package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/SepineTam/city-parse/classify"
	"github.com/SepineTam/city-parse/errors"
	"github.com/SepineTam/city-parse/parse"
	"github.com/SepineTam/city-parse/server/metrics"
	"github.com/SepineTam/city-parse/server/middleware"
)

// tokenEncoding is the tokenizer used for prompt size accounting.
const tokenEncoding = "cl100k_base"

// ExtractRequest is the body for POST /v1/extract.
type ExtractRequest struct {
	Text string `json:"text"`
}

// ExtractResponse carries the extracted city name.
type ExtractResponse struct {
	City string `json:"city"`
}

// ClassifyRequest is the body for POST /v1/classify.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResponse carries the matched category.
type ClassifyResponse struct {
	Category string `json:"category"`
}

// ClassifyBatchRequest is the body for POST /v1/classify/batch.
type ClassifyBatchRequest struct {
	Texts []string `json:"texts"`
}

// ClassifyBatchResponse carries one category per input text, in order.
type ClassifyBatchResponse struct {
	Categories []string `json:"categories"`
}

// Handler serves the labeling endpoints. The task objects can be
// swapped at runtime when the configuration file is reloaded; requests
// in flight keep the task set they started with.
type Handler struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	breaker *breaker
	encoder *tiktoken.Tiktoken

	mu         sync.RWMutex
	parser     *parse.Parser
	classifier *classify.Classifier
}

// NewHandler creates a Handler. Either task may be nil; requests for a
// task that is not configured fail with a config error. The token
// encoder is best-effort: when unavailable, token accounting is
// skipped.
func NewHandler(parser *parse.Parser, classifier *classify.Classifier, br *breaker, m *metrics.Metrics, logger *zap.Logger) *Handler {
	encoder, err := tiktoken.GetEncoding(tokenEncoding)
	if err != nil {
		logger.Warn("token encoder unavailable, skipping token accounting", zap.Error(err))
		encoder = nil
	}

	return &Handler{
		logger:     logger,
		metrics:    m,
		breaker:    br,
		encoder:    encoder,
		parser:     parser,
		classifier: classifier,
	}
}

// Swap replaces the task objects, typically after a config reload.
func (h *Handler) Swap(parser *parse.Parser, classifier *classify.Classifier) {
	h.mu.Lock()
	h.parser = parser
	h.classifier = classifier
	h.mu.Unlock()
	h.logger.Info("labeling tasks swapped")
}

func (h *Handler) tasks() (*parse.Parser, *classify.Classifier) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.parser, h.classifier
}

// Extract handles POST /v1/extract.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "/v1/extract", errors.NewValidationError("invalid request body", nil))
		return
	}

	parser, _ := h.tasks()
	if parser == nil {
		h.writeError(w, r, "/v1/extract", errors.NewConfigError("extraction task is not configured", nil))
		return
	}

	h.observeTokens(req.Text)

	start := time.Now()
	result, err := h.breaker.do(func() (interface{}, error) {
		return parser.Parse(r.Context(), req.Text)
	})
	h.metrics.BackendCallDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())
	if err != nil {
		h.metrics.BackendCallsTotal.WithLabelValues("extract", "error").Inc()
		h.writeError(w, r, "/v1/extract", err)
		return
	}
	h.metrics.BackendCallsTotal.WithLabelValues("extract", "success").Inc()

	h.writeJSON(w, "/v1/extract", ExtractResponse{City: result.(string)})
}

// Classify handles POST /v1/classify.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "/v1/classify", errors.NewValidationError("invalid request body", nil))
		return
	}

	_, classifier := h.tasks()
	if classifier == nil {
		h.writeError(w, r, "/v1/classify", errors.NewConfigError("classification task is not configured", nil))
		return
	}

	h.observeTokens(req.Text)

	start := time.Now()
	result, err := h.breaker.do(func() (interface{}, error) {
		return classifier.Classify(r.Context(), req.Text)
	})
	h.metrics.BackendCallDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	if err != nil {
		h.metrics.BackendCallsTotal.WithLabelValues("classify", "error").Inc()
		h.writeError(w, r, "/v1/classify", err)
		return
	}
	h.metrics.BackendCallsTotal.WithLabelValues("classify", "success").Inc()

	h.writeJSON(w, "/v1/classify", ClassifyResponse{Category: result.(string)})
}

// ClassifyBatch handles POST /v1/classify/batch. The batch is strictly
// sequential and the first failing item aborts the rest.
func (h *Handler) ClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req ClassifyBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "/v1/classify/batch", errors.NewValidationError("invalid request body", nil))
		return
	}

	_, classifier := h.tasks()
	if classifier == nil {
		h.writeError(w, r, "/v1/classify/batch", errors.NewConfigError("classification task is not configured", nil))
		return
	}

	result, err := h.breaker.do(func() (interface{}, error) {
		return classifier.ClassifyBatch(r.Context(), req.Texts)
	})
	if err != nil {
		h.metrics.BackendCallsTotal.WithLabelValues("classify", "error").Inc()
		h.writeError(w, r, "/v1/classify/batch", err)
		return
	}
	h.metrics.BackendCallsTotal.WithLabelValues("classify", "success").Inc()

	h.writeJSON(w, "/v1/classify/batch", ClassifyBatchResponse{Categories: result.([]string)})
}

// ClassifyConfidence handles POST /v1/classify/confidence.
func (h *Handler) ClassifyConfidence(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, "/v1/classify/confidence", errors.NewValidationError("invalid request body", nil))
		return
	}

	_, classifier := h.tasks()
	if classifier == nil {
		h.writeError(w, r, "/v1/classify/confidence", errors.NewConfigError("classification task is not configured", nil))
		return
	}

	h.observeTokens(req.Text)

	result, err := h.breaker.do(func() (interface{}, error) {
		return classifier.ClassifyWithConfidence(r.Context(), req.Text)
	})
	if err != nil {
		h.metrics.BackendCallsTotal.WithLabelValues("classify", "error").Inc()
		h.writeError(w, r, "/v1/classify/confidence", err)
		return
	}
	h.metrics.BackendCallsTotal.WithLabelValues("classify", "success").Inc()

	h.writeJSON(w, "/v1/classify/confidence", result.(*classify.Confidence))
}

// observeTokens records the token count of an input text.
func (h *Handler) observeTokens(text string) {
	if h.encoder == nil || text == "" {
		return
	}
	h.metrics.PromptTokens.Observe(float64(len(h.encoder.Encode(text, nil, nil))))
}

func (h *Handler) writeJSON(w http.ResponseWriter, endpoint string, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
	h.metrics.RequestsTotal.WithLabelValues(endpoint, "200").Inc()
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var ce *errors.CityError
	if !errors.As(err, &ce) {
		ce = errors.NewInternalError(requestID, err)
	}
	if ce.RequestID == "" {
		ce.RequestID = requestID
	}

	h.logger.Error("request failed",
		zap.String("endpoint", endpoint),
		zap.String("error_type", string(ce.Type)),
		zap.String("request_id", requestID),
		zap.Error(err),
	)

	h.metrics.ErrorsTotal.WithLabelValues(string(ce.Type)).Inc()
	h.metrics.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(ce.Code)).Inc()
	errors.WriteError(w, ce)
}
