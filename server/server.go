// Package server provides the HTTP surface of the city-parse service:
// routing, middleware stack, metrics and graceful lifecycle.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/SepineTam/city-parse/classify"
	"github.com/SepineTam/city-parse/config"
	"github.com/SepineTam/city-parse/parse"
	"github.com/SepineTam/city-parse/server/metrics"
	"github.com/SepineTam/city-parse/server/middleware"
)

// Router wires the labeling endpoints with the middleware stack.
type Router struct {
	router  chi.Router
	handler *Handler
}

// NewRouter creates the service router.
func NewRouter(handler *Handler, m *metrics.Metrics, logger *zap.Logger, cfg config.ServerConfig) *Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Post("/v1/extract", handler.Extract)
	r.Post("/v1/classify", handler.Classify)
	r.Post("/v1/classify/batch", handler.ClassifyBatch)
	r.Post("/v1/classify/confidence", handler.ClassifyConfidence)
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			logger.Error("failed to encode health response", zap.Error(err))
		}
	})
	r.Handle("/metrics", m.Handler())

	return &Router{router: r, handler: handler}
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// Server is the HTTP server with graceful shutdown.
type Server struct {
	httpServer *http.Server
	handler    *Handler
	cfg        config.ServerConfig
	logger     *zap.Logger
}

// NewServer builds the full service from configuration: task objects,
// breaker, metrics, router and HTTP server.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	parser, classifier, err := buildTasks(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.NewMetrics()
	handler := NewHandler(parser, classifier, newBreaker(cfg.CircuitBreaker, logger), m, logger)
	router := NewRouter(handler, m, logger, cfg.Server)

	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:        router,
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		},
		handler: handler,
		cfg:     cfg.Server,
		logger:  logger,
	}, nil
}

// Reload rebuilds the task objects from a freshly loaded configuration
// and swaps them into the running handler. Server-level settings
// (ports, timeouts) are not hot-reloadable.
func (s *Server) Reload(cfg *config.Config) error {
	parser, classifier, err := buildTasks(cfg, s.logger)
	if err != nil {
		return err
	}

	s.handler.Swap(parser, classifier)
	return nil
}

// buildTasks constructs the labeling task selected by the config. The
// unselected task stays nil and its endpoints report a config error.
func buildTasks(cfg *config.Config, logger *zap.Logger) (*parse.Parser, *classify.Classifier, error) {
	llmCfg, err := cfg.ModelLLMConfig()
	if err != nil {
		return nil, nil, err
	}

	if cfg.Task.Mode == "classify" {
		classifier, err := classify.New(llmCfg, cfg.Task.Categories,
			classify.WithDescriptions(cfg.Task.Descriptions),
			classify.WithExamples(cfg.Task.Examples),
			classify.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return nil, classifier, nil
	}

	parser, err := parse.New(llmCfg, parse.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return parser, nil, nil
}

// Start runs the server until ctx is cancelled, then shuts down
// gracefully within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server started", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
