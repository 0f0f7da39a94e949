// Command cityparse labels tabular text columns with a chat model:
// city extraction or category classification, configured via YAML.
//
// Batch mode (default) reads a delimited file, labels one column and
// writes the result as a new column:
//
//	cityparse -config config.yaml -input raw.csv -output out.csv -column title
//
// Serve mode exposes the labeling tasks over HTTP with config hot
// reloading:
//
//	cityparse -config config.yaml -serve
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/SepineTam/city-parse/classify"
	"github.com/SepineTam/city-parse/config"
	"github.com/SepineTam/city-parse/errors"
	"github.com/SepineTam/city-parse/parse"
	"github.com/SepineTam/city-parse/server"
	"github.com/SepineTam/city-parse/tabular"
)

var (
	configFile = flag.String("config", "cityparse.yaml", "Path to configuration file")
	validate   = flag.Bool("validate", false, "Validate configuration and exit")
	version    = flag.Bool("version", false, "Print version and exit")
	serve      = flag.Bool("serve", false, "Run the HTTP service instead of a batch job")
	input      = flag.String("input", "", "Input delimited file for batch mode")
	output     = flag.String("output", "", "Output file for batch mode")
	column     = flag.String("column", "", "Header name of the column to label")
	outColumn  = flag.String("out-column", "", "Header name of the new label column (default: <column>_label)")
)

const Version = "v0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("cityparse %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Println("Configuration is valid")
		os.Exit(0)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to sync logger: %v\n", syncErr)
		}
	}()
	errors.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	if *serve {
		if err := runServer(ctx, logger); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
		return
	}

	if err := runBatch(ctx, cfg, logger); err != nil {
		logger.Fatal("batch run failed", zap.Error(err))
	}
}

// runServer starts the HTTP service with configuration hot reloading.
func runServer(ctx context.Context, logger *zap.Logger) error {
	watcher, err := config.NewConfigWatcher(*configFile, logger)
	if err != nil {
		return err
	}
	defer watcher.Close()

	srv, err := server.NewServer(watcher.GetCurrentConfig(), logger)
	if err != nil {
		return err
	}

	updates := watcher.Subscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case newCfg, ok := <-updates:
				if !ok {
					return
				}
				if err := srv.Reload(newCfg); err != nil {
					logger.Error("config reload rejected, keeping previous tasks", zap.Error(err))
				}
			}
		}
	}()

	return srv.Start(ctx)
}

// runBatch labels one column of the input file.
func runBatch(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if *input == "" || *output == "" || *column == "" {
		return fmt.Errorf("batch mode requires -input, -output and -column")
	}

	llmCfg, err := cfg.ModelLLMConfig()
	if err != nil {
		return err
	}

	var fn tabular.LabelFunc
	switch cfg.Task.Mode {
	case "classify":
		classifier, err := classify.New(llmCfg, cfg.Task.Categories,
			classify.WithDescriptions(cfg.Task.Descriptions),
			classify.WithExamples(cfg.Task.Examples),
			classify.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		fn = classifier.Classify
	default:
		parser, err := parse.New(llmCfg, parse.WithLogger(logger))
		if err != nil {
			return err
		}
		fn = parser.Parse
	}

	logger.Info("starting batch labeling",
		zap.String("input", *input),
		zap.String("output", *output),
		zap.String("column", *column),
		zap.String("mode", cfg.Task.Mode),
	)

	return tabular.LabelFile(ctx, *input, *output, fn, tabular.Options{
		Column:    *column,
		OutColumn: *outColumn,
		Logger:    logger,
	})
}

// buildLogger constructs the zap logger selected by the logging config.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	var zapCfg zap.Config
	if cfg.Format == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
