package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Verify at compile time that ConfigWatcher implements Watcher
var _ Watcher = (*ConfigWatcher)(nil)

// ConfigWatcher manages configuration hot reloading. It keeps the most
// recently valid configuration available thread-safely and notifies
// subscribers whenever the file changes and reloads cleanly. A reload
// that fails validation is logged and skipped; the previous
// configuration stays in effect.
type ConfigWatcher struct {
	currentConfig atomic.Value
	configPath    string
	watcher       *fsnotify.Watcher
	logger        *zap.Logger

	mu          sync.Mutex
	subscribers []chan<- *Config
	closed      bool
}

// NewConfigWatcher creates a watcher for the given config file and
// loads the initial configuration from it.
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: configPath,
		watcher:    watcher,
		logger:     logger,
	}

	initialConfig, err := LoadFile(configPath)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("load initial config: %w", err)
	}
	cw.currentConfig.Store(initialConfig)

	if err := watcher.Add(configPath); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config file: %w", err)
	}

	go cw.watchConfig()
	return cw, nil
}

// Subscribe returns a channel that receives each successfully reloaded
// configuration. Slow subscribers miss intermediate updates rather than
// blocking the watcher.
func (cw *ConfigWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)
	cw.mu.Lock()
	cw.subscribers = append(cw.subscribers, ch)
	cw.mu.Unlock()
	return ch
}

// GetCurrentConfig returns the current configuration thread-safely.
func (cw *ConfigWatcher) GetCurrentConfig() *Config {
	return cw.currentConfig.Load().(*Config)
}

// Close stops watching and releases the underlying fsnotify watcher.
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	cw.closed = true
	cw.mu.Unlock()
	return cw.watcher.Close()
}

func (cw *ConfigWatcher) watchConfig() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				cw.handleConfigChange()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("config watcher error", zap.Error(err))
		}
	}
}

func (cw *ConfigWatcher) handleConfigChange() {
	newConfig, err := LoadFile(cw.configPath)
	if err != nil {
		cw.logger.Error("failed to reload config, keeping previous",
			zap.String("path", cw.configPath),
			zap.Error(err),
		)
		return
	}

	cw.currentConfig.Store(newConfig)
	cw.logger.Info("configuration reloaded", zap.String("path", cw.configPath))

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.closed {
		return
	}
	for _, ch := range cw.subscribers {
		select {
		case ch <- newConfig:
		default:
		}
	}
}
