package config

// Watcher defines the behavior expected from any configuration watcher.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}
