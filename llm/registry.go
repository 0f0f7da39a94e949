package llm

import (
	"sort"
	"strings"
	"sync"

	"github.com/SepineTam/city-parse/errors"
)

// Factory builds a Backend from a Config. Each factory owns the
// argument projection for its kind: it reads exactly the configuration
// fields that backend needs and nothing else, so there is a single
// table per kind instead of parallel switches for lookup and argument
// assembly. Construction must be cheap and side-effect-free, with no
// network activity until the first Complete call.
type Factory func(cfg Config) (Backend, error)

// Registry maps backend kinds to their factories. Registration is
// expected to happen during single-threaded startup; re-registration
// after startup is unsupported unless the caller synchronizes it.
// Lookups are safe for concurrent readers.
type Registry struct {
	mu        sync.RWMutex
	factories map[Kind]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[Kind]Factory)}
}

// Register installs a factory for a kind, overwriting any prior
// registration so later registrants can override built-ins.
func (r *Registry) Register(kind Kind, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[kind] = factory
}

// Resolve returns the factory for a kind. An unregistered kind is a
// configuration error naming the kind; resolution always fails before
// any network activity.
func (r *Registry) Resolve(kind Kind) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[kind]
	if !ok {
		return nil, errors.NewConfigError(
			"no backend registered for kind: "+string(kind),
			map[string]interface{}{"kind": string(kind)},
		)
	}
	return factory, nil
}

// Kinds returns the registered backend kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DefaultRegistry holds the built-in backend kinds. It is populated
// once at package initialization; embedding applications may register
// additional kinds during their own startup.
var DefaultRegistry = NewRegistry()

func init() {
	DefaultRegistry.Register(KindOllama, newOllamaBackend)
	DefaultRegistry.Register(KindOpenAI, newOpenAIBackend)
}

// ParseKind maps a configuration string to a Kind. The string is
// matched case-insensitively against the declared kinds.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindOllama:
		return KindOllama, nil
	case KindOpenAI:
		return KindOpenAI, nil
	case KindHuggingFace:
		return KindHuggingFace, nil
	case KindModelScope:
		return KindModelScope, nil
	default:
		return "", errors.NewConfigError(
			"unknown backend kind: "+s,
			map[string]interface{}{"kind": s},
		)
	}
}
