package llm

import (
	"context"

	"github.com/SepineTam/city-parse/errors"
)

// Session couples a Backend with conversation state: the system prompt,
// the generation parameters it was created with, and an append-only
// message history. Sessions assemble the outgoing message framing on
// every call; backends never do.
//
// A Session is not safe for concurrent use. History mutation is
// unsynchronized; give each goroutine its own Session.
type Session struct {
	backend Backend
	config  Config
	history []Message
}

// New builds a Session for the given configuration using the default
// registry. Options are applied to a fresh copy of cfg, so overrides
// never leak into the caller's config or into later New calls.
//
// Kind resolution happens first: an unknown backend kind fails with a
// configuration error before any adapter is constructed. Adapter
// construction itself performs no network activity, so rebuilding a
// session after a configuration change is cheap.
func New(cfg Config, opts ...Option) (*Session, error) {
	return NewWithRegistry(DefaultRegistry, cfg, opts...)
}

// NewWithRegistry is New with an explicit registry, for embedders and
// tests that inject their own backend kinds.
func NewWithRegistry(registry *Registry, cfg Config, opts ...Option) (*Session, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, errors.NewConfigError(
			"temperature must be within [0, 2]",
			map[string]interface{}{"temperature": cfg.Temperature},
		)
	}

	factory, err := registry.Resolve(cfg.Kind)
	if err != nil {
		return nil, err
	}

	backend, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	return &Session{backend: backend, config: cfg}, nil
}

// NewSessionWithBackend wraps an already-constructed backend in a
// Session. Used by tests and by embedders that manage adapters
// themselves.
func NewSessionWithBackend(backend Backend, cfg Config) *Session {
	return &Session{backend: backend, config: cfg}
}

// Run sends message to the backend together with the session's system
// prompt and accumulated history, and returns the assistant reply.
//
// The outgoing list is always [system message, if a prompt is set] ++
// history in original order ++ [the new user message]. When
// saveToHistory is true the (user, assistant) pair is appended to the
// history after a successful call, in that order; on error, and when
// saveToHistory is false, the history is left untouched.
func (s *Session) Run(ctx context.Context, message string, saveToHistory bool) (string, error) {
	messages := s.buildMessages(message)

	reply, err := s.backend.Complete(ctx, messages)
	if err != nil {
		return "", err
	}

	if saveToHistory {
		s.history = append(s.history,
			Message{Role: RoleUser, Content: message},
			Message{Role: RoleAssistant, Content: reply},
		)
	}

	return reply, nil
}

// buildMessages assembles the full outgoing message list. A fresh slice
// is allocated on every call; nothing is shared between invocations.
func (s *Session) buildMessages(message string) []Message {
	messages := make([]Message, 0, len(s.history)+2)
	if s.config.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: s.config.SystemPrompt})
	}
	messages = append(messages, s.history...)
	messages = append(messages, Message{Role: RoleUser, Content: message})
	return messages
}

// AddHistory appends a single message to the conversation history.
func (s *Session) AddHistory(role, content string) {
	s.history = append(s.history, Message{Role: role, Content: content})
}

// ClearHistory discards the conversation history.
func (s *Session) ClearHistory() {
	s.history = nil
}

// History returns a copy of the conversation history. Mutating the
// returned slice cannot corrupt the session's internal state.
func (s *Session) History() []Message {
	out := make([]Message, len(s.history))
	copy(out, s.history)
	return out
}

// Config returns the configuration the session was created with,
// including the system prompt captured at construction time.
func (s *Session) Config() Config {
	return s.config
}
