// Package mocks provides test doubles for the llm backend contract.
package mocks

import (
	"context"
	"sync"

	"github.com/SepineTam/city-parse/llm"
)

// Backend implements llm.Backend for testing without real network
// calls. It can be scripted with a fixed sequence of replies or driven
// by a custom CompleteFunc, and it records every message list it
// receives so tests can assert on framing and call counts.
//
// Example usage:
//
//	backend := mocks.NewBackend("一线城市", "二线城市")
//	session := llm.NewSessionWithBackend(backend, cfg)
type Backend struct {
	mu sync.Mutex

	// CompleteFunc, when set, fully controls the response.
	CompleteFunc func(ctx context.Context, messages []llm.Message) (string, error)

	// Err, when set, is returned by every Complete call.
	Err error

	replies  []string
	calls    int
	received [][]llm.Message
}

// NewBackend creates a Backend that returns the given replies in order.
// When the script is exhausted the last reply repeats.
func NewBackend(replies ...string) *Backend {
	return &Backend{replies: replies}
}

// Complete records the call and returns the next scripted reply.
func (b *Backend) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls++
	copied := make([]llm.Message, len(messages))
	copy(copied, messages)
	b.received = append(b.received, copied)

	if b.CompleteFunc != nil {
		return b.CompleteFunc(ctx, messages)
	}
	if b.Err != nil {
		return "", b.Err
	}
	if len(b.replies) == 0 {
		return "", nil
	}
	idx := b.calls - 1
	if idx >= len(b.replies) {
		idx = len(b.replies) - 1
	}
	return b.replies[idx], nil
}

// Calls returns how many times Complete was invoked.
func (b *Backend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

// Received returns every message list passed to Complete, in call order.
func (b *Backend) Received() [][]llm.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]llm.Message, len(b.received))
	copy(out, b.received)
	return out
}

// LastMessages returns the message list from the most recent call, or
// nil if Complete was never invoked.
func (b *Backend) LastMessages() []llm.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.received) == 0 {
		return nil
	}
	return b.received[len(b.received)-1]
}

// Register installs this backend in the given registry for the given
// kind, so sessions created through the registry share this instance
// and its call counter.
func (b *Backend) Register(registry *llm.Registry, kind llm.Kind) {
	registry.Register(kind, func(cfg llm.Config) (llm.Backend, error) {
		return b, nil
	})
}
