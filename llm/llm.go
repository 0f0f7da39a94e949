// Package llm provides a uniform contract over heterogeneous chat model
// backends. It abstracts locally hosted chat services (Ollama) and
// key-authenticated remote APIs (OpenAI-compatible) behind a single
// Backend interface, and layers conversation state on top via Session.
//
// The package is wired together by a Registry that maps a backend Kind
// to a factory responsible for both adapter selection and per-kind
// argument projection, so adding a new backend never touches callers.
//
// Typical usage:
//
//	cfg := llm.NewConfig("qwen3:1.7b", llm.KindOllama)
//	session, err := llm.New(cfg)
//	if err != nil {
//	    return err
//	}
//	reply, err := session.Run(ctx, "北京市人民政府工作报告", false)
package llm

import "context"

// Role identifies the author of a chat message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a chat exchange. Ordering is
// significant: the system message, when present, is always first,
// followed by prior history in original order, with the new user
// message last.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend is the capability every concrete chat backend must provide.
// Complete performs exactly one outbound call carrying the fully
// assembled message list and returns the assistant reply trimmed of
// surrounding whitespace.
//
// Backends never build message framing themselves; that is the
// Session's job. Transport, authentication and malformed-response
// failures propagate to the caller unchanged; adapters must not
// convert them to sentinel strings.
type Backend interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}
