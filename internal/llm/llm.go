package llm

import (
	"context"
	"errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

var ErrEmptyResponse = errors.New("llm returned no choices")

// Completer is a hosted chat-completion service.
type Completer interface {
	Complete(ctx context.Context, messages []Message, opts Options) (string, error)
}
