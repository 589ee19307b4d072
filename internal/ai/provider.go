// Package ai talks to the narrative-generation service. Every provider turns a
// system prompt plus an ordered message list into one completion.
package ai

import (
	"context"
	"errors"
)

// ErrGeneration wraps every provider, network, or malformed-response failure.
var ErrGeneration = errors.New("ai: generation failed")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call.
type Request struct {
	System      string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Provider generates narrative text. Implementations must wrap failures with ErrGeneration.
type Provider interface {
	Chat(ctx context.Context, req Request) (string, error)
}

// withSystem prepends the system prompt as a message for chat-style APIs.
func withSystem(req Request) []Message {
	out := make([]Message, 0, len(req.Messages)+1)
	if req.System != "" {
		out = append(out, Message{Role: RoleSystem, Content: req.System})
	}
	return append(out, req.Messages...)
}
