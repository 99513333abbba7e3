// Package llm wraps the text-generation collaborator behind a small Provider
// interface. Providers are the pipeline's only generation suspension point:
// every call carries an explicit timeout and a failed call surfaces as
// ErrModelUnavailable, never as fabricated content.
package llm

import (
	"context"
	"errors"
	"time"
)

// TimeoutGenerate bounds a single generation call.
const TimeoutGenerate = 60 * time.Second

// ErrModelUnavailable is wrapped by providers when the generation service
// cannot be reached or does not answer within the timeout.
var ErrModelUnavailable = errors.New("generation model unavailable")

// Provider is the interface all generation providers implement.
type Provider interface {
	// Name returns the provider identifier (e.g. "ollama", "openai").
	Name() string
	// Generate sends a chat completion request and returns the response.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request represents a generation request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Message represents a chat message.
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Response represents a generation response.
type Response struct {
	Content      string
	FinishReason string
	InputTokens  int
	OutputTokens int
	Model        string
}
