package testutil

import (
	"context"
	"sync"

	"github.com/Shahadat99x/healthcare-assistant-ai/internal/llm"
)

// MockProvider is an in-memory llm.Provider. It records the requests it
// receives and returns a fixed reply or a configured error.
type MockProvider struct {
	mu       sync.Mutex
	Reply    string
	Err      error
	Requests []*llm.Request
}

// NewMockProvider returns a provider that always answers with reply.
func NewMockProvider(reply string) *MockProvider {
	if reply == "" {
		reply = "mock advice"
	}
	return &MockProvider{Reply: reply}
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return &llm.Response{Content: m.Reply, FinishReason: "stop", Model: req.Model}, nil
}

// CallCount returns how many generation requests were made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}
