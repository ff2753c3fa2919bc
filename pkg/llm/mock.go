package llm

import (
	"context"
	"sync"
)

// MockPhraser is a configurable Phraser for tests.
type MockPhraser struct {
	// PhraseFunc is called when Phrase is invoked. If nil, the draft is
	// returned unchanged.
	PhraseFunc func(ctx context.Context, req PhraseRequest) (string, error)

	// ModelName is returned by Model. Defaults to "mock-model".
	ModelName string

	mu       sync.Mutex
	requests []PhraseRequest
}

// NewMockPhraser creates a new mock with sensible defaults.
func NewMockPhraser() *MockPhraser {
	return &MockPhraser{ModelName: "mock-model"}
}

// Phrase implements Phraser.
func (m *MockPhraser) Phrase(ctx context.Context, req PhraseRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.PhraseFunc != nil {
		return m.PhraseFunc(ctx, req)
	}
	return req.Draft, nil
}

// Model implements Phraser.
func (m *MockPhraser) Model() string {
	return m.ModelName
}

// Requests returns the requests received so far.
func (m *MockPhraser) Requests() []PhraseRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PhraseRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

var _ Phraser = (*MockPhraser)(nil)
