package provider

import (
	"context"
	"fmt"
	"sync"
)

// MockGenerator returns deterministic replies for local runs and tests.
type MockGenerator struct {
	mu        sync.Mutex
	name      string
	responses map[string]string
	errs      []error
	calls     int
}

// NewMockGenerator creates a mock generator named "mock".
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{name: "mock", responses: make(map[string]string)}
}

// NewMockGeneratorNamed creates a mock generator with a custom name.
func NewMockGeneratorNamed(name string) *MockGenerator {
	return &MockGenerator{name: name, responses: make(map[string]string)}
}

// Respond registers a canned reply for a prompt.
func (m *MockGenerator) Respond(prompt, reply string) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = reply
	return m
}

// FailWith queues errors returned by subsequent calls, in order, before
// any successful reply.
func (m *MockGenerator) FailWith(errs ...error) *MockGenerator {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
	return m
}

// Calls returns how many times Generate was invoked.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name returns the provider identifier.
func (m *MockGenerator) Name() string { return m.name }

// Generate returns a queued error or a deterministic reply.
func (m *MockGenerator) Generate(ctx context.Context, model string, req Request) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	if reply, ok := m.responses[req.Prompt]; ok {
		return &Reply{Text: reply}, nil
	}
	return &Reply{Text: fmt.Sprintf("mock response:\n%s", req.Prompt)}, nil
}

// MockRenderer returns fixed image bytes or scripted failures.
type MockRenderer struct {
	mu    sync.Mutex
	name  string
	data  []byte
	err   error
	calls int
}

// NewMockRenderer creates a renderer that always succeeds with data.
func NewMockRenderer(name string, data []byte) *MockRenderer {
	return &MockRenderer{name: name, data: data}
}

// NewFailingRenderer creates a renderer that always fails with err.
func NewFailingRenderer(name string, err error) *MockRenderer {
	return &MockRenderer{name: name, err: err}
}

// Calls returns how many times Render was invoked.
func (m *MockRenderer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Name returns the provider identifier.
func (m *MockRenderer) Name() string { return m.name }

// Render returns the configured bytes or error.
func (m *MockRenderer) Render(ctx context.Context, model string, prompt string) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &Image{Data: m.data, MIMEType: "image/png"}, nil
}
