// Package provider wraps the external AI backends behind uniform
// Generator and Renderer contracts. Each implementation normalizes its
// transport-specific failures into *Error before they reach routing or
// fallback logic.
package provider

import "context"

// Message is one turn of prior conversation passed as context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries everything a text generation call needs besides the
// model id.
type Request struct {
	Prompt      string
	System      string
	History     []Message
	Temperature float64
	MaxTokens   int64
}

// Reply is a normalized text generation result.
type Reply struct {
	Text string
}

// Image is a normalized binary render result.
type Image struct {
	Data     []byte
	MIMEType string
}

// Generator produces text from a prompt.
type Generator interface {
	// Generate sends the request to the named model.
	Generate(ctx context.Context, model string, req Request) (*Reply, error)

	// Name returns the provider identifier.
	Name() string
}

// Renderer produces image bytes from a prompt.
type Renderer interface {
	// Render turns a prompt into binary image data.
	Render(ctx context.Context, model string, prompt string) (*Image, error)

	// Name returns the provider identifier.
	Name() string
}

const defaultMaxTokens = 4096

func maxTokensOrDefault(req Request) int64 {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return defaultMaxTokens
}
