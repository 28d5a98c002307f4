package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// compatClient talks to OpenAI-compatible chat completion APIs. Groq
// and Cerebras both expose this wire format.
type compatClient struct {
	provider   string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type compatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int64         `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type compatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			// Some reasoning models return their answer here
			// instead of content.
			Reasoning string `json:"reasoning,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

func (c *compatClient) chat(ctx context.Context, model string, req Request) (*Reply, error) {
	messages := make([]chatMessage, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.History {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := compatRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokensOrDefault(req),
		Temperature: req.Temperature,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, newError(c.provider, 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(c.provider, resp.StatusCode, fmt.Errorf("read response: %w", err))
	}

	var parsed compatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, newError(c.provider, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, respBody))
		}
		return nil, newError(c.provider, resp.StatusCode, fmt.Errorf("parse response: %w", err))
	}

	if parsed.Error != nil {
		return nil, newError(c.provider, resp.StatusCode,
			fmt.Errorf("API error: %s (type: %s, code: %s)", parsed.Error.Message, parsed.Error.Type, parsed.Error.Code))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError(c.provider, resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, respBody))
	}
	if len(parsed.Choices) == 0 {
		return nil, newError(c.provider, resp.StatusCode, fmt.Errorf("no choices in response"))
	}

	msg := parsed.Choices[0].Message
	text := msg.Content
	if text == "" {
		text = msg.Reasoning
	}
	return &Reply{Text: text}, nil
}

const groqBaseURL = "https://api.groq.com/openai/v1"

// GroqProvider implements Generator against the Groq-hosted API.
type GroqProvider struct {
	client compatClient
}

// NewGroqProvider creates a Groq generator.
func NewGroqProvider(apiKey string) (*GroqProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	return &GroqProvider{client: compatClient{
		provider:   "groq",
		baseURL:    groqBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}}, nil
}

// Name returns the provider identifier.
func (p *GroqProvider) Name() string { return "groq" }

// Generate sends a chat completion request to Groq.
func (p *GroqProvider) Generate(ctx context.Context, model string, req Request) (*Reply, error) {
	return p.client.chat(ctx, model, req)
}

const cerebrasBaseURL = "https://api.cerebras.ai/v1"

// CerebrasProvider implements Generator against the Cerebras API.
type CerebrasProvider struct {
	client compatClient
}

// NewCerebrasProvider creates a Cerebras generator.
func NewCerebrasProvider(apiKey string) (*CerebrasProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("cerebras API key is required")
	}
	return &CerebrasProvider{client: compatClient{
		provider:   "cerebras",
		baseURL:    cerebrasBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}}, nil
}

// Name returns the provider identifier.
func (p *CerebrasProvider) Name() string { return "cerebras" }

// Generate sends a chat completion request to Cerebras.
func (p *CerebrasProvider) Generate(ctx context.Context, model string, req Request) (*Reply, error) {
	return p.client.chat(ctx, model, req)
}
