package provider

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GoogleProvider implements Generator and Renderer for Gemini models.
type GoogleProvider struct {
	client *genai.Client
}

// NewGoogleProvider creates a Google Gemini provider.
func NewGoogleProvider(ctx context.Context, apiKey string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("google API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create google client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

// Name returns the provider identifier.
func (p *GoogleProvider) Name() string { return "google" }

// Generate sends the request to Gemini and returns the reply text.
func (p *GoogleProvider) Generate(ctx context.Context, model string, req Request) (*Reply, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == "assistant" || m.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Prompt, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokensOrDefault(req)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(req.Temperature))
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, normalizeGoogleErr(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, newError("google", 0, fmt.Errorf("no candidates in response"))
	}

	var content string
	if resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
		}
	}
	return &Reply{Text: content}, nil
}

// Render asks an image-capable Gemini model for image bytes.
func (p *GoogleProvider) Render(ctx context.Context, model string, prompt string) (*Image, error) {
	contents := []*genai.Content{
		genai.NewContentFromText("Generate an image: "+prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE"},
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, normalizeGoogleErr(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, newError("google", 0, fmt.Errorf("no candidates in response"))
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			mime := part.InlineData.MIMEType
			if mime == "" {
				mime = "image/png"
			}
			return &Image{Data: part.InlineData.Data, MIMEType: mime}, nil
		}
	}
	return nil, newError("google", 0, fmt.Errorf("no image in response; model may not support image generation"))
}

func normalizeGoogleErr(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newError("google", apiErr.Code, err)
	}
	return newError("google", 0, err)
}
