package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const huggingFaceImagesURL = "https://router.huggingface.co/together/v1/images/generations"

// HuggingFaceProvider implements Renderer via the Hugging Face
// inference router (Together-hosted diffusion models).
type HuggingFaceProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

type hfImageRequest struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model"`
	ResponseFormat string `json:"response_format"`
}

type hfImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewHuggingFaceProvider creates a Hugging Face renderer.
func NewHuggingFaceProvider(apiKey string) (*HuggingFaceProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("huggingface API key is required")
	}
	return &HuggingFaceProvider{
		apiKey:     apiKey,
		baseURL:    huggingFaceImagesURL,
		httpClient: &http.Client{},
	}, nil
}

// Name returns the provider identifier.
func (p *HuggingFaceProvider) Name() string { return "huggingface" }

// Render generates image bytes for a prompt.
func (p *HuggingFaceProvider) Render(ctx context.Context, model string, prompt string) (*Image, error) {
	body, err := json.Marshal(hfImageRequest{
		Prompt:         prompt,
		Model:          model,
		ResponseFormat: "base64",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, newError("huggingface", 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError("huggingface", resp.StatusCode, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newError("huggingface", resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, respBody))
	}

	var parsed hfImageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, newError("huggingface", resp.StatusCode, fmt.Errorf("parse response: %w", err))
	}
	if parsed.Error != nil {
		return nil, newError("huggingface", resp.StatusCode, fmt.Errorf("API error: %s", parsed.Error.Message))
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, newError("huggingface", resp.StatusCode, fmt.Errorf("no image data in response"))
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return nil, newError("huggingface", resp.StatusCode, fmt.Errorf("decode image: %w", err))
	}
	return &Image{Data: data, MIMEType: "image/jpeg"}, nil
}
