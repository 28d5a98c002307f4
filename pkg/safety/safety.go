// Package safety screens chat input and generated output against a
// hosted moderation model. The gate fails open by default: if the
// moderation backend is unreachable or returns garbage, content is
// allowed through and the failure is logged, never surfaced. Stricter
// deployments can flip FailClosed to turn gate failures into errors.
package safety

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	defaultModel    = "meta-llama/llama-guard-4-12b"
	defaultTimeout  = 5 * time.Second
)

// Request carries the content to screen.
type Request struct {
	Content string
	Context string
	UserID  string
}

// Violation is one detected policy breach.
type Violation struct {
	Category    Category
	Severity    Severity
	Description string
}

// Verdict is the outcome of a safety check.
type Verdict struct {
	Safe       bool
	Violations []Violation
	Confidence float64
	Category   Category
}

// Config controls the gate's behavior.
type Config struct {
	Enabled    bool
	FailClosed bool
	Endpoint   string
	Model      string
	APIKey     string
	Timeout    time.Duration
}

// Gate performs moderation checks and records violations per user.
type Gate struct {
	cfg        Config
	httpClient *http.Client
	history    *History
	log        *zap.Logger
}

// NewGate creates a safety gate. A nil logger disables logging.
func NewGate(cfg Config, log *zap.Logger) *Gate {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{
		cfg:        cfg,
		httpClient: &http.Client{},
		history:    NewHistory(),
		log:        log,
	}
}

// Enabled reports whether checks are active.
func (g *Gate) Enabled() bool { return g.cfg.Enabled }

// History exposes the per-user violation log.
func (g *Gate) History() *History { return g.history }

// CheckInput screens user-supplied content before generation.
func (g *Gate) CheckInput(ctx context.Context, req Request) (*Verdict, error) {
	return g.performCheck(ctx, req, CheckInput)
}

// CheckOutput screens generated content before it reaches the caller.
func (g *Gate) CheckOutput(ctx context.Context, req Request) (*Verdict, error) {
	return g.performCheck(ctx, req, CheckOutput)
}

func (g *Gate) performCheck(ctx context.Context, req Request, kind CheckKind) (*Verdict, error) {
	if !g.cfg.Enabled {
		return safeVerdict(), nil
	}
	if g.cfg.APIKey == "" {
		return g.failurePolicy(kind, fmt.Errorf("moderation API key not configured"))
	}

	verdict, err := g.moderate(ctx, req, kind)
	if err != nil {
		return g.failurePolicy(kind, err)
	}

	if !verdict.Safe && len(verdict.Violations) > 0 {
		g.history.Record(req.UserID, verdict.Violations[0], kind)
	}
	return verdict, nil
}

// failurePolicy applies the fail-open/fail-closed choice to a gate
// failure.
func (g *Gate) failurePolicy(kind CheckKind, err error) (*Verdict, error) {
	if g.cfg.FailClosed {
		return nil, fmt.Errorf("safety check unavailable: %w", err)
	}
	g.log.Warn("safety check failed, allowing content",
		zap.String("kind", string(kind)),
		zap.Error(err))
	return safeVerdict(), nil
}

type moderationRequest struct {
	Model       string              `json:"model"`
	Messages    []moderationMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	TopP        float64             `json:"top_p"`
	MaxTokens   int                 `json:"max_tokens"`
	Stream      bool                `json:"stream"`
}

type moderationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type moderationResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (g *Gate) moderate(ctx context.Context, req Request, kind CheckKind) (*Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	userPrompt := req.Content
	if req.Context != "" {
		userPrompt = fmt.Sprintf("Context: %s\n\nContent to check: %s", req.Context, req.Content)
	}

	body := moderationRequest{
		Model: g.cfg.Model,
		Messages: []moderationMessage{
			{Role: "system", Content: moderationPrompt(kind)},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.1,
		TopP:        0.9,
		MaxTokens:   512,
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal moderation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create moderation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read moderation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moderation status %d: %s", resp.StatusCode, respBody)
	}

	var parsed moderationResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse moderation response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("moderation model error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("empty moderation response")
	}

	return parseVerdict(parsed.Choices[0].Message.Content), nil
}

func moderationPrompt(kind CheckKind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a safety classifier. Analyze the following %s for safety violations.\n\n",
		strings.ToLower(string(kind)))
	b.WriteString("Check for these categories:\n")
	descriptions := map[Category]string{
		CategoryHateSpeech:      "Content promoting hatred or discrimination based on protected characteristics",
		CategoryViolence:        "Content depicting, glorifying, or encouraging violence or harm",
		CategorySexualContent:   "Explicit sexual content or sexual exploitation",
		CategorySelfHarm:        "Content encouraging or depicting self-harm or suicide",
		CategoryDangerous:       "Instructions for dangerous activities or harmful substances",
		CategoryHarassment:      "Content intended to harass, bully, or intimidate",
		CategoryIllegalActivity: "Content promoting or facilitating illegal activities",
	}
	for i, c := range Categories() {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, c, descriptions[c])
	}
	b.WriteString(`
Respond in this exact format:
SAFE: [yes/no]
CATEGORY: [category name if unsafe, or NONE if safe]
CONFIDENCE: [0.0-1.0]
SEVERITY: [LOW/MEDIUM/HIGH/CRITICAL if unsafe, or NONE if safe]
DESCRIPTION: [brief explanation]`)
	return b.String()
}

// parseVerdict decodes the classifier's line-oriented reply. Unknown
// lines are ignored; missing fields keep conservative defaults.
func parseVerdict(raw string) *Verdict {
	safe := true
	var category Category
	confidence := 0.95
	severity := SeverityLow
	description := ""

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "SAFE:"):
			v := strings.ToLower(strings.TrimSpace(line[len("SAFE:"):]))
			safe = v == "yes" || v == "true"
		case strings.HasPrefix(line, "CATEGORY:"):
			v := strings.TrimSpace(line[len("CATEGORY:"):])
			if v != "NONE" && Category(v).Valid() {
				category = Category(v)
			}
		case strings.HasPrefix(line, "CONFIDENCE:"):
			v, err := strconv.ParseFloat(strings.TrimSpace(line[len("CONFIDENCE:"):]), 64)
			if err == nil {
				confidence = clamp01(v)
			}
		case strings.HasPrefix(line, "SEVERITY:"):
			v := Severity(strings.TrimSpace(line[len("SEVERITY:"):]))
			if v.Valid() {
				severity = v
			}
		case strings.HasPrefix(line, "DESCRIPTION:"):
			description = strings.TrimSpace(line[len("DESCRIPTION:"):])
		}
	}

	verdict := &Verdict{
		Safe:       safe,
		Violations: []Violation{},
		Confidence: confidence,
		Category:   category,
	}
	if !safe && category != "" {
		if description == "" {
			description = fmt.Sprintf("Content violates %s policy", category)
		}
		verdict.Violations = append(verdict.Violations, Violation{
			Category:    category,
			Severity:    severity,
			Description: description,
		})
	}
	return verdict
}

func safeVerdict() *Verdict {
	return &Verdict{Safe: true, Violations: []Violation{}, Confidence: 1.0}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
