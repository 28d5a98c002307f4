// Package imagen runs the three-stage image generation pipeline:
// enhance the user's prompt, render it to image bytes, persist the
// result. Enhancement never fails (the raw prompt is always usable);
// rendering fails closed with an aggregate error when every provider
// is down; persistence is attempted once.
package imagen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/promptgate/pkg/apperr"
	"github.com/zen-systems/promptgate/pkg/provider"
	"github.com/zen-systems/promptgate/pkg/storage"
)

// Stage identifies a pipeline stage in the audit trail.
type Stage string

const (
	StageEnhance Stage = "ENHANCE"
	StageRender  Stage = "RENDER"
	StagePersist Stage = "PERSIST"
)

// Style selects a fixed prompt style guide.
type Style string

const (
	StyleRealistic Style = "realistic"
	StyleArtistic  Style = "artistic"
	StyleAnime     Style = "anime"
	StyleSketch    Style = "sketch"
)

// guide returns the style's prompt suffix, empty for unknown styles.
func (s Style) guide() string {
	switch s {
	case StyleRealistic:
		return "Style: Photorealistic, high detail, natural lighting, professional photography."
	case StyleArtistic:
		return "Style: Artistic, painterly, expressive brushstrokes, vibrant colors."
	case StyleAnime:
		return "Style: Anime art style, clean lines, cel-shaded, vibrant colors, Japanese animation aesthetic."
	case StyleSketch:
		return "Style: Pencil sketch, hand-drawn, artistic linework, monochrome or light shading."
	}
	return ""
}

const enhanceSystem = `You are an expert image prompt engineer. Rewrite the user's request into a single, detailed, vivid image generation prompt. %s

Rules:
- No intro/outro text, just the prompt
- Be specific about lighting, composition, colors, mood
- Include artistic style if relevant
- Keep it under 200 words
- Make it visually rich and detailed`

const defaultRenderTimeout = 60 * time.Second

// EnhanceStep is one prompt-enhancer backend in preference order.
type EnhanceStep struct {
	Generator provider.Generator
	Model     string
}

// RenderStep is one image renderer backend in preference order.
type RenderStep struct {
	Renderer provider.Renderer
	Model    string
}

// Request is one image generation job.
type Request struct {
	Prompt string
	UserID string
	Style  Style
}

// StageOutcome records one stage attempt for the audit trail.
type StageOutcome struct {
	Stage    Stage
	Provider string
	Success  bool
	Err      error
}

// Result is a completed pipeline run.
type Result struct {
	URL            string
	Path           string
	EnhancedPrompt string
	Provider       string
	Model          string
	Elapsed        time.Duration
	Outcomes       []StageOutcome
}

// Pipeline wires the three stages together.
type Pipeline struct {
	enhancers     []EnhanceStep
	renderers     []RenderStep
	store         storage.Store
	renderTimeout time.Duration
	log           *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithRenderTimeout overrides the per-attempt render timeout.
func WithRenderTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.renderTimeout = d }
}

// New creates an image pipeline. enhancers may be empty; renderers
// must not be.
func New(enhancers []EnhanceStep, renderers []RenderStep, store storage.Store, log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		enhancers:     enhancers,
		renderers:     renderers,
		store:         store,
		renderTimeout: defaultRenderTimeout,
		log:           log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate runs the full pipeline.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	var outcomes []StageOutcome

	enhanced := p.enhance(ctx, req, &outcomes)

	img, step, err := p.render(ctx, enhanced, &outcomes)
	if err != nil {
		return nil, err
	}

	stored, err := p.store.Store(ctx, img.Data, storage.Meta{
		OwnerID:     req.UserID,
		Category:    "generated-image",
		ContentType: img.MIMEType,
	})
	if err != nil {
		outcomes = append(outcomes, StageOutcome{Stage: StagePersist, Provider: "storage", Err: err})
		return nil, fmt.Errorf("persist image: %w", err)
	}
	outcomes = append(outcomes, StageOutcome{Stage: StagePersist, Provider: "storage", Success: true})

	return &Result{
		URL:            stored.URL,
		Path:           stored.Path,
		EnhancedPrompt: enhanced,
		Provider:       step.Renderer.Name(),
		Model:          step.Model,
		Elapsed:        time.Since(start),
		Outcomes:       outcomes,
	}, nil
}

// enhance rewrites the prompt through the enhancer chain. It always
// returns a usable prompt: when every enhancer fails, the raw prompt
// (plus the style guide, if any) is used.
func (p *Pipeline) enhance(ctx context.Context, req Request, outcomes *[]StageOutcome) string {
	guide := req.Style.guide()
	system := fmt.Sprintf(enhanceSystem, guide)

	for _, step := range p.enhancers {
		reply, err := step.Generator.Generate(ctx, step.Model, provider.Request{
			Prompt:      req.Prompt,
			System:      system,
			Temperature: 0.8,
			MaxTokens:   256,
		})
		if err == nil && strings.TrimSpace(reply.Text) != "" {
			*outcomes = append(*outcomes, StageOutcome{
				Stage:    StageEnhance,
				Provider: step.Generator.Name(),
				Success:  true,
			})
			return strings.TrimSpace(reply.Text)
		}
		if err == nil {
			err = fmt.Errorf("empty enhancement")
		}
		*outcomes = append(*outcomes, StageOutcome{
			Stage:    StageEnhance,
			Provider: step.Generator.Name(),
			Err:      err,
		})
		p.log.Warn("prompt enhancement failed",
			zap.String("provider", step.Generator.Name()),
			zap.Error(err))
	}

	*outcomes = append(*outcomes, StageOutcome{Stage: StageEnhance, Provider: "raw", Success: true})
	if guide != "" {
		return req.Prompt + ". " + guide
	}
	return req.Prompt
}

// render tries each renderer in order with a bounded per-attempt
// timeout. When all fail, the error aggregates one attributed line
// per attempt in order.
func (p *Pipeline) render(ctx context.Context, prompt string, outcomes *[]StageOutcome) (*provider.Image, RenderStep, error) {
	var failures []string
	for _, step := range p.renderers {
		attemptCtx, cancel := context.WithTimeout(ctx, p.renderTimeout)
		img, err := step.Renderer.Render(attemptCtx, step.Model, prompt)
		cancel()

		if err == nil && img != nil && len(img.Data) > 0 {
			*outcomes = append(*outcomes, StageOutcome{
				Stage:    StageRender,
				Provider: step.Renderer.Name(),
				Success:  true,
			})
			return img, step, nil
		}
		if err == nil {
			err = fmt.Errorf("no image data in response")
		}
		*outcomes = append(*outcomes, StageOutcome{
			Stage:    StageRender,
			Provider: step.Renderer.Name(),
			Err:      err,
		})
		failures = append(failures, fmt.Sprintf("%s/%s: %v", step.Renderer.Name(), step.Model, err))
		p.log.Warn("render attempt failed",
			zap.String("provider", step.Renderer.Name()),
			zap.String("model", step.Model),
			zap.Error(err))

		if ctx.Err() != nil {
			return nil, RenderStep{}, ctx.Err()
		}
	}

	return nil, RenderStep{}, apperr.New(apperr.CodeAllModelsFailed,
		fmt.Sprintf("image generation failed, all providers unavailable: %s", strings.Join(failures, "; ")))
}
