package main

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zen-systems/promptgate/pkg/classify"
	"github.com/zen-systems/promptgate/pkg/config"
	"github.com/zen-systems/promptgate/pkg/fallback"
	"github.com/zen-systems/promptgate/pkg/imagen"
	"github.com/zen-systems/promptgate/pkg/metrics"
	"github.com/zen-systems/promptgate/pkg/orchestrator"
	"github.com/zen-systems/promptgate/pkg/provider"
	"github.com/zen-systems/promptgate/pkg/registry"
	"github.com/zen-systems/promptgate/pkg/router"
	"github.com/zen-systems/promptgate/pkg/safety"
	"github.com/zen-systems/promptgate/pkg/storage"
)

// app wires every component from configuration. The pipeline is nil
// when no image-capable provider has a key.
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	registry *registry.Registry
	orch     *orchestrator.Orchestrator
	pipeline *imagen.Pipeline
	metrics  *metrics.Metrics
	fs       afero.Fs
}

func buildApp(configFile string, m *metrics.Metrics) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	log, err := buildLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	catalog := registry.DefaultCatalog()
	if cfg.CatalogPath != "" {
		catalog, err = registry.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
	}
	reg, err := registry.New(catalog, cfg.HasProvider)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	generators, renderers, err := buildProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if len(generators) == 0 {
		return nil, fmt.Errorf("no providers configured; set at least one API key (e.g. GROQ_API_KEY)")
	}

	gate := safety.NewGate(safety.Config{
		Enabled:    cfg.Safety.Enabled,
		FailClosed: cfg.Safety.FailClosed,
		Endpoint:   cfg.Safety.Endpoint,
		Model:      cfg.Safety.Model,
		APIKey:     cfg.GroqAPIKey,
		Timeout:    cfg.Safety.Timeout,
	}, log)

	classifier := classify.New()
	engine := fallback.New(reg, generators, fallback.Config{}, log)
	orch := orchestrator.New(
		gate,
		classifier,
		router.NewAutoRouter(reg, classifier),
		router.NewCommandRouter(reg),
		engine,
		m,
		log,
	)

	fs := afero.NewOsFs()
	pipeline := buildPipeline(cfg, generators, renderers, fs, log)

	return &app{
		cfg:      cfg,
		log:      log,
		registry: reg,
		orch:     orch,
		pipeline: pipeline,
		metrics:  m,
		fs:       fs,
	}, nil
}

// buildProviders constructs a client per configured API key.
func buildProviders(ctx context.Context, cfg *config.Config) (map[string]provider.Generator, map[string]provider.Renderer, error) {
	generators := make(map[string]provider.Generator)
	renderers := make(map[string]provider.Renderer)

	if cfg.GroqAPIKey != "" {
		p, err := provider.NewGroqProvider(cfg.GroqAPIKey)
		if err != nil {
			return nil, nil, err
		}
		generators["groq"] = p
	}
	if cfg.CerebrasAPIKey != "" {
		p, err := provider.NewCerebrasProvider(cfg.CerebrasAPIKey)
		if err != nil {
			return nil, nil, err
		}
		generators["cerebras"] = p
	}
	if cfg.AnthropicAPIKey != "" {
		p, err := provider.NewAnthropicProvider(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, nil, err
		}
		generators["anthropic"] = p
	}
	if cfg.OpenAIAPIKey != "" {
		p, err := provider.NewOpenAIProvider(cfg.OpenAIAPIKey)
		if err != nil {
			return nil, nil, err
		}
		generators["openai"] = p
	}
	if cfg.GoogleAPIKey != "" {
		p, err := provider.NewGoogleProvider(ctx, cfg.GoogleAPIKey)
		if err != nil {
			return nil, nil, err
		}
		generators["google"] = p
		renderers["google"] = p
	}
	if cfg.HuggingFaceAPIKey != "" {
		p, err := provider.NewHuggingFaceProvider(cfg.HuggingFaceAPIKey)
		if err != nil {
			return nil, nil, err
		}
		renderers["huggingface"] = p
	}

	return generators, renderers, nil
}

// buildPipeline assembles the image pipeline from whatever providers
// are configured. Enhancement prefers the fast Cerebras model, then
// Groq; with neither key the raw prompt is used. Returns nil when no
// renderer is available.
func buildPipeline(cfg *config.Config, generators map[string]provider.Generator, renderers map[string]provider.Renderer, fs afero.Fs, log *zap.Logger) *imagen.Pipeline {
	var enhancers []imagen.EnhanceStep
	if gen, ok := generators["cerebras"]; ok {
		enhancers = append(enhancers, imagen.EnhanceStep{Generator: gen, Model: "llama3.1-8b"})
	}
	if gen, ok := generators["groq"]; ok {
		enhancers = append(enhancers, imagen.EnhanceStep{Generator: gen, Model: "llama-3.3-70b-versatile"})
	}

	var steps []imagen.RenderStep
	if r, ok := renderers["google"]; ok {
		steps = append(steps, imagen.RenderStep{Renderer: r, Model: "gemini-2.0-flash-exp-image-generation"})
	}
	if r, ok := renderers["huggingface"]; ok {
		steps = append(steps, imagen.RenderStep{Renderer: r, Model: "black-forest-labs/FLUX.1-schnell"})
	}
	if len(steps) == 0 {
		return nil
	}

	store := storage.NewFileStore(fs, cfg.Storage.Root, cfg.Storage.BaseURL)
	return imagen.New(enhancers, steps, store, log)
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func (a *app) Close() {
	// Stderr sync failures are expected on some platforms.
	_ = a.log.Sync()
}
