// Package fallback drives generation across an ordered sequence of
// candidate models. Attempts are strictly sequential: a model is only
// tried after the previous one has definitively failed. Transient
// errors within a model are retried with exponential backoff; critical
// errors advance to the next candidate immediately. Per-model circuit
// breakers skip models that have been failing repeatedly.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/zen-systems/promptgate/pkg/apperr"
	"github.com/zen-systems/promptgate/pkg/provider"
	"github.com/zen-systems/promptgate/pkg/registry"
)

// maxCandidates bounds how many models one request may try.
const maxCandidates = 3

// contextBudget is the fraction of a model's context window usable
// before the request is rejected as too large.
const contextBudget = 0.8

// Request is a generation request plus routing hints.
type Request struct {
	provider.Request
	PreferredModel string
	Category       registry.Category
}

// Attempt records one failed model attempt.
type Attempt struct {
	ModelID string
	Err     error
	At      time.Time
}

// Result is a successful generation with its attempt history.
type Result struct {
	Reply             *provider.Reply
	Model             registry.Model
	Attempts          []Attempt
	FallbackTriggered bool
}

// Config tunes the engine.
type Config struct {
	// MaxRetries is the number of in-model retries for transient errors.
	MaxRetries uint64
	// AttemptTimeout bounds a single backend call. Zero means no bound
	// beyond the caller's context.
	AttemptTimeout time.Duration
	// InitialBackoff seeds the exponential retry delay.
	InitialBackoff time.Duration
	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration
}

func (c *Config) defaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
}

// Engine sequences generation attempts across candidate models.
type Engine struct {
	registry   *registry.Registry
	generators map[string]provider.Generator
	breakers   map[string]*gobreaker.CircuitBreaker
	cfg        Config
	log        *zap.Logger
}

// New creates a fallback engine. generators is keyed by provider name;
// models whose provider has no generator are skipped at attempt time.
func New(reg *registry.Registry, generators map[string]provider.Generator, cfg Config, log *zap.Logger) *Engine {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop()
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, m := range reg.All() {
		breakers[m.ID] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:     m.ID,
			Interval: time.Minute,
			Timeout:  30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		})
	}

	return &Engine{
		registry:   reg,
		generators: generators,
		breakers:   breakers,
		cfg:        cfg,
		log:        log,
	}
}

// Generate tries the candidate models in order until one succeeds.
// On exhaustion, the returned error carries code ALL_MODELS_FAILED
// and aggregates every attempt's model and reason in order.
func (e *Engine) Generate(ctx context.Context, req Request) (*Result, error) {
	candidates := e.candidates(req.PreferredModel, req.Category)
	if len(candidates) == 0 {
		return nil, apperr.New(apperr.CodeAllModelsFailed, "no models available for any configured provider")
	}

	var attempts []Attempt
	for i, model := range candidates {
		reply, err := e.tryModel(ctx, model, req.Request)
		if err == nil {
			return &Result{
				Reply:             reply,
				Model:             model,
				Attempts:          attempts,
				FallbackTriggered: i > 0,
			}, nil
		}

		attempts = append(attempts, Attempt{ModelID: model.ID, Err: err, At: time.Now().UTC()})
		e.log.Warn("generation attempt failed",
			zap.String("model", model.ID),
			zap.Int("attempt", i+1),
			zap.Error(err))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, e.exhausted(attempts)
}

// candidates builds the ordered model list: the preferred model when
// available, then same-category models in priority order, then any
// available model, capped at maxCandidates.
func (e *Engine) candidates(preferredID string, category registry.Category) []registry.Model {
	var out []registry.Model
	seen := make(map[string]bool)

	add := func(m registry.Model) {
		if !seen[m.ID] && m.Available {
			seen[m.ID] = true
			out = append(out, m)
		}
	}

	if preferredID != "" {
		if m, ok := e.registry.Get(preferredID); ok {
			add(m)
		}
	}
	if category != "" {
		for _, m := range e.registry.ByCategory(category) {
			add(m)
		}
	}
	if len(out) == 0 {
		for _, m := range e.registry.All() {
			add(m)
		}
	}

	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// tryModel runs one model's attempt loop: context-window guard,
// circuit breaker, and backoff retries for transient errors.
func (e *Engine) tryModel(ctx context.Context, model registry.Model, req provider.Request) (*provider.Reply, error) {
	if err := e.checkContextWindow(model, req); err != nil {
		return nil, err
	}

	gen, ok := e.generators[model.Provider]
	if !ok {
		return nil, fmt.Errorf("no generator configured for provider %s", model.Provider)
	}

	breaker := e.breakers[model.ID]

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialBackoff
	bo.MaxInterval = e.cfg.MaxBackoff

	var reply *provider.Reply
	op := func() error {
		attemptCtx := ctx
		if e.cfg.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, e.cfg.AttemptTimeout)
			defer cancel()
		}

		out, err := breaker.Execute(func() (interface{}, error) {
			return gen.Generate(attemptCtx, model.ID, req)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("circuit open for %s: %w", model.ID, err))
			}
			if provider.IsCritical(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		reply = out.(*provider.Reply)
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, e.cfg.MaxRetries), ctx))
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// checkContextWindow estimates the request size (4 chars per token)
// against the model's usable window. Oversized requests fail without
// touching the backend.
func (e *Engine) checkContextWindow(model registry.Model, req provider.Request) error {
	if model.ContextWindow <= 0 {
		return nil
	}

	chars := len(req.Prompt) + len(req.System)
	for _, m := range req.History {
		chars += len(m.Content)
	}
	estimated := (chars + 3) / 4

	limit := int(float64(model.ContextWindow) * contextBudget)
	if estimated > limit {
		return apperr.New(apperr.CodeContextTooLarge,
			fmt.Sprintf("estimated %d tokens exceeds %s limit of %d; trim the conversation history", estimated, model.Name, limit))
	}
	return nil
}

func (e *Engine) exhausted(attempts []Attempt) error {
	lines := make([]string, len(attempts))
	ids := make([]string, len(attempts))
	for i, a := range attempts {
		lines[i] = fmt.Sprintf("%s: %v", a.ModelID, a.Err)
		ids[i] = a.ModelID
	}
	err := apperr.New(apperr.CodeAllModelsFailed,
		fmt.Sprintf("all models failed (%s): %s", strings.Join(ids, ", "), strings.Join(lines, "; ")))
	return err.WithDetail("attempts", lines)
}
