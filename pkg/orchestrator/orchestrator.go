// Package orchestrator runs the chat request lifecycle: input safety,
// advisory classification, routing, generation with fallback, output
// safety. Validation and safety rejections terminate the request
// before any generation backend is called.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zen-systems/promptgate/pkg/apperr"
	"github.com/zen-systems/promptgate/pkg/classify"
	"github.com/zen-systems/promptgate/pkg/command"
	"github.com/zen-systems/promptgate/pkg/fallback"
	"github.com/zen-systems/promptgate/pkg/metrics"
	"github.com/zen-systems/promptgate/pkg/provider"
	"github.com/zen-systems/promptgate/pkg/registry"
	"github.com/zen-systems/promptgate/pkg/router"
	"github.com/zen-systems/promptgate/pkg/safety"
)

// maxMessageLen bounds the accepted chat message size in characters.
const maxMessageLen = 10000

// ChatRequest is one inbound chat turn.
type ChatRequest struct {
	Message  string
	History  []provider.Message
	UserID   string
	Model    string
	Category registry.Category
}

// ChatResult is a completed chat turn.
type ChatResult struct {
	Content        string
	ModelUsed      string
	AutoRouted     bool
	FallbackUsed   bool
	Classification classify.Classification
	Command        command.Kind
	CodeDetected   bool
	ResponseTime   time.Duration
}

// Orchestrator wires the gate, classifier, routers, and fallback
// engine together.
type Orchestrator struct {
	gate       *safety.Gate
	classifier *classify.Classifier
	autoRouter *router.AutoRouter
	cmdRouter  *router.CommandRouter
	engine     *fallback.Engine
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// New creates an orchestrator. metrics may be nil.
func New(gate *safety.Gate, cls *classify.Classifier, auto *router.AutoRouter, cmd *router.CommandRouter, engine *fallback.Engine, m *metrics.Metrics, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		gate:       gate,
		classifier: cls,
		autoRouter: auto,
		cmdRouter:  cmd,
		engine:     engine,
		metrics:    m,
		log:        log,
	}
}

// ValidateMessage enforces the inbound message contract. It is split
// out so the HTTP layer can reject bad requests with the right code
// before the lifecycle starts.
func ValidateMessage(message string, present bool) error {
	if !present {
		return apperr.New(apperr.CodeMissingMessage, "message is required")
	}
	if message == "" {
		return apperr.New(apperr.CodeEmptyMessage, "message must not be empty")
	}
	if len(message) > maxMessageLen {
		return apperr.New(apperr.CodeMessageTooLong,
			fmt.Sprintf("message exceeds %d characters", maxMessageLen))
	}
	return nil
}

// Chat runs the full lifecycle for one message.
func (o *Orchestrator) Chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	start := time.Now()

	res, err := o.chat(ctx, req)
	elapsed := time.Since(start)

	if o.metrics != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(apperr.CodeOf(err))
		}
		o.metrics.ChatRequests.WithLabelValues(outcome).Inc()
		o.metrics.ChatDuration.Observe(elapsed.Seconds())
	}
	if err != nil {
		return nil, err
	}
	res.ResponseTime = elapsed
	return res, nil
}

func (o *Orchestrator) chat(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	if err := ValidateMessage(req.Message, true); err != nil {
		return nil, err
	}

	if err := o.checkInput(ctx, req); err != nil {
		return nil, err
	}

	// Advisory only: routing has its own classification where it
	// needs one, and a command route carries none.
	classification := o.classifier.Classify(req.Message)

	route, prompt := o.route(req)
	if route.Classification == (classify.Classification{}) {
		route.Classification = classification
	}

	gen, err := o.engine.Generate(ctx, fallback.Request{
		Request: provider.Request{
			Prompt:  prompt,
			History: req.History,
		},
		PreferredModel: route.Model.ID,
		Category:       route.Model.Category,
	})
	if err != nil {
		return nil, o.classifyGenErr(err)
	}

	if o.metrics != nil {
		o.metrics.ModelSelections.WithLabelValues(gen.Model.ID).Inc()
		if gen.FallbackTriggered {
			o.metrics.FallbackTrips.Inc()
		}
	}

	if err := o.checkOutput(ctx, req, gen.Reply.Text); err != nil {
		return nil, err
	}

	return &ChatResult{
		Content:        gen.Reply.Text,
		ModelUsed:      gen.Model.ID,
		AutoRouted:     route.AutoRouted,
		FallbackUsed:   route.FallbackUsed || gen.FallbackTriggered,
		Classification: route.Classification,
		Command:        route.Command,
		CodeDetected:   route.CodeDetected,
	}, nil
}

// routeOutcome flattens the command/auto router results.
type routeOutcome struct {
	Model          registry.Model
	Classification classify.Classification
	AutoRouted     bool
	FallbackUsed   bool
	Command        command.Kind
	CodeDetected   bool
}

// route resolves a model, consulting the command router first. The
// returned prompt is the directive payload for command messages and
// the raw message otherwise.
func (o *Orchestrator) route(req ChatRequest) (routeOutcome, string) {
	autoMode := req.Model == "" || req.Model == router.ModelAuto

	if cmdRes := o.cmdRouter.RouteCommand(req.Message, req.Model, autoMode); cmdRes != nil {
		o.log.Debug("command route",
			zap.String("command", string(cmdRes.Command)),
			zap.String("model", cmdRes.Model.ID),
			zap.String("reasoning", cmdRes.Reasoning))
		return routeOutcome{
			Model:          cmdRes.Model,
			Classification: cmdRes.Classification,
			AutoRouted:     cmdRes.AutoRouted,
			FallbackUsed:   cmdRes.FallbackUsed,
			Command:        cmdRes.Command,
			CodeDetected:   cmdRes.CodeDetected,
		}, cmdRes.Content
	}

	autoRes := o.autoRouter.Route(req.Message, req.Model, req.Category)
	o.log.Debug("auto route",
		zap.String("model", autoRes.Model.ID),
		zap.String("reasoning", autoRes.Reasoning))
	return routeOutcome{
		Model:          autoRes.Model,
		Classification: autoRes.Classification,
		AutoRouted:     autoRes.AutoRouted,
		FallbackUsed:   autoRes.FallbackUsed,
	}, req.Message
}

func (o *Orchestrator) checkInput(ctx context.Context, req ChatRequest) error {
	verdict, err := o.gate.CheckInput(ctx, safety.Request{
		Content: req.Message,
		UserID:  req.UserID,
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeSafetyViolation, "input safety check failed", err)
	}
	if verdict.Safe {
		return nil
	}

	v := firstViolation(verdict)
	if o.metrics != nil {
		o.metrics.SafetyBlocks.WithLabelValues(string(v.Category), string(safety.CheckInput)).Inc()
	}
	return apperr.New(apperr.CodeSafetyViolation,
		fmt.Sprintf("input blocked: %s", v.Description)).
		WithDetail("category", string(v.Category)).
		WithDetail("severity", string(v.Severity)).
		WithDetail("confidence", verdict.Confidence)
}

func (o *Orchestrator) checkOutput(ctx context.Context, req ChatRequest, content string) error {
	verdict, err := o.gate.CheckOutput(ctx, safety.Request{
		Content: content,
		Context: req.Message,
		UserID:  req.UserID,
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeUnsafeOutput, "output safety check failed", err)
	}
	if verdict.Safe {
		return nil
	}

	v := firstViolation(verdict)
	if o.metrics != nil {
		o.metrics.SafetyBlocks.WithLabelValues(string(v.Category), string(safety.CheckOutput)).Inc()
	}
	return apperr.New(apperr.CodeUnsafeOutput,
		fmt.Sprintf("generated content withheld: %s", v.Description)).
		WithDetail("category", string(v.Category)).
		WithDetail("severity", string(v.Severity)).
		WithDetail("confidence", verdict.Confidence)
}

// classifyGenErr maps generation failures onto the error taxonomy,
// preserving codes that are already typed.
func (o *Orchestrator) classifyGenErr(err error) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperr.Wrap(provider.ClassifyCode(err), "generation failed", err)
}

func firstViolation(v *safety.Verdict) safety.Violation {
	if len(v.Violations) > 0 {
		return v.Violations[0]
	}
	return safety.Violation{
		Category:    v.Category,
		Severity:    safety.SeverityLow,
		Description: "content flagged by safety gate",
	}
}
