// Package router decides which model serves a request. The auto
// router picks from classification or an explicit category; the
// command router handles slash-directive messages with per-command
// category preferences. Neither router ever returns a model the
// registry reports unavailable.
package router

import (
	"fmt"

	"github.com/zen-systems/promptgate/pkg/classify"
	"github.com/zen-systems/promptgate/pkg/registry"
)

// ModelAuto asks the router to pick a model from classification.
const ModelAuto = "auto"

// Result describes a routing decision.
type Result struct {
	Model          registry.Model
	Classification classify.Classification
	AutoRouted     bool
	FallbackUsed   bool
	Reasoning      string
}

// AutoRouter selects models from classification and registry state.
type AutoRouter struct {
	registry   *registry.Registry
	classifier *classify.Classifier
}

// NewAutoRouter creates an auto router over the given registry and
// classifier.
func NewAutoRouter(reg *registry.Registry, cls *classify.Classifier) *AutoRouter {
	return &AutoRouter{registry: reg, classifier: cls}
}

// SelectModel classifies the query and picks the highest-priority
// available model for the resulting category. An explicit non-empty
// category preference wins over classification. If the category has
// no available models, the registry default is substituted.
func (r *AutoRouter) SelectModel(query string, preferred registry.Category) *Result {
	classification := r.classifier.Classify(query)

	target := classification.Category
	source := "classification"
	if preferred != "" {
		target = preferred
		source = "explicit preference"
	}

	if models := r.registry.ByCategory(target); len(models) > 0 {
		return &Result{
			Model:          models[0],
			Classification: classification,
			AutoRouted:     true,
			Reasoning: fmt.Sprintf("selected %s for %s category (%s); %s",
				models[0].Name, target, source, classification.Reasoning),
		}
	}

	def := r.registry.Default()
	return &Result{
		Model:          def,
		Classification: classification,
		AutoRouted:     true,
		FallbackUsed:   true,
		Reasoning: fmt.Sprintf("no available models for %s category; %s; falling back to %s",
			target, classification.Reasoning, def.Name),
	}
}

// ModelWithFallback resolves an explicit model choice, substituting
// the model's declared fallback when unavailable and the registry
// default when unknown.
func (r *AutoRouter) ModelWithFallback(modelID string) *Result {
	model, ok := r.registry.Get(modelID)
	if ok && model.Available {
		return &Result{
			Model:     model,
			Reasoning: fmt.Sprintf("using requested model %s", model.Name),
		}
	}

	if ok {
		fb := r.registry.FallbackFor(modelID)
		return &Result{
			Model:        fb,
			FallbackUsed: true,
			Reasoning:    fmt.Sprintf("model %s is unavailable; substituting %s", model.Name, fb.Name),
		}
	}

	def := r.registry.Default()
	return &Result{
		Model:        def,
		FallbackUsed: true,
		Reasoning:    fmt.Sprintf("model %q not found; substituting default %s", modelID, def.Name),
	}
}

// Route is the single entry point for chat routing: "auto" (or empty)
// delegates to SelectModel, anything else is treated as an explicit
// model ID. Manual selection always wins over classification.
func (r *AutoRouter) Route(query, modelSetting string, preferred registry.Category) *Result {
	if modelSetting == "" || modelSetting == ModelAuto {
		return r.SelectModel(query, preferred)
	}
	return r.ModelWithFallback(modelSetting)
}
