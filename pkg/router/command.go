package router

import (
	"fmt"

	"github.com/zen-systems/promptgate/pkg/classify"
	"github.com/zen-systems/promptgate/pkg/command"
	"github.com/zen-systems/promptgate/pkg/registry"
)

// CommandResult extends Result with the parsed directive.
type CommandResult struct {
	Result
	Command      command.Kind
	Content      string
	CodeDetected bool
}

// CommandRouter routes slash-directive messages by command type.
type CommandRouter struct {
	registry *registry.Registry
}

// NewCommandRouter creates a command router over the given registry.
func NewCommandRouter(reg *registry.Registry) *CommandRouter {
	return &CommandRouter{registry: reg}
}

// RouteCommand inspects the message for a directive and resolves a
// model for it. Returns nil when the message carries no directive.
// Outside auto mode an explicit, available user model preference is
// honored unconditionally. A solve directive whose payload contains
// code is redirected to the coding category before category lookup.
func (r *CommandRouter) RouteCommand(message, userModel string, autoMode bool) *CommandResult {
	cmd, ok := command.Detect(message)
	if !ok {
		return nil
	}

	if !autoMode && userModel != "" && userModel != ModelAuto {
		if model, found := r.registry.Get(userModel); found && model.Available {
			return &CommandResult{
				Result: Result{
					Model:     model,
					Reasoning: fmt.Sprintf("honoring user model %s for /%s command", model.Name, cmd.Kind),
				},
				Command: cmd.Kind,
				Content: cmd.Content,
			}
		}
	}

	route, _ := command.RouteFor(cmd.Kind)
	preferred := route.PreferredCategory

	codeDetected := false
	if cmd.Kind == command.KindSolve && classify.ContainsCode(cmd.Content) {
		preferred = registry.CategoryCoding
		codeDetected = true
	}

	if models := r.registry.ByCategory(preferred); len(models) > 0 {
		return &CommandResult{
			Result: Result{
				Model:      models[0],
				AutoRouted: true,
				Reasoning:  fmt.Sprintf("/%s command routed to %s (%s category)", cmd.Kind, models[0].Name, preferred),
			},
			Command:      cmd.Kind,
			Content:      cmd.Content,
			CodeDetected: codeDetected,
		}
	}

	if models := r.registry.ByCategory(route.FallbackCategory); len(models) > 0 {
		return &CommandResult{
			Result: Result{
				Model:        models[0],
				AutoRouted:   true,
				FallbackUsed: true,
				Reasoning: fmt.Sprintf("/%s command: no %s models available, using %s (%s category)",
					cmd.Kind, preferred, models[0].Name, route.FallbackCategory),
			},
			Command:      cmd.Kind,
			Content:      cmd.Content,
			CodeDetected: codeDetected,
		}
	}

	def := r.registry.Default()
	return &CommandResult{
		Result: Result{
			Model:        def,
			AutoRouted:   true,
			FallbackUsed: true,
			Reasoning: fmt.Sprintf("/%s command: no %s or %s models available, using default %s",
				cmd.Kind, preferred, route.FallbackCategory, def.Name),
		},
		Command:      cmd.Kind,
		Content:      cmd.Content,
		CodeDetected: codeDetected,
	}
}
