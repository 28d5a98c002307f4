// Package command detects explicit directives ("/solve", "/search",
// "/summarize") embedded in an inbound message.
package command

import (
	"strings"

	"github.com/zen-systems/promptgate/pkg/registry"
)

// Kind identifies a recognized directive.
type Kind string

const (
	KindSolve     Kind = "solve"
	KindSearch    Kind = "search"
	KindSummarize Kind = "summarize"
)

// Route describes which category a directive prefers and where it
// falls back when that category has no models.
type Route struct {
	Kind              Kind
	PreferredCategory registry.Category
	FallbackCategory  registry.Category
}

// routes maps the directive prefix to its routing preferences. The
// token match is case-sensitive; the payload passes through verbatim.
var routes = map[string]Route{
	"/solve": {
		Kind:              KindSolve,
		PreferredCategory: registry.CategoryMath,
		FallbackCategory:  registry.CategoryGeneral,
	},
	"/search": {
		Kind:              KindSearch,
		PreferredCategory: registry.CategoryGeneral,
		FallbackCategory:  registry.CategoryGeneral,
	},
	"/summarize": {
		Kind:              KindSummarize,
		PreferredCategory: registry.CategoryGeneral,
		FallbackCategory:  registry.CategoryGeneral,
	},
}

// Command is a detected directive plus its payload.
type Command struct {
	Kind    Kind
	Content string
}

// Detect parses a message for a leading directive. It returns false
// for empty messages, unknown prefixes, and directives with no
// payload ("/solve" alone is not a solve command).
func Detect(message string) (Command, bool) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return Command{}, false
	}

	for prefix, route := range routes {
		if !strings.HasPrefix(trimmed, prefix+" ") {
			continue
		}
		content := strings.TrimSpace(trimmed[len(prefix)+1:])
		if content == "" {
			return Command{}, false
		}
		return Command{Kind: route.Kind, Content: content}, true
	}
	return Command{}, false
}

// RouteFor returns the routing preferences for a directive kind.
func RouteFor(kind Kind) (Route, bool) {
	for _, route := range routes {
		if route.Kind == kind {
			return route, true
		}
	}
	return Route{}, false
}
