// Package classify scores free text against per-category pattern sets
// to pick the task domain a request belongs to.
package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/zen-systems/promptgate/pkg/registry"
)

// Classification is the immutable result of classifying one message.
type Classification struct {
	Category   registry.Category `json:"category"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
}

// Scorer computes a per-category score in [0,1] for a piece of text.
// The default is pattern matching; a model-backed scorer can be
// substituted without touching router logic.
type Scorer interface {
	Score(text string) map[registry.Category]float64
}

// generalBaseline keeps the general category always in contention so
// ties resolve toward it.
const generalBaseline = 0.1

// scoreFloor below which no category is considered a strong match.
const scoreFloor = 0.15

// codeScore is the minimum coding score once code is detected in the
// text; code detection dominates pattern scoring.
const codeScore = 0.8

// Classifier classifies messages using a pluggable scorer.
type Classifier struct {
	scorer Scorer
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithScorer replaces the default pattern scorer.
func WithScorer(s Scorer) Option {
	return func(c *Classifier) { c.scorer = s }
}

// New creates a classifier with the default pattern scorer.
func New(opts ...Option) *Classifier {
	c := &Classifier{scorer: NewPatternScorer()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify determines the category for a message.
func (c *Classifier) Classify(text string) Classification {
	if strings.TrimSpace(text) == "" {
		return Classification{
			Category:   registry.CategoryGeneral,
			Confidence: 1.0,
			Reasoning:  "Empty query defaults to general category",
		}
	}

	scores := c.scorer.Score(strings.ToLower(strings.TrimSpace(text)))
	if scores == nil {
		scores = map[registry.Category]float64{}
	}
	if scores[registry.CategoryGeneral] < generalBaseline {
		scores[registry.CategoryGeneral] = generalBaseline
	}
	if ContainsCode(text) && scores[registry.CategoryCoding] < codeScore {
		scores[registry.CategoryCoding] = codeScore
	}

	best := registry.CategoryGeneral
	bestScore := scores[registry.CategoryGeneral]
	for _, cat := range registry.Categories() {
		if cat == registry.CategoryGeneral {
			continue
		}
		if s := scores[cat]; s > bestScore {
			best = cat
			bestScore = s
		}
	}

	if bestScore < scoreFloor {
		return Classification{
			Category:   registry.CategoryGeneral,
			Confidence: 0.6,
			Reasoning:  "No strong category match, using general-purpose model",
		}
	}

	confidence := bestScore + 0.3
	if confidence > 1.0 {
		confidence = 1.0
	}
	return Classification{
		Category:   best,
		Confidence: confidence,
		Reasoning:  reasoning(best, bestScore),
	}
}

func reasoning(cat registry.Category, score float64) string {
	level := "low"
	switch {
	case score > 0.5:
		level = "high"
	case score > 0.3:
		level = "moderate"
	}
	switch cat {
	case registry.CategoryCoding:
		return fmt.Sprintf("Detected programming-related content with %s confidence. Using coding-optimized model.", level)
	case registry.CategoryMath:
		return fmt.Sprintf("Detected mathematical content with %s confidence. Using math-optimized model.", level)
	case registry.CategoryConversation:
		return fmt.Sprintf("Detected conversational content with %s confidence. Using conversation-optimized model.", level)
	case registry.CategoryMultimodal:
		return fmt.Sprintf("Detected visual/multimodal content with %s confidence. Using multimodal model.", level)
	default:
		return "Using general-purpose model for broad topic coverage."
	}
}

var (
	fencedCodeBlock = regexp.MustCompile("(?s)```.*```")

	codeIndicators = []*regexp.Regexp{
		regexp.MustCompile(`\bfunc\s+\w+\s*\(`),
		regexp.MustCompile(`\bfunction\s+\w+\s*\(`),
		regexp.MustCompile(`\bconst\s+\w+\s*=`),
		regexp.MustCompile(`\blet\s+\w+\s*=`),
		regexp.MustCompile(`\bvar\s+\w+\s*=`),
		regexp.MustCompile(`\bclass\s+\w+`),
		regexp.MustCompile(`\bdef\s+\w+\s*\(`),
		regexp.MustCompile(`\bimport\s+[\w{},\s]+from`),
		regexp.MustCompile(`\brequire\s*\(`),
		regexp.MustCompile(`=>\s*{`),
		regexp.MustCompile(`\bif\s*\(.*\)\s*{`),
		regexp.MustCompile(`\bfor\s*\(.*\)\s*{`),
		regexp.MustCompile(`\bwhile\s*\(.*\)\s*{`),
	}
)

// ContainsCode reports whether text carries a fenced code block or a
// language-construct signature.
func ContainsCode(text string) bool {
	if fencedCodeBlock.MatchString(text) {
		return true
	}
	for _, re := range codeIndicators {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
