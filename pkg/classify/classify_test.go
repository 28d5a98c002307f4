package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zen-systems/promptgate/pkg/registry"
)

func TestClassifyEmptyInput(t *testing.T) {
	c := New()
	for _, text := range []string{"", "   ", "\n\t "} {
		got := c.Classify(text)
		assert.Equal(t, registry.CategoryGeneral, got.Category)
		assert.Equal(t, 1.0, got.Confidence)
	}
}

func TestClassifyFencedCodeBlockIsCoding(t *testing.T) {
	c := New()
	got := c.Classify("what does this do?\n```\nx = 1\nprint(x)\n```")
	assert.Equal(t, registry.CategoryCoding, got.Category)
	// Score contribution is at least 0.8 before calibration, so
	// calibrated confidence saturates at 1.0.
	assert.InDelta(t, 1.0, got.Confidence, 1e-9)
}

func TestClassifyMath(t *testing.T) {
	c := New()
	got := c.Classify("solve the equation x^2+5x+6=0")
	assert.Equal(t, registry.CategoryMath, got.Category)
	assert.Greater(t, got.Confidence, 0.3)
	assert.Contains(t, got.Reasoning, "mathematical")
}

func TestClassifyConversation(t *testing.T) {
	c := New()
	got := c.Classify("hey, how are you?")
	assert.Equal(t, registry.CategoryConversation, got.Category)
}

func TestClassifyWeakMatchFallsBackToGeneral(t *testing.T) {
	c := New()
	got := c.Classify("zebra umbrella cathedral")
	assert.Equal(t, registry.CategoryGeneral, got.Category)
	assert.Equal(t, 0.6, got.Confidence)
	assert.Contains(t, got.Reasoning, "No strong category match")
}

func TestClassifyConfidenceIsCalibratedScore(t *testing.T) {
	c := New()
	// One coding pattern match out of five: score 0.2, confidence 0.5.
	got := c.Classify("tell me something about recursion in a program")
	require.Equal(t, registry.CategoryCoding, got.Category)
	assert.InDelta(t, 0.5, got.Confidence, 1e-9)
}

type fixedScorer struct{ scores map[registry.Category]float64 }

func (f fixedScorer) Score(string) map[registry.Category]float64 {
	out := make(map[registry.Category]float64, len(f.scores))
	for k, v := range f.scores {
		out[k] = v
	}
	return out
}

func TestClassifyWithCustomScorer(t *testing.T) {
	c := New(WithScorer(fixedScorer{scores: map[registry.Category]float64{
		registry.CategoryMultimodal: 0.4,
	}}))
	got := c.Classify("anything")
	assert.Equal(t, registry.CategoryMultimodal, got.Category)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)
}

func TestCustomScorerTieFavorsGeneral(t *testing.T) {
	c := New(WithScorer(fixedScorer{scores: map[registry.Category]float64{
		registry.CategoryMath:    0.4,
		registry.CategoryGeneral: 0.4,
	}}))
	got := c.Classify("anything")
	assert.Equal(t, registry.CategoryGeneral, got.Category)
}

func TestContainsCode(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"```\nfmt.Println(1)\n```", true},
		{"function foo() { return 1; }", true},
		{"const answer = 42", true},
		{"def handler(req):", true},
		{"if (ready) { start(); }", true},
		{"what is the capital of France", false},
		{"let me know what you think", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ContainsCode(tc.text), "text: %s", tc.text)
	}
}
