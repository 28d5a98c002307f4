package classify

import (
	"regexp"

	"github.com/zen-systems/promptgate/pkg/registry"
)

// PatternScorer scores text as matched-patterns / total-patterns per
// category. Inputs are expected lowercased and trimmed.
type PatternScorer struct {
	patterns map[registry.Category][]*regexp.Regexp
}

// NewPatternScorer builds the default keyword/pattern scorer.
func NewPatternScorer() *PatternScorer {
	return &PatternScorer{patterns: map[registry.Category][]*regexp.Regexp{
		registry.CategoryCoding:       codingPatterns,
		registry.CategoryMath:         mathPatterns,
		registry.CategoryConversation: conversationPatterns,
		registry.CategoryMultimodal:   multimodalPatterns,
	}}
}

// Score implements Scorer.
func (s *PatternScorer) Score(text string) map[registry.Category]float64 {
	scores := make(map[registry.Category]float64, len(s.patterns)+1)
	for cat, set := range s.patterns {
		matches := 0
		for _, re := range set {
			if re.MatchString(text) {
				matches++
			}
		}
		scores[cat] = float64(matches) / float64(len(set))
	}
	return scores
}

var codingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(code|coding|program|programming|function|class|method|variable|debug|error|bug|fix|implement|algorithm|api|database|sql|html|css|javascript|typescript|python|java|c\+\+|rust|go|ruby|php|swift|kotlin)\b`),
	regexp.MustCompile(`\b(import|export|const|let|var|async|await|promise|callback|loop|array|object|string|number|boolean|null|undefined)\b`),
	regexp.MustCompile(`\b(git|github|npm|yarn|package|module|library|framework|react|vue|angular|node|express|django|flask|spring)\b`),
	regexp.MustCompile("(?s)```.*```"),
	regexp.MustCompile(`\b(syntax|compile|runtime|exception|stack trace)\b`),
}

var mathPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(calculate|compute|solve|equation|formula|math|mathematics|algebra|calculus|geometry|trigonometry|statistics)\b`),
	regexp.MustCompile(`\b(derivative|integral|limit|sum|product|factorial|logarithm|exponential|polynomial|matrix|vector)\b`),
	regexp.MustCompile(`\b(add|subtract|multiply|divide|plus|minus|times|divided by)\b`),
	regexp.MustCompile(`[+\-*/^=].*\d+`),
	regexp.MustCompile(`\d+\s*[+\-*/^]\s*\d+`),
	regexp.MustCompile(`\b(x|y|z)\s*[=+\-*/^]`),
	regexp.MustCompile(`\b(sin|cos|tan|log|ln|sqrt|abs)\s*\(`),
	regexp.MustCompile(`\b(percentage|percent|ratio|proportion|fraction)\b`),
}

var conversationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(hello|hi|hey|good morning|good afternoon|good evening|how are you|what's up|thanks|thank you|please|sorry)\b`),
	regexp.MustCompile(`\b(tell me about yourself|who are you|what can you do|help me)\b`),
	regexp.MustCompile(`\b(chat|talk|conversation|discuss|opinion|think|feel|believe)\b`),
	regexp.MustCompile(`^(hi|hello|hey)[\s!?.]*$`),
}

var multimodalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(image|picture|photo|screenshot|diagram|chart|graph|visual|see|look at|analyze this image)\b`),
	regexp.MustCompile(`\b(describe|identify|recognize|detect|ocr|read text from)\b`),
	regexp.MustCompile(`\b(upload|attached|this file|this document)\b`),
}
