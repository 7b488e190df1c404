package classifier

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"kidsafe/internal/models"
	"kidsafe/internal/rules"
)

// Classifier evaluates one message against an immutable built-in rule set
// and a slice of guardian filters. Classification is pure and never blocks,
// so it is safe to run from any number of workers concurrently.
type Classifier struct {
	rules               *rules.RuleSet
	similarityThreshold float64
}

// New creates a classifier over the given rule snapshot. similarityThreshold
// is the normalized edit-distance similarity a token pair must exceed for a
// similar-mode filter to fire.
func New(ruleSet *rules.RuleSet, similarityThreshold float64) *Classifier {
	return &Classifier{
		rules:               ruleSet,
		similarityThreshold: similarityThreshold,
	}
}

// Classify runs the phrase scan, contextual pattern scan and custom filter
// evaluation over one message. Higher-severity matches win; a fired rule can
// upgrade severity but never downgrade it. Empty or whitespace-only text is
// a negative result, not an error.
func (c *Classifier) Classify(msg models.Message, filters []models.Filter) models.ClassificationResult {
	text := strings.ToLower(msg.Text)
	if strings.TrimSpace(text) == "" {
		return models.ClassificationResult{}
	}

	var severity models.Severity
	var matchedPhrases []string
	var patternReasons []string
	var sourceFilters []int64

	for phrase, tier := range c.rules.Phrases {
		if strings.Contains(text, phrase) {
			matchedPhrases = append(matchedPhrases, phrase)
			severity = models.MaxSeverity(severity, tier)
		}
	}
	sort.Strings(matchedPhrases)

	for _, p := range c.rules.Patterns {
		if containsAny(text, p.TermsA) && containsAny(text, p.TermsB) {
			patternReasons = append(patternReasons, p.Name)
			severity = models.MaxSeverity(severity, p.Severity)
		}
	}

	for _, f := range filters {
		if !f.Active {
			continue
		}
		if c.filterMatches(text, f) {
			sourceFilters = append(sourceFilters, f.ID)
			severity = models.MaxSeverity(severity, f.Severity)
		}
	}

	matchCount := len(matchedPhrases) + len(patternReasons) + len(sourceFilters)
	if matchCount == 0 {
		return models.ClassificationResult{}
	}
	if severity == "" {
		severity = models.SeverityLow
	}

	return models.ClassificationResult{
		Flagged:               true,
		Severity:              severity,
		Confidence:            confidence(matchCount, len(text)),
		MatchedPhrases:        matchedPhrases,
		MatchedPatternReasons: patternReasons,
		SourceFilters:         sourceFilters,
	}
}

func (c *Classifier) filterMatches(text string, f models.Filter) bool {
	matchText := strings.ToLower(f.MatchText)
	if strings.TrimSpace(matchText) == "" {
		return false
	}

	switch f.MatchMode {
	case models.MatchModeExact:
		return strings.Contains(text, matchText)
	case models.MatchModeSimilar:
		return c.similarTokens(text, matchText)
	case models.MatchModeContextual:
		return strings.Contains(text, matchText) && containsAny(text, c.rules.RiskContextTerms)
	}
	return false
}

// similarTokens tokenizes both texts on whitespace and reports whether any
// token pair exceeds the similarity threshold.
func (c *Classifier) similarTokens(text, matchText string) bool {
	for _, mt := range strings.Fields(matchText) {
		for _, tok := range strings.Fields(text) {
			if tokenSimilarity(tok, mt) > c.similarityThreshold {
				return true
			}
		}
	}
	return false
}

// tokenSimilarity is 1 - levenshtein(a,b)/max(len(a),len(b)).
func tokenSimilarity(a, b string) float64 {
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// confidence is a match-count term capped at 0.8 plus a per-length density
// term capped at 0.2, clamped to [0,1].
func confidence(matchCount, textLen int) float64 {
	base := 0.2 * float64(matchCount)
	if base > 0.8 {
		base = 0.8
	}
	density := 0.1 * (float64(matchCount) / (float64(textLen) / 100))
	if density > 0.2 {
		density = 0.2
	}
	score := base + density
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
