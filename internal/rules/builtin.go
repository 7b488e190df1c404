package rules

import "kidsafe/internal/models"

// Pattern is a two-sided co-occurrence rule: it fires when any term from
// TermsA and any term from TermsB both appear in the same text. A fired
// pattern may upgrade the message severity but never downgrades it.
type Pattern struct {
	Name     string
	TermsA   []string
	TermsB   []string
	Severity models.Severity
}

// RuleSet is one immutable snapshot of the built-in detection rules. It is
// injected into the classifier at construction time; nothing mutates it
// after creation.
type RuleSet struct {
	// Phrases maps a lower-cased phrase to the severity tier a substring
	// hit contributes.
	Phrases map[string]models.Severity

	// Patterns are evaluated after the phrase scan, in order.
	Patterns []Pattern

	// RiskContextTerms gate contextual-mode custom filters: such a filter
	// fires only if its match text appears together with one of these.
	RiskContextTerms []string
}

// Builtin returns the default built-in rule set. Callers share one snapshot;
// tests substitute their own RuleSet instead of mutating this one.
func Builtin() *RuleSet {
	return &RuleSet{
		Phrases: map[string]models.Severity{
			// sexual content / grooming
			"nudes":                   models.SeverityHigh,
			"naked pic":               models.SeverityHigh,
			"sexting":                 models.SeverityHigh,
			"send pics":               models.SeverityHigh,
			"our little secret":       models.SeverityHigh,
			"don't tell your parents": models.SeverityHigh,

			// violence / self-harm
			"kill you":           models.SeverityHigh,
			"kill yourself":      models.SeverityHigh,
			"hurt you":           models.SeverityHigh,
			"beat you up":        models.SeverityMedium,
			"fight after school": models.SeverityMedium,

			// drugs and alcohol
			"cocaine": models.SeverityHigh,
			"heroin":  models.SeverityHigh,
			"meth":    models.SeverityHigh,
			"pills":   models.SeverityMedium,
			"weed":    models.SeverityMedium,
			"drugs":   models.SeverityMedium,
			"vape":    models.SeverityMedium,
			"drunk":   models.SeverityMedium,
			"smoke":   models.SeverityLow,
			"greens":  models.SeverityLow,
			"bud":     models.SeverityLow,
			"blaze":   models.SeverityLow,

			// bullying
			"nobody likes you":   models.SeverityMedium,
			"everyone hates you": models.SeverityMedium,
			"loser":              models.SeverityLow,
			"freak":              models.SeverityLow,

			// personal information disclosure
			"home alone":    models.SeverityMedium,
			"my address is": models.SeverityMedium,
			"my password":   models.SeverityMedium,
		},
		Patterns: []Pattern{
			{
				Name:     "smoking context",
				TermsA:   []string{"greens", "bud", "weed", "grass", "herb"},
				TermsB:   []string{"smoke", "blaze", "light up", "roll"},
				Severity: models.SeverityMedium,
			},
			{
				Name:     "late night drug activity",
				TermsA:   []string{"greens", "bud", "weed", "pills", "drugs"},
				TermsB:   []string{"tonight", "midnight", "late night", "after dark"},
				Severity: models.SeverityMedium,
			},
			{
				Name:     "drug quantity",
				TermsA:   []string{"greens", "bud", "weed", "pills", "drugs"},
				TermsB:   []string{"gram", "ounce", "bag", "stash"},
				Severity: models.SeverityMedium,
			},
			{
				Name:     "drinking context",
				TermsA:   []string{"drink", "drunk", "beer", "vodka", "booze"},
				TermsB:   []string{"party", "tonight", "sneak"},
				Severity: models.SeverityMedium,
			},
			{
				Name:     "photo request",
				TermsA:   []string{"photo", "pic", "selfie"},
				TermsB:   []string{"send", "show", "share"},
				Severity: models.SeverityHigh,
			},
			{
				Name:     "meeting-alone context",
				TermsA:   []string{"meet", "come over", "hang out"},
				TermsB:   []string{"alone", "secret", "by yourself", "don't tell"},
				Severity: models.SeverityHigh,
			},
			{
				Name:     "secrecy pressure",
				TermsA:   []string{"secret", "don't tell", "delete this"},
				TermsB:   []string{"parents", "mom", "dad", "anyone"},
				Severity: models.SeverityHigh,
			},
			{
				Name:     "self-harm context",
				TermsA:   []string{"kill", "hurt", "cut"},
				TermsB:   []string{"yourself", "myself"},
				Severity: models.SeverityCritical,
			},
		},
		RiskContextTerms: []string{"alone", "secret", "private", "meet", "send", "show"},
	}
}
