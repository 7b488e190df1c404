package models

// Severity indicates how concerning matched content is judged to be.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityRank defines the single total order used everywhere a "who wins"
// decision is made between severities.
var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the position of s in the severity order. Unknown values rank
// below "low".
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is one of the recognized severity tiers.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// MaxSeverity returns the higher-ranked of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Urgency drives notification timing for an alert. All tiers still create an
// alert row immediately; only delivery differs.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyDelayed   Urgency = "delayed"
	UrgencySummary   Urgency = "summary"
)

// UrgencyFor maps a severity tier to its delivery urgency.
func UrgencyFor(s Severity) Urgency {
	switch s {
	case SeverityCritical, SeverityHigh:
		return UrgencyImmediate
	case SeverityMedium:
		return UrgencyDelayed
	default:
		return UrgencySummary
	}
}
