package models

import "time"

// MatchMode selects how a guardian filter's match text is applied.
type MatchMode string

const (
	MatchModeExact      MatchMode = "exact"
	MatchModeSimilar    MatchMode = "similar"
	MatchModeContextual MatchMode = "contextual"
)

// Valid reports whether m is a recognized match mode.
func (m MatchMode) Valid() bool {
	switch m {
	case MatchModeExact, MatchModeSimilar, MatchModeContextual:
		return true
	}
	return false
}

// Filter is a guardian-authored rule layered on top of the built-in rule set.
// Read-only to the classifier; edits become visible within one refresh cycle.
type Filter struct {
	ID         int64     `db:"id" json:"id"`
	GuardianID int64     `db:"guardian_id" json:"guardian_id"`
	MatchText  string    `db:"match_text" json:"match_text"`
	MatchMode  MatchMode `db:"match_mode" json:"match_mode"`
	Severity   Severity  `db:"severity" json:"severity"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// UpsertFilterInput is the request body for creating or updating a filter.
type UpsertFilterInput struct {
	ID        int64  `json:"id"`
	MatchText string `json:"match_text" binding:"required"`
	MatchMode string `json:"match_mode" binding:"required,oneof=exact similar contextual"`
	Severity  string `json:"severity" binding:"required,oneof=low medium high critical"`
	Active    *bool  `json:"active"`
}
