package models

import "time"

// AlertState tracks a guardian's review of an alert. Alerts are never
// deleted, only state-transitioned.
type AlertState string

const (
	AlertStateUnread       AlertState = "unread"
	AlertStateRead         AlertState = "read"
	AlertStateAcknowledged AlertState = "acknowledged"
)

// Valid reports whether s is a recognized alert state.
func (s AlertState) Valid() bool {
	switch s {
	case AlertStateUnread, AlertStateRead, AlertStateAcknowledged:
		return true
	}
	return false
}

// ClassificationResult is the outcome of evaluating one message against the
// built-in rules and a guardian's custom filters.
type ClassificationResult struct {
	Flagged               bool     `json:"flagged"`
	Severity              Severity `json:"severity,omitempty"`
	Confidence            float64  `json:"confidence"`
	MatchedPhrases        []string `json:"matched_phrases,omitempty"`
	MatchedPatternReasons []string `json:"matched_pattern_reasons,omitempty"`
	SourceFilters         []int64  `json:"source_filters,omitempty"`
}

// Alert is a guardian-facing notification of one flagged message.
// FlaggedContent is stored encrypted and decrypted on read-out.
type Alert struct {
	ID             int64      `db:"id" json:"id"`
	GuardianID     int64      `db:"guardian_id" json:"guardian_id"`
	ChildID        int64      `db:"child_id" json:"child_id"`
	App            string     `db:"app" json:"app"`
	Sender         string     `db:"sender" json:"sender"`
	Severity       Severity   `db:"severity" json:"severity"`
	Confidence     float64    `db:"confidence" json:"confidence"`
	FlaggedContent string     `db:"flagged_content" json:"flagged_content"`
	Reasoning      string     `db:"reasoning" json:"reasoning"`
	Urgency        Urgency    `db:"urgency" json:"urgency"`
	DedupKey       string     `db:"dedup_key" json:"dedup_key"`
	State          AlertState `db:"state" json:"state"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// GuardianLink relates a guardian to a child they monitor. Established
// externally; consumed read-only when resolving alert recipients.
type GuardianLink struct {
	GuardianID int64     `db:"guardian_id" json:"guardian_id"`
	ChildID    int64     `db:"child_id" json:"child_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
