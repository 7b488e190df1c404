package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kidsafe/internal/models"
	"kidsafe/internal/repository"
)

// Router turns one flagged message into guardian-addressed alert records.
// It only builds the records; persistence and delivery belong to the
// pipeline, so the alert row stays the source of truth and notification
// timing stays best-effort.
type Router struct {
	links  repository.GuardianLinkRepository
	logger *zap.Logger
}

func New(links repository.GuardianLinkRepository, logger *zap.Logger) *Router {
	return &Router{links: links, logger: logger}
}

// Route resolves the guardians linked to the message's child and returns one
// alert per guardian. With zero linked guardians a single orphan alert
// (guardian_id = 0) is returned so the event is retrievable later instead of
// dropped.
func (r *Router) Route(ctx context.Context, msg models.Message, classification models.ClassificationResult, dedupKey string) ([]models.Alert, error) {
	guardians, err := r.links.GuardiansForChild(ctx, msg.ChildID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve guardians for child %d: %w", msg.ChildID, err)
	}

	if len(guardians) == 0 {
		r.logger.Warn("No guardians linked to child, persisting orphan alert",
			zap.Int64("child_id", msg.ChildID))
		guardians = []int64{0}
	}

	alerts := make([]models.Alert, 0, len(guardians))
	for _, guardianID := range guardians {
		alerts = append(alerts, models.Alert{
			GuardianID:     guardianID,
			ChildID:        msg.ChildID,
			App:            msg.App,
			Sender:         msg.Sender,
			Severity:       classification.Severity,
			Confidence:     classification.Confidence,
			FlaggedContent: msg.Text,
			Reasoning:      reasoning(classification),
			Urgency:        models.UrgencyFor(classification.Severity),
			DedupKey:       dedupKey,
			State:          models.AlertStateUnread,
		})
	}
	return alerts, nil
}

// reasoning joins the matched phrases and fired pattern names into the
// guardian-facing explanation.
func reasoning(classification models.ClassificationResult) string {
	var parts []string
	if len(classification.MatchedPhrases) > 0 {
		parts = append(parts, "matched phrases: "+strings.Join(classification.MatchedPhrases, ", "))
	}
	if len(classification.MatchedPatternReasons) > 0 {
		parts = append(parts, "patterns: "+strings.Join(classification.MatchedPatternReasons, ", "))
	}
	if len(classification.SourceFilters) > 0 {
		ids := make([]string, 0, len(classification.SourceFilters))
		for _, id := range classification.SourceFilters {
			ids = append(ids, fmt.Sprintf("%d", id))
		}
		parts = append(parts, "custom filters: "+strings.Join(ids, ", "))
	}
	return strings.Join(parts, "; ")
}
