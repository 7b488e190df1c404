package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"kidsafe/internal/models"
)

// Key derives the identity of "the same kind of flagged content from the
// same conversation": child, app, sender and the sorted matched phrases.
func Key(msg models.Message, matchedPhrases []string) string {
	phrases := append([]string(nil), matchedPhrases...)
	sort.Strings(phrases)

	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s", msg.ChildID, msg.App, msg.Sender, strings.Join(phrases, ","))
	return hex.EncodeToString(h.Sum(nil))
}

// Gate suppresses repeat alerts for the same (guardian, dedup key) inside a
// cooldown window. The check and the timestamp update happen inside one
// critical section, so two near-simultaneous messages with the same key
// cannot both pass; the loser is suppressed, not an error.
type Gate struct {
	window time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu          sync.Mutex
	lastEmitted map[string]time.Time
}

// NewGate creates a cooldown gate with the given window.
func NewGate(window time.Duration, logger *zap.Logger) *Gate {
	return NewGateWithClock(window, logger, time.Now)
}

// NewGateWithClock creates a gate with an injected clock so cooldown expiry
// can be driven deterministically.
func NewGateWithClock(window time.Duration, logger *zap.Logger, now func() time.Time) *Gate {
	return &Gate{
		window:      window,
		logger:      logger,
		now:         now,
		lastEmitted: make(map[string]time.Time),
	}
}

// ShouldEmit decides whether a fresh alert should be emitted for this
// flagged message, and returns the dedup key either way. Emitting updates
// the last-emitted timestamp for the key.
func (g *Gate) ShouldEmit(guardianID int64, classification models.ClassificationResult, msg models.Message) (bool, string) {
	key := Key(msg, classification.MatchedPhrases)
	gateKey := fmt.Sprintf("%d|%s", guardianID, key)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.lastEmitted[gateKey]; ok && now.Sub(last) < g.window {
		g.logger.Debug("Alert suppressed by cooldown",
			zap.Int64("guardian_id", guardianID),
			zap.String("dedup_key", key),
			zap.Duration("since_last", now.Sub(last)))
		return false, key
	}

	g.lastEmitted[gateKey] = now
	return true, key
}

// Prune drops entries whose cooldown window has long expired. Keeping them
// any longer only grows the map; it cannot change a ShouldEmit decision.
func (g *Gate) Prune() {
	cutoff := g.now().Add(-2 * g.window)

	g.mu.Lock()
	defer g.mu.Unlock()
	for key, last := range g.lastEmitted {
		if last.Before(cutoff) {
			delete(g.lastEmitted, key)
		}
	}
}

// Run prunes expired entries periodically until ctx is done.
func (g *Gate) Run(ctx context.Context) {
	ticker := time.NewTicker(g.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Prune()
		}
	}
}
