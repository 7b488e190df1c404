package dedup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kidsafe/internal/models"
)

func testMessage() models.Message {
	return models.Message{
		ID:      "m1",
		ChildID: 10,
		App:     "chatly",
		Sender:  "stranger42",
		Text:    "want to smoke some greens",
	}
}

func testClassification(phrases ...string) models.ClassificationResult {
	return models.ClassificationResult{
		Flagged:        true,
		Severity:       models.SeverityMedium,
		Confidence:     0.9,
		MatchedPhrases: phrases,
	}
}

func TestKeyIgnoresPhraseOrder(t *testing.T) {
	msg := testMessage()

	a := Key(msg, []string{"smoke", "greens", "bud"})
	b := Key(msg, []string{"bud", "smoke", "greens"})
	assert.Equal(t, a, b)
}

func TestKeyDistinguishesConversations(t *testing.T) {
	msg := testMessage()
	other := testMessage()
	other.Sender = "stranger43"

	assert.NotEqual(t, Key(msg, []string{"smoke"}), Key(other, []string{"smoke"}))
	assert.NotEqual(t, Key(msg, []string{"smoke"}), Key(msg, []string{"weed"}))
}

func TestShouldEmitSuppressesWithinWindow(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGateWithClock(300*time.Second, zap.NewNop(), func() time.Time { return current })

	msg := testMessage()
	cls := testClassification("smoke", "greens")

	emit, key := gate.ShouldEmit(1, cls, msg)
	require.True(t, emit)
	require.NotEmpty(t, key)

	// Same guardian and key inside the window is suppressed.
	current = current.Add(120 * time.Second)
	emit, again := gate.ShouldEmit(1, cls, msg)
	assert.False(t, emit)
	assert.Equal(t, key, again)

	// After the window expires the same key emits again.
	current = current.Add(181 * time.Second)
	emit, _ = gate.ShouldEmit(1, cls, msg)
	assert.True(t, emit)
}

func TestShouldEmitIsPerGuardian(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGateWithClock(300*time.Second, zap.NewNop(), func() time.Time { return current })

	msg := testMessage()
	cls := testClassification("smoke")

	emit, _ := gate.ShouldEmit(1, cls, msg)
	require.True(t, emit)

	// A different guardian has its own cooldown for the same content.
	emit, _ = gate.ShouldEmit(2, cls, msg)
	assert.True(t, emit)

	emit, _ = gate.ShouldEmit(2, cls, msg)
	assert.False(t, emit)
}

func TestShouldEmitConcurrentSameKey(t *testing.T) {
	gate := NewGate(300*time.Second, zap.NewNop())

	msg := testMessage()
	cls := testClassification("smoke", "greens")

	const goroutines = 32
	var wg sync.WaitGroup
	emitted := make(chan bool, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emit, _ := gate.ShouldEmit(1, cls, msg)
			emitted <- emit
		}()
	}
	wg.Wait()
	close(emitted)

	count := 0
	for emit := range emitted {
		if emit {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPruneDropsExpiredEntries(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGateWithClock(300*time.Second, zap.NewNop(), func() time.Time { return current })

	msg := testMessage()
	cls := testClassification("smoke")

	emit, _ := gate.ShouldEmit(1, cls, msg)
	require.True(t, emit)
	require.Len(t, gate.lastEmitted, 1)

	// Inside 2x window the entry survives.
	current = current.Add(400 * time.Second)
	gate.Prune()
	assert.Len(t, gate.lastEmitted, 1)

	current = current.Add(300 * time.Second)
	gate.Prune()
	assert.Empty(t, gate.lastEmitted)
}
