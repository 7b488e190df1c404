package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kidsafe/internal/classifier"
	"kidsafe/internal/crypto"
	"kidsafe/internal/dedup"
	"kidsafe/internal/fanout"
	"kidsafe/internal/models"
	"kidsafe/internal/repository"
	"kidsafe/internal/router"
	"kidsafe/internal/rules"
)

const waitFor = 2 * time.Second

// testClock is a settable clock safe to read from engine workers.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine  *Engine
	alerts  *repository.MemoryAlertRepository
	filters *repository.MemoryFilterRepository
	links   *repository.MemoryGuardianLinkRepository
	store   *rules.Store
	hub     *fanout.Hub
	clock   *testClock
	sealer  *crypto.Sealer
}

type envOptions struct {
	thresholds map[models.Severity]float64
	queueSize  int
	sealed     bool
	skipLoad   bool
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	env := &testEnv{
		alerts:  repository.NewMemoryAlertRepository(),
		filters: repository.NewMemoryFilterRepository(),
		links:   repository.NewMemoryGuardianLinkRepository(),
		hub:     fanout.NewHub(16, logger),
		clock:   newTestClock(),
	}
	env.store = rules.NewStore(rules.Builtin(), env.filters, time.Minute, logger)
	if !opts.skipLoad {
		require.NoError(t, env.store.Refresh(context.Background()))
	}

	if opts.sealed {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		env.sealer, err = crypto.NewSealer(key)
		require.NoError(t, err)
	}

	thresholds := opts.thresholds
	if thresholds == nil {
		thresholds = map[models.Severity]float64{
			models.SeverityCritical: 0.8,
			models.SeverityHigh:     0.8,
			models.SeverityMedium:   0.6,
			models.SeverityLow:      0.4,
		}
	}

	gate := dedup.NewGateWithClock(300*time.Second, logger, env.clock.Now)
	env.engine = NewEngine(
		classifier.New(env.store.BuiltinRules(), 0.7),
		env.store,
		gate,
		router.New(env.links, logger),
		env.alerts,
		env.links,
		env.hub,
		env.sealer,
		thresholds,
		opts.queueSize,
		2,
		logger,
	)
	return env
}

func (env *testEnv) run(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go env.engine.Run(ctx)
}

func drugMessage() models.Message {
	return models.Message{
		ChildID: 10,
		App:     "chatly",
		Sender:  "stranger42",
		Text:    "Want to smoke some greens tonight? I got some bud",
	}
}

func TestEngineEmitsPersistsAndPushes(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.links.Link(1, 10)

	session := env.hub.Subscribe(1)
	defer session.Close()

	env.run(t)
	require.NoError(t, env.engine.Submit(drugMessage()))

	require.Eventually(t, func() bool { return env.alerts.CountAll() == 1 }, waitFor, 10*time.Millisecond)

	recent, err := env.alerts.RecentByGuardian(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	alert := recent[0]
	assert.Equal(t, int64(10), alert.ChildID)
	assert.Equal(t, models.SeverityMedium, alert.Severity)
	assert.Equal(t, models.UrgencyDelayed, alert.Urgency)
	assert.Equal(t, models.AlertStateUnread, alert.State)
	assert.Contains(t, alert.Reasoning, "matched phrases:")
	assert.NotEmpty(t, alert.DedupKey)

	pushed := <-session.Alerts()
	assert.Equal(t, alert.ID, pushed.ID)
	assert.Equal(t, "Want to smoke some greens tonight? I got some bud", pushed.FlaggedContent)

	stats := env.engine.Stats()
	assert.Equal(t, int64(1), stats.Submitted)
	assert.Equal(t, int64(1), stats.Flagged)
	assert.Equal(t, int64(1), stats.Persisted)
}

func TestEngineSealsPersistedContent(t *testing.T) {
	env := newTestEnv(t, envOptions{sealed: true})
	env.links.Link(1, 10)

	session := env.hub.Subscribe(1)
	defer session.Close()

	env.run(t)
	require.NoError(t, env.engine.Submit(drugMessage()))
	require.Eventually(t, func() bool { return env.alerts.CountAll() == 1 }, waitFor, 10*time.Millisecond)

	recent, err := env.alerts.RecentByGuardian(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)

	// The row carries ciphertext that opens back to the original text.
	assert.NotEqual(t, drugMessage().Text, recent[0].FlaggedContent)
	opened, err := env.sealer.Open(recent[0].FlaggedContent)
	require.NoError(t, err)
	assert.Equal(t, drugMessage().Text, opened)

	// The live push carries the clear text.
	pushed := <-session.Alerts()
	assert.Equal(t, drugMessage().Text, pushed.FlaggedContent)
}

func TestEngineSuppressesDuplicatesWithinCooldown(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.links.Link(1, 10)
	env.run(t)

	require.NoError(t, env.engine.Submit(drugMessage()))
	require.NoError(t, env.engine.Submit(drugMessage()))

	require.Eventually(t, func() bool {
		return env.engine.Stats().Suppressed == 1 && env.alerts.CountAll() == 1
	}, waitFor, 10*time.Millisecond)

	// Past the cooldown window the same content alerts again.
	env.clock.Advance(301 * time.Second)
	require.NoError(t, env.engine.Submit(drugMessage()))
	require.Eventually(t, func() bool { return env.alerts.CountAll() == 2 }, waitFor, 10*time.Millisecond)
}

func TestEngineFansOutToEachGuardian(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.links.Link(1, 10)
	env.links.Link(2, 10)
	env.run(t)

	require.NoError(t, env.engine.Submit(drugMessage()))
	require.Eventually(t, func() bool { return env.alerts.CountAll() == 2 }, waitFor, 10*time.Millisecond)

	for _, guardianID := range []int64{1, 2} {
		recent, err := env.alerts.RecentByGuardian(context.Background(), guardianID, 10)
		require.NoError(t, err)
		assert.Len(t, recent, 1, "guardian %d", guardianID)
	}
}

func TestEnginePersistsOrphanAlert(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.run(t)

	require.NoError(t, env.engine.Submit(drugMessage()))
	require.Eventually(t, func() bool { return env.alerts.CountAll() == 1 }, waitFor, 10*time.Millisecond)

	recent, err := env.alerts.RecentByGuardian(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Zero(t, recent[0].GuardianID)
}

func TestEngineDropsBelowThreshold(t *testing.T) {
	env := newTestEnv(t, envOptions{
		thresholds: map[models.Severity]float64{models.SeverityLow: 0.5},
	})
	env.links.Link(1, 10)
	env.run(t)

	// A single low-severity phrase in a short text scores 0.4.
	require.NoError(t, env.engine.Submit(models.Message{
		ChildID: 10,
		App:     "chatly",
		Sender:  "stranger42",
		Text:    "let's smoke",
	}))

	require.Eventually(t, func() bool {
		return env.engine.Stats().BelowThreshold == 1
	}, waitFor, 10*time.Millisecond)
	assert.Zero(t, env.alerts.CountAll())
	assert.Equal(t, int64(1), env.engine.Stats().Flagged)
}

func TestEngineIgnoresBenignMessages(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.links.Link(1, 10)
	env.run(t)

	require.NoError(t, env.engine.Submit(models.Message{
		ChildID: 10,
		App:     "chatly",
		Sender:  "friend",
		Text:    "see you at school tomorrow",
	}))

	require.Eventually(t, func() bool {
		return env.engine.Stats().Submitted == 1
	}, waitFor, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, env.alerts.CountAll())
	assert.Zero(t, env.engine.Stats().Flagged)
}

func TestEngineUsesGuardianCustomFilters(t *testing.T) {
	env := newTestEnv(t, envOptions{
		thresholds: map[models.Severity]float64{models.SeverityCritical: 0.3},
	})
	env.links.Link(1, 10)

	filter := models.Filter{
		GuardianID: 1,
		MatchText:  "casino",
		MatchMode:  models.MatchModeExact,
		Severity:   models.SeverityCritical,
		Active:     true,
	}
	require.NoError(t, env.filters.Upsert(context.Background(), &filter))
	require.NoError(t, env.store.Refresh(context.Background()))

	env.run(t)
	require.NoError(t, env.engine.Submit(models.Message{
		ChildID: 10,
		App:     "chatly",
		Sender:  "stranger42",
		Text:    "come play at the casino with us",
	}))

	require.Eventually(t, func() bool { return env.alerts.CountAll() == 1 }, waitFor, 10*time.Millisecond)

	recent, err := env.alerts.RecentByGuardian(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, models.SeverityCritical, recent[0].Severity)
	assert.Equal(t, models.UrgencyImmediate, recent[0].Urgency)
	assert.Contains(t, recent[0].Reasoning, "custom filters:")
}

func TestEngineFailsClosedWithoutRuleSnapshot(t *testing.T) {
	env := newTestEnv(t, envOptions{skipLoad: true})
	env.links.Link(1, 10)
	env.run(t)

	require.NoError(t, env.engine.Submit(drugMessage()))

	require.Eventually(t, func() bool {
		return env.engine.Stats().SkippedDegraded == 1
	}, waitFor, 10*time.Millisecond)
	assert.Zero(t, env.alerts.CountAll())
}

func TestEngineQueueBackpressure(t *testing.T) {
	env := newTestEnv(t, envOptions{queueSize: 1})
	// Workers are not running, so the queue fills immediately.

	require.NoError(t, env.engine.Submit(drugMessage()))
	err := env.engine.Submit(drugMessage())
	require.ErrorIs(t, err, ErrQueueFull)

	stats := env.engine.Stats()
	assert.Equal(t, int64(1), stats.Submitted)
	assert.Equal(t, int64(1), stats.Rejected)
}
