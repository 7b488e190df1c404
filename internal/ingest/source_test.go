package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kidsafe/internal/classifier"
	"kidsafe/internal/dedup"
	"kidsafe/internal/fanout"
	"kidsafe/internal/models"
	"kidsafe/internal/pipeline"
	"kidsafe/internal/repository"
	"kidsafe/internal/router"
	"kidsafe/internal/rules"
)

// idleEngine builds a pipeline whose workers are not running, so submitted
// messages stay queued and queue-full behavior is easy to provoke.
func idleEngine(t *testing.T, queueSize int) *pipeline.Engine {
	t.Helper()
	logger := zap.NewNop()
	links := repository.NewMemoryGuardianLinkRepository()
	store := rules.NewStore(rules.Builtin(), repository.NewMemoryFilterRepository(), time.Minute, logger)

	return pipeline.NewEngine(
		classifier.New(store.BuiltinRules(), 0.7),
		store,
		dedup.NewGate(time.Minute, logger),
		router.New(links, logger),
		repository.NewMemoryAlertRepository(),
		links,
		fanout.NewHub(4, logger),
		nil,
		nil,
		queueSize,
		1,
		logger,
	)
}

func TestChannelSourcePushDelivers(t *testing.T) {
	src := NewChannelSource(2)

	msg := models.Message{ChildID: 10, App: "chatly", Sender: "s", Text: "hi"}
	require.NoError(t, src.Push(context.Background(), msg))

	got := <-src.Messages()
	assert.Equal(t, msg, got)
}

func TestChannelSourcePushHonorsContext(t *testing.T) {
	src := NewChannelSource(1)
	require.NoError(t, src.Push(context.Background(), models.Message{ChildID: 10}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := src.Push(ctx, models.Message{ChildID: 11})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPumpForwardsIntoEngine(t *testing.T) {
	engine := idleEngine(t, 4)
	src := NewChannelSource(4)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Pump(ctx, src, engine, zap.NewNop())

	require.NoError(t, src.Push(ctx, models.Message{ChildID: 10, App: "chatly", Sender: "s", Text: "hi"}))

	require.Eventually(t, func() bool {
		return engine.Stats().Submitted == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPumpDropsAfterRepeatedQueueFull(t *testing.T) {
	engine := idleEngine(t, 1)
	src := NewChannelSource(4)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go Pump(ctx, src, engine, zap.NewNop())

	require.NoError(t, src.Push(ctx, models.Message{ChildID: 10, App: "chatly", Sender: "s", Text: "one"}))
	require.NoError(t, src.Push(ctx, models.Message{ChildID: 10, App: "chatly", Sender: "s", Text: "two"}))

	// The second message exhausts its retries against the full queue and is
	// dropped; the pump keeps running.
	require.Eventually(t, func() bool {
		return engine.Stats().Rejected >= 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), engine.Stats().Submitted)
}

func TestPumpStopsWhenSourceCloses(t *testing.T) {
	engine := idleEngine(t, 4)
	p := NewPoller(fetcherFunc(func(context.Context, string, int64, int64) ([]CollectedMessage, error) {
		return nil, nil
	}), repository.NewMemoryChannelRepository(), time.Minute, 100, zap.NewNop())
	close(p.out)

	done := make(chan struct{})
	go func() {
		Pump(context.Background(), p, engine, zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after source closed")
	}
}
