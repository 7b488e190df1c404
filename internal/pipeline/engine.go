package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
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

// ErrQueueFull is the backpressure signal to ingest adapters: the message
// was rejected and the adapter should retry later.
var ErrQueueFull = errors.New("classification queue full")

const (
	persistAttempts = 3
	persistBackoff  = 100 * time.Millisecond
)

// Stats are the engine's observability counters.
type Stats struct {
	Submitted       int64
	Rejected        int64
	Flagged         int64
	BelowThreshold  int64
	Suppressed      int64
	Persisted       int64
	PersistFailures int64
	SkippedDegraded int64
}

// Engine is the classification and alert distribution pipeline. Messages
// enter through Submit into a bounded queue; workers classify, gate, route,
// persist and publish. Classification is stateless, so workers share nothing
// but the dedup gate and the fan-out hub.
type Engine struct {
	classifier *classifier.Classifier
	store      *rules.Store
	gate       *dedup.Gate
	router     *router.Router
	alerts     repository.AlertRepository
	links      repository.GuardianLinkRepository
	hub        *fanout.Hub
	sealer     *crypto.Sealer
	thresholds map[models.Severity]float64
	logger     *zap.Logger

	queue   chan models.Message
	workers int

	submitted       atomic.Int64
	rejected        atomic.Int64
	flagged         atomic.Int64
	belowThreshold  atomic.Int64
	suppressed      atomic.Int64
	persisted       atomic.Int64
	persistFailures atomic.Int64
	skippedDegraded atomic.Int64
}

// NewEngine wires the pipeline. sealer may be nil, in which case flagged
// content is persisted in the clear. thresholds holds the per-severity
// minimum confidence for a flagged message to be alert-worthy.
func NewEngine(
	cls *classifier.Classifier,
	store *rules.Store,
	gate *dedup.Gate,
	rtr *router.Router,
	alerts repository.AlertRepository,
	links repository.GuardianLinkRepository,
	hub *fanout.Hub,
	sealer *crypto.Sealer,
	thresholds map[models.Severity]float64,
	queueSize int,
	workers int,
	logger *zap.Logger,
) *Engine {
	if queueSize <= 0 {
		queueSize = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &Engine{
		classifier: cls,
		store:      store,
		gate:       gate,
		router:     rtr,
		alerts:     alerts,
		links:      links,
		hub:        hub,
		sealer:     sealer,
		thresholds: thresholds,
		logger:     logger,
		queue:      make(chan models.Message, queueSize),
		workers:    workers,
	}
}

// Submit enqueues one message for classification. Fire-and-forget on
// success; ErrQueueFull tells the adapter to back off and retry so a slow
// storage layer never stalls message intake.
func (e *Engine) Submit(msg models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	select {
	case e.queue <- msg:
		e.submitted.Add(1)
		return nil
	default:
		e.rejected.Add(1)
		e.logger.Warn("Classification queue full, message rejected",
			zap.String("message_id", msg.ID),
			zap.Int64("child_id", msg.ChildID))
		return ErrQueueFull
	}
}

// Run starts the worker pool and blocks until ctx is done and all workers
// have drained.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info("Classification engine started.", zap.Int("workers", e.workers))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg := <-e.queue:
					e.process(ctx, msg)
				}
			}
		}()
	}
	wg.Wait()
	e.logger.Info("Classification engine stopped.")
}

// Stats snapshots the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Submitted:       e.submitted.Load(),
		Rejected:        e.rejected.Load(),
		Flagged:         e.flagged.Load(),
		BelowThreshold:  e.belowThreshold.Load(),
		Suppressed:      e.suppressed.Load(),
		Persisted:       e.persisted.Load(),
		PersistFailures: e.persistFailures.Load(),
		SkippedDegraded: e.skippedDegraded.Load(),
	}
}

func (e *Engine) process(ctx context.Context, msg models.Message) {
	if !e.store.Loaded() {
		// No rule snapshot has ever been cached: fail closed and make the
		// degraded state visible to operators rather than silently treating
		// the message as clean.
		e.skippedDegraded.Add(1)
		e.logger.Error("Rule store has no snapshot, skipping classification",
			zap.String("message_id", msg.ID))
		return
	}

	guardians, err := e.links.GuardiansForChild(ctx, msg.ChildID)
	if err != nil {
		e.logger.Error("Failed to resolve guardians for filter lookup",
			zap.Int64("child_id", msg.ChildID), zap.Error(err))
	}
	var filters []models.Filter
	for _, guardianID := range guardians {
		filters = append(filters, e.store.ActiveFilters(guardianID)...)
	}

	result := e.classifier.Classify(msg, filters)
	if !result.Flagged {
		return
	}
	e.flagged.Add(1)

	if threshold, ok := e.thresholds[result.Severity]; ok && result.Confidence < threshold {
		e.belowThreshold.Add(1)
		e.logger.Debug("Flagged message below alert threshold",
			zap.String("message_id", msg.ID),
			zap.String("severity", string(result.Severity)),
			zap.Float64("confidence", result.Confidence))
		return
	}

	key := dedup.Key(msg, result.MatchedPhrases)
	candidates, err := e.router.Route(ctx, msg, result, key)
	if err != nil {
		e.logger.Error("Failed to route flagged message", zap.String("message_id", msg.ID), zap.Error(err))
		return
	}

	for _, alert := range candidates {
		emit, _ := e.gate.ShouldEmit(alert.GuardianID, result, msg)
		if !emit {
			e.suppressed.Add(1)
			continue
		}
		e.emit(ctx, alert)
	}
}

// emit persists one alert with bounded backoff and pushes it to the
// guardian's live sessions. The persisted row carries sealed content; the
// pushed copy carries the clear text.
func (e *Engine) emit(ctx context.Context, alert models.Alert) {
	plain := alert
	if e.sealer != nil {
		sealed, err := e.sealer.Seal(alert.FlaggedContent)
		if err != nil {
			e.logger.Error("Failed to seal flagged content, persisting alert without it",
				zap.Int64("guardian_id", alert.GuardianID), zap.Error(err))
			alert.FlaggedContent = ""
		} else {
			alert.FlaggedContent = sealed
		}
	}

	if err := e.persistWithRetry(ctx, &alert); err != nil {
		// A dropped alert is a safety-relevant miss; it must be reported,
		// not swallowed.
		e.persistFailures.Add(1)
		e.logger.Error("Failed to persist alert after retries",
			zap.Int64("guardian_id", alert.GuardianID),
			zap.Int64("child_id", alert.ChildID),
			zap.String("dedup_key", alert.DedupKey),
			zap.Error(err))
		return
	}
	e.persisted.Add(1)

	plain.ID = alert.ID
	plain.CreatedAt = alert.CreatedAt
	e.hub.Publish(plain)
}

func (e *Engine) persistWithRetry(ctx context.Context, alert *models.Alert) error {
	var err error
	backoff := persistBackoff
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if err = e.alerts.Insert(ctx, alert); err == nil {
			return nil
		}
		if attempt == persistAttempts {
			break
		}
		e.logger.Warn("Alert persistence failed, retrying",
			zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
