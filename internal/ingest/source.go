package ingest

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"kidsafe/internal/models"
	"kidsafe/internal/pipeline"
)

// Source produces normalized messages. The pipeline does not care whether
// the messages behind the channel arrive by push or by polling; both kinds
// of adapter satisfy the same interface.
type Source interface {
	Messages() <-chan models.Message
}

// ChannelSource is a push-style source: platform adapters call Push as
// events arrive.
type ChannelSource struct {
	ch chan models.Message
}

func NewChannelSource(buffer int) *ChannelSource {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSource{ch: make(chan models.Message, buffer)}
}

// Push hands one normalized platform event to the source. It blocks until
// the message is buffered or ctx is done.
func (s *ChannelSource) Push(ctx context.Context, msg models.Message) error {
	select {
	case s.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ChannelSource) Messages() <-chan models.Message {
	return s.ch
}

const (
	submitRetries = 3
	submitBackoff = 50 * time.Millisecond
)

// Pump forwards messages from a source into the engine until ctx is done.
// A full queue is retried briefly; a message still rejected after that is
// dropped with a log line, never by blocking the source.
func Pump(ctx context.Context, src Source, engine *pipeline.Engine, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-src.Messages():
			if !ok {
				return
			}
			submit(ctx, engine, msg, logger)
		}
	}
}

func submit(ctx context.Context, engine *pipeline.Engine, msg models.Message, logger *zap.Logger) {
	for attempt := 0; attempt <= submitRetries; attempt++ {
		err := engine.Submit(msg)
		if err == nil {
			return
		}
		if !errors.Is(err, pipeline.ErrQueueFull) {
			logger.Error("Failed to submit message", zap.String("message_id", msg.ID), zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(submitBackoff):
		}
	}
	logger.Warn("Dropping message after repeated queue-full rejections",
		zap.String("message_id", msg.ID),
		zap.Int64("child_id", msg.ChildID))
}
