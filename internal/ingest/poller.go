package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"kidsafe/internal/models"
	"kidsafe/internal/repository"
)

// MessageFetcher fetches new messages for one monitored channel.
// CollectorClient is the production implementation.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, app string, externalID, sinceID int64) ([]CollectedMessage, error)
}

// Poller is a poll-style source: it periodically asks the collector for new
// messages on every active monitored channel, tracking a per-channel
// high-water mark so nothing is collected twice. Fetches are rate limited to
// stay below the platforms' flood thresholds.
type Poller struct {
	fetcher  MessageFetcher
	channels repository.ChannelRepository
	limiter  *rate.Limiter
	interval time.Duration
	logger   *zap.Logger
	out      chan models.Message
}

// NewPoller creates a polling source. requestsPerSecond bounds collector
// fetch calls across all channels.
func NewPoller(fetcher MessageFetcher, channels repository.ChannelRepository, interval time.Duration, requestsPerSecond float64, logger *zap.Logger) *Poller {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &Poller{
		fetcher:  fetcher,
		channels: channels,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		interval: interval,
		logger:   logger,
		out:      make(chan models.Message, 64),
	}
}

func (p *Poller) Messages() <-chan models.Message {
	return p.out
}

// Run polls until ctx is done, then closes the message channel.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Collector poller started.", zap.Duration("interval", p.interval))
	defer close(p.out)

	p.pollOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Collector poller stopped.")
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	channels, err := p.channels.ListActive(ctx)
	if err != nil {
		p.logger.Error("Failed to list monitored channels", zap.Error(err))
		return
	}
	if len(channels) == 0 {
		p.logger.Debug("No channels configured for monitoring.")
		return
	}

	for _, ch := range channels {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		collected, err := p.fetcher.FetchMessages(fetchCtx, ch.App, ch.ExternalID, ch.LastCollectedMessageID)
		cancel()
		if err != nil {
			p.logger.Error("Failed to fetch messages from collector",
				zap.Int64("channel_id", ch.ID),
				zap.String("app", ch.App),
				zap.Error(err))
			continue
		}
		if len(collected) == 0 {
			continue
		}

		maxID := ch.LastCollectedMessageID
		for _, m := range collected {
			msg := models.Message{
				ChildID:    ch.ChildID,
				App:        ch.App,
				Sender:     m.Sender,
				Text:       m.Text,
				ReceivedAt: m.Timestamp,
			}
			select {
			case p.out <- msg:
			case <-ctx.Done():
				return
			}
			if m.ID > maxID {
				maxID = m.ID
			}
		}

		if maxID > ch.LastCollectedMessageID {
			if err := p.channels.UpdateLastCollectedMessageID(ctx, ch.ID, maxID); err != nil {
				p.logger.Error("Failed to update channel high-water mark",
					zap.Int64("channel_id", ch.ID),
					zap.Int64("max_message_id", maxID),
					zap.Error(err))
			}
		}
	}
}
