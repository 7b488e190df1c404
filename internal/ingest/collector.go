package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// CollectedMessage is the shape the collector service returns from its
// /collect endpoint.
type CollectedMessage struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CollectorClient talks to an external per-platform collector service that
// exposes already-normalized messages.
type CollectorClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCollectorClient creates a collector API client.
func NewCollectorClient(baseURL string, logger *zap.Logger) *CollectorClient {
	return &CollectorClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// FetchMessages fetches messages newer than sinceID for one monitored
// channel of one platform.
func (c *CollectorClient) FetchMessages(ctx context.Context, app string, externalID, sinceID int64) ([]CollectedMessage, error) {
	url := fmt.Sprintf("%s/%s/collect?channel_id=%d&since_id=%d", c.baseURL, app, externalID, sinceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to make request to collector", zap.Error(err))
		return nil, fmt.Errorf("failed to make request to collector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Collector returned non-OK status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("collector returned status: %d", resp.StatusCode)
	}

	var response struct {
		Messages []CollectedMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode collector response: %w", err)
	}
	return response.Messages, nil
}
