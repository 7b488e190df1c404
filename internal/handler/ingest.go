package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kidsafe/internal/models"
	"kidsafe/internal/pipeline"
)

type IngestHandler interface {
	SubmitMessage(c *gin.Context)
}

type ingestHandler struct {
	engine *pipeline.Engine
	logger *zap.Logger
}

func NewIngestHandler(engine *pipeline.Engine, logger *zap.Logger) IngestHandler {
	return &ingestHandler{engine: engine, logger: logger}
}

// SubmitMessageInput is the normalized message shape push adapters post.
type SubmitMessageInput struct {
	ID         string    `json:"id"`
	ChildID    int64     `json:"child_id" binding:"required"`
	App        string    `json:"app" binding:"required"`
	Sender     string    `json:"sender" binding:"required"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// SubmitMessage handles POST /ingest/messages: fire-and-forget enqueue into
// the classification pipeline. A full queue answers 503 so the adapter
// retries instead of losing the message silently.
func (h *ingestHandler) SubmitMessage(c *gin.Context) {
	var req SubmitMessageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.engine.Submit(models.Message{
		ID:         req.ID,
		ChildID:    req.ChildID,
		App:        req.App,
		Sender:     req.Sender,
		Text:       req.Text,
		ReceivedAt: req.ReceivedAt,
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Queue full, retry later"})
			return
		}
		h.logger.Error("Failed to submit message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit message"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Message accepted"})
}
