package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"kidsafe/internal/crypto"
	"kidsafe/internal/fanout"
	"kidsafe/internal/middleware"
	"kidsafe/internal/models"
	"kidsafe/internal/repository"
)

const defaultRecentLimit = 50

type AlertHandler interface {
	RecentAlerts(c *gin.Context)
	MarkRead(c *gin.Context)
	Acknowledge(c *gin.Context)
	Subscribe(c *gin.Context)
}

type alertHandler struct {
	alerts   repository.AlertRepository
	hub      *fanout.Hub
	sealer   *crypto.Sealer
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewAlertHandler(alerts repository.AlertRepository, hub *fanout.Hub, sealer *crypto.Sealer, logger *zap.Logger) AlertHandler {
	return &alertHandler{
		alerts: alerts,
		hub:    hub,
		sealer: sealer,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func guardianID(c *gin.Context) int64 {
	return c.MustGet(middleware.GuardianIDKey).(int64)
}

// openContent decrypts an alert's flagged content for the guardian-facing
// response. On failure the sealed value stays in place.
func (h *alertHandler) openContent(alert *models.Alert) {
	if h.sealer == nil || alert.FlaggedContent == "" {
		return
	}
	opened, err := h.sealer.Open(alert.FlaggedContent)
	if err != nil {
		h.logger.Warn("Failed to decrypt flagged content",
			zap.Int64("alert_id", alert.ID),
			zap.Error(err))
		return
	}
	alert.FlaggedContent = opened
}

// RecentAlerts handles GET /api/alerts?limit=N, newest first.
func (h *alertHandler) RecentAlerts(c *gin.Context) {
	limit := defaultRecentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
			return
		}
		limit = parsed
	}

	alerts, err := h.alerts.RecentByGuardian(c.Request.Context(), guardianID(c), limit)
	if err != nil {
		h.logger.Error("Failed to get recent alerts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alerts"})
		return
	}

	for i := range alerts {
		h.openContent(&alerts[i])
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// MarkRead handles POST /api/alerts/:id/read. Idempotent; an acknowledged
// alert stays acknowledged.
func (h *alertHandler) MarkRead(c *gin.Context) {
	h.transition(c, models.AlertStateRead)
}

// Acknowledge handles POST /api/alerts/:id/acknowledge. Idempotent.
func (h *alertHandler) Acknowledge(c *gin.Context) {
	h.transition(c, models.AlertStateAcknowledged)
}

func (h *alertHandler) transition(c *gin.Context, state models.AlertState) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	alert, err := h.alerts.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
			return
		}
		h.logger.Error("Failed to get alert", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alert"})
		return
	}
	if alert.GuardianID != guardianID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}

	// Reading never downgrades an acknowledged alert.
	if state == models.AlertStateRead && alert.State == models.AlertStateAcknowledged {
		c.JSON(http.StatusOK, gin.H{"message": "Alert state unchanged"})
		return
	}
	if alert.State == state {
		c.JSON(http.StatusOK, gin.H{"message": "Alert state unchanged"})
		return
	}

	if err := h.alerts.UpdateState(c.Request.Context(), id, state); err != nil {
		h.logger.Error("Failed to update alert state", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert state"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Alert state updated"})
}

// Subscribe handles GET /api/alerts/subscribe: upgrades to a websocket and
// streams newly created alerts for the authenticated guardian. No replay;
// clients pull recent history separately on (re)connect.
func (h *alertHandler) Subscribe(c *gin.Context) {
	gid := guardianID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade alert subscription", zap.Error(err))
		return
	}

	session := h.hub.Subscribe(gid)
	defer func() {
		session.Close()
		conn.Close()
	}()

	// Reader goroutine only watches for the client going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				session.Close()
				return
			}
		}
	}()

	for alert := range session.Alerts() {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(alert); err != nil {
			h.logger.Debug("Alert push failed, closing session",
				zap.Int64("guardian_id", gid),
				zap.Error(err))
			return
		}
	}
}
