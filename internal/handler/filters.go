package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kidsafe/internal/models"
	"kidsafe/internal/repository"
)

type FilterHandler interface {
	ListFilters(c *gin.Context)
	UpsertFilter(c *gin.Context)
	DeleteFilter(c *gin.Context)
}

type filterHandler struct {
	filters repository.FilterRepository
	logger  *zap.Logger
}

func NewFilterHandler(filters repository.FilterRepository, logger *zap.Logger) FilterHandler {
	return &filterHandler{filters: filters, logger: logger}
}

// ListFilters handles GET /api/filters.
func (h *filterHandler) ListFilters(c *gin.Context) {
	filters, err := h.filters.ListByGuardian(c.Request.Context(), guardianID(c))
	if err != nil {
		h.logger.Error("Failed to list filters", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve filters"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"filters": filters})
}

// UpsertFilter handles POST /api/filters. A zero ID creates; a non-zero ID
// updates the guardian's own filter. Changes become visible to
// classification within one refresh cycle.
func (h *filterHandler) UpsertFilter(c *gin.Context) {
	var req models.UpsertFilterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	filter := &models.Filter{
		ID:         req.ID,
		GuardianID: guardianID(c),
		MatchText:  req.MatchText,
		MatchMode:  models.MatchMode(req.MatchMode),
		Severity:   models.Severity(req.Severity),
		Active:     active,
	}

	if err := h.filters.Upsert(c.Request.Context(), filter); err != nil {
		if errors.Is(err, repository.ErrFilterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Filter not found"})
			return
		}
		h.logger.Error("Failed to upsert filter", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save filter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"filter": filter})
}

// DeleteFilter handles DELETE /api/filters/:id. Guardians can only delete
// their own filters.
func (h *filterHandler) DeleteFilter(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter ID"})
		return
	}

	owned, err := h.filters.ListByGuardian(c.Request.Context(), guardianID(c))
	if err != nil {
		h.logger.Error("Failed to list filters for delete", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete filter"})
		return
	}
	found := false
	for _, f := range owned {
		if f.ID == id {
			found = true
			break
		}
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "Filter not found"})
		return
	}

	if err := h.filters.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrFilterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Filter not found"})
			return
		}
		h.logger.Error("Failed to delete filter", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete filter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Filter deleted"})
}
