package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"stock-sync-service/internal/models"
	"stock-sync-service/internal/repository"
	"stock-sync-service/internal/services"
)

// SyncHandler handles sync trigger and run history endpoints
type SyncHandler struct {
	service *services.SyncService
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(service *services.SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

func (h *SyncHandler) trigger(c *gin.Context, syncType models.SyncType) {
	run, err := h.service.StartSync(c.Request.Context(), syncType, models.TriggerManual)
	if err != nil {
		if errors.Is(err, repository.ErrSyncInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "a sync is already in progress"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": run})
}

// TriggerOrders starts an order sync pass
func (h *SyncHandler) TriggerOrders(c *gin.Context) {
	h.trigger(c, models.SyncTypeOrders)
}

// TriggerProducts starts a product catalog sync pass
func (h *SyncHandler) TriggerProducts(c *gin.Context) {
	h.trigger(c, models.SyncTypeProducts)
}

// TriggerStock starts a stock availability sync pass
func (h *SyncHandler) TriggerStock(c *gin.Context) {
	h.trigger(c, models.SyncTypeStock)
}

// GetStatus returns watermark and outcome per sync type, plus row
// counts for the synced tables
func (h *SyncHandler) GetStatus(c *gin.Context) {
	statuses, err := h.service.GetStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	counts, err := h.service.GetDataCounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": statuses, "counts": counts})
}

// ListRuns returns run history
func (h *SyncHandler) ListRuns(c *gin.Context) {
	limit, offset := pagination(c, 50)
	syncType := models.SyncType(c.Query("syncType"))

	runs, total, err := h.service.ListRuns(c.Request.Context(), syncType, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": runs, "total": total})
}

// GetRun returns a single run
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": run})
}

// CancelRun cancels an in-flight run
func (h *SyncHandler) CancelRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.service.CancelRun(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "run cancelled"})
}

// GetRunLogs returns the log entries for a run
func (h *SyncHandler) GetRunLogs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	logs, err := h.service.GetRunLogs(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

func pagination(c *gin.Context, defaultLimit int) (int, int) {
	limit := defaultLimit
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
