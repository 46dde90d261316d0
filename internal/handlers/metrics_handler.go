package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"stock-sync-service/internal/services"
)

// MetricsHandler handles velocity and reorder endpoints
type MetricsHandler struct {
	service *services.VelocityService
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(service *services.VelocityService) *MetricsHandler {
	return &MetricsHandler{service: service}
}

func windowDays(c *gin.Context) int {
	days := 90
	if v, err := strconv.Atoi(c.Query("days")); err == nil && v > 0 && v <= 365 {
		days = v
	}
	return days
}

// GetVelocity returns per-SKU daily sales velocity
func (h *MetricsHandler) GetVelocity(c *gin.Context) {
	days := windowDays(c)

	if sku := c.Query("sku"); sku != "" {
		metrics, err := h.service.VelocityForSKU(c.Request.Context(), sku, days)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if metrics == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no sales for sku in window"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": metrics, "windowDays": days})
		return
	}

	metrics, err := h.service.Velocity(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": metrics, "windowDays": days})
}

// GetReorderPoints returns the replenishment thresholds for every SKU
// with sales in the window
func (h *MetricsHandler) GetReorderPoints(c *gin.Context) {
	days := windowDays(c)

	points, err := h.service.ReorderPoints(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": points, "windowDays": days})
}

// GetRecommendations returns reorder recommendations for every SKU with
// sales in the window
func (h *MetricsHandler) GetRecommendations(c *gin.Context) {
	days := windowDays(c)

	recs, err := h.service.Recommendations(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recs, "windowDays": days})
}
